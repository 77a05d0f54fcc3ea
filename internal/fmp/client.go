// Package fmp is a thin client for the Financial Modeling Prep v3 API,
// fetching the per-ticker fundamentals the valuation pages consume.
package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"patrimonio/internal/log"
)

// errNotFound marks a 404 from the API, which means an unknown ticker
// rather than a failure.
var errNotFound = errors.New("not found")

// CompanyFinancials is the subset of FMP data the dashboard uses.
type CompanyFinancials struct {
	Ticker       string
	CompanyName  string
	CurrentPrice float64
	EPSTTM       float64
	PERatioTTM   float64
	MarketCap    float64
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(baseURL, apiKey string, logger *log.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.WithComponent(log.ComponentFMP),
	}
}

type profileResponse struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	Price       float64 `json:"price"`
	MktCap      float64 `json:"mktCap"`
}

type incomeStatementResponse struct {
	EPS float64 `json:"eps"`
}

type ratiosTTMResponse struct {
	PERatioTTM float64 `json:"peRatioTTM"`
}

// Lookup fetches profile, trailing EPS and trailing P/E for a ticker.
// An unknown ticker returns (nil, nil) so callers can render a
// not-found state without error plumbing. The P/E is recomputed from
// price and EPS when the ratios endpoint has no figure.
func (c *Client) Lookup(ctx context.Context, ticker string) (*CompanyFinancials, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("empty ticker")
	}

	var profiles []profileResponse
	if err := c.getJSON(ctx, "/profile/"+url.PathEscape(ticker), nil, &profiles); err != nil {
		if errors.Is(err, errNotFound) {
			c.logger.InfoContext(ctx, "ticker not found", log.FieldTicker, ticker)
			return nil, nil
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if len(profiles) == 0 {
		c.logger.InfoContext(ctx, "ticker not found", log.FieldTicker, ticker)
		return nil, nil
	}
	profile := profiles[0]

	// A 404 on the secondary endpoints only means that figure is missing,
	// the profile already established the ticker exists.
	var statements []incomeStatementResponse
	if err := c.getJSON(ctx, "/income-statement/"+url.PathEscape(ticker), url.Values{"limit": {"1"}}, &statements); err != nil && !errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("fetch income statement: %w", err)
	}

	var ratios []ratiosTTMResponse
	if err := c.getJSON(ctx, "/ratios-ttm/"+url.PathEscape(ticker), nil, &ratios); err != nil && !errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("fetch ratios: %w", err)
	}

	fin := &CompanyFinancials{
		Ticker:       ticker,
		CompanyName:  profile.CompanyName,
		CurrentPrice: profile.Price,
		MarketCap:    profile.MktCap,
	}
	if len(statements) > 0 {
		fin.EPSTTM = statements[0].EPS
	}
	if len(ratios) > 0 {
		fin.PERatioTTM = ratios[0].PERatioTTM
	}
	if fin.PERatioTTM == 0 && fin.EPSTTM != 0 {
		fin.PERatioTTM = fin.CurrentPrice / fin.EPSTTM
	}

	c.logger.InfoContext(ctx, "company financials fetched",
		log.FieldTicker, ticker,
		"price", fin.CurrentPrice,
		"eps_ttm", fin.EPSTTM)
	return fin, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if c.apiKey != "" {
		query.Set("apikey", c.apiKey)
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
