package http

import (
	"net/http"
	"strings"

	"patrimonio/internal/dcf"
	"patrimonio/internal/log"
)

// Default valuation assumptions when the form leaves a field blank.
const (
	defaultGrowthPct     = 10.0
	defaultMultiple      = 20.0
	defaultDesiredReturn = 12.0
	defaultYears         = 5
)

// handleValuationPage renders the stock valuation page.
func (s *Server) handleValuationPage(w http.ResponseWriter, r *http.Request) {
	data := struct {
		GrowthPct     float64
		Multiple      float64
		DesiredReturn float64
		Years         int
	}{
		GrowthPct:     defaultGrowthPct,
		Multiple:      defaultMultiple,
		DesiredReturn: defaultDesiredReturn,
		Years:         defaultYears,
	}
	s.render(w, r, "valuation.html", data)
}

// handleValuation projects price targets for a ticker from its trailing
// EPS and the submitted assumptions.
func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	query := r.URL.Query()
	ticker := strings.ToUpper(strings.TrimSpace(query.Get("ticker")))
	if ticker == "" {
		_, _ = w.Write([]byte(`<div class="placeholder">Enter a ticker to run a valuation</div>`))
		return
	}
	if s.quotes == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">Market data is not configured</div>`))
		return
	}

	fin, err := s.quotes.Lookup(r.Context(), ticker)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "quote lookup failed",
			log.FieldTicker, ticker,
			log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error fetching market data</div>`))
		return
	}
	if fin == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">Unknown ticker</div>`))
		return
	}

	in := dcf.Assumptions{
		EPS:              fin.EPSTTM,
		CurrentPrice:     fin.CurrentPrice,
		GrowthPct:        parseFloatField(query.Get("growth"), defaultGrowthPct),
		TargetMultiple:   parseFloatField(query.Get("multiple"), defaultMultiple),
		DesiredReturnPct: parseFloatField(query.Get("return"), defaultDesiredReturn),
		Years:            parseIntField(query.Get("years"), defaultYears),
	}
	projection := dcf.Project(in)

	type pointView struct {
		Label string
		EPS   string
		Price string
	}
	data := struct {
		Ticker           string
		CompanyName      string
		CurrentPrice     string
		EPSTTM           string
		PERatioTTM       string
		GrowthPct        string
		TargetMultiple   string
		DesiredReturnPct string
		Series           []pointView
		FinalPrice       string
		EntryPrice       string
		AnnualizedReturn string
		ReturnValid      bool
		NegativeEPS      bool
		Undervalued      bool
	}{
		Ticker:           fin.Ticker,
		CompanyName:      fin.CompanyName,
		CurrentPrice:     formatPrice(fin.CurrentPrice),
		EPSTTM:           formatPrice(fin.EPSTTM),
		PERatioTTM:       formatMultiple(fin.PERatioTTM),
		GrowthPct:        formatPercent(in.GrowthPct),
		TargetMultiple:   formatMultiple(in.TargetMultiple),
		DesiredReturnPct: formatPercent(in.DesiredReturnPct),
		FinalPrice:       formatPrice(projection.FinalPrice),
		EntryPrice:       formatPrice(projection.EntryPrice),
		ReturnValid:      projection.ReturnValid,
		NegativeEPS:      fin.EPSTTM < 0,
		Undervalued:      projection.EntryPrice > fin.CurrentPrice && fin.CurrentPrice > 0,
	}
	if projection.ReturnValid {
		data.AnnualizedReturn = formatPercent(projection.AnnualizedReturnPct)
	}
	for _, p := range projection.Series {
		data.Series = append(data.Series, pointView{
			Label: p.Label,
			EPS:   formatPrice(p.EPS),
			Price: formatPrice(p.Price),
		})
	}

	s.logger.InfoContext(r.Context(), "valuation computed",
		log.FieldTicker, ticker,
		"final_price", projection.FinalPrice,
		"entry_price", projection.EntryPrice)

	if err := s.templates.ExecuteTemplate(w, "valuation_result.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "valuation template failed", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering valuation</div>`))
	}
}

// handleScenarios renders the fixed-multiple scenario grid for a ticker.
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	query := r.URL.Query()
	ticker := strings.ToUpper(strings.TrimSpace(query.Get("ticker")))
	if ticker == "" {
		_, _ = w.Write([]byte(`<div class="placeholder">Enter a ticker to see scenarios</div>`))
		return
	}
	if s.quotes == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">Market data is not configured</div>`))
		return
	}

	fin, err := s.quotes.Lookup(r.Context(), ticker)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "quote lookup failed",
			log.FieldTicker, ticker,
			log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error fetching market data</div>`))
		return
	}
	if fin == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">Unknown ticker</div>`))
		return
	}

	growth := parseFloatField(query.Get("growth"), defaultGrowthPct)
	years := parseIntField(query.Get("years"), dcf.DefaultScenarioYears)
	rows := dcf.Scenarios(fin.EPSTTM, growth, years, nil)
	if rows == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">Scenarios need positive earnings and a growth rate above -100%</div>`))
		return
	}

	type rowView struct {
		Year   int
		EPS    string
		Prices []string
	}
	data := struct {
		Ticker    string
		Multiples []string
		Rows      []rowView
	}{Ticker: fin.Ticker}
	for _, m := range dcf.DefaultMultiples {
		data.Multiples = append(data.Multiples, formatMultiple(m))
	}
	for _, row := range rows {
		view := rowView{Year: row.Year, EPS: formatPrice(row.EPS)}
		for _, p := range row.Prices {
			view.Prices = append(view.Prices, formatPrice(p))
		}
		data.Rows = append(data.Rows, view)
	}

	if err := s.templates.ExecuteTemplate(w, "scenarios.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "scenarios template failed", log.FieldError, err)
		_, _ = w.Write([]byte(`<div class="placeholder">Error rendering scenarios</div>`))
	}
}
