// Package dcf projects earnings-based price targets from caller-supplied
// assumptions. The engine is pure float math: it never errors, it only
// propagates what it is given, and undefined quantities are reported with
// an explicit ok flag instead of a zero that could be mistaken for a result.
package dcf

import (
	"fmt"
	"math"
)

// DefaultMultiples are the exit P/E multiples used by the scenario table
// when the caller does not override them.
var DefaultMultiples = []float64{20, 22.5, 25}

// DefaultScenarioYears is the horizon of the scenario table.
const DefaultScenarioYears = 5

type (
	// Assumptions are the inputs to a single projection run.
	Assumptions struct {
		EPS              float64
		CurrentPrice     float64
		GrowthPct        float64
		TargetMultiple   float64
		DesiredReturnPct float64
		Years            int
	}

	// PricePoint is one year of the projected price series.
	PricePoint struct {
		Label string
		EPS   float64
		Price float64
	}

	// Projection is the full result of one run.
	Projection struct {
		Series     []PricePoint
		FinalPrice float64
		// EntryPrice is the price today that yields the desired annual
		// return if the final price is reached.
		EntryPrice float64
		// AnnualizedReturnPct is the implied return from CurrentPrice to
		// FinalPrice. It is meaningful only when ReturnValid is true.
		AnnualizedReturnPct float64
		ReturnValid         bool
	}

	// ScenarioRow is one year of the fixed-multiple scenario table.
	ScenarioRow struct {
		Year   int
		EPS    float64
		Prices []float64
	}
)

// Project compounds EPS by the growth rate over the horizon and applies
// the target multiple to each year. Negative EPS flows through unchanged;
// it is the caller's job to warn the user, not the engine's to refuse.
func Project(in Assumptions) Projection {
	var p Projection
	if in.Years < 1 {
		return p
	}

	growth := 1 + in.GrowthPct/100
	eps := in.EPS
	p.Series = make([]PricePoint, 0, in.Years)
	for year := 1; year <= in.Years; year++ {
		eps *= growth
		price := eps * in.TargetMultiple
		p.Series = append(p.Series, PricePoint{
			Label: fmt.Sprintf("Year %d", year),
			EPS:   eps,
			Price: price,
		})
	}
	p.FinalPrice = p.Series[len(p.Series)-1].Price

	discount := math.Pow(1+in.DesiredReturnPct/100, float64(in.Years))
	p.EntryPrice = p.FinalPrice / discount

	if in.CurrentPrice > 0 && p.FinalPrice > 0 {
		ratio := p.FinalPrice / in.CurrentPrice
		p.AnnualizedReturnPct = (math.Pow(ratio, 1/float64(in.Years)) - 1) * 100
		p.ReturnValid = true
	}
	return p
}

// Scenarios builds the year-by-year table for a set of exit multiples.
// Values are rounded to two decimals because the table is a display
// artifact, unlike Project whose output feeds further math.
//
// The guard mirrors the projection form's own validation: a non-positive
// base EPS or a growth rate at or past total loss yields no rows.
func Scenarios(baseEPS, growthPct float64, years int, multiples []float64) []ScenarioRow {
	if baseEPS <= 0 || growthPct < -100 {
		return nil
	}
	if years < 1 {
		years = DefaultScenarioYears
	}
	if len(multiples) == 0 {
		multiples = DefaultMultiples
	}

	growth := 1 + growthPct/100
	eps := baseEPS
	rows := make([]ScenarioRow, 0, years)
	for year := 1; year <= years; year++ {
		eps *= growth
		row := ScenarioRow{Year: year, EPS: round2(eps)}
		row.Prices = make([]float64, len(multiples))
		for i, m := range multiples {
			row.Prices[i] = round2(eps * m)
		}
		rows = append(rows, row)
	}
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
