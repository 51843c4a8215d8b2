package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"marlin/internal/domain"
)

// benchmarkDailyRate is the synthetic benchmark's fixed daily growth rate.
// The chart benchmark is not a real market index.
const benchmarkDailyRate = 0.0003

// ChartPoint is one entry of the lightweight per-day series derived from
// the valuation history for charting.
type ChartPoint struct {
	Date        time.Time `json:"date"`
	Value       float64   `json:"value"`
	DrawdownPct float64   `json:"drawdown_pct"`
	Benchmark   float64   `json:"benchmark"`
}

// Result is the sole output of a simulation run. It is immutable once the
// run completes.
type Result struct {
	ID         string
	Config     Config
	RanAt      time.Time
	FinalValue decimal.Decimal
	Cash       decimal.Decimal
	Positions  map[string]int64
	Trades     []domain.Trade
	RiskEvents []domain.RiskEvent
	Metrics    Metrics
	Chart      []ChartPoint
}

// BuildChart derives the chart series from the full valuation history,
// seed entry included. The benchmark column is the synthetic series
// initialCapital × (1 + benchmarkDailyRate × dayIndex).
func BuildChart(initialCapital decimal.Decimal, valuations []ValuationPoint) []ChartPoint {
	initial, _ := initialCapital.Float64()
	points := make([]ChartPoint, 0, len(valuations))

	peak := decimal.Zero
	for i, v := range valuations {
		if v.Value.GreaterThan(peak) {
			peak = v.Value
		}

		var drawdownPct float64
		if peak.IsPositive() {
			dd, _ := peak.Sub(v.Value).Div(peak).Float64()
			drawdownPct = dd * 100
		}

		value, _ := v.Value.Float64()
		points = append(points, ChartPoint{
			Date:        v.Date,
			Value:       value,
			DrawdownPct: drawdownPct,
			Benchmark:   initial * (1 + benchmarkDailyRate*float64(i)),
		})
	}
	return points
}
