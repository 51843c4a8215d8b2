package backtest

import (
	"context"
	"reflect"
	"testing"
	"time"

	"marlin/internal/domain"
	"marlin/internal/marketdata"
	"marlin/internal/strategy/builtins"
)

// flatBars builds n daily bars for each symbol at a constant closing price.
func flatBars(symbols []string, start time.Time, n int, close float64) map[string][]domain.Bar {
	out := make(map[string][]domain.Bar, len(symbols))
	for _, sym := range symbols {
		series := make([]domain.Bar, 0, n)
		for i := 0; i < n; i++ {
			series = append(series, domain.Bar{
				Symbol: sym,
				Date:   start.AddDate(0, 0, i),
				Close:  close,
			})
		}
		out[sym] = series
	}
	return out
}

// trendBars builds n daily bars whose close rises by step each day.
func trendBars(symbol string, start time.Time, n int, first, step float64) []domain.Bar {
	series := make([]domain.Bar, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, domain.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Close:  first + step*float64(i),
		})
	}
	return series
}

func testConfig(symbols []string, strat string, days int) Config {
	start := day(2024, time.January, 2)
	return Config{
		Symbols:        symbols,
		Start:          start,
		End:            start.AddDate(0, 0, days),
		InitialCapital: dec("100000"),
		Strategy:       strat,
		Risk:           testLimits(),
	}
}

func newTestEngine(bars map[string][]domain.Bar) *Engine {
	return NewEngine(marketdata.NewStaticSource(bars), builtins.NewRegistry(), testLogger())
}

func TestRunEqualWeightInitialAllocation(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "GOOG"}
	start := day(2024, time.January, 2)
	e := newTestEngine(flatBars(symbols, start, 5, 100))

	result, err := e.Run(context.Background(), testConfig(symbols, "equal-weight", 5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Day 0 buys one third per symbol; no rebalance fires in 5 flat days.
	if len(result.Trades) != 3 {
		t.Fatalf("len(trades) = %d, want 3", len(result.Trades))
	}
	for i, tr := range result.Trades {
		if tr.Side != domain.SideBuy {
			t.Errorf("trades[%d].Side = %q, want BUY", i, tr.Side)
		}
		if tr.Symbol != symbols[i] {
			t.Errorf("trades[%d].Symbol = %q, want %q", i, tr.Symbol, symbols[i])
		}
		// floor(100000/3 / 100) = 333 shares, $33,300 notional.
		if tr.Quantity != 333 {
			t.Errorf("trades[%d].Quantity = %d, want 333", i, tr.Quantity)
		}
		if !tr.Value.Equal(dec("33300")) {
			t.Errorf("trades[%d].Value = %s, want 33300", i, tr.Value)
		}
	}

	// Flat prices: final value equals initial capital.
	if !result.FinalValue.Equal(dec("100000")) {
		t.Errorf("FinalValue = %s, want 100000", result.FinalValue)
	}
	if result.Metrics.TotalReturn != 0 {
		t.Errorf("TotalReturn = %g, want 0", result.Metrics.TotalReturn)
	}
	if result.ID == "" {
		t.Errorf("result ID is empty")
	}
}

func TestRunMomentumBuysAfterLookback(t *testing.T) {
	start := day(2024, time.January, 2)
	bars := map[string][]domain.Bar{
		// 25 days rising 101..125: 20-day momentum well above 5%.
		"AAPL": trendBars("AAPL", start, 25, 101, 1),
	}
	e := newTestEngine(bars)

	result, err := e.Run(context.Background(), testConfig([]string{"AAPL"}, "momentum", 25))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Exactly one BUY: the strategy stays inactive through day 19, buys on
	// day 20, and does not re-buy while the position is held.
	if len(result.Trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1", len(result.Trades))
	}
	tr := result.Trades[0]
	if tr.Side != domain.SideBuy {
		t.Errorf("side = %q, want BUY", tr.Side)
	}
	if !tr.Date.Equal(start.AddDate(0, 0, 20)) {
		t.Errorf("date = %s, want day 20 (%s)", tr.Date, start.AddDate(0, 0, 20))
	}
	if !tr.Price.Equal(dec("121")) {
		t.Errorf("price = %s, want 121", tr.Price)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	symbols := []string{"AAPL", "MSFT"}
	start := day(2024, time.January, 2)
	bars := map[string][]domain.Bar{
		"AAPL": trendBars("AAPL", start, 30, 100, 2),
		"MSFT": trendBars("MSFT", start, 30, 200, -1),
	}
	cfg := testConfig(symbols, "equal-weight", 30)

	run := func() *Result {
		t.Helper()
		r, err := newTestEngine(bars).Run(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return r
	}

	a, b := run(), run()

	if len(a.Trades) != len(b.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(a.Trades), len(b.Trades))
	}
	for i := range a.Trades {
		ta, tb := a.Trades[i], b.Trades[i]
		ta.ID, tb.ID = "", "" // IDs are random by design
		if !reflect.DeepEqual(ta, tb) {
			t.Errorf("trades[%d] differ:\n  %+v\n  %+v", i, ta, tb)
		}
	}
	if !a.FinalValue.Equal(b.FinalValue) {
		t.Errorf("final values differ: %s vs %s", a.FinalValue, b.FinalValue)
	}
}

func TestRunStopLossLiquidates(t *testing.T) {
	start := day(2024, time.January, 2)
	// Price collapses 40% on day 1 and stays there. The drawdown control
	// fires on day 1 and keeps firing on every later day, since the
	// valuation never recovers toward the peak; liquidation itself is
	// idempotent once the portfolio is all cash.
	bars := map[string][]domain.Bar{"AAPL": {
		{Symbol: "AAPL", Date: start, Close: 100},
		{Symbol: "AAPL", Date: start.AddDate(0, 0, 1), Close: 60},
		{Symbol: "AAPL", Date: start.AddDate(0, 0, 2), Close: 60},
		{Symbol: "AAPL", Date: start.AddDate(0, 0, 3), Close: 60},
	}}
	e := newTestEngine(bars)

	result, err := e.Run(context.Background(), testConfig([]string{"AAPL"}, "equal-weight", 4))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.RiskEvents) != 3 {
		t.Fatalf("len(riskEvents) = %d, want 3 (days 1 through 3)", len(result.RiskEvents))
	}
	for i, ev := range result.RiskEvents {
		if ev.Reason != domain.RiskReasonMaxDrawdown {
			t.Errorf("riskEvents[%d].Reason = %q, want %q", i, ev.Reason, domain.RiskReasonMaxDrawdown)
		}
	}
	if len(result.Positions) != 0 {
		t.Errorf("positions = %v, want empty after liquidation", result.Positions)
	}
	// Liquidation produces no trade records: only the day-0 BUY remains.
	if len(result.Trades) != 1 {
		t.Errorf("len(trades) = %d, want 1", len(result.Trades))
	}
	if !result.Cash.Equal(result.FinalValue) {
		t.Errorf("cash %s != final value %s after liquidation", result.Cash, result.FinalValue)
	}
}

func TestRunCancelledContext(t *testing.T) {
	symbols := []string{"AAPL"}
	start := day(2024, time.January, 2)
	e := newTestEngine(flatBars(symbols, start, 5, 100))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Run(ctx, testConfig(symbols, "equal-weight", 5)); err == nil {
		t.Fatalf("Run with cancelled context returned nil error")
	}
}

func TestRunUnknownStrategy(t *testing.T) {
	symbols := []string{"AAPL"}
	e := newTestEngine(flatBars(symbols, day(2024, time.January, 2), 5, 100))

	_, err := e.Run(context.Background(), testConfig(symbols, "does-not-exist", 5))
	if err == nil {
		t.Fatalf("Run with unknown strategy returned nil error")
	}
}

func TestRunInvalidConfig(t *testing.T) {
	e := newTestEngine(nil)

	cfg := testConfig(nil, "equal-weight", 5)
	if _, err := e.Run(context.Background(), cfg); err == nil {
		t.Fatalf("Run with no symbols returned nil error")
	}
}

func TestBuildChartSyntheticBenchmark(t *testing.T) {
	vals := []ValuationPoint{
		{Date: day(2024, time.January, 2), Value: dec("100000")},
		{Date: day(2024, time.January, 3), Value: dec("90000")},
		{Date: day(2024, time.January, 4), Value: dec("95000")},
	}

	chart := BuildChart(dec("100000"), vals)
	if len(chart) != 3 {
		t.Fatalf("len(chart) = %d, want 3", len(chart))
	}
	if !closeTo(chart[1].Benchmark, 100000*(1+0.0003)) {
		t.Errorf("chart[1].Benchmark = %g, want %g", chart[1].Benchmark, 100000*1.0003)
	}
	if !closeTo(chart[2].Benchmark, 100000*(1+0.0006)) {
		t.Errorf("chart[2].Benchmark = %g, want %g", chart[2].Benchmark, 100000*1.0006)
	}
	if !closeTo(chart[1].DrawdownPct, 10) {
		t.Errorf("chart[1].DrawdownPct = %g, want 10", chart[1].DrawdownPct)
	}
	if !closeTo(chart[2].DrawdownPct, 5) {
		t.Errorf("chart[2].DrawdownPct = %g, want 5", chart[2].DrawdownPct)
	}
}
