package builtins

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marlin/internal/domain"
	"marlin/internal/strategy"
)

// fakePortfolio is a minimal PortfolioView for strategy tests.
type fakePortfolio struct {
	cash      decimal.Decimal
	positions map[string]int64
}

func (f *fakePortfolio) Cash() decimal.Decimal { return f.cash }

func (f *fakePortfolio) Quantity(symbol string) int64 { return f.positions[symbol] }

func (f *fakePortfolio) TotalValue(prices map[string]decimal.Decimal) decimal.Decimal {
	total := f.cash
	for sym, qty := range f.positions {
		if p, ok := prices[sym]; ok {
			total = total.Add(p.Mul(decimal.NewFromInt(qty)))
		}
	}
	return total
}

// fakeHistory maps symbol to all closes observed so far, oldest first.
type fakeHistory map[string][]decimal.Decimal

func (h fakeHistory) Trailing(symbol string, n int) []decimal.Decimal {
	closes := h[symbol]
	if len(closes) > n {
		closes = closes[len(closes)-n:]
	}
	return closes
}

func prices(m map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for sym, p := range m {
		out[sym] = decimal.NewFromFloat(p)
	}
	return out
}

func closes(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(vals))
	for _, v := range vals {
		out = append(out, decimal.NewFromFloat(v))
	}
	return out
}

// risingCloses returns n closes climbing linearly from start by step.
func risingCloses(start, step float64, n int) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, decimal.NewFromFloat(start+step*float64(i)))
	}
	return out
}

func testDay(index int, p map[string]float64, hist fakeHistory, pf *fakePortfolio) strategy.Day {
	return strategy.Day{
		Index:     index,
		Date:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, index),
		Prices:    prices(p),
		History:   hist,
		Portfolio: pf,
	}
}

// ---------------------------------------------------------------------------
// EqualWeight
// ---------------------------------------------------------------------------

func TestEqualWeightInitialAllocation(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "GOOGL"}
	s := NewEqualWeight(symbols)
	pf := &fakePortfolio{cash: decimal.NewFromInt(100000), positions: map[string]int64{}}

	signals, err := s.Signals(context.Background(), testDay(0, map[string]float64{
		"AAPL": 185, "MSFT": 400, "GOOGL": 140,
	}, fakeHistory{}, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 3 {
		t.Fatalf("day 0 produced %d signals, want 3", len(signals))
	}

	third := decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	for i, sig := range signals {
		if sig.Symbol != symbols[i] {
			t.Errorf("signal %d symbol = %q, want %q (emission order)", i, sig.Symbol, symbols[i])
		}
		if sig.Side != domain.SideBuy {
			t.Errorf("signal %d side = %q, want BUY", i, sig.Side)
		}
		if !sig.Weight.Equal(third) {
			t.Errorf("signal %d weight = %s, want %s", i, sig.Weight, third)
		}
	}
}

func TestEqualWeightNoSignalsOffCadence(t *testing.T) {
	s := NewEqualWeight([]string{"AAPL"})
	pf := &fakePortfolio{cash: decimal.NewFromInt(1000), positions: map[string]int64{"AAPL": 5}}

	for _, index := range []int{1, 7, 19, 21, 39} {
		signals, err := s.Signals(context.Background(), testDay(index, map[string]float64{"AAPL": 100}, fakeHistory{}, pf))
		if err != nil {
			t.Fatalf("Signals(day %d) returned error: %v", index, err)
		}
		if len(signals) != 0 {
			t.Errorf("day %d produced %d signals, want 0", index, len(signals))
		}
	}
}

func TestEqualWeightRebalance(t *testing.T) {
	s := NewEqualWeight([]string{"AAPL", "MSFT"})

	// AAPL has run up: weight 7000/10000 = 0.70 vs target 0.50 → SELL.
	// MSFT holds nothing: weight 0 → BUY.
	pf := &fakePortfolio{
		cash:      decimal.NewFromInt(3000),
		positions: map[string]int64{"AAPL": 70},
	}
	p := map[string]float64{"AAPL": 100, "MSFT": 50}

	signals, err := s.Signals(context.Background(), testDay(20, p, fakeHistory{}, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("rebalance produced %d signals, want 2", len(signals))
	}
	if signals[0].Symbol != "AAPL" || signals[0].Side != domain.SideSell {
		t.Errorf("signal 0 = %s %s, want AAPL SELL", signals[0].Symbol, signals[0].Side)
	}
	if signals[1].Symbol != "MSFT" || signals[1].Side != domain.SideBuy {
		t.Errorf("signal 1 = %s %s, want MSFT BUY", signals[1].Symbol, signals[1].Side)
	}
	for _, sig := range signals {
		if sig.Reason != "Rebalancing to equal weights" {
			t.Errorf("reason = %q, want %q", sig.Reason, "Rebalancing to equal weights")
		}
	}
}

func TestEqualWeightRebalanceWithinTolerance(t *testing.T) {
	s := NewEqualWeight([]string{"AAPL", "MSFT"})

	// Both weights within 5% of 0.50: 0.52 and 0.48.
	pf := &fakePortfolio{
		cash:      decimal.Zero,
		positions: map[string]int64{"AAPL": 52, "MSFT": 96},
	}
	p := map[string]float64{"AAPL": 100, "MSFT": 50}

	signals, err := s.Signals(context.Background(), testDay(40, p, fakeHistory{}, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("balanced portfolio produced %d signals, want 0", len(signals))
	}
}

// ---------------------------------------------------------------------------
// Momentum
// ---------------------------------------------------------------------------

func TestMomentumInactiveBeforeLookback(t *testing.T) {
	s := NewMomentum([]string{"AAPL"})
	pf := &fakePortfolio{cash: decimal.NewFromInt(10000), positions: map[string]int64{}}
	hist := fakeHistory{"AAPL": risingCloses(100, 1, 19)}

	signals, err := s.Signals(context.Background(), testDay(19, map[string]float64{"AAPL": 118}, hist, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("day 19 produced %d signals, want 0 (strategy inactive)", len(signals))
	}
}

func TestMomentumBuyOnStrongTrend(t *testing.T) {
	s := NewMomentum([]string{"AAPL"})
	pf := &fakePortfolio{cash: decimal.NewFromInt(10000), positions: map[string]int64{}}

	// 21 rising closes; trailing 20 run from 101 to 120 → +18.8%.
	hist := fakeHistory{"AAPL": risingCloses(100, 1, 21)}

	signals, err := s.Signals(context.Background(), testDay(20, map[string]float64{"AAPL": 120}, hist, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("produced %d signals, want 1", len(signals))
	}

	sig := signals[0]
	if sig.Side != domain.SideBuy {
		t.Errorf("side = %q, want BUY", sig.Side)
	}
	if !sig.Weight.Equal(decimal.NewFromFloat(0.2)) {
		t.Errorf("weight = %s, want 0.2", sig.Weight)
	}
	if !strings.Contains(sig.Reason, "Momentum 18.8%") {
		t.Errorf("reason = %q, want momentum percentage to one decimal", sig.Reason)
	}
}

func TestMomentumNoRepeatBuyWhileHeld(t *testing.T) {
	s := NewMomentum([]string{"AAPL"})
	pf := &fakePortfolio{cash: decimal.NewFromInt(10000), positions: map[string]int64{"AAPL": 16}}
	hist := fakeHistory{"AAPL": risingCloses(100, 1, 21)}

	signals, err := s.Signals(context.Background(), testDay(20, map[string]float64{"AAPL": 120}, hist, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("held position produced %d signals, want 0", len(signals))
	}
}

func TestMomentumSellOnReversal(t *testing.T) {
	s := NewMomentum([]string{"AAPL"})
	pf := &fakePortfolio{cash: decimal.Zero, positions: map[string]int64{"AAPL": 10}}

	// Falling from 120 to 101: (101-120)/120 = -15.8%.
	hist := fakeHistory{"AAPL": risingCloses(120, -1, 20)}

	signals, err := s.Signals(context.Background(), testDay(25, map[string]float64{"AAPL": 101}, hist, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("produced %d signals, want 1", len(signals))
	}
	if signals[0].Side != domain.SideSell {
		t.Errorf("side = %q, want SELL", signals[0].Side)
	}
	if !signals[0].Weight.IsZero() {
		t.Errorf("sell weight = %s, want none (full close)", signals[0].Weight)
	}
}

func TestMomentumSkipsShortWindow(t *testing.T) {
	s := NewMomentum([]string{"AAPL"})
	pf := &fakePortfolio{cash: decimal.NewFromInt(10000), positions: map[string]int64{}}

	// Only 12 observed closes despite being past the activation gate.
	hist := fakeHistory{"AAPL": risingCloses(100, 5, 12)}

	signals, err := s.Signals(context.Background(), testDay(30, map[string]float64{"AAPL": 155}, hist, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("short window produced %d signals, want 0", len(signals))
	}
}

// ---------------------------------------------------------------------------
// MeanReversion
// ---------------------------------------------------------------------------

func TestMeanReversionBuyOversold(t *testing.T) {
	s := NewMeanReversion([]string{"AAPL"})
	pf := &fakePortfolio{cash: decimal.NewFromInt(10000), positions: map[string]int64{}}

	// 19 closes at 100 then a drop to 80: mean = (19*100+80)/20 = 99,
	// deviation = (80-99)/99 ≈ -19.2%.
	window := append(closes(), risingCloses(100, 0, 19)...)
	window = append(window, decimal.NewFromInt(80))
	hist := fakeHistory{"AAPL": window}

	signals, err := s.Signals(context.Background(), testDay(20, map[string]float64{"AAPL": 80}, hist, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("produced %d signals, want 1", len(signals))
	}

	sig := signals[0]
	if sig.Side != domain.SideBuy {
		t.Errorf("side = %q, want BUY", sig.Side)
	}
	if !sig.Weight.Equal(decimal.NewFromFloat(0.2)) {
		t.Errorf("weight = %s, want 0.2", sig.Weight)
	}
	if !strings.Contains(sig.Reason, "Oversold 19.2%") {
		t.Errorf("reason = %q, want oversold percentage to one decimal", sig.Reason)
	}
}

func TestMeanReversionSellOverbought(t *testing.T) {
	s := NewMeanReversion([]string{"AAPL"})
	pf := &fakePortfolio{cash: decimal.Zero, positions: map[string]int64{"AAPL": 25}}

	// 19 closes at 100 then a spike to 125: mean = 101.25,
	// deviation = (125-101.25)/101.25 ≈ +23.5%.
	window := append(closes(), risingCloses(100, 0, 19)...)
	window = append(window, decimal.NewFromInt(125))
	hist := fakeHistory{"AAPL": window}

	signals, err := s.Signals(context.Background(), testDay(20, map[string]float64{"AAPL": 125}, hist, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("produced %d signals, want 1", len(signals))
	}
	if signals[0].Side != domain.SideSell {
		t.Errorf("side = %q, want SELL", signals[0].Side)
	}
	if !strings.Contains(signals[0].Reason, "Overbought") {
		t.Errorf("reason = %q, want overbought reason", signals[0].Reason)
	}
}

func TestMeanReversionQuietMarketNoSignals(t *testing.T) {
	s := NewMeanReversion([]string{"AAPL"})
	pf := &fakePortfolio{cash: decimal.NewFromInt(10000), positions: map[string]int64{}}

	// Flat closes: deviation 0, inside the ±10% band.
	hist := fakeHistory{"AAPL": risingCloses(100, 0, 20)}

	signals, err := s.Signals(context.Background(), testDay(20, map[string]float64{"AAPL": 100}, hist, pf))
	if err != nil {
		t.Fatalf("Signals returned error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("flat market produced %d signals, want 0", len(signals))
	}
}

func TestNewRegistryHasAllBuiltins(t *testing.T) {
	r := NewRegistry()

	want := []string{"equal-weight", "mean-reversion", "momentum"}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("List returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	s, ok := r.New("momentum", []string{"AAPL"})
	if !ok {
		t.Fatal("New(momentum) returned false")
	}
	if s.Name() != "momentum" {
		t.Errorf("strategy Name() = %q, want %q", s.Name(), "momentum")
	}
}
