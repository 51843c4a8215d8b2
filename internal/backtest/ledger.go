package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"marlin/internal/domain"
	"marlin/internal/strategy"
)

// Compile-time interface check.
var _ strategy.PortfolioView = (*Ledger)(nil)

// ValuationPoint is one entry of the daily valuation history.
type ValuationPoint struct {
	Date  time.Time
	Value decimal.Decimal
}

// Ledger owns the simulated portfolio state: cash, open positions, and the
// historical sequence of daily valuations and fractional returns. It is
// created once per run and mutated only by the trade executor and the daily
// mark-to-market step; every other component reads it.
type Ledger struct {
	cash       decimal.Decimal
	positions  map[string]int64
	valuations []ValuationPoint
	returns    []float64
	peak       decimal.Decimal
}

// NewLedger creates a ledger holding initialCapital in cash and seeds the
// valuation history with one entry dated seedDate, before any trading day.
func NewLedger(initialCapital decimal.Decimal, seedDate time.Time) *Ledger {
	return &Ledger{
		cash:       initialCapital,
		positions:  make(map[string]int64),
		valuations: []ValuationPoint{{Date: seedDate, Value: initialCapital}},
		peak:       initialCapital,
	}
}

// Cash returns the uninvested cash balance.
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// Quantity returns the number of shares held for symbol, 0 if none.
func (l *Ledger) Quantity(symbol string) int64 { return l.positions[symbol] }

// Positions returns a copy of the open positions. Symbols are present only
// while shares are held; a quantity is never stored as zero.
func (l *Ledger) Positions() map[string]int64 {
	out := make(map[string]int64, len(l.positions))
	for sym, qty := range l.positions {
		out[sym] = qty
	}
	return out
}

// InitialCapital returns the seed valuation.
func (l *Ledger) InitialCapital() decimal.Decimal { return l.valuations[0].Value }

// Valuations returns the full valuation history, seed entry first.
func (l *Ledger) Valuations() []ValuationPoint { return l.valuations }

// Returns returns the daily fractional returns. Entry i is the return from
// valuation i to valuation i+1.
func (l *Ledger) Returns() []float64 { return l.returns }

// Peak returns the highest valuation observed so far, including the seed.
func (l *Ledger) Peak() decimal.Decimal { return l.peak }

// TotalValue returns cash plus the value of all open positions at the given
// prices. A held symbol with no price today contributes zero, not its last
// known price.
func (l *Ledger) TotalValue(prices map[string]decimal.Decimal) decimal.Decimal {
	total := l.cash
	for sym, qty := range l.positions {
		if price, ok := prices[sym]; ok {
			total = total.Add(price.Mul(decimal.NewFromInt(qty)))
		}
	}
	return total
}

// ApplyFill mutates cash and positions for an executed trade. A BUY adds
// shares and debits cash by value; a SELL always closes the whole position
// and credits cash by value. Callers have already validated feasibility.
func (l *Ledger) ApplyFill(symbol string, side domain.Side, quantity int64, value decimal.Decimal) {
	switch side {
	case domain.SideBuy:
		l.positions[symbol] += quantity
		l.cash = l.cash.Sub(value)
	case domain.SideSell:
		delete(l.positions, symbol)
		l.cash = l.cash.Add(value)
	}
}

// MarkToMarket revalues the portfolio at today's prices, appends the new
// valuation point, records the day's fractional return against the previous
// valuation, and updates the running peak. It returns the new total value.
func (l *Ledger) MarkToMarket(date time.Time, prices map[string]decimal.Decimal) decimal.Decimal {
	value := l.TotalValue(prices)

	prev := l.valuations[len(l.valuations)-1].Value
	if !prev.IsZero() {
		ret, _ := value.Sub(prev).Div(prev).Float64()
		l.returns = append(l.returns, ret)
	} else {
		l.returns = append(l.returns, 0)
	}

	l.valuations = append(l.valuations, ValuationPoint{Date: date, Value: value})
	if value.GreaterThan(l.peak) {
		l.peak = value
	}
	return value
}

// Liquidate closes every open position and converts the whole portfolio to
// cash at the given total value. It is a direct state reset used by risk
// controls; no trade records are produced.
func (l *Ledger) Liquidate(totalValue decimal.Decimal) {
	l.positions = make(map[string]int64)
	l.cash = totalValue
}
