// Package domain defines the core data types shared across the marlin
// backtesting platform.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one day's OHLCV data for a single instrument.
type Bar struct {
	Symbol string
	Date   time.Time // normalized to midnight UTC
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Side is the direction of a signal or trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Signal is a strategy's proposed trade for one symbol on one day. It has
// not yet been validated against available capital.
type Signal struct {
	Symbol string
	Side   Side

	// Weight is the target fraction of total portfolio value, in (0, 1].
	// Zero means no target was given and the executor applies its default
	// sizing rule.
	Weight decimal.Decimal

	Reason string
}

// Trade is an executed ledger mutation. Trades are immutable once appended
// to the trade log, and the log itself is append-only.
type Trade struct {
	ID       string
	Date     time.Time
	Symbol   string
	Side     Side
	Quantity int64
	Price    decimal.Decimal
	Value    decimal.Decimal // Quantity × Price
	Reason   string
}

// Liquidation reasons recorded on risk events.
const (
	RiskReasonMaxDrawdown = "max drawdown"
	RiskReasonStopLoss    = "stop loss"
)

// RiskEvent records a forced liquidation triggered by a risk control. It is
// a terminal control action, not a strategy trade, and does not appear in
// the trade log.
type RiskEvent struct {
	Date   time.Time
	Reason string
	Value  decimal.Decimal // portfolio value at the time of liquidation
}

// Day truncates t to midnight UTC. All calendar dates in the engine are
// normalized through this so bars from different sources compare equal.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
