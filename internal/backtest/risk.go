package backtest

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"marlin/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// RiskManager evaluates the portfolio-level risk controls once per day,
// after valuation, and forces a full liquidation when a limit is breached.
// Liquidation is a terminal control action: it resets positions and cash
// directly and is recorded as a RiskEvent, never as trades.
type RiskManager struct {
	maxDrawdown decimal.Decimal // fractional, e.g. 0.20
	stopLoss    decimal.Decimal // fractional
	initial     decimal.Decimal
	log         *slog.Logger
}

// NewRiskManager creates a RiskManager from whole-percentage limits (20
// means 20%) and the run's initial capital.
func NewRiskManager(limits RiskLimits, initialCapital decimal.Decimal, log *slog.Logger) *RiskManager {
	if log == nil {
		log = slog.Default()
	}
	return &RiskManager{
		maxDrawdown: decimal.NewFromFloat(limits.MaxDrawdownPct).Div(hundred),
		stopLoss:    decimal.NewFromFloat(limits.StopLossPct).Div(hundred),
		initial:     initialCapital,
		log:         log.With("component", "risk"),
	}
}

// Check evaluates the max-drawdown and stop-loss controls against the day's
// valuation. Both comparisons are strict: a drawdown of exactly the limit
// does not trigger. On a breach it liquidates the ledger and returns the
// resulting event; at most one control fires per day.
func (rm *RiskManager) Check(date time.Time, ledger *Ledger, value decimal.Decimal) (domain.RiskEvent, bool) {
	peak := ledger.Peak()
	if peak.IsPositive() {
		drawdown := peak.Sub(value).Div(peak)
		if drawdown.GreaterThan(rm.maxDrawdown) {
			return rm.liquidate(date, ledger, value, domain.RiskReasonMaxDrawdown), true
		}
	}

	if rm.initial.IsPositive() {
		loss := rm.initial.Sub(value).Div(rm.initial)
		if loss.GreaterThan(rm.stopLoss) {
			return rm.liquidate(date, ledger, value, domain.RiskReasonStopLoss), true
		}
	}

	return domain.RiskEvent{}, false
}

func (rm *RiskManager) liquidate(date time.Time, ledger *Ledger, value decimal.Decimal, reason string) domain.RiskEvent {
	ledger.Liquidate(value)
	rm.log.Warn("forced liquidation",
		"date", date.Format("2006-01-02"),
		"reason", reason,
		"value", value.String(),
	)
	return domain.RiskEvent{Date: date, Reason: reason, Value: value}
}
