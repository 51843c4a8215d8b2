// Package backtest implements the simulation engine: it replays historical
// market days in chronological order, lets the selected strategy emit
// signals, executes them against a simulated cash/position ledger, enforces
// portfolio-level risk controls, and computes summary performance metrics.
package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RiskLimits holds the portfolio-level risk controls, expressed as whole
// percentages (20 means 20%).
type RiskLimits struct {
	MaxDrawdownPct float64

	// VolatilityCapPct is accepted and validated but not enforced by any
	// control in this engine.
	VolatilityCapPct float64

	StopLossPct float64
}

// Config describes a single simulation run. It is validated before the
// engine does any work; no partial ledger is ever created for an invalid
// config.
type Config struct {
	Symbols        []string
	Start          time.Time
	End            time.Time
	InitialCapital decimal.Decimal
	Strategy       string
	Risk           RiskLimits
}

// Validate checks the structural constraints on the config. Strategy-name
// resolution happens in the engine, against its registry.
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: at least one symbol is required")
	}
	for _, sym := range c.Symbols {
		if sym == "" {
			return fmt.Errorf("config: empty symbol in symbol list")
		}
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("config: start and end dates are required")
	}
	if !c.Start.Before(c.End) {
		return fmt.Errorf("config: start date %s must be before end date %s",
			c.Start.Format("2006-01-02"), c.End.Format("2006-01-02"))
	}
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("config: initial capital must be positive, got %s", c.InitialCapital)
	}
	if c.Strategy == "" {
		return fmt.Errorf("config: strategy is required")
	}
	if c.Risk.MaxDrawdownPct <= 0 {
		return fmt.Errorf("config: max drawdown pct must be positive, got %g", c.Risk.MaxDrawdownPct)
	}
	if c.Risk.VolatilityCapPct <= 0 {
		return fmt.Errorf("config: volatility cap pct must be positive, got %g", c.Risk.VolatilityCapPct)
	}
	if c.Risk.StopLossPct <= 0 {
		return fmt.Errorf("config: stop loss pct must be positive, got %g", c.Risk.StopLossPct)
	}
	return nil
}
