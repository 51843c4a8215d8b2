// Package builtins provides the built-in strategy implementations that ship
// with the marlin platform and a registry pre-populated with them.
package builtins

import (
	"context"

	"github.com/shopspring/decimal"

	"marlin/internal/domain"
	"marlin/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*EqualWeight)(nil)

const (
	// rebalanceEvery is the cadence, in trading days, of the rebalance check.
	rebalanceEvery = 20

	// driftTolerance is the absolute weight deviation from 1/N that
	// triggers a rebalance signal.
	driftTolerance = 0.05
)

// EqualWeight allocates the portfolio evenly across all configured symbols
// on the first trading day, then periodically rebalances any symbol whose
// weight has drifted too far from 1/N.
type EqualWeight struct {
	symbols []string
}

// NewEqualWeight creates an EqualWeight strategy over the given symbols.
func NewEqualWeight(symbols []string) *EqualWeight {
	return &EqualWeight{symbols: symbols}
}

// Name returns "equal-weight".
func (s *EqualWeight) Name() string { return "equal-weight" }

// Signals emits the initial allocation on day 0 and drift-correction signals
// on every rebalance day thereafter. A SELL closes the whole position; the
// corresponding re-entry, if still needed, happens on a later rebalance.
func (s *EqualWeight) Signals(_ context.Context, day strategy.Day) ([]domain.Signal, error) {
	n := len(s.symbols)
	if n == 0 {
		return nil, nil
	}
	target := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(n)))

	if day.Index == 0 {
		signals := make([]domain.Signal, 0, n)
		for _, sym := range s.symbols {
			signals = append(signals, domain.Signal{
				Symbol: sym,
				Side:   domain.SideBuy,
				Weight: target,
				Reason: "Initial allocation to equal weights",
			})
		}
		return signals, nil
	}

	if day.Index%rebalanceEvery != 0 {
		return nil, nil
	}

	total := day.Portfolio.TotalValue(day.Prices)
	if total.IsZero() {
		return nil, nil
	}

	tolerance := decimal.NewFromFloat(driftTolerance)
	var signals []domain.Signal
	for _, sym := range s.symbols {
		price, ok := day.Prices[sym]
		if !ok {
			continue
		}

		qty := day.Portfolio.Quantity(sym)
		weight := price.Mul(decimal.NewFromInt(qty)).Div(total)
		drift := weight.Sub(target)
		if drift.Abs().LessThanOrEqual(tolerance) {
			continue
		}

		side := domain.SideBuy
		if drift.IsPositive() {
			side = domain.SideSell
		}
		signals = append(signals, domain.Signal{
			Symbol: sym,
			Side:   side,
			Weight: target,
			Reason: "Rebalancing to equal weights",
		})
	}
	return signals, nil
}
