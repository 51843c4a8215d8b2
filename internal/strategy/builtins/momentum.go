package builtins

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"marlin/internal/domain"
	"marlin/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*Momentum)(nil)

const (
	// lookback is the trailing close-price window, in trading days, used
	// by both trend strategies.
	lookback = 20

	// momentumThreshold is the fractional 20-day price change that
	// triggers an entry (above) or exit (below the negation).
	momentumThreshold = 0.05

	// trendWeight is the portfolio fraction allocated to each entry.
	trendWeight = 0.2
)

// Momentum buys symbols whose trailing 20-day return exceeds the entry
// threshold and closes positions whose trailing return falls below the
// mirror-image exit threshold.
type Momentum struct {
	symbols []string
}

// NewMomentum creates a Momentum strategy over the given symbols.
func NewMomentum(symbols []string) *Momentum {
	return &Momentum{symbols: symbols}
}

// Name returns "momentum".
func (s *Momentum) Name() string { return "momentum" }

// Signals evaluates the trailing window for every symbol that traded today.
// It stays inactive until a full lookback window can exist, and skips any
// symbol with fewer than lookback observed closes.
func (s *Momentum) Signals(_ context.Context, day strategy.Day) ([]domain.Signal, error) {
	if day.Index < lookback {
		return nil, nil
	}

	entry := decimal.NewFromFloat(momentumThreshold)
	exit := entry.Neg()
	weight := decimal.NewFromFloat(trendWeight)

	var signals []domain.Signal
	for _, sym := range s.symbols {
		if _, ok := day.Prices[sym]; !ok {
			continue
		}

		window := day.History.Trailing(sym, lookback)
		if len(window) != lookback {
			continue
		}
		earliest := window[0]
		latest := window[len(window)-1]
		if earliest.IsZero() {
			continue
		}

		momentum := latest.Sub(earliest).Div(earliest)
		held := day.Portfolio.Quantity(sym) > 0
		reason := fmt.Sprintf("Momentum %s%% over %d days",
			momentum.Mul(decimal.NewFromInt(100)).StringFixed(1), lookback)

		switch {
		case momentum.GreaterThan(entry) && !held:
			signals = append(signals, domain.Signal{
				Symbol: sym,
				Side:   domain.SideBuy,
				Weight: weight,
				Reason: reason,
			})
		case momentum.LessThan(exit) && held:
			signals = append(signals, domain.Signal{
				Symbol: sym,
				Side:   domain.SideSell,
				Reason: reason,
			})
		}
	}
	return signals, nil
}
