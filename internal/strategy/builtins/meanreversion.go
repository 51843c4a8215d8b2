package builtins

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"marlin/internal/domain"
	"marlin/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MeanReversion)(nil)

// reversionThreshold is the fractional deviation from the 20-day mean that
// marks a symbol oversold (below the negation) or overbought (above).
const reversionThreshold = 0.10

// MeanReversion buys symbols trading well below their trailing 20-day mean
// close and exits positions trading well above it.
type MeanReversion struct {
	symbols []string
}

// NewMeanReversion creates a MeanReversion strategy over the given symbols.
func NewMeanReversion(symbols []string) *MeanReversion {
	return &MeanReversion{symbols: symbols}
}

// Name returns "mean-reversion".
func (s *MeanReversion) Name() string { return "mean-reversion" }

// Signals shares the momentum strategy's activation gate and window
// requirements: inactive before day 20, and a symbol is skipped unless
// exactly lookback closes are available ending today.
func (s *MeanReversion) Signals(_ context.Context, day strategy.Day) ([]domain.Signal, error) {
	if day.Index < lookback {
		return nil, nil
	}

	threshold := decimal.NewFromFloat(reversionThreshold)
	weight := decimal.NewFromFloat(trendWeight)

	var signals []domain.Signal
	for _, sym := range s.symbols {
		price, ok := day.Prices[sym]
		if !ok {
			continue
		}

		window := day.History.Trailing(sym, lookback)
		if len(window) != lookback {
			continue
		}

		mean := decimal.Avg(window[0], window[1:]...)
		if mean.IsZero() {
			continue
		}

		deviation := price.Sub(mean).Div(mean)
		held := day.Portfolio.Quantity(sym) > 0
		pct := deviation.Abs().Mul(decimal.NewFromInt(100)).StringFixed(1)

		switch {
		case deviation.LessThan(threshold.Neg()) && !held:
			signals = append(signals, domain.Signal{
				Symbol: sym,
				Side:   domain.SideBuy,
				Weight: weight,
				Reason: fmt.Sprintf("Oversold %s%% below %d-day mean", pct, lookback),
			})
		case deviation.GreaterThan(threshold) && held:
			signals = append(signals, domain.Signal{
				Symbol: sym,
				Side:   domain.SideSell,
				Reason: fmt.Sprintf("Overbought %s%% above %d-day mean", pct, lookback),
			})
		}
	}
	return signals, nil
}
