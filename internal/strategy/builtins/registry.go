package builtins

import "marlin/internal/strategy"

// NewRegistry returns a strategy registry pre-populated with all built-in
// strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register("equal-weight", func(symbols []string) strategy.Strategy {
		return NewEqualWeight(symbols)
	})
	r.Register("momentum", func(symbols []string) strategy.Strategy {
		return NewMomentum(symbols)
	})
	r.Register("mean-reversion", func(symbols []string) strategy.Strategy {
		return NewMeanReversion(symbols)
	})
	return r
}
