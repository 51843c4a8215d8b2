// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry for managing multiple strategy implementations.
package strategy

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"marlin/internal/domain"
)

// PortfolioView gives strategies read access to the current ledger state.
// Strategies never mutate the portfolio; all mutations go through the
// trade executor.
type PortfolioView interface {
	// Cash returns the uninvested cash balance.
	Cash() decimal.Decimal

	// Quantity returns the number of shares held for symbol, 0 if none.
	Quantity(symbol string) int64

	// TotalValue returns cash plus the value of all open positions at the
	// given prices. A held symbol with no price contributes zero.
	TotalValue(prices map[string]decimal.Decimal) decimal.Decimal
}

// PriceHistory exposes the closing prices observed so far in the simulation.
type PriceHistory interface {
	// Trailing returns up to n of the most recent observed closes for
	// symbol, oldest first. The current day's close is included when the
	// symbol traded today.
	Trailing(symbol string, n int) []decimal.Decimal
}

// Day is the market context handed to a strategy once per simulated
// trading day.
type Day struct {
	// Index is the 0-based position of this date in the trading calendar.
	Index int

	Date time.Time

	// Prices maps each symbol that traded today to its closing price.
	// Symbols with no bar for this date are absent, never zero.
	Prices map[string]decimal.Decimal

	History   PriceHistory
	Portfolio PortfolioView
}

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Signals is called once per trading day and returns zero or more
	// proposed trades. The executor processes signals in emission order.
	Signals(ctx context.Context, day Day) ([]domain.Signal, error)
}

// Registry holds named strategy factories for lookup and enumeration. A
// factory builds a fresh strategy instance bound to a run's symbol set, so
// concurrent simulations never share strategy state.
type Registry struct {
	factories map[string]Factory
}

// Factory constructs a strategy instance for the given symbol universe.
type Factory func(symbols []string) Strategy

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy factory to the registry under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New builds a strategy instance by name for the given symbols. The second
// return value indicates whether the strategy was found.
func (r *Registry) New(name string, symbols []string) (Strategy, bool) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return f(symbols), true
}

// Has reports whether a strategy with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
