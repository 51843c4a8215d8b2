package marketdata

import (
	"context"
	"fmt"
	"time"

	"marlin/internal/domain"
)

// BarReader is the narrow slice of the bar store the source needs.
type BarReader interface {
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Compile-time interface check.
var _ PriceSource = (*StoreSource)(nil)

// StoreSource serves historical bars from a local bar store, so backtests
// can run offline against previously gathered data.
type StoreSource struct {
	store BarReader
}

// NewStoreSource creates a StoreSource reading from the given store.
func NewStoreSource(store BarReader) *StoreSource {
	return &StoreSource{store: store}
}

// Fetch returns the stored daily bars for symbol within [start, end]. A
// symbol with no stored bars at all maps to ErrUnknownSymbol.
func (s *StoreSource) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := s.store.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}
	return bars, nil
}
