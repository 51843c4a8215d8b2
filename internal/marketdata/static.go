package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marlin/internal/domain"
)

// Compile-time interface check.
var _ PriceSource = (*StaticSource)(nil)

// StaticSource serves bars from an in-memory map. It backs deterministic
// tests and demo runs that need no network or files.
type StaticSource struct {
	bars map[string][]domain.Bar
}

// NewStaticSource creates a StaticSource over the given per-symbol bars.
// Each series is sorted by date once, up front.
func NewStaticSource(bars map[string][]domain.Bar) *StaticSource {
	for _, series := range bars {
		sort.Slice(series, func(i, j int) bool {
			return series[i].Date.Before(series[j].Date)
		})
	}
	return &StaticSource{bars: bars}
}

// Fetch returns the in-range bars for symbol. Symbols absent from the map
// fail with ErrUnknownSymbol; a present symbol with no bars in range fails
// with ErrNoData.
func (s *StaticSource) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series, ok := s.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}

	var out []domain.Bar
	for _, b := range series {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return out, nil
}
