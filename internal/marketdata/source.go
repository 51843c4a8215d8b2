// Package marketdata provides historical price sources for the simulation
// engine and the concurrent loader that joins per-symbol fetches before a
// run begins.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"marlin/internal/domain"
)

// ErrUnknownSymbol is returned by a source when the requested symbol is not
// recognised or has no data at all.
var ErrUnknownSymbol = errors.New("unknown symbol")

// ErrNoData is returned when a known symbol has no bars inside the
// requested date range.
var ErrNoData = errors.New("no data in range")

// PriceSource supplies daily OHLCV history. Implementations must return
// bars in ascending date order with no duplicate dates per symbol, and must
// fail with ErrUnknownSymbol for unrecognised symbols.
type PriceSource interface {
	// Fetch returns the daily bars for symbol within [start, end].
	Fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Load fetches the history for every symbol concurrently and joins the
// results. The per-symbol fetches are independent, so they run in parallel;
// any single failure, including an empty series, fails the whole load
// rather than letting a run silently simulate a subset of symbols.
func Load(ctx context.Context, src PriceSource, symbols []string, start, end time.Time) (map[string][]domain.Bar, error) {
	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	out := make(map[string][]domain.Bar, len(symbols))

	for _, sym := range symbols {
		g.Go(func() error {
			bars, err := src.Fetch(ctx, sym, start, end)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", sym, err)
			}
			if len(bars) == 0 {
				return fmt.Errorf("fetching %s: %w", sym, ErrNoData)
			}
			mu.Lock()
			out[sym] = bars
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
