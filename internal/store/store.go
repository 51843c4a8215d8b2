// Package store defines storage interfaces for persisting and retrieving
// historical bar data and completed simulation runs.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"marlin/internal/backtest"
	"marlin/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end].
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in storage.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunSummary is the lightweight listing view of a stored run.
type RunSummary struct {
	ID          string          `json:"id"`
	Strategy    string          `json:"strategy"`
	Symbols     []string        `json:"symbols"`
	RanAt       time.Time       `json:"ran_at"`
	FinalValue  decimal.Decimal `json:"final_value"`
	TotalReturn float64         `json:"total_return"`
	TotalTrades int             `json:"total_trades"`
}

// RunStore persists and retrieves completed simulation runs.
type RunStore interface {
	// SaveRun persists a completed run, its trade log, and its risk events.
	SaveRun(ctx context.Context, result *backtest.Result) error

	// GetRun retrieves a stored run by its ID.
	GetRun(ctx context.Context, id string) (*backtest.Result, error)

	// ListRuns returns summaries of all stored runs, newest first.
	ListRuns(ctx context.Context) ([]RunSummary, error)

	// Close releases the underlying storage resources.
	Close() error
}
