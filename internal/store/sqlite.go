package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marlin/internal/backtest"
	"marlin/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	ran_at           TEXT NOT NULL,
	strategy         TEXT NOT NULL,
	symbols          TEXT NOT NULL,
	start_date       TEXT NOT NULL,
	end_date         TEXT NOT NULL,
	initial_capital  TEXT NOT NULL,
	max_drawdown_pct REAL NOT NULL,
	vol_cap_pct      REAL NOT NULL,
	stop_loss_pct    REAL NOT NULL,
	final_value      TEXT NOT NULL,
	cash             TEXT NOT NULL,
	positions        TEXT NOT NULL,
	metrics          TEXT NOT NULL,
	chart            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	seq      INTEGER NOT NULL,
	id       TEXT NOT NULL,
	date     TEXT NOT NULL,
	symbol   TEXT NOT NULL,
	side     TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price    TEXT NOT NULL,
	value    TEXT NOT NULL,
	reason   TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS risk_events (
	run_id TEXT NOT NULL REFERENCES runs(id),
	seq    INTEGER NOT NULL,
	date   TEXT NOT NULL,
	reason TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// SQLiteStore implements RunStore backed by a SQLite database. Monetary
// amounts are stored as decimal strings; structured columns (symbols,
// positions, metrics, chart) are stored as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun persists a completed run, its trade log, and its risk events in a
// single transaction. The trade log's order is preserved via the seq column.
func (s *SQLiteStore) SaveRun(ctx context.Context, result *backtest.Result) error {
	symbols, err := json.Marshal(result.Config.Symbols)
	if err != nil {
		return fmt.Errorf("encoding symbols: %w", err)
	}
	positions, err := json.Marshal(result.Positions)
	if err != nil {
		return fmt.Errorf("encoding positions: %w", err)
	}
	metrics, err := json.Marshal(result.Metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	chart, err := json.Marshal(result.Chart)
	if err != nil {
		return fmt.Errorf("encoding chart: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, ran_at, strategy, symbols, start_date, end_date,
			initial_capital, max_drawdown_pct, vol_cap_pct, stop_loss_pct,
			final_value, cash, positions, metrics, chart)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID,
		result.RanAt.UTC().Format(time.RFC3339),
		result.Config.Strategy,
		string(symbols),
		result.Config.Start.UTC().Format(time.RFC3339),
		result.Config.End.UTC().Format(time.RFC3339),
		result.Config.InitialCapital.String(),
		result.Config.Risk.MaxDrawdownPct,
		result.Config.Risk.VolatilityCapPct,
		result.Config.Risk.StopLossPct,
		result.FinalValue.String(),
		result.Cash.String(),
		string(positions),
		string(metrics),
		string(chart),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", result.ID, err)
	}

	for i, t := range result.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trades (run_id, seq, id, date, symbol, side, quantity, price, value, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.ID, i, t.ID,
			t.Date.UTC().Format(time.RFC3339),
			t.Symbol, string(t.Side), t.Quantity,
			t.Price.String(), t.Value.String(), t.Reason,
		)
		if err != nil {
			return fmt.Errorf("inserting trade %d of run %s: %w", i, result.ID, err)
		}
	}

	for i, e := range result.RiskEvents {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO risk_events (run_id, seq, date, reason, value)
			VALUES (?, ?, ?, ?, ?)`,
			result.ID, i,
			e.Date.UTC().Format(time.RFC3339),
			e.Reason, e.Value.String(),
		)
		if err != nil {
			return fmt.Errorf("inserting risk event %d of run %s: %w", i, result.ID, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a stored run by its ID, including its trade log and risk
// events in their original order.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*backtest.Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ran_at, strategy, symbols, start_date, end_date,
			initial_capital, max_drawdown_pct, vol_cap_pct, stop_loss_pct,
			final_value, cash, positions, metrics, chart
		FROM runs WHERE id = ?`, id)

	var (
		result    backtest.Result
		ranAt     string
		symbols   string
		startDate string
		endDate   string
		initial   string
		final     string
		cash      string
		positions string
		metrics   string
		chart     string
	)
	err := row.Scan(&result.ID, &ranAt, &result.Config.Strategy, &symbols,
		&startDate, &endDate, &initial,
		&result.Config.Risk.MaxDrawdownPct, &result.Config.Risk.VolatilityCapPct,
		&result.Config.Risk.StopLossPct,
		&final, &cash, &positions, &metrics, &chart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", id, err)
	}

	if result.RanAt, err = time.Parse(time.RFC3339, ranAt); err != nil {
		return nil, fmt.Errorf("parsing ran_at of run %s: %w", id, err)
	}
	if result.Config.Start, err = time.Parse(time.RFC3339, startDate); err != nil {
		return nil, fmt.Errorf("parsing start_date of run %s: %w", id, err)
	}
	if result.Config.End, err = time.Parse(time.RFC3339, endDate); err != nil {
		return nil, fmt.Errorf("parsing end_date of run %s: %w", id, err)
	}
	if result.Config.InitialCapital, err = decimal.NewFromString(initial); err != nil {
		return nil, fmt.Errorf("parsing initial_capital of run %s: %w", id, err)
	}
	if result.FinalValue, err = decimal.NewFromString(final); err != nil {
		return nil, fmt.Errorf("parsing final_value of run %s: %w", id, err)
	}
	if result.Cash, err = decimal.NewFromString(cash); err != nil {
		return nil, fmt.Errorf("parsing cash of run %s: %w", id, err)
	}
	if err = json.Unmarshal([]byte(symbols), &result.Config.Symbols); err != nil {
		return nil, fmt.Errorf("decoding symbols of run %s: %w", id, err)
	}
	if err = json.Unmarshal([]byte(positions), &result.Positions); err != nil {
		return nil, fmt.Errorf("decoding positions of run %s: %w", id, err)
	}
	if err = json.Unmarshal([]byte(metrics), &result.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics of run %s: %w", id, err)
	}
	if err = json.Unmarshal([]byte(chart), &result.Chart); err != nil {
		return nil, fmt.Errorf("decoding chart of run %s: %w", id, err)
	}

	if result.Trades, err = s.readTrades(ctx, id); err != nil {
		return nil, err
	}
	if result.RiskEvents, err = s.readRiskEvents(ctx, id); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRuns returns summaries of all stored runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.ran_at, r.strategy, r.symbols, r.final_value, r.metrics,
			(SELECT COUNT(*) FROM trades t WHERE t.run_id = r.id)
		FROM runs r ORDER BY r.ran_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			sum     RunSummary
			ranAt   string
			symbols string
			final   string
			metrics string
		)
		if err := rows.Scan(&sum.ID, &ranAt, &sum.Strategy, &symbols, &final, &metrics, &sum.TotalTrades); err != nil {
			return nil, fmt.Errorf("scanning run summary: %w", err)
		}
		if sum.RanAt, err = time.Parse(time.RFC3339, ranAt); err != nil {
			return nil, fmt.Errorf("parsing ran_at of run %s: %w", sum.ID, err)
		}
		if sum.FinalValue, err = decimal.NewFromString(final); err != nil {
			return nil, fmt.Errorf("parsing final_value of run %s: %w", sum.ID, err)
		}
		if err = json.Unmarshal([]byte(symbols), &sum.Symbols); err != nil {
			return nil, fmt.Errorf("decoding symbols of run %s: %w", sum.ID, err)
		}
		var m backtest.Metrics
		if err = json.Unmarshal([]byte(metrics), &m); err != nil {
			return nil, fmt.Errorf("decoding metrics of run %s: %w", sum.ID, err)
		}
		sum.TotalReturn = m.TotalReturn
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func (s *SQLiteStore) readTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, symbol, side, quantity, price, value, reason
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("reading trades of run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t     domain.Trade
			date  string
			side  string
			price string
			value string
		)
		if err := rows.Scan(&t.ID, &date, &t.Symbol, &side, &t.Quantity, &price, &value, &t.Reason); err != nil {
			return nil, fmt.Errorf("scanning trade of run %s: %w", runID, err)
		}
		if t.Date, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("parsing trade date of run %s: %w", runID, err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parsing trade price of run %s: %w", runID, err)
		}
		if t.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("parsing trade value of run %s: %w", runID, err)
		}
		t.Side = domain.Side(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) readRiskEvents(ctx context.Context, runID string) ([]domain.RiskEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, reason, value
		FROM risk_events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("reading risk events of run %s: %w", runID, err)
	}
	defer rows.Close()

	var events []domain.RiskEvent
	for rows.Next() {
		var (
			e     domain.RiskEvent
			date  string
			value string
		)
		if err := rows.Scan(&date, &e.Reason, &value); err != nil {
			return nil, fmt.Errorf("scanning risk event of run %s: %w", runID, err)
		}
		if e.Date, err = time.Parse(time.RFC3339, date); err != nil {
			return nil, fmt.Errorf("parsing risk event date of run %s: %w", runID, err)
		}
		if e.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("parsing risk event value of run %s: %w", runID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
