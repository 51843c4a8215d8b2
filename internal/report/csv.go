package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"marlin/internal/backtest"
	"marlin/internal/domain"
)

// WriteTradesCSV writes the trade log as CSV, one row per trade in
// execution order.
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"id", "date", "symbol", "side", "quantity", "price", "value", "reason"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			t.ID,
			t.Date.Format("2006-01-02"),
			t.Symbol,
			string(t.Side),
			strconv.FormatInt(t.Quantity, 10),
			t.Price.String(),
			t.Value.String(),
			t.Reason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing trade %s: %w", t.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteChartCSV writes the per-day chart series as CSV.
func WriteChartCSV(w io.Writer, chart []backtest.ChartPoint) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"date", "value", "drawdown_pct", "benchmark"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, p := range chart {
		row := []string{
			p.Date.Format("2006-01-02"),
			strconv.FormatFloat(p.Value, 'f', 2, 64),
			strconv.FormatFloat(p.DrawdownPct, 'f', 4, 64),
			strconv.FormatFloat(p.Benchmark, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing chart row %s: %w", p.Date.Format("2006-01-02"), err)
		}
	}

	cw.Flush()
	return cw.Error()
}
