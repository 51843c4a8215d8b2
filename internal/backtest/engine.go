package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marlin/internal/domain"
	"marlin/internal/marketdata"
	"marlin/internal/strategy"
)

// Engine orchestrates a simulation run: it loads price history, builds the
// trading calendar, and drives the strict daily sequence of signal
// generation, trade execution, mark-to-market, and risk checking. Each run
// owns its own ledger, so one Engine can serve concurrent requests.
type Engine struct {
	source   marketdata.PriceSource
	registry *strategy.Registry
	metrics  *MetricsCalculator
	log      *slog.Logger
}

// NewEngine creates an Engine reading prices from source and resolving
// strategies in registry.
func NewEngine(source marketdata.PriceSource, registry *strategy.Registry, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		source:   source,
		registry: registry,
		metrics:  NewMetricsCalculator(),
		log:      log.With("component", "engine"),
	}
}

// SetMetricsCalculator replaces the default metrics calculator, e.g. to
// supply real benchmark statistics instead of the placeholder constants.
func (e *Engine) SetMetricsCalculator(mc *MetricsCalculator) {
	e.metrics = mc
}

// Run executes one simulation and returns its result. Configuration and
// data errors abort the run before any trading day is simulated; everything
// else is absorbed into the resulting ledger and metrics.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	strat, ok := e.registry.New(cfg.Strategy, cfg.Symbols)
	if !ok {
		return nil, fmt.Errorf("config: unknown strategy %q (available: %v)",
			cfg.Strategy, e.registry.List())
	}

	bars, err := marketdata.Load(ctx, e.source, cfg.Symbols, cfg.Start, cfg.End)
	if err != nil {
		return nil, fmt.Errorf("loading price history: %w", err)
	}

	calendar := BuildCalendar(bars)
	if len(calendar) == 0 {
		return nil, fmt.Errorf("loading price history: no trading days in range")
	}
	closes := buildPriceIndex(bars)

	e.log.Info("starting run",
		"strategy", cfg.Strategy,
		"symbols", len(cfg.Symbols),
		"days", len(calendar),
		"capital", cfg.InitialCapital.String(),
	)

	ledger := NewLedger(cfg.InitialCapital, domain.Day(cfg.Start))
	executor := NewExecutor(ledger, e.log)
	risk := NewRiskManager(cfg.Risk, cfg.InitialCapital, e.log)
	history := newPriceHistory()

	var riskEvents []domain.RiskEvent

	for i, date := range calendar {
		// The daily loop is strictly sequential: each day's signals and
		// risk checks depend on the ledger state of all prior days. Only
		// a cooperative cancellation check runs up front.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled on day %d: %w", i, err)
		}

		prices := make(map[string]decimal.Decimal)
		for _, sym := range cfg.Symbols {
			if close, ok := closes[sym][date]; ok {
				price := decimal.NewFromFloat(close)
				prices[sym] = price
				history.observe(sym, price)
			}
		}

		day := strategy.Day{
			Index:     i,
			Date:      date,
			Prices:    prices,
			History:   history,
			Portfolio: ledger,
		}

		signals, err := strat.Signals(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("strategy %s on %s: %w", cfg.Strategy, date.Format("2006-01-02"), err)
		}

		for _, sig := range signals {
			price, ok := prices[sig.Symbol]
			if !ok {
				// No price today means nothing to execute against; the
				// signal is dropped like any other infeasible one.
				continue
			}
			executor.Execute(sig, date, price, ledger.TotalValue(prices))
		}

		value := ledger.MarkToMarket(date, prices)

		if event, fired := risk.Check(date, ledger, value); fired {
			riskEvents = append(riskEvents, event)
		}
	}

	valuations := ledger.Valuations()
	finalValue := valuations[len(valuations)-1].Value
	trades := executor.Trades()

	result := &Result{
		ID:         uuid.NewString(),
		Config:     cfg,
		RanAt:      time.Now().UTC(),
		FinalValue: finalValue,
		Cash:       ledger.Cash(),
		Positions:  ledger.Positions(),
		Trades:     trades,
		RiskEvents: riskEvents,
		Metrics:    e.metrics.Compute(ledger, trades),
		Chart:      BuildChart(cfg.InitialCapital, valuations),
	}

	e.log.Info("run complete",
		"id", result.ID,
		"final", finalValue.String(),
		"trades", len(trades),
		"liquidations", len(riskEvents),
	)
	return result, nil
}

// buildPriceIndex maps symbol → date → closing price for O(1) lookups in
// the daily loop. If a source ever delivers duplicate bars for a date, the
// later one wins.
func buildPriceIndex(bars map[string][]domain.Bar) map[string]map[time.Time]float64 {
	index := make(map[string]map[time.Time]float64, len(bars))
	for sym, series := range bars {
		byDate := make(map[time.Time]float64, len(series))
		for _, b := range series {
			byDate[domain.Day(b.Date)] = b.Close
		}
		index[sym] = byDate
	}
	return index
}

// priceHistory accumulates the closes observed during the run, per symbol,
// in calendar order. It backs the strategies' trailing windows.
type priceHistory struct {
	closes map[string][]decimal.Decimal
}

// Compile-time interface check.
var _ strategy.PriceHistory = (*priceHistory)(nil)

func newPriceHistory() *priceHistory {
	return &priceHistory{closes: make(map[string][]decimal.Decimal)}
}

func (h *priceHistory) observe(symbol string, close decimal.Decimal) {
	h.closes[symbol] = append(h.closes[symbol], close)
}

// Trailing returns up to n of the most recent observed closes for symbol,
// oldest first.
func (h *priceHistory) Trailing(symbol string, n int) []decimal.Decimal {
	series := h.closes[symbol]
	if len(series) > n {
		series = series[len(series)-n:]
	}
	return series
}
