package backtest

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marlin/internal/domain"
)

// Default sizing for BUY signals that carry no target weight: 20% of the
// available cash, capped at $10,000 notional.
var (
	defaultBuyFraction = decimal.NewFromFloat(0.2)
	defaultBuyCap      = decimal.NewFromInt(10000)
)

// Executor converts signals into ledger mutations and appends executed
// trades to the append-only trade log. It holds no portfolio state of its
// own; all side effects land in the ledger and the log.
type Executor struct {
	ledger *Ledger
	trades []domain.Trade
	log    *slog.Logger
}

// NewExecutor creates an Executor bound to the given ledger.
func NewExecutor(ledger *Ledger, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		ledger: ledger,
		log:    log.With("component", "executor"),
	}
}

// Trades returns the trade log in execution order.
func (e *Executor) Trades() []domain.Trade { return e.trades }

// Execute applies one signal at the given closing price. Infeasible buys
// (zero computed quantity, insufficient cash) and sells with no open
// position are silently skipped: that is routine best-effort behaviour under
// capital constraints, not an error.
func (e *Executor) Execute(sig domain.Signal, date time.Time, price, totalValue decimal.Decimal) {
	switch sig.Side {
	case domain.SideBuy:
		e.executeBuy(sig, date, price, totalValue)
	case domain.SideSell:
		e.executeSell(sig, date, price)
	}
}

func (e *Executor) executeBuy(sig domain.Signal, date time.Time, price, totalValue decimal.Decimal) {
	if !price.IsPositive() {
		return
	}

	var target decimal.Decimal
	if !sig.Weight.IsZero() {
		target = sig.Weight.Mul(totalValue)
	} else {
		target = decimal.Min(e.ledger.Cash().Mul(defaultBuyFraction), defaultBuyCap)
	}

	quantity := target.Div(price).Floor().IntPart()
	if quantity <= 0 {
		e.log.Debug("buy skipped", "symbol", sig.Symbol, "reason", "zero quantity")
		return
	}

	value := price.Mul(decimal.NewFromInt(quantity))
	if value.GreaterThan(e.ledger.Cash()) {
		e.log.Debug("buy skipped", "symbol", sig.Symbol, "reason", "insufficient cash")
		return
	}

	e.ledger.ApplyFill(sig.Symbol, domain.SideBuy, quantity, value)
	e.append(sig, date, quantity, price, value)
}

func (e *Executor) executeSell(sig domain.Signal, date time.Time, price decimal.Decimal) {
	// Strategies never partially sell: a SELL closes the whole position.
	quantity := e.ledger.Quantity(sig.Symbol)
	if quantity <= 0 {
		return
	}

	value := price.Mul(decimal.NewFromInt(quantity))
	e.ledger.ApplyFill(sig.Symbol, domain.SideSell, quantity, value)
	e.append(sig, date, quantity, price, value)
}

func (e *Executor) append(sig domain.Signal, date time.Time, quantity int64, price, value decimal.Decimal) {
	e.trades = append(e.trades, domain.Trade{
		ID:       uuid.NewString(),
		Date:     date,
		Symbol:   sig.Symbol,
		Side:     sig.Side,
		Quantity: quantity,
		Price:    price,
		Value:    value,
		Reason:   sig.Reason,
	})
}
