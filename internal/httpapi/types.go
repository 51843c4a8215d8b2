package httpapi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marlin/internal/backtest"
	"marlin/internal/store"
)

// BacktestRequest is the JSON body of POST /api/v1/backtests.
type BacktestRequest struct {
	Symbols        []string    `json:"symbols"`
	StartDate      string      `json:"start_date"` // YYYY-MM-DD
	EndDate        string      `json:"end_date"`   // YYYY-MM-DD
	InitialCapital float64     `json:"initial_capital"`
	Strategy       string      `json:"strategy"`
	Risk           RiskRequest `json:"risk"`
}

// RiskRequest carries the risk-control percentages of a backtest request.
type RiskRequest struct {
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`
	VolatilityCapPct float64 `json:"volatility_cap_pct"`
	StopLossPct      float64 `json:"stop_loss_pct"`
}

// ToConfig converts the request into an engine config. Validation proper
// happens in the engine; only date parsing can fail here.
func (r BacktestRequest) ToConfig() (backtest.Config, error) {
	var cfg backtest.Config

	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return cfg, fmt.Errorf("invalid start_date %q: %w", r.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return cfg, fmt.Errorf("invalid end_date %q: %w", r.EndDate, err)
	}

	return backtest.Config{
		Symbols:        r.Symbols,
		Start:          start,
		End:            end,
		InitialCapital: decimal.NewFromFloat(r.InitialCapital),
		Strategy:       r.Strategy,
		Risk: backtest.RiskLimits{
			MaxDrawdownPct:   r.Risk.MaxDrawdownPct,
			VolatilityCapPct: r.Risk.VolatilityCapPct,
			StopLossPct:      r.Risk.StopLossPct,
		},
	}, nil
}

// TradeResponse is the JSON view of one executed trade.
type TradeResponse struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
	Reason   string  `json:"reason"`
}

// RiskEventResponse is the JSON view of one forced liquidation.
type RiskEventResponse struct {
	Date   string  `json:"date"`
	Reason string  `json:"reason"`
	Value  float64 `json:"value"`
}

// BacktestResponse is the JSON view of a completed run.
type BacktestResponse struct {
	ID         string                `json:"id"`
	Strategy   string                `json:"strategy"`
	Symbols    []string              `json:"symbols"`
	StartDate  string                `json:"start_date"`
	EndDate    string                `json:"end_date"`
	RanAt      time.Time             `json:"ran_at"`
	Initial    float64               `json:"initial_capital"`
	FinalValue float64               `json:"final_value"`
	Cash       float64               `json:"cash"`
	Positions  map[string]int64      `json:"positions"`
	Trades     []TradeResponse       `json:"trades"`
	RiskEvents []RiskEventResponse   `json:"risk_events"`
	Metrics    backtest.Metrics      `json:"metrics"`
	Chart      []backtest.ChartPoint `json:"chart"`
}

func toBacktestResponse(r *backtest.Result) BacktestResponse {
	trades := make([]TradeResponse, 0, len(r.Trades))
	for _, t := range r.Trades {
		trades = append(trades, TradeResponse{
			ID:       t.ID,
			Date:     t.Date.Format("2006-01-02"),
			Symbol:   t.Symbol,
			Side:     string(t.Side),
			Quantity: t.Quantity,
			Price:    t.Price.InexactFloat64(),
			Value:    t.Value.InexactFloat64(),
			Reason:   t.Reason,
		})
	}

	events := make([]RiskEventResponse, 0, len(r.RiskEvents))
	for _, e := range r.RiskEvents {
		events = append(events, RiskEventResponse{
			Date:   e.Date.Format("2006-01-02"),
			Reason: e.Reason,
			Value:  e.Value.InexactFloat64(),
		})
	}

	return BacktestResponse{
		ID:         r.ID,
		Strategy:   r.Config.Strategy,
		Symbols:    r.Config.Symbols,
		StartDate:  r.Config.Start.Format("2006-01-02"),
		EndDate:    r.Config.End.Format("2006-01-02"),
		RanAt:      r.RanAt,
		Initial:    r.Config.InitialCapital.InexactFloat64(),
		FinalValue: r.FinalValue.InexactFloat64(),
		Cash:       r.Cash.InexactFloat64(),
		Positions:  r.Positions,
		Trades:     trades,
		RiskEvents: events,
		Metrics:    r.Metrics,
		Chart:      r.Chart,
	}
}

// RunSummaryResponse is the JSON view of one entry of the run listing.
type RunSummaryResponse struct {
	ID          string    `json:"id"`
	Strategy    string    `json:"strategy"`
	Symbols     []string  `json:"symbols"`
	RanAt       time.Time `json:"ran_at"`
	FinalValue  float64   `json:"final_value"`
	TotalReturn float64   `json:"total_return"`
	TotalTrades int       `json:"total_trades"`
}

func toRunSummaryResponse(s store.RunSummary) RunSummaryResponse {
	return RunSummaryResponse{
		ID:          s.ID,
		Strategy:    s.Strategy,
		Symbols:     s.Symbols,
		RanAt:       s.RanAt,
		FinalValue:  s.FinalValue.InexactFloat64(),
		TotalReturn: s.TotalReturn,
		TotalTrades: s.TotalTrades,
	}
}
