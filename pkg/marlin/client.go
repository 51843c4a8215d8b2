// Package marlin provides a Go SDK for the marlin-server backtest API.
package marlin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client provides a Go SDK for interacting with the marlin-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new marlin API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// BacktestRequest describes a backtest to run.
type BacktestRequest struct {
	Symbols        []string `json:"symbols"`
	StartDate      string   `json:"start_date"` // YYYY-MM-DD
	EndDate        string   `json:"end_date"`   // YYYY-MM-DD
	InitialCapital float64  `json:"initial_capital"`
	Strategy       string   `json:"strategy"`
	Risk           Risk     `json:"risk"`
}

// Risk holds the risk-control percentages of a backtest request.
type Risk struct {
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`
	VolatilityCapPct float64 `json:"volatility_cap_pct"`
	StopLossPct      float64 `json:"stop_loss_pct"`
}

// Trade is one executed trade of a completed backtest.
type Trade struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
	Value    float64 `json:"value"`
	Reason   string  `json:"reason"`
}

// RiskEvent is one forced liquidation of a completed backtest.
type RiskEvent struct {
	Date   string  `json:"date"`
	Reason string  `json:"reason"`
	Value  float64 `json:"value"`
}

// Metrics holds the summary performance statistics of a backtest.
type Metrics struct {
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	WinRate     float64 `json:"win_rate"`
	Volatility  float64 `json:"volatility"`
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	TotalTrades int     `json:"total_trades"`
}

// ChartPoint is one entry of the per-day chart series.
type ChartPoint struct {
	Date        time.Time `json:"date"`
	Value       float64   `json:"value"`
	DrawdownPct float64   `json:"drawdown_pct"`
	Benchmark   float64   `json:"benchmark"`
}

// Backtest is a completed backtest run.
type Backtest struct {
	ID         string           `json:"id"`
	Strategy   string           `json:"strategy"`
	Symbols    []string         `json:"symbols"`
	StartDate  string           `json:"start_date"`
	EndDate    string           `json:"end_date"`
	RanAt      time.Time        `json:"ran_at"`
	Initial    float64          `json:"initial_capital"`
	FinalValue float64          `json:"final_value"`
	Cash       float64          `json:"cash"`
	Positions  map[string]int64 `json:"positions"`
	Trades     []Trade          `json:"trades"`
	RiskEvents []RiskEvent      `json:"risk_events"`
	Metrics    Metrics          `json:"metrics"`
	Chart      []ChartPoint     `json:"chart"`
}

// BacktestSummary is one entry of the backtest listing.
type BacktestSummary struct {
	ID          string    `json:"id"`
	Strategy    string    `json:"strategy"`
	Symbols     []string  `json:"symbols"`
	RanAt       time.Time `json:"ran_at"`
	FinalValue  float64   `json:"final_value"`
	TotalReturn float64   `json:"total_return"`
	TotalTrades int       `json:"total_trades"`
}

// Strategies lists the available strategy identifiers.
func (c *Client) Strategies(ctx context.Context) ([]string, error) {
	var out struct {
		Strategies []string `json:"strategies"`
	}
	if err := c.get(ctx, "/api/v1/strategies", &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

// RunBacktest submits a backtest and waits for its result.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*Backtest, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/backtests", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, apiError(resp)
	}

	var out Backtest
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}

// ListBacktests lists stored backtests, newest first.
func (c *Client) ListBacktests(ctx context.Context) ([]BacktestSummary, error) {
	var out struct {
		Backtests []BacktestSummary `json:"backtests"`
	}
	if err := c.get(ctx, "/api/v1/backtests", &out); err != nil {
		return nil, err
	}
	return out.Backtests, nil
}

// GetBacktest retrieves a stored backtest by its ID.
func (c *Client) GetBacktest(ctx context.Context, id string) (*Backtest, error) {
	var out Backtest
	if err := c.get(ctx, "/api/v1/backtests/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// apiError turns a non-2xx response into an error carrying the server's
// message when one is present.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
