package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	alpacadata "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"marlin/internal/domain"
	"marlin/internal/util"
)

// Compile-time interface check.
var _ PriceSource = (*AlpacaSource)(nil)

const fetchAttempts = 3

// AlpacaSource fetches daily OHLCV bars from the Alpaca market-data API.
// Calls are rate limited and retried with backoff, since the engine issues
// one concurrent fetch per symbol.
type AlpacaSource struct {
	client  *alpacadata.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource with the given credentials. An
// empty dataURL uses the SDK default endpoint; ratePerMin limits outgoing
// API calls across all symbols.
func NewAlpacaSource(apiKey, apiSecret, dataURL string, ratePerMin int) *AlpacaSource {
	opts := alpacadata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if ratePerMin <= 0 {
		ratePerMin = 200
	}

	return &AlpacaSource{
		client:  alpacadata.NewClient(opts),
		limiter: util.NewRateLimiter(ratePerMin),
		log:     slog.Default().With("source", "alpaca"),
	}
}

// Fetch returns the daily bars for symbol within [start, end]. A symbol the
// API knows nothing about comes back as ErrUnknownSymbol.
func (s *AlpacaSource) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var raw []alpacadata.Bar
	err := util.Retry(ctx, fetchAttempts, time.Second, func() error {
		var apiErr error
		raw, apiErr = s.client.GetBars(symbol, alpacadata.GetBarsRequest{
			TimeFrame: alpacadata.OneDay,
			Start:     start,
			End:       end,
			Feed:      "sip",
		})
		return apiErr
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	// The API answers an unknown symbol with an empty series rather than
	// an error, so map that to the distinguishable condition here.
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrUnknownSymbol)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, domain.Bar{
			Symbol: strings.ToUpper(symbol),
			Date:   domain.Day(b.Timestamp),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	s.log.Debug("fetched bars", "symbol", symbol, "count", len(bars))
	return bars, nil
}
