// Package marketdata fetches price history, spot prices, and fundamentals
// for the forecasting pipeline.
package marketdata

import (
	"context"
	"errors"
	"fmt"

	"market-forecast-lab/internal/domain"
)

// ErrNoData reports a well-formed response that carried no usable price
// data.
var ErrNoData = errors.New("marketdata: no price data")

// StatusError is a non-OK HTTP response from the data provider.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketdata: HTTP %d: %s", e.Code, e.Detail)
}

// Source provides everything one forecast cycle needs from the market.
type Source interface {
	// MarketChart returns the daily (or provider-granular) price history
	// for the last `days` days, ordered ascending by timestamp.
	MarketChart(ctx context.Context, assetID string, days int) ([]domain.PricePoint, error)

	// LatestPrice returns the current spot price.
	LatestPrice(ctx context.Context, assetID string) (float64, error)

	// Fundamentals returns the fundamentals snapshot, or nil when the
	// provider has none for the asset.
	Fundamentals(ctx context.Context, assetID string) (*domain.Fundamentals, error)
}

// PriceSource is the narrow read the position monitors poll.
type PriceSource interface {
	LatestPrice(ctx context.Context, assetID string) (float64, error)
}
