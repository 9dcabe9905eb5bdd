package feed

import (
	"context"
	"time"

	"github.com/newthinker/signalwatch/internal/core"
)

// Feed is a quote provider for end-of-session and intraday prices.
type Feed interface {
	Name() string

	// Token returns a valid access token, refreshing it when close to expiry.
	Token(ctx context.Context) (string, error)

	// FetchQuote returns the latest quote for symbol on date. An empty
	// provider response is reported as core.ErrEmptyMarketData.
	FetchQuote(ctx context.Context, symbol string, date time.Time) (*core.Quote, error)

	// ProbeHasData reports whether the provider has any rows for symbol on date.
	ProbeHasData(ctx context.Context, symbol string, date time.Time) (bool, error)
}
