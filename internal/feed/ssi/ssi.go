// Package ssi implements feed.Feed against an SSI FastConnect style REST API.
package ssi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/feed"
)

const (
	dateLayout      = "02/01/2006"
	defaultTokenTTL = time.Hour
	defaultTimeout  = 10 * time.Second
)

// Config holds SSI client settings.
type Config struct {
	AuthURL           string
	PriceURL          string
	ConsumerID        string
	ConsumerSecret    string
	TokenTTL          time.Duration
	PriceScale        float64
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client fetches daily stock prices and manages the bearer token.
type Client struct {
	cfg     Config
	http    *http.Client
	tokens  *feed.TokenCache
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTokenCache injects a shared token cache.
func WithTokenCache(tc *feed.TokenCache) Option {
	return func(cl *Client) { cl.tokens = tc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// New creates an SSI client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.PriceScale <= 0 {
		cfg.PriceScale = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = feed.NewTokenCache(feed.DefaultMargin)
	}
	return c
}

func (c *Client) Name() string {
	return "ssi"
}

type authRequest struct {
	ConsumerID     string `json:"consumerID"`
	ConsumerSecret string `json:"consumerSecret"`
}

type authResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
	} `json:"data"`
}

// Token returns a cached token or authenticates for a new one.
func (c *Client) Token(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(c.now()); ok {
		return tok, nil
	}
	return c.authenticate(ctx)
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	body, err := json.Marshal(authRequest{
		ConsumerID:     c.cfg.ConsumerID,
		ConsumerSecret: c.cfg.ConsumerSecret,
	})
	if err != nil {
		return "", core.WrapError(core.ErrUpstreamAuth, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", core.WrapError(core.ErrUpstreamAuth, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, bytes.NewReader(body))
	if err != nil {
		return "", core.WrapError(core.ErrUpstreamAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", core.WrapError(core.ErrUpstreamAuth, fmt.Errorf("requesting token: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", core.WrapError(core.ErrUpstreamAuth, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result authResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", core.WrapError(core.ErrUpstreamAuth, fmt.Errorf("decoding token: %w", err))
	}
	if result.Status != http.StatusOK || result.Data.AccessToken == "" {
		return "", core.WrapError(core.ErrUpstreamAuth,
			fmt.Errorf("token rejected: status=%d message=%q", result.Status, result.Message))
	}

	ttl := c.cfg.TokenTTL
	if result.Data.ExpiresIn > 0 {
		if provided := time.Duration(result.Data.ExpiresIn) * time.Second; provided < ttl {
			ttl = provided
		}
	}
	c.tokens.Store(result.Data.AccessToken, c.now().Add(ttl))

	c.logger.Debug("access token refreshed", zap.Duration("ttl", ttl))
	return result.Data.AccessToken, nil
}

// flexFloat accepts both JSON numbers and numeric strings. Anything that
// does not parse to a finite number leaves the field unset.
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.value, f.set = v, true
	return nil
}

type priceRow struct {
	Symbol         string    `json:"Symbol"`
	TradingDate    string    `json:"TradingDate"`
	MatchPrice     flexFloat `json:"MatchPrice"`
	ClosePrice     flexFloat `json:"ClosePrice"`
	ClosingPrice   flexFloat `json:"ClosingPrice"`
	PerPriceChange flexFloat `json:"PerPriceChange"`
	ChangePercent  flexFloat `json:"ChangePercent"`
}

func (r priceRow) price() (float64, bool) {
	for _, f := range []flexFloat{r.MatchPrice, r.ClosePrice, r.ClosingPrice} {
		if f.set && f.value != 0 {
			return f.value, true
		}
	}
	return 0, false
}

func (r priceRow) changePercent() float64 {
	if r.PerPriceChange.set {
		return r.PerPriceChange.value
	}
	return r.ChangePercent.value
}

type priceResponse struct {
	Status  int        `json:"status"`
	Message string     `json:"message"`
	Data    []priceRow `json:"data"`
}

// FetchQuote fetches the latest price row for symbol on date.
func (c *Client) FetchQuote(ctx context.Context, symbol string, date time.Time) (*core.Quote, error) {
	rows, err := c.fetchRows(ctx, symbol, date, 10)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, core.WrapError(core.ErrEmptyMarketData, fmt.Errorf("no rows for %s on %s", symbol, date.Format(dateLayout)))
	}

	row := rows[0]
	price, ok := row.price()
	if !ok {
		return nil, core.WrapError(core.ErrEmptyMarketData, fmt.Errorf("no usable price for %s", symbol))
	}

	return &core.Quote{
		Symbol:        symbol,
		Price:         price / c.cfg.PriceScale,
		ChangePercent: row.changePercent(),
		TradingDate:   date,
		Source:        c.Name(),
	}, nil
}

// ProbeHasData reports whether any rows exist for symbol on date, whatever
// their field values.
func (c *Client) ProbeHasData(ctx context.Context, symbol string, date time.Time) (bool, error) {
	rows, err := c.fetchRows(ctx, symbol, date, 1)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

var errUnauthorized = errors.New("unauthorized")

func (c *Client) fetchRows(ctx context.Context, symbol string, date time.Time, pageSize int) ([]priceRow, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := c.requestRows(ctx, token, symbol, date, pageSize)
	if errors.Is(err, errUnauthorized) {
		c.logger.Debug("token rejected, refreshing", zap.String("symbol", symbol))
		c.tokens.Invalidate(token)
		token, err = c.Token(ctx)
		if err != nil {
			return nil, err
		}
		rows, err = c.requestRows(ctx, token, symbol, date, pageSize)
		if errors.Is(err, errUnauthorized) {
			return nil, core.WrapError(core.ErrUpstreamAuth, err)
		}
	}
	return rows, err
}

func (c *Client) requestRows(ctx context.Context, token, symbol string, date time.Time, pageSize int) ([]priceRow, error) {
	day := date.Format(dateLayout)
	params := url.Values{}
	params.Set("Symbol", symbol)
	params.Set("FromDate", day)
	params.Set("ToDate", day)
	params.Set("PageIndex", "1")
	params.Set("PageSize", strconv.Itoa(pageSize))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, core.WrapError(core.ErrUpstreamData, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.PriceURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, core.WrapError(core.ErrUpstreamData, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.WrapError(core.ErrUpstreamData, fmt.Errorf("fetching price: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return nil, errUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.WrapError(core.ErrUpstreamData, fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var result priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, core.WrapError(core.ErrUpstreamData, fmt.Errorf("decoding response: %w", err))
	}
	return result.Data, nil
}

var _ feed.Feed = (*Client)(nil)
