// Package calendar decides whether the exchange is in session and whether
// a given day is a trading day.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/newthinker/signalwatch/internal/feed"
)

// Band is a time-of-day window [Start, End) in minutes since midnight.
type Band struct {
	Start int
	End   int
}

// ParseBand parses "HH:MM-HH:MM".
func ParseBand(s string) (Band, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Band{}, fmt.Errorf("invalid band %q", s)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return Band{}, fmt.Errorf("invalid band %q: %w", s, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return Band{}, fmt.Errorf("invalid band %q: %w", s, err)
	}
	if end <= start {
		return Band{}, fmt.Errorf("invalid band %q: end before start", s)
	}
	return Band{Start: start, End: end}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether the minute-of-day falls inside the band.
func (b Band) Contains(minute int) bool {
	return minute >= b.Start && minute < b.End
}

// Config holds calendar settings.
type Config struct {
	Timezone    string
	TradingDays []time.Weekday
	Sessions    []string
	Polling     []string
}

// DefaultConfig returns HOSE trading hours.
func DefaultConfig() Config {
	return Config{
		Timezone:    "Asia/Ho_Chi_Minh",
		TradingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Sessions:    []string{"09:00-11:30", "13:00-14:45"},
		Polling:     []string{"08:45-11:35", "12:55-15:05"},
	}
}

// Gate answers calendar questions in the exchange location.
type Gate struct {
	loc      *time.Location
	days     map[time.Weekday]bool
	sessions []Band
	polling  []Band
	logger   *zap.Logger

	mu        sync.Mutex
	confirmed map[string]bool
}

// New creates a Gate from cfg.
func New(cfg Config, logger *zap.Logger) (*Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultConfig().Timezone
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %s: %w", cfg.Timezone, err)
	}

	if len(cfg.TradingDays) == 0 {
		cfg.TradingDays = DefaultConfig().TradingDays
	}
	days := make(map[time.Weekday]bool, len(cfg.TradingDays))
	for _, d := range cfg.TradingDays {
		days[d] = true
	}

	sessions, err := parseBands(cfg.Sessions, DefaultConfig().Sessions)
	if err != nil {
		return nil, err
	}
	polling, err := parseBands(cfg.Polling, DefaultConfig().Polling)
	if err != nil {
		return nil, err
	}

	return &Gate{
		loc:       loc,
		days:      days,
		sessions:  sessions,
		polling:   polling,
		logger:    logger,
		confirmed: make(map[string]bool),
	}, nil
}

func parseBands(specs, fallback []string) ([]Band, error) {
	if len(specs) == 0 {
		specs = fallback
	}
	bands := make([]Band, 0, len(specs))
	for _, s := range specs {
		b, err := ParseBand(s)
		if err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, nil
}

// Location returns the exchange location.
func (g *Gate) Location() *time.Location {
	return g.loc
}

// IsWeekday reports whether now falls on a configured trading weekday.
func (g *Gate) IsWeekday(now time.Time) bool {
	return g.days[now.In(g.loc).Weekday()]
}

// IsPollingWindow reports whether prices should be polled at now.
func (g *Gate) IsPollingWindow(now time.Time) bool {
	return g.inBands(now, g.polling)
}

// IsMarketOpen reports whether now is inside a core trading session.
func (g *Gate) IsMarketOpen(now time.Time) bool {
	return g.inBands(now, g.sessions)
}

func (g *Gate) inBands(now time.Time, bands []Band) bool {
	if !g.IsWeekday(now) {
		return false
	}
	local := now.In(g.loc)
	minute := local.Hour()*60 + local.Minute()
	for _, b := range bands {
		if b.Contains(minute) {
			return true
		}
	}
	return false
}

// SessionDate returns midnight of now's calendar date in the exchange location.
func (g *Gate) SessionDate(now time.Time) time.Time {
	local := now.In(g.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.loc)
}

// IsTradingDay probes f for rows on today's session date. A positive answer
// is remembered for the rest of the day; a negative one is probed again on
// the next call since rows can appear later in the morning.
func (g *Gate) IsTradingDay(ctx context.Context, f feed.Feed, symbol string, now time.Time) (bool, error) {
	if !g.IsWeekday(now) {
		return false, nil
	}

	date := g.SessionDate(now)
	key := date.Format("2006-01-02")

	g.mu.Lock()
	ok := g.confirmed[key]
	g.mu.Unlock()
	if ok {
		return true, nil
	}

	has, err := f.ProbeHasData(ctx, symbol, date)
	if err != nil {
		return false, err
	}
	if !has {
		g.logger.Debug("no market data yet", zap.String("symbol", symbol), zap.String("date", key))
		return false, nil
	}

	g.mu.Lock()
	// keep only today's entry
	g.confirmed = map[string]bool{key: true}
	g.mu.Unlock()
	return true, nil
}
