package router

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/signalwatch/internal/core"
	"github.com/newthinker/signalwatch/internal/metrics"
	"github.com/newthinker/signalwatch/internal/notifier"
)

// Config holds router configuration
type Config struct {
	EnabledEvents []core.EventKind `mapstructure:"enabled_events"`
	SendTimeout   time.Duration    `mapstructure:"send_timeout"`
}

// DefaultConfig returns default router configuration. EXPIRED is recorded
// but not broadcast.
func DefaultConfig() Config {
	return Config{
		EnabledEvents: []core.EventKind{core.EventTP1, core.EventTP2, core.EventTP3, core.EventSL},
		SendTimeout:   30 * time.Second,
	}
}

// Router fans signal broadcasts out to the notifier registry. Safe for
// concurrent use; it keeps no per-signal state.
type Router struct {
	cfg      Config
	registry *notifier.Registry
	metrics  *metrics.Registry
	logger   *zap.Logger
}

// New creates a new signal router
func New(cfg Config, registry *notifier.Registry, m *metrics.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:      cfg,
		registry: registry,
		metrics:  m,
		logger:   logger,
	}
}

// Dispatch broadcasts each enabled event fired for sig. Failures are logged
// and counted; they never propagate to the caller.
func (r *Router) Dispatch(ctx context.Context, sig core.Signal, events []core.HitEvent) {
	for _, ev := range events {
		r.metrics.RecordEvent(string(ev.Kind))

		if !r.enabled(ev.Kind) {
			r.logger.Debug("event not broadcast",
				zap.String("signal_id", sig.ID),
				zap.String("event", string(ev.Kind)),
			)
			continue
		}
		if r.registry == nil {
			continue
		}

		results := r.send(ctx, func(ctx context.Context) map[string]error {
			return r.registry.NotifyHit(ctx, ev, sig)
		})
		failed := r.record(results, zap.String("signal_id", sig.ID), zap.String("event", string(ev.Kind)))

		r.logger.Info("event dispatched",
			zap.String("symbol", sig.Symbol),
			zap.String("signal_id", sig.ID),
			zap.String("event", string(ev.Kind)),
			zap.Float64("price", ev.Price),
			zap.Int("notifiers", len(results)),
			zap.Int("errors", failed),
		)
	}
}

// Announce broadcasts a new signal. It returns an error only when every
// notifier failed, so the caller can retry later.
func (r *Router) Announce(ctx context.Context, sig core.Signal) error {
	if r.registry == nil || r.registry.Len() == 0 {
		return nil
	}

	results := r.send(ctx, func(ctx context.Context) map[string]error {
		return r.registry.NotifyNewSignal(ctx, sig)
	})
	failed := r.record(results, zap.String("signal_id", sig.ID))

	if failed == len(results) {
		return core.WrapError(core.ErrNotifierFailed, fmt.Errorf("all %d notifiers failed for %s", failed, sig.Symbol))
	}
	return nil
}

// Summary broadcasts a text report.
func (r *Router) Summary(ctx context.Context, text string) error {
	if r.registry == nil || r.registry.Len() == 0 {
		return nil
	}

	results := r.send(ctx, func(ctx context.Context) map[string]error {
		return r.registry.NotifySummary(ctx, text)
	})
	failed := r.record(results)

	if failed == len(results) {
		return core.WrapError(core.ErrNotifierFailed, fmt.Errorf("all %d notifiers failed", failed))
	}
	return nil
}

func (r *Router) send(ctx context.Context, fn func(context.Context) map[string]error) map[string]error {
	if r.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.SendTimeout)
		defer cancel()
	}
	return fn(ctx)
}

// record counts per-notifier outcomes and returns the number of failures.
func (r *Router) record(results map[string]error, fields ...zap.Field) int {
	failed := 0
	for name, err := range results {
		if err != nil {
			failed++
			r.metrics.RecordNotification(name, "error")
			r.logger.Error("notifier failed",
				append(fields, zap.String("notifier", name), zap.Error(err))...,
			)
			continue
		}
		r.metrics.RecordNotification(name, "ok")
	}
	return failed
}

func (r *Router) enabled(kind core.EventKind) bool {
	if len(r.cfg.EnabledEvents) == 0 {
		return kind != core.EventExpired
	}
	return slices.Contains(r.cfg.EnabledEvents, kind)
}
