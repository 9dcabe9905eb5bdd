package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCooldown is the minimum gap between two firings of one rule.
const DefaultCooldown = 30 * time.Minute

// Sender delivers alert text to operators. router.Router satisfies it.
type Sender interface {
	Summary(ctx context.Context, text string) error
}

// Evaluator keeps the latest pipeline health values and fires rules whose
// condition has held for their For duration.
type Evaluator struct {
	rules    []Rule
	sender   Sender
	cooldown time.Duration
	logger   *zap.Logger

	metrics map[string]float64
	// Track pending alerts (waiting for "for" duration)
	pending map[string]time.Time
	// Track last fired time for cooldown
	lastFired map[string]time.Time

	// For testing: allow time advancement
	now func() time.Time

	mu sync.Mutex
}

// NewEvaluator creates a new alert evaluator. A non-positive cooldown uses
// DefaultCooldown.
func NewEvaluator(rules []Rule, sender Sender, cooldown time.Duration, logger *zap.Logger) *Evaluator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		rules:     rules,
		sender:    sender,
		cooldown:  cooldown,
		logger:    logger,
		metrics:   make(map[string]float64),
		pending:   make(map[string]time.Time),
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Observe merges values into the current snapshot and evaluates every rule.
// Safe on a nil receiver.
func (e *Evaluator) Observe(ctx context.Context, values map[string]float64) {
	if e == nil {
		return
	}

	e.mu.Lock()
	for k, v := range values {
		e.metrics[k] = v
	}
	var fire []string
	for i := range e.rules {
		if msg, ok := e.evaluate(&e.rules[i]); ok {
			fire = append(fire, msg)
		}
	}
	e.mu.Unlock()

	for _, msg := range fire {
		if e.sender == nil {
			e.logger.Warn("alert fired without sender", zap.String("alert", msg))
			continue
		}
		if err := e.sender.Summary(ctx, msg); err != nil {
			e.logger.Warn("alert delivery failed", zap.String("alert", msg), zap.Error(err))
		}
	}
}

// evaluate must be called with mu held.
func (e *Evaluator) evaluate(rule *Rule) (string, bool) {
	now := e.now()

	if !rule.Evaluate(e.metrics) {
		delete(e.pending, rule.Name)
		return "", false
	}

	if rule.For > 0 {
		pendingSince, isPending := e.pending[rule.Name]
		if !isPending {
			e.pending[rule.Name] = now
			return "", false
		}
		if now.Sub(pendingSince) < rule.For {
			return "", false
		}
	}

	if lastFired, ok := e.lastFired[rule.Name]; ok && now.Sub(lastFired) < e.cooldown {
		return "", false
	}

	e.lastFired[rule.Name] = now
	delete(e.pending, rule.Name)
	return rule.FormatMessage(e.metrics), true
}

// advanceTime is for testing - advances the internal clock.
func (e *Evaluator) advanceTime(d time.Duration) {
	oldNow := e.now
	e.now = func() time.Time {
		return oldNow().Add(d)
	}
}
