package notifier

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/signalwatch/internal/core"
)

// Registry manages notifier instances
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewRegistry creates a new notifier registry
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
	}
}

// Register adds a notifier to the registry
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier %s already registered", name)
	}

	r.notifiers[name] = n
	return nil
}

// GetAll returns all registered notifiers ordered by name
func (r *Registry) GetAll() []Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Notifier, 0, len(r.notifiers))
	for _, n := range r.notifiers {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Len returns the number of registered notifiers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifiers)
}

// NotifyHit sends a hit event to all registered notifiers
func (r *Registry) NotifyHit(ctx context.Context, ev core.HitEvent, sig core.Signal) map[string]error {
	return r.each(func(n Notifier) error { return n.SendHit(ctx, ev, sig) })
}

// NotifyNewSignal announces a signal on all registered notifiers
func (r *Registry) NotifyNewSignal(ctx context.Context, sig core.Signal) map[string]error {
	return r.each(func(n Notifier) error { return n.SendNewSignal(ctx, sig) })
}

// NotifySummary sends a text report to all registered notifiers
func (r *Registry) NotifySummary(ctx context.Context, text string) map[string]error {
	return r.each(func(n Notifier) error { return n.SendSummary(ctx, text) })
}

// each calls send for every notifier, keyed by name; nil entries mean success.
func (r *Registry) each(send func(Notifier) error) map[string]error {
	results := make(map[string]error)
	for _, n := range r.GetAll() {
		if err := send(n); err != nil {
			results[n.Name()] = core.WrapError(core.ErrNotifierFailed, err)
			continue
		}
		results[n.Name()] = nil
	}
	return results
}
