package signal

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/signalwatch/internal/core"
)

// MemoryStore is an in-memory signal store.
type MemoryStore struct {
	mu      sync.RWMutex
	signals []*core.Signal
	byID    map[string]*core.Signal
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*core.Signal),
		now:  time.Now,
	}
}

// Save adds a signal to the store.
func (m *MemoryStore) Save(ctx context.Context, sig *core.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if _, exists := m.byID[sig.ID]; exists {
		return core.WrapError(core.ErrPersistence, errDuplicateID(sig.ID))
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = m.now()
	}
	if sig.Status == "" {
		sig.Status = core.StatusActive
	}

	stored := *sig
	m.signals = append(m.signals, &stored)
	m.byID[stored.ID] = &stored
	return nil
}

// GetByID retrieves a signal by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sig, ok := m.byID[id]
	if !ok {
		return nil, core.ErrSignalNotFound
	}
	out := *sig
	return &out, nil
}

// List returns signals matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]core.Signal, 0)
	for _, sig := range m.signals {
		if matches(*sig, filter) {
			result = append(result, *sig)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SignalDate.After(result[j].SignalDate)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []core.Signal{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Count returns the count of matching signals.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, sig := range m.signals {
		if matches(*sig, filter) {
			count++
		}
	}
	return count, nil
}

// OpenSymbols returns distinct symbols with open signals.
func (m *MemoryStore) OpenSymbols(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var symbols []string
	for _, sig := range m.signals {
		if sig.IsOpen() && !seen[sig.Symbol] {
			seen[sig.Symbol] = true
			symbols = append(symbols, sig.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ListBySymbol returns open signals for symbol.
func (m *MemoryStore) ListBySymbol(ctx context.Context, symbol string) ([]core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.Signal
	for _, sig := range m.signals {
		if sig.Symbol == symbol && sig.IsOpen() {
			result = append(result, *sig)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SignalDate.Before(result[j].SignalDate)
	})
	return result, nil
}

// ApplyUpdate writes price, status and hit fields if the stored signal is still open.
func (m *MemoryStore) ApplyUpdate(ctx context.Context, sig core.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.byID[sig.ID]
	if !ok || !stored.IsOpen() {
		return core.ErrStaleSignal
	}

	stored.CurrentPrice = sig.CurrentPrice
	stored.CurrentChangePercent = sig.CurrentChangePercent
	stored.HighestPrice = sig.HighestPrice
	stored.UpdatedAt = sig.UpdatedAt
	stored.Status = sig.Status
	stored.TP1HitAt = coalesce(stored.TP1HitAt, sig.TP1HitAt)
	stored.TP2HitAt = coalesce(stored.TP2HitAt, sig.TP2HitAt)
	stored.TP3HitAt = coalesce(stored.TP3HitAt, sig.TP3HitAt)
	stored.SLHitAt = coalesce(stored.SLHitAt, sig.SLHitAt)
	stored.ClosedAt = coalesce(stored.ClosedAt, sig.ClosedAt)
	stored.IsExpired = stored.IsExpired || sig.IsExpired
	return nil
}

// ListUnannounced returns signals not yet broadcast, oldest first.
func (m *MemoryStore) ListUnannounced(ctx context.Context, limit int) ([]core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.Signal
	for _, sig := range m.signals {
		if !sig.IsNotified {
			result = append(result, *sig)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// MarkNotified flags a signal as broadcast.
func (m *MemoryStore) MarkNotified(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sig, ok := m.byID[id]
	if !ok {
		return core.ErrSignalNotFound
	}
	sig.IsNotified = true
	return nil
}

// ExpireDue closes signals past their holding period.
func (m *MemoryStore) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, sig := range m.signals {
		if sig.Status == core.StatusClosed || sig.HoldingPeriod.IsZero() || !sig.HoldingPeriod.Before(now) {
			continue
		}
		closedAt := now
		sig.Status = core.StatusClosed
		sig.IsExpired = true
		sig.ClosedAt = &closedAt
		sig.UpdatedAt = now
		n++
	}
	return n, nil
}

func matches(sig core.Signal, filter ListFilter) bool {
	if filter.Symbol != "" && sig.Symbol != filter.Symbol {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, sig.Status) {
		return false
	}
	if !filter.From.IsZero() && sig.SignalDate.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && sig.SignalDate.After(filter.To) {
		return false
	}
	if !filter.ClosedFrom.IsZero() && (sig.ClosedAt == nil || sig.ClosedAt.Before(filter.ClosedFrom)) {
		return false
	}
	if !filter.ClosedTo.IsZero() && (sig.ClosedAt == nil || sig.ClosedAt.After(filter.ClosedTo)) {
		return false
	}
	return true
}

func coalesce(existing, next *time.Time) *time.Time {
	if existing != nil {
		return existing
	}
	return next
}

type errDuplicateID string

func (e errDuplicateID) Error() string {
	return "duplicate signal id " + string(e)
}

var _ Store = (*MemoryStore)(nil)
