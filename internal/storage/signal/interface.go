package signal

import (
	"context"
	"time"

	"github.com/newthinker/signalwatch/internal/core"
)

// Store defines the interface for signal persistence.
type Store interface {
	// Save persists a new signal and assigns an ID when it has none.
	Save(ctx context.Context, sig *core.Signal) error

	// GetByID retrieves a signal by its ID.
	GetByID(ctx context.Context, id string) (*core.Signal, error)

	// List retrieves signals matching the filter, newest signal date first.
	List(ctx context.Context, filter ListFilter) ([]core.Signal, error)

	// Count returns the number of signals matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)

	// OpenSymbols returns the distinct sorted symbols of ACTIVE or PENDING signals.
	OpenSymbols(ctx context.Context) ([]string, error)

	// ListBySymbol returns open signals for symbol ordered by signal date.
	ListBySymbol(ctx context.Context, symbol string) ([]core.Signal, error)

	// ApplyUpdate writes the evaluator-owned fields of sig, provided the stored
	// row is still ACTIVE or PENDING. Otherwise it returns core.ErrStaleSignal.
	// Hit timestamps already set are never overwritten.
	ApplyUpdate(ctx context.Context, sig core.Signal) error

	// ListUnannounced returns up to limit signals not yet broadcast, oldest first.
	ListUnannounced(ctx context.Context, limit int) ([]core.Signal, error)

	// MarkNotified flags a signal as broadcast.
	MarkNotified(ctx context.Context, id string) error

	// ExpireDue closes every non-closed signal whose holding period ended before now.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// ListFilter defines criteria for listing signals.
type ListFilter struct {
	Symbol     string
	Statuses   []core.Status
	From       time.Time // signal_date >= From
	To         time.Time // signal_date <= To
	ClosedFrom time.Time
	ClosedTo   time.Time
	Limit      int
	Offset     int
}
