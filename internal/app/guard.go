package app

import "sync/atomic"

// jobGuard lets at most one run of a job proceed. Overlapping ticks are
// skipped, never queued.
type jobGuard struct {
	running atomic.Bool
	skipped atomic.Int64
}

func (g *jobGuard) tryAcquire() bool {
	if g.running.CompareAndSwap(false, true) {
		return true
	}
	g.skipped.Add(1)
	return false
}

func (g *jobGuard) release() {
	g.running.Store(false)
}
