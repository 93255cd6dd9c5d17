// Package gate bounds the number of in-flight conversions with a
// counting semaphore. Waiters are served in arrival order by the
// runtime's queueing of blocked goroutines.
package gate

import "context"

// Gate admits at most limit concurrent holders.
type Gate struct {
	sem chan struct{}
}

// New creates a gate with the given concurrency limit. Limits below one
// are clamped to one.
func New(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{sem: make(chan struct{}, limit)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot. It never blocks and must be called exactly once
// per successful Acquire.
func (g *Gate) Release() {
	<-g.sem
}

// InFlight reports how many slots are currently held.
func (g *Gate) InFlight() int {
	return len(g.sem)
}

// Limit returns the configured concurrency limit.
func (g *Gate) Limit() int {
	return cap(g.sem)
}
