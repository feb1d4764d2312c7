package mixer

import "sync"

// PendingRegistry holds streams created since the last cycle until the mixing
// goroutine takes them over.
type PendingRegistry struct {
	mu      sync.Mutex
	wake    *sync.Cond
	pending []*ClientStream
}

func NewPendingRegistry() *PendingRegistry {
	r := &PendingRegistry{}
	r.wake = sync.NewCond(&r.mu)
	return r
}

// Enqueue stages a stream and wakes the mixing goroutine.
func (r *PendingRegistry) Enqueue(s *ClientStream) {
	r.mu.Lock()
	r.pending = append(r.pending, s)
	r.mu.Unlock()

	r.wake.Signal()
}

// Nudge wakes the mixing goroutine without adding anything.
func (r *PendingRegistry) Nudge() {
	r.wake.Signal()
}

// DrainInto moves every pending stream to the end of active and returns it.
func (r *PendingRegistry) DrainInto(active []*ClientStream) []*ClientStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drainLocked(active)
}

// WaitAndDrain blocks while both the registry and active are empty, then
// drains like DrainInto. The predicate and the drain share one critical
// section so a stream enqueued right before the wait is never missed.
func (r *PendingRegistry) WaitAndDrain(active []*ClientStream) []*ClientStream {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.pending) == 0 && len(active) == 0 {
		r.wake.Wait()
	}
	return r.drainLocked(active)
}

func (r *PendingRegistry) drainLocked(active []*ClientStream) []*ClientStream {
	if len(r.pending) == 0 {
		return active
	}
	active = append(active, r.pending...)
	clear(r.pending)
	r.pending = r.pending[:0]
	return active
}

// Len returns the number of streams awaiting promotion.
func (r *PendingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
