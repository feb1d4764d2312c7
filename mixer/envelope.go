package mixer

import "sync"

// DefaultFadeSteps is the number of mixing cycles a volume change takes.
const DefaultFadeSteps = 8

// VolumeEnvelope is a gain value that moves linearly toward its target over a
// fixed number of Advance calls. Setters only touch the target; the current
// value is moved by the mixing goroutine alone.
type VolumeEnvelope struct {
	mu      sync.Mutex
	current float64
	start   float64
	target  float64
	step    int
	steps   int
}

// NewVolumeEnvelope returns an envelope resting at initial.
func NewVolumeEnvelope(initial float64, steps int) *VolumeEnvelope {
	if steps < 1 {
		steps = 1
	}
	return &VolumeEnvelope{
		current: initial,
		start:   initial,
		target:  initial,
		step:    steps,
		steps:   steps,
	}
}

// SetTarget starts a new fade from the current value to v.
func (e *VolumeEnvelope) SetTarget(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.start = e.current
	e.target = v
	e.step = 0
}

// Advance moves the current value one step toward the target. It must be
// called once per cycle even when the value is not used.
func (e *VolumeEnvelope) Advance() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.step >= e.steps {
		return
	}
	e.step++
	if e.step == e.steps {
		e.current = e.target
		return
	}
	e.current = e.start + (e.target-e.start)*float64(e.step)/float64(e.steps)
}

// Value returns the current gain.
func (e *VolumeEnvelope) Value() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Target returns the value the envelope is heading to.
func (e *VolumeEnvelope) Target() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target
}

// Settled reports whether the current value has reached the target.
func (e *VolumeEnvelope) Settled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step >= e.steps
}
