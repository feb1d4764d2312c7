package sink

import "sync"

// Null discards audio but holds each write for as long as the buffer would
// take to play, so the mixer keeps a realistic cadence.
type Null struct {
	mu      sync.Mutex
	rate    uint32
	written int64
	pacer   *pacer
}

func NewNull(rate uint32) *Null {
	return &Null{rate: rate, pacer: newPacer()}
}

func (n *Null) Write(p []byte) (int, error) {
	n.mu.Lock()
	rate := n.rate
	n.written += int64(len(p))
	n.mu.Unlock()

	n.pacer.wait(len(p), rate)
	return len(p), nil
}

func (n *Null) SampleRate() (uint32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rate, nil
}

func (n *Null) SetSampleRate(rate uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rate = rate
	return nil
}

// Written returns the total bytes accepted.
func (n *Null) Written() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.written
}

func (n *Null) Close() error { return nil }
