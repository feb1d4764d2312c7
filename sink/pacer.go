package sink

import (
	"sync"
	"time"
)

// pacer holds writes to real time for outputs that accept data faster than
// it plays. The mixer has no clock of its own, so a file or discard output
// must block for as long as the buffer would take to play. A nil pacer
// never waits.
type pacer struct {
	mu    sync.Mutex
	next  time.Time
	sleep func(time.Duration)
}

func newPacer() *pacer {
	return &pacer{sleep: time.Sleep}
}

// wait blocks until n bytes written at rate would have finished playing.
// A caller that falls behind starts over from now rather than bursting.
func (p *pacer) wait(n int, rate uint32) {
	if p == nil {
		return
	}

	p.mu.Lock()
	now := time.Now()
	if p.next.Before(now) {
		p.next = now
	}
	p.next = p.next.Add(bufferPeriod(n, rate))
	d := p.next.Sub(now)
	sleep := p.sleep
	p.mu.Unlock()

	sleep(d)
}
