package sink

import "sync"

// pcmQueue hands bytes from a blocking writer to a pull-based device
// callback. Writers wait while the queue holds more than limit bytes.
type pcmQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	limit  int
	closed bool
}

func newPCMQueue(limit int) *pcmQueue {
	q := &pcmQueue{limit: limit}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// write blocks until p fits. An oversized p is accepted once the queue is
// empty so a single write can never wait forever.
func (q *pcmQueue) write(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && len(q.buf) > 0 && len(q.buf)+len(p) > q.limit {
		q.cond.Wait()
	}
	if q.closed {
		return 0, ErrDeviceUnavailable
	}
	q.buf = append(q.buf, p...)
	return len(p), nil
}

// read fills out from the queue and pads the rest with silence. It returns
// the number of queued bytes copied.
func (q *pcmQueue) read(out []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := copy(out, q.buf)
	q.buf = q.buf[:copy(q.buf, q.buf[n:])]
	clear(out[n:])
	q.cond.Broadcast()
	return n
}

func (q *pcmQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

func (q *pcmQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
