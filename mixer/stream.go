package mixer

import (
	"sync"
	"sync/atomic"
)

// DefaultStreamCapacity is the number of frames a stream buffers by default.
const DefaultStreamCapacity = 16384

// Client is the producer side a stream belongs to.
type Client interface {
	IsConnected() bool
}

// StreamStats is a snapshot of a stream's counters.
type StreamStats struct {
	Appended uint64
	Dropped  uint64
	Consumed uint64
	Buffered int
}

// ClientStream is one producer's FIFO of stereo samples together with its
// own volume and mute state. The producer appends, the mixing goroutine drains.
type ClientStream struct {
	client atomic.Pointer[clientRef]
	volume *VolumeEnvelope
	muted  atomic.Bool

	mu   sync.Mutex
	buf  []Sample
	head int // read position
	n    int // frames stored

	appended atomic.Uint64
	dropped  atomic.Uint64
	consumed atomic.Uint64
}

type clientRef struct {
	Client
}

// NewClientStream creates a stream for client holding up to capacity frames.
func NewClientStream(client Client, capacity, fadeSteps int) *ClientStream {
	if capacity < 1 {
		capacity = DefaultStreamCapacity
	}
	s := &ClientStream{
		buf:    make([]Sample, capacity),
		volume: NewVolumeEnvelope(1, fadeSteps),
	}
	if client != nil {
		s.client.Store(&clientRef{client})
	}
	return s
}

// AppendSamples queues samples for mixing. It never blocks: when the whole
// buffer does not fit, it is dropped and false is returned.
func (s *ClientStream) AppendSamples(samples []Sample) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(samples) > len(s.buf)-s.n {
		s.dropped.Add(uint64(len(samples)))
		return false
	}

	for _, sample := range samples {
		s.buf[(s.head+s.n)%len(s.buf)] = sample
		s.n++
	}
	s.appended.Add(uint64(len(samples)))
	return true
}

// NextSample pops the oldest sample. It returns false when nothing is queued.
func (s *ClientStream) NextSample() (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.n == 0 {
		return Sample{}, false
	}
	sample := s.buf[s.head]
	s.head = (s.head + 1) % len(s.buf)
	s.n--
	s.consumed.Add(1)
	return sample, true
}

// Clear discards everything queued.
func (s *ClientStream) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = 0
	s.n = 0
}

// Len returns the number of queued frames.
func (s *ClientStream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Free returns how many frames can still be appended.
func (s *ClientStream) Free() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) - s.n
}

// Capacity returns the buffer size in frames.
func (s *ClientStream) Capacity() int {
	return len(s.buf)
}

// Client returns the owning client, or nil once the stream was detached.
func (s *ClientStream) Client() Client {
	ref := s.client.Load()
	if ref == nil {
		return nil
	}
	return ref.Client
}

// Detach drops the reference to the owning client. The stream is cleared on
// the next cycle and pruned after that.
func (s *ClientStream) Detach() {
	s.client.Store(nil)
}

// IsConnected reports whether the owning client is still alive.
func (s *ClientStream) IsConnected() bool {
	c := s.Client()
	return c != nil && c.IsConnected()
}

// Volume returns the stream's gain envelope.
func (s *ClientStream) Volume() *VolumeEnvelope {
	return s.volume
}

// SetVolume fades the stream's gain to v. Values are not clamped; streams
// may ask for attenuation or a mild boost.
func (s *ClientStream) SetVolume(v float64) {
	s.volume.SetTarget(v)
}

func (s *ClientStream) SetMuted(muted bool) {
	s.muted.Store(muted)
}

func (s *ClientStream) IsMuted() bool {
	return s.muted.Load()
}

// Stats returns a snapshot of the stream counters.
func (s *ClientStream) Stats() StreamStats {
	return StreamStats{
		Appended: s.appended.Load(),
		Dropped:  s.dropped.Load(),
		Consumed: s.consumed.Load(),
		Buffered: s.Len(),
	}
}
