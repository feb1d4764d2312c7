package mixer

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"audiomix/logger"
)

const (
	// DefaultBufferSize is the number of stereo frames written per cycle.
	DefaultBufferSize = 1024

	// DefaultSampleRate is used to pace the loop when the sink is failing.
	DefaultSampleRate = 44100

	// MaxVolumePercent is the master volume ceiling (200%).
	MaxVolumePercent = 200

	bytesPerFrame = 4 // two little-endian int16 channels
)

// Sink is the hardware-facing output the engine writes fixed-size buffers to.
type Sink interface {
	Write(p []byte) (int, error)
	SampleRate() (uint32, error)
	SetSampleRate(rate uint32) error
}

// Persister stores the master settings durably.
type Persister interface {
	SaveVolume(percent int)
	SaveMuted(muted bool)
}

// Notifier tells every connected client about master setting changes.
type Notifier interface {
	NotifyMainMixVolume(percent int)
	NotifyMainMixMuted(muted bool)
}

// Options configures an Engine.
type Options struct {
	BufferSize     int
	SampleRate     int
	StreamCapacity int
	FadeSteps      int

	// Initial master settings, usually loaded from the settings store.
	VolumePercent int
	Muted         bool
}

// Engine owns the mixing goroutine and the master controls.
type Engine struct {
	opts     Options
	sink     Sink
	persist  Persister
	notifier Notifier
	logger   *slog.Logger

	pending *PendingRegistry
	// active is owned by the mixing goroutine
	active      []*ClientStream
	activeCount atomic.Int64

	controlMu    sync.Mutex
	masterVolume *VolumeEnvelope
	muted        atomic.Bool

	mixed   []Sample
	out     []byte
	silence []byte

	sinkFailing bool
	cycles      atomic.Uint64
	startOnce   sync.Once
}

// New creates an engine writing to sink. persist and notifier may be nil.
func New(opts Options, sink Sink, persist Persister, notifier Notifier) *Engine {
	if opts.BufferSize < 1 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.SampleRate < 1 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.StreamCapacity < 1 {
		opts.StreamCapacity = DefaultStreamCapacity
	}
	if opts.FadeSteps < 1 {
		opts.FadeSteps = DefaultFadeSteps
	}
	if persist == nil {
		persist = nopPersister{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	e := &Engine{
		opts:         opts,
		sink:         sink,
		persist:      persist,
		notifier:     notifier,
		logger:       logger.WithComponent("mixer"),
		pending:      NewPendingRegistry(),
		masterVolume: NewVolumeEnvelope(float64(clampPercent(opts.VolumePercent))/100, opts.FadeSteps),
		mixed:        make([]Sample, opts.BufferSize),
		out:          make([]byte, opts.BufferSize*bytesPerFrame),
		silence:      make([]byte, opts.BufferSize*bytesPerFrame),
	}
	e.muted.Store(opts.Muted)
	return e
}

// Start launches the mixing goroutine. It runs for the lifetime of the
// process; calling Start again has no effect.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.logger.Info("Starting mixing loop",
			slog.Int("buffer_size", e.opts.BufferSize),
			slog.Int("volume", e.MasterVolume()),
			slog.Bool("muted", e.Muted()))
		go e.run()
	})
}

func (e *Engine) run() {
	for {
		e.active = e.pending.WaitAndDrain(e.active)
		e.mix()
	}
}

// MixCycle promotes pending streams without waiting and runs one cycle.
// It is meant for driving the engine by hand and must not be mixed with Start.
func (e *Engine) MixCycle() {
	e.active = e.pending.DrainInto(e.active)
	e.mix()
}

func (e *Engine) mix() {
	e.prune()

	e.masterVolume.Advance()

	clear(e.mixed)
	for _, stream := range e.active {
		if stream.Client() == nil {
			stream.Clear()
			continue
		}
		stream.Volume().Advance()
		volume := stream.Volume().Value()
		muted := stream.IsMuted()

		for i := range e.mixed {
			sample, ok := stream.NextSample()
			if !ok {
				break
			}
			if muted {
				continue
			}
			sample.LogMultiply(SampleHeadroom)
			sample.LogMultiply(volume)
			e.mixed[i].Add(sample)
		}
	}

	// Even though it's not realistic, users expect no sound near 0%.
	master := e.masterVolume.Value()
	if e.muted.Load() || master < SilenceThreshold {
		e.write(e.silence)
	} else {
		e.encode(master)
		e.write(e.out)
	}

	e.cycles.Add(1)
	e.activeCount.Store(int64(len(e.active)))
}

// prune drops streams whose client went away, keeping insertion order.
func (e *Engine) prune() {
	kept := e.active[:0]
	for _, stream := range e.active {
		if stream.IsConnected() {
			kept = append(kept, stream)
		}
	}
	clear(e.active[len(kept):])
	e.active = kept
}

func (e *Engine) encode(master float64) {
	for i, sample := range e.mixed {
		sample.LogMultiply(master)
		sample.Clip()
		left, right := sample.Int16()
		binary.LittleEndian.PutUint16(e.out[i*bytesPerFrame:], uint16(left))
		binary.LittleEndian.PutUint16(e.out[i*bytesPerFrame+2:], uint16(right))
	}
}

func (e *Engine) write(buf []byte) {
	if _, err := e.sink.Write(buf); err != nil {
		if !e.sinkFailing {
			e.logger.Error("Failed to write to audio device", slog.Any("error", err))
			e.sinkFailing = true
		}
		// A failing sink does not pace us, so wait out one buffer period.
		time.Sleep(e.period())
		return
	}
	if e.sinkFailing {
		e.logger.Info("Audio device accepting writes again")
		e.sinkFailing = false
	}
}

func (e *Engine) period() time.Duration {
	return time.Duration(e.opts.BufferSize) * time.Second / time.Duration(e.opts.SampleRate)
}

// CreateStream registers a new stream for client and wakes the loop.
func (e *Engine) CreateStream(client Client) *ClientStream {
	stream := NewClientStream(client, e.opts.StreamCapacity, e.opts.FadeSteps)
	e.pending.Enqueue(stream)
	return stream
}

// SetMasterVolume clamps percent to [0, 200], fades the master gain to it,
// persists it and notifies every connection.
func (e *Engine) SetMasterVolume(percent int) {
	percent = clampPercent(percent)

	e.controlMu.Lock()
	e.masterVolume.SetTarget(float64(percent) / 100)
	e.controlMu.Unlock()

	e.persist.SaveVolume(percent)
	e.notifier.NotifyMainMixVolume(percent)
}

// MasterVolume returns the requested master volume in percent.
func (e *Engine) MasterVolume() int {
	return int(math.Round(e.masterVolume.Target() * 100))
}

// SetMuted changes the master mute. Setting the current value is a no-op.
func (e *Engine) SetMuted(muted bool) {
	e.controlMu.Lock()
	if e.muted.Load() == muted {
		e.controlMu.Unlock()
		return
	}
	e.muted.Store(muted)
	e.controlMu.Unlock()

	e.persist.SaveMuted(muted)
	e.notifier.NotifyMainMixMuted(muted)
}

func (e *Engine) Muted() bool {
	return e.muted.Load()
}

// SampleRate asks the device for its rate. Failures are logged and reported as 0.
func (e *Engine) SampleRate() uint32 {
	rate, err := e.sink.SampleRate()
	if err != nil {
		e.logger.Error("Error while getting sample rate", slog.Any("error", err))
		return 0
	}
	return rate
}

// SetSampleRate asks the device to switch rate. On failure the error is
// logged and returned; the previous rate stays in effect.
func (e *Engine) SetSampleRate(rate uint32) error {
	if err := e.sink.SetSampleRate(rate); err != nil {
		e.logger.Error("Error while setting sample rate",
			slog.Uint64("sample_rate", uint64(rate)),
			slog.Any("error", err))
		return err
	}
	e.logger.Info("Sample rate changed", slog.Uint64("sample_rate", uint64(rate)))
	return nil
}

// ActiveStreams returns the size of the active set after the last cycle.
func (e *Engine) ActiveStreams() int {
	return int(e.activeCount.Load())
}

// PendingStreams returns the number of streams awaiting promotion.
func (e *Engine) PendingStreams() int {
	return e.pending.Len()
}

// Cycles returns how many buffers have been written.
func (e *Engine) Cycles() uint64 {
	return e.cycles.Load()
}

// BufferSize returns the frames per cycle.
func (e *Engine) BufferSize() int {
	return e.opts.BufferSize
}

func clampPercent(percent int) int {
	return max(0, min(percent, MaxVolumePercent))
}

type nopPersister struct{}

func (nopPersister) SaveVolume(int)  {}
func (nopPersister) SaveMuted(bool) {}

type nopNotifier struct{}

func (nopNotifier) NotifyMainMixVolume(int)  {}
func (nopNotifier) NotifyMainMixMuted(bool) {}
