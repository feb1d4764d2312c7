package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// Miniaudio plays the mix through miniaudio's default playback device. The
// device pulls from a queue on its own thread; Write blocks while the queue
// is full, which paces the mixer at hardware speed.
type Miniaudio struct {
	mu    sync.Mutex
	ctx   *malgo.AllocatedContext
	dev   *malgo.Device
	queue *pcmQueue
	rate  uint32
}

func OpenMiniaudio(sampleRate int, latency time.Duration) (*Miniaudio, error) {
	if latency <= 0 {
		latency = DefaultLatency
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	m := &Miniaudio{
		ctx:   ctx,
		queue: newPCMQueue(int(latency.Seconds()*float64(sampleRate)) * FrameSize),
		rate:  uint32(sampleRate),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(sampleRate)

	callbacks := malgo.DeviceCallbacks{Data: m.onData}
	m.dev, err = malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	if err := m.dev.Start(); err != nil {
		m.dev.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return m, nil
}

func (m *Miniaudio) onData(pOutputSample, _ []byte, _ uint32) {
	m.queue.read(pOutputSample)
}

func (m *Miniaudio) Write(p []byte) (int, error) {
	return m.queue.write(p)
}

func (m *Miniaudio) SampleRate() (uint32, error) {
	return m.rate, nil
}

// SetSampleRate accepts only the rate the device was opened with.
func (m *Miniaudio) SetSampleRate(rate uint32) error {
	if rate != m.rate {
		return fmt.Errorf("%w: miniaudio device is fixed at %d Hz", ErrDeviceControl, m.rate)
	}
	return nil
}

func (m *Miniaudio) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev == nil {
		return nil
	}
	m.queue.close()
	m.dev.Uninit()
	m.dev = nil
	err := m.ctx.Uninit()
	m.ctx.Free()
	return err
}
