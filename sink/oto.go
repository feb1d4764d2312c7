package sink

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// DefaultLatency is the device buffer requested from the audio driver.
const DefaultLatency = 100 * time.Millisecond

// Oto plays the mix on the system's default output. Writes go into a pipe
// the oto player drains, so Write returns only once the driver has taken the
// data and the mixer ends up paced by the hardware.
type Oto struct {
	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
	pw     *io.PipeWriter
	rate   uint32
}

// OpenOto creates the process-wide oto context. Only one can exist.
func OpenOto(sampleRate int, latency time.Duration) (*Oto, error) {
	if latency <= 0 {
		latency = DefaultLatency
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   latency,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	<-ready

	pr, pw := io.Pipe()
	player := ctx.NewPlayer(pr)
	player.Play()

	return &Oto{
		ctx:    ctx,
		player: player,
		pw:     pw,
		rate:   uint32(sampleRate),
	}, nil
}

func (o *Oto) Write(p []byte) (int, error) {
	if err := o.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return o.pw.Write(p)
}

func (o *Oto) SampleRate() (uint32, error) {
	return o.rate, nil
}

// SetSampleRate only accepts the rate the context was created with; oto
// cannot change it afterwards.
func (o *Oto) SetSampleRate(rate uint32) error {
	if rate != o.rate {
		return fmt.Errorf("%w: oto context is fixed at %d Hz", ErrDeviceControl, o.rate)
	}
	return nil
}

func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player == nil {
		return nil
	}
	o.pw.Close()
	err := o.player.Close()
	o.player = nil
	return err
}
