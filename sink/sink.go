// Package sink provides the outputs the mixer writes its fixed-size
// signed 16-bit little-endian stereo buffers to.
package sink

import (
	"errors"
	"fmt"
	"time"
)

const (
	DriverDevice    = "device"
	DriverOto       = "oto"
	DriverWAV       = "wav"
	DriverNull      = "null"
	DriverFFmpeg    = "ffmpeg"
	DriverMiniaudio = "miniaudio"

	// FrameSize is the byte size of one interleaved stereo int16 frame.
	FrameSize = 4
)

var (
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrDeviceControl     = errors.New("audio device control failed")
	ErrUnknownDriver     = errors.New("unknown sink driver")
)

// Sink accepts mixed buffers and exposes the device's rate controls.
type Sink interface {
	Write(p []byte) (int, error)
	SampleRate() (uint32, error)
	SetSampleRate(rate uint32) error
	Close() error
}

// Config selects and parameterizes a sink driver.
type Config struct {
	Driver     string
	Path       string
	SampleRate int
	// Latency is the device-side buffer for drivers that have one.
	Latency time.Duration
	// Format is the ffmpeg output format, e.g. alsa or pulse.
	Format string
	// Exec overrides the ffmpeg executable.
	Exec string
}

// Open creates the sink named by cfg.Driver. Failures to reach the output
// are wrapped with ErrDeviceUnavailable.
func Open(cfg Config) (Sink, error) {
	switch cfg.Driver {
	case DriverDevice, "":
		return OpenDevice(cfg.Path, uint32(cfg.SampleRate))
	case DriverOto:
		return OpenOto(cfg.SampleRate, cfg.Latency)
	case DriverWAV:
		return CreateWAV(cfg.Path, cfg.SampleRate)
	case DriverNull:
		return NewNull(uint32(cfg.SampleRate)), nil
	case DriverMiniaudio:
		return OpenMiniaudio(cfg.SampleRate, cfg.Latency)
	case DriverFFmpeg:
		return OpenFFmpeg(cfg.Format, cfg.Path, cfg.SampleRate, cfg.Exec)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Unavailable stands in for a sink that could not be opened. Every call
// fails with the original error so the mixer keeps running without output.
type Unavailable struct {
	Err error
}

func NewUnavailable(err error) *Unavailable {
	if err == nil {
		err = ErrDeviceUnavailable
	}
	return &Unavailable{Err: err}
}

func (u *Unavailable) Write([]byte) (int, error)  { return 0, u.Err }
func (u *Unavailable) SampleRate() (uint32, error) { return 0, u.Err }
func (u *Unavailable) SetSampleRate(uint32) error  { return u.Err }
func (u *Unavailable) Close() error                { return nil }

// bufferPeriod is how long rate frames-per-second take to play n bytes.
func bufferPeriod(n int, rate uint32) time.Duration {
	if rate == 0 {
		return 0
	}
	return time.Duration(n/FrameSize) * time.Second / time.Duration(rate)
}
