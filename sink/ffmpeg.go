package sink

import (
	"fmt"

	"audiomix/ffmpg"

	"github.com/disgoorg/ffmpeg-audio"
)

const (
	DefaultFFmpegFormat = "alsa"
	DefaultFFmpegTarget = "default"
)

// liveFormats are ffmpeg output devices that consume audio in real time.
// Any other format is a muxer that writes as fast as it is fed.
var liveFormats = map[string]bool{
	"alsa":         true,
	"audiotoolbox": true,
	"oss":          true,
	"pulse":        true,
	"sdl":          true,
	"sdl2":         true,
	"sndio":        true,
}

// FFmpeg hands the mix to an ffmpeg process, which can reach any output
// ffmpeg supports: ALSA and PulseAudio devices, files, or network muxers.
// Writes to a muxer are held to real time.
type FFmpeg struct {
	out   *ffmpg.Output
	rate  uint32
	pacer *pacer
}

func OpenFFmpeg(format, target string, sampleRate int, execPath string) (*FFmpeg, error) {
	if format == "" {
		format = DefaultFFmpegFormat
	}
	if target == "" {
		target = DefaultFFmpegTarget
	}

	opts := []ffmpeg.ConfigOpt{ffmpeg.WithSampleRate(sampleRate), ffmpeg.WithChannels(ffmpg.Channels)}
	if execPath != "" {
		opts = append(opts, ffmpeg.WithExec(execPath))
	}

	out, err := ffmpg.NewOutput(format, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	f := &FFmpeg{out: out, rate: uint32(sampleRate)}
	if !liveFormats[format] {
		f.pacer = newPacer()
	}
	return f, nil
}

func (f *FFmpeg) Write(p []byte) (int, error) {
	n, err := f.out.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	f.pacer.wait(n, f.rate)
	return n, nil
}

func (f *FFmpeg) SampleRate() (uint32, error) {
	return f.rate, nil
}

// SetSampleRate accepts only the rate ffmpeg was started with.
func (f *FFmpeg) SetSampleRate(rate uint32) error {
	if rate != f.rate {
		return fmt.Errorf("%w: ffmpeg input is fixed at %d Hz", ErrDeviceControl, f.rate)
	}
	return nil
}

func (f *FFmpeg) Close() error {
	return f.out.Close()
}
