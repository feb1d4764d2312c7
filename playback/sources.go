package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audiomix/ffmpg"

	"github.com/disgoorg/ffmpeg-audio"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

var ErrSampleRateMismatch = errors.New("sample rate does not match the mixer")

// Open decodes path by extension. WAV, MP3 and Ogg Vorbis are decoded in
// process; anything else goes through ffmpeg, which converts it to rate.
func Open(ctx context.Context, path string, rate beep.SampleRate, opts ...ffmpeg.ConfigOpt) (beep.StreamCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav", ".mp3", ".ogg", ".oga":
	default:
		opts = append(opts, ffmpeg.WithSampleRate(int(rate)), ffmpeg.WithChannels(ffmpg.Channels))
		return ffmpg.Decode(ctx, path, opts...)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to open %s: %w", path, err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		streamer, format, err = vorbis.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if format.SampleRate != rate {
		streamer.Close()
		return nil, beep.Format{}, fmt.Errorf("%w: %s is %d Hz, mixer runs at %d Hz", ErrSampleRateMismatch, path, format.SampleRate, rate)
	}
	return streamer, format, nil
}

// Tone is a sine wave at freq Hz lasting d. A zero duration plays forever.
func Tone(freq float64, d time.Duration, rate beep.SampleRate) (beep.StreamCloser, beep.Format, error) {
	sine, err := generators.SineTone(rate, freq)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to create %.1f Hz tone: %w", freq, err)
	}
	if d > 0 {
		sine = beep.Take(rate.N(d), sine)
	}
	return nopCloser{sine}, beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}, nil
}

type nopCloser struct {
	beep.Streamer
}

func (nopCloser) Close() error { return nil }

// Loop replays s from the start each time it ends.
func Loop(s beep.StreamSeeker) beep.Streamer {
	return &looper{s: s}
}

type looper struct {
	s beep.StreamSeeker
}

func (l *looper) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) {
		m, ok := l.s.Stream(samples[n:])
		n += m
		if ok && m > 0 {
			continue
		}
		if l.s.Len() == 0 || l.s.Seek(0) != nil {
			return n, n > 0
		}
	}
	return n, true
}

func (l *looper) Err() error {
	return l.s.Err()
}
