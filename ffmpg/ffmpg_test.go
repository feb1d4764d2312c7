package ffmpg

import (
	"context"
	"encoding/binary"
	"errors"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/disgoorg/ffmpeg-audio"
)

func TestDecodeArgs(t *testing.T) {
	t.Parallel()

	cfg := ffmpeg.DefaultConfig()
	cfg.Apply([]ffmpeg.ConfigOpt{ffmpeg.WithSampleRate(44100)})

	args := DecodeArgs("song.flac", cfg)
	for _, want := range [][]string{
		{"-i", "song.flac"},
		{"-ac", "2"},
		{"-ar", "44100"},
		{"-f", "s16le"},
	} {
		i := slices.Index(args, want[0])
		if i < 0 || i+1 >= len(args) || args[i+1] != want[1] {
			t.Errorf("DecodeArgs() = %v, missing %v", args, want)
		}
	}
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("DecodeArgs() last = %q, want pipe:1", args[len(args)-1])
	}
}

func TestOutputArgs(t *testing.T) {
	t.Parallel()

	cfg := ffmpeg.DefaultConfig()
	cfg.Apply([]ffmpeg.ConfigOpt{ffmpeg.WithSampleRate(22050)})

	args := OutputArgs("alsa", "hw:0,0", cfg)
	if args[len(args)-1] != "hw:0,0" {
		t.Errorf("OutputArgs() target = %q, want hw:0,0", args[len(args)-1])
	}
	in := slices.Index(args, "pipe:0")
	out := slices.Index(args[in:], "alsa")
	if in < 0 || out < 0 {
		t.Errorf("OutputArgs() = %v, want pipe:0 input before alsa output", args)
	}
}

func TestDecode_MissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := Decode(context.Background(), filepath.Join(t.TempDir(), "nope.flac"))
	if err == nil {
		t.Error("Decode() of a missing file succeeded")
	}
}

func TestNewOutput_MissingExecutable(t *testing.T) {
	t.Parallel()

	_, err := NewOutput("wav", "out.wav", ffmpeg.WithExec(filepath.Join(t.TempDir(), "ffmpeg")))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("NewOutput() error = %v, want ErrNotFound", err)
	}
}

func TestOutputThenDecode(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	t.Parallel()

	path := filepath.Join(t.TempDir(), "roundtrip.wav")
	out, err := NewOutput("wav", path, ffmpeg.WithSampleRate(44100))
	if err != nil {
		t.Fatalf("NewOutput() error = %v", err)
	}

	const frames = 4410
	left, right := int16(8000), int16(-8000)
	pcm := make([]byte, frames*frameSize)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(pcm[i*frameSize:], uint16(left))
		binary.LittleEndian.PutUint16(pcm[i*frameSize+2:], uint16(right))
	}
	if _, err := out.Write(pcm); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	dec, format, err := Decode(context.Background(), path, ffmpeg.WithSampleRate(44100))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	defer dec.Close()

	if format.SampleRate != 44100 || format.NumChannels != 2 {
		t.Errorf("format = %+v, want 44100 Hz stereo", format)
	}

	total := 0
	buf := make([][2]float64, 512)
	for {
		n, ok := dec.Stream(buf)
		for _, s := range buf[:n] {
			if s[0] <= 0 || s[1] >= 0 {
				t.Fatalf("decoded frame %v, want positive left and negative right", s)
			}
		}
		total += n
		if !ok {
			break
		}
	}
	if dec.Err() != nil {
		t.Errorf("Err() = %v", dec.Err())
	}
	if total != frames {
		t.Errorf("decoded %d frames, want %d", total, frames)
	}
}
