// Package ffmpg runs ffmpeg subprocesses that convert between arbitrary
// media and the raw signed 16-bit little-endian stereo PCM the mixer speaks.
package ffmpg

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/disgoorg/ffmpeg-audio"
	"github.com/gopxl/beep/v2"
)

const (
	// Channels is fixed; the mixer is stereo only.
	Channels  = 2
	frameSize = Channels * 2
)

var ErrNotFound = errors.New("ffmpeg executable not found")

// DecodeArgs builds the ffmpeg arguments that decode path to raw PCM on
// stdout at the configured rate.
func DecodeArgs(path string, cfg *ffmpeg.Config) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"pipe:1",
	}
}

// Decoder streams the decoded audio of one file. It implements
// beep.StreamCloser.
type Decoder struct {
	cmd      *exec.Cmd
	pipe     io.Closer
	reader   *bufio.Reader
	format   beep.Format
	buf      []byte
	done     context.Context
	doneFunc context.CancelFunc

	mu  sync.Mutex
	err error
}

var _ beep.StreamCloser = (*Decoder)(nil)

// Decode starts ffmpeg on path. The returned format always has two channels
// at the configured sample rate.
func Decode(ctx context.Context, path string, opts ...ffmpeg.ConfigOpt) (*Decoder, beep.Format, error) {
	cfg := ffmpeg.DefaultConfig()
	cfg.Apply(opts)

	if _, err := os.Stat(path); err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := exec.LookPath(cfg.Exec); err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	cmd := exec.CommandContext(ctx, cfg.Exec, DecodeArgs(path, cfg)...)
	cmd.Stderr = os.Stderr
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, beep.Format{}, err
	}
	if err = cmd.Start(); err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(cfg.SampleRate),
		NumChannels: Channels,
		Precision:   2,
	}

	done, doneFunc := context.WithCancel(context.Background())
	return &Decoder{
		cmd:      cmd,
		pipe:     pipe,
		reader:   bufio.NewReaderSize(pipe, cfg.BufferSize),
		format:   format,
		done:     done,
		doneFunc: doneFunc,
	}, format, nil
}

func (d *Decoder) Format() beep.Format {
	return d.format
}

func (d *Decoder) Stream(samples [][2]float64) (n int, ok bool) {
	if d.done.Err() != nil {
		return 0, false
	}

	want := len(samples) * frameSize
	if cap(d.buf) < want {
		d.buf = make([]byte, want)
	}
	buf := d.buf[:want]

	read, err := io.ReadFull(d.reader, buf)
	n = read / frameSize
	for i := 0; i < n; i++ {
		frame := buf[i*frameSize:]
		samples[i][0] = float64(int16(binary.LittleEndian.Uint16(frame[0:]))) / 32768
		samples[i][1] = float64(int16(binary.LittleEndian.Uint16(frame[2:]))) / 32768
	}

	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, os.ErrClosed) {
			d.setErr(fmt.Errorf("error reading PCM data: %w", err))
		}
		d.doneFunc()
		return n, n > 0
	}
	return n, true
}

func (d *Decoder) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Close stops reading and reaps the ffmpeg process.
func (d *Decoder) Close() error {
	_ = d.pipe.Close()
	d.doneFunc()
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.cmd.Wait()
	return nil
}
