package ffmpg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"audiomix/logger"

	"github.com/disgoorg/ffmpeg-audio"
)

var ErrOutputClosed = errors.New("ffmpeg output is closed")

// OutputArgs builds the ffmpeg arguments that read raw PCM from stdin and
// write it to target using the given muxer or device format, e.g. "alsa"
// with "default", or "wav" with a file path.
func OutputArgs(format, target string, cfg *ffmpeg.Config) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-i", "pipe:0",
		"-f", format,
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-y",
		target,
	}
}

// Output feeds mixed PCM into one long-running ffmpeg process.
type Output struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	rate   int
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	logger *slog.Logger
}

// NewOutput starts ffmpeg writing to target in format.
func NewOutput(format, target string, opts ...ffmpeg.ConfigOpt) (*Output, error) {
	cfg := ffmpeg.DefaultConfig()
	cfg.Apply(opts)

	if _, err := exec.LookPath(cfg.Exec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Output{
		rate:   cfg.SampleRate,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger.WithComponent("ffmpeg"),
	}

	o.cmd = exec.CommandContext(ctx, cfg.Exec, OutputArgs(format, target, cfg)...)
	o.cmd.Stderr = os.Stderr

	stdin, err := o.cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	o.stdin = stdin

	if err := o.cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go o.monitor()
	return o, nil
}

func (o *Output) monitor() {
	defer close(o.done)

	err := o.cmd.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stdin != nil {
		o.stdin.Close()
		o.stdin = nil
	}
	if err != nil && o.ctx.Err() == nil {
		o.err = err
		o.logger.Error("ffmpeg process exited", slog.Any("error", err))
	}
}

// Write passes interleaved s16le frames to ffmpeg, blocking at its pace.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	stdin := o.stdin
	o.mu.Unlock()

	if stdin == nil {
		return 0, ErrOutputClosed
	}
	n, err := stdin.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write to ffmpeg stdin: %w", err)
	}
	return n, nil
}

// SampleRate is the input rate ffmpeg was started with.
func (o *Output) SampleRate() int {
	return o.rate
}

// Err returns why the process ended, if it failed.
func (o *Output) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Close ends the input so ffmpeg can finalize its output, then waits for it.
func (o *Output) Close() error {
	o.mu.Lock()
	if o.stdin != nil {
		o.stdin.Close()
		o.stdin = nil
	}
	o.mu.Unlock()

	<-o.done
	o.cancel()
	return o.Err()
}
