// Package playback turns decoded files and generated tones into producers
// that feed a mixer stream.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"audiomix/logger"
	"audiomix/mixer"

	"github.com/gopxl/beep/v2"
)

var ErrDisconnected = errors.New("client disconnected")

// Conn is the connection a player produces for.
type Conn interface {
	IsConnected() bool
	Close()
}

// Player pulls chunks from a streamer and appends them to its mixer stream.
// The stream never blocks, so the player waits for room itself.
type Player struct {
	name    string
	conn    Conn
	stream  *mixer.ClientStream
	src     beep.Streamer
	buf     [][2]float64
	samples []mixer.Sample
	period  time.Duration
	logger  *slog.Logger
}

// NewPlayer prepares a player. chunk is the number of frames pulled at a
// time, normally the mixer's buffer size.
func NewPlayer(name string, conn Conn, stream *mixer.ClientStream, src beep.Streamer, format beep.Format, chunk int) (*Player, error) {
	if chunk <= 0 {
		chunk = mixer.DefaultBufferSize
	}
	if chunk > stream.Capacity() {
		return nil, fmt.Errorf("chunk of %d frames exceeds stream capacity %d", chunk, stream.Capacity())
	}
	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", format.SampleRate)
	}

	return &Player{
		name:    name,
		conn:    conn,
		stream:  stream,
		src:     src,
		buf:     make([][2]float64, chunk),
		samples: make([]mixer.Sample, chunk),
		period:  format.SampleRate.D(chunk),
		logger:  logger.WithFields("component", "playback", "name", name),
	}, nil
}

// Run feeds the stream until the source ends, the connection goes away or
// ctx is done. Audio still buffered when the source ends is given time to
// play before Run returns.
func (p *Player) Run(ctx context.Context) error {
	p.logger.Info("Playback started")

	for {
		n, ok := p.src.Stream(p.buf)
		if n > 0 {
			if err := p.push(ctx, n); err != nil {
				return err
			}
		}
		if !ok {
			break
		}
	}

	if err := p.src.Err(); err != nil {
		p.logger.Error("Playback source failed", slog.Any("error", err))
		return err
	}

	if err := p.drain(ctx); err != nil {
		return err
	}
	p.logger.Info("Playback finished", slog.Any("stats", p.stream.Stats()))
	return nil
}

func (p *Player) push(ctx context.Context, n int) error {
	if !p.conn.IsConnected() {
		return ErrDisconnected
	}
	for i, frame := range p.buf[:n] {
		p.samples[i] = mixer.Sample{Left: float32(frame[0]), Right: float32(frame[1])}
	}

	for p.stream.Free() < n {
		if err := p.wait(ctx); err != nil {
			return err
		}
	}
	p.stream.AppendSamples(p.samples[:n])
	return nil
}

func (p *Player) drain(ctx context.Context) error {
	for p.stream.Len() > 0 {
		if err := p.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Player) wait(ctx context.Context) error {
	if !p.conn.IsConnected() {
		return ErrDisconnected
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.period):
		return nil
	}
}

// Stream returns the mixer stream the player feeds.
func (p *Player) Stream() *mixer.ClientStream {
	return p.stream
}

// Close disconnects the player's client. The mixer drops the stream on its
// next cycle.
func (p *Player) Close() {
	p.conn.Close()
}
