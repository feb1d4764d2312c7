package playback

import (
	"context"
	"log/slog"
	"sync"

	"audiomix/logger"

	"github.com/disgoorg/ffmpeg-audio"
	"github.com/gopxl/beep/v2"
)

// Cache keeps fully decoded files in memory so repeated plays skip decoding.
type Cache struct {
	mu     sync.RWMutex
	rate   beep.SampleRate
	opts   []ffmpeg.ConfigOpt
	cache  map[string]*beep.Buffer
	logger *slog.Logger
}

// NewCache decodes at rate. opts apply to files decoded through ffmpeg.
func NewCache(rate beep.SampleRate, opts ...ffmpeg.ConfigOpt) *Cache {
	return &Cache{
		rate:   rate,
		opts:   opts,
		cache:  make(map[string]*beep.Buffer),
		logger: logger.WithComponent("playback"),
	}
}

// Load returns the decoded audio of path, decoding it on first use.
func (c *Cache) Load(ctx context.Context, path string) (*beep.Buffer, error) {
	c.mu.RLock()
	buf, ok := c.cache[path]
	c.mu.RUnlock()
	if ok {
		return buf, nil
	}

	streamer, format, err := Open(ctx, path, c.rate, c.opts...)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	buf = beep.NewBuffer(format)
	buf.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.cache[path]; ok {
		buf = existing
	} else {
		c.cache[path] = buf
	}
	c.mu.Unlock()

	c.logger.Debug("Decoded audio file", slog.String("path", path), slog.Int("frames", buf.Len()))
	return buf, nil
}

// Streamer opens a fresh reader over the cached audio of path.
func (c *Cache) Streamer(ctx context.Context, path string) (beep.StreamSeeker, error) {
	buf, err := c.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return buf.Streamer(0, buf.Len()), nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
