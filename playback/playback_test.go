package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"audiomix/mixer"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/wav"
)

type fakeConn struct {
	connected atomic.Bool
	closed    atomic.Bool
}

func newFakeConn() *fakeConn {
	c := &fakeConn{}
	c.connected.Store(true)
	return c
}

func (c *fakeConn) IsConnected() bool { return c.connected.Load() }
func (c *fakeConn) Close() {
	c.closed.Store(true)
	c.connected.Store(false)
}

func writeTestWAV(t *testing.T, rate beep.SampleRate, d time.Duration) string {
	t.Helper()

	sine, err := generators.SineTone(rate, 440)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Take(rate.N(d), sine), format); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func countFrames(s beep.Streamer) int {
	total := 0
	buf := make([][2]float64, 256)
	for {
		n, ok := s.Stream(buf)
		total += n
		if !ok {
			return total
		}
	}
}

func TestTone_Duration(t *testing.T) {
	t.Parallel()

	tone, format, err := Tone(440, 100*time.Millisecond, 44100)
	if err != nil {
		t.Fatalf("Tone() error = %v", err)
	}
	defer tone.Close()

	if format.SampleRate != 44100 || format.NumChannels != 2 {
		t.Errorf("format = %+v", format)
	}
	if got := countFrames(tone); got != 4410 {
		t.Errorf("tone frames = %d, want 4410", got)
	}
}

func TestTone_InvalidFrequency(t *testing.T) {
	t.Parallel()

	// above Nyquist
	if _, _, err := Tone(30000, time.Second, 44100); err == nil {
		t.Error("Tone() above Nyquist succeeded")
	}
}

func TestOpen_WAV(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 22050, 50*time.Millisecond)

	s, format, err := Open(context.Background(), path, 22050)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if format.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", format.SampleRate)
	}
	if got := countFrames(s); got != 1102 {
		t.Errorf("decoded %d frames, want 1102", got)
	}
}

func TestOpen_RateMismatch(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 22050, 10*time.Millisecond)

	_, _, err := Open(context.Background(), path, 44100)
	if !errors.Is(err, ErrSampleRateMismatch) {
		t.Errorf("Open() error = %v, want ErrSampleRateMismatch", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"missing.wav", "missing.flac"} {
		if _, _, err := Open(context.Background(), filepath.Join(t.TempDir(), name), 44100); err == nil {
			t.Errorf("Open(%s) succeeded", name)
		}
	}
}

func TestCache_DecodesOnce(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 8000, 20*time.Millisecond)
	cache := NewCache(8000)

	first, err := cache.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	second, err := cache.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() again error = %v", err)
	}
	if first != second {
		t.Error("second Load() decoded again")
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}

	s, err := cache.Streamer(context.Background(), path)
	if err != nil {
		t.Fatalf("Streamer() error = %v", err)
	}
	if got := countFrames(s); got != 160 {
		t.Errorf("cached frames = %d, want 160", got)
	}
}

func TestNewPlayer_ChunkTooLarge(t *testing.T) {
	t.Parallel()

	stream := mixer.NewClientStream(newFakeConn(), 8, 1)
	tone, format, _ := Tone(440, 0, 8000)
	if _, err := NewPlayer("big", newFakeConn(), stream, tone, format, 16); err == nil {
		t.Error("NewPlayer() accepted a chunk larger than the stream")
	}
}

func TestPlayer_FeedsStream(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	stream := mixer.NewClientStream(conn, 32, 1)
	tone, format, err := Tone(440, 10*time.Millisecond, 8000)
	if err != nil {
		t.Fatal(err)
	}

	player, err := NewPlayer("tone", conn, stream, tone, format, 16)
	if err != nil {
		t.Fatalf("NewPlayer() error = %v", err)
	}

	// consume like the mixer would, slower than the player produces
	received := make(chan int)
	go func() {
		total := 0
		for total < 80 {
			if _, ok := stream.NextSample(); ok {
				total++
				continue
			}
			time.Sleep(time.Millisecond)
		}
		received <- total
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := player.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := <-received; got != 80 {
		t.Errorf("consumer received %d frames, want 80", got)
	}
	if stats := stream.Stats(); stats.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0 (player waits for room)", stats.Dropped)
	}

	player.Close()
	if !conn.closed.Load() {
		t.Error("Close() did not close the connection")
	}
}

func TestPlayer_StopsOnDisconnect(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	stream := mixer.NewClientStream(conn, 32, 1)
	tone, format, _ := Tone(440, 0, 8000)

	player, err := NewPlayer("endless", conn, stream, tone, format, 16)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		conn.connected.Store(false)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := player.Run(ctx); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Run() error = %v, want ErrDisconnected", err)
	}
}

func TestPlayer_StopsOnCancel(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	stream := mixer.NewClientStream(conn, 32, 1)
	tone, format, _ := Tone(440, 0, 8000)

	player, err := NewPlayer("endless", conn, stream, tone, format, 16)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := player.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestLoop_Wraps(t *testing.T) {
	t.Parallel()

	path := writeTestWAV(t, 8000, 10*time.Millisecond)
	s, err := NewCache(8000).Streamer(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	// 80 frames per pass, so 200 frames need the loop twice
	buf := make([][2]float64, 200)
	n, ok := Loop(s).Stream(buf)
	if n != 200 || !ok {
		t.Errorf("Stream() = %d, %v, want 200, true", n, ok)
	}
	if buf[0] != buf[80] || buf[1] != buf[161] {
		t.Error("looped audio does not repeat the first pass")
	}
}
