package sink

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth  = 16
	wavPCMFormat = 1
)

// WAV records the mix into a 16-bit stereo WAV file instead of playing it.
// Writes are held to real time so the recording matches what producers fed.
type WAV struct {
	mu     sync.Mutex
	file   *os.File
	enc    *wav.Encoder
	rate   int
	frames int
	buf    *audio.IntBuffer
	pacer  *pacer
}

// CreateWAV truncates or creates path and prepares an encoder at sampleRate.
func CreateWAV(path string, sampleRate int) (*WAV, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no output file given", ErrDeviceUnavailable)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	w := &WAV{file: file, pacer: newPacer()}
	w.reset(sampleRate)
	return w, nil
}

func (w *WAV) reset(sampleRate int) {
	w.rate = sampleRate
	w.enc = wav.NewEncoder(w.file, sampleRate, wavBitDepth, 2, wavPCMFormat)
	w.buf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		SourceBitDepth: wavBitDepth,
	}
}

func (w *WAV) Write(p []byte) (int, error) {
	n, rate, err := w.encode(p)
	if err != nil {
		return n, err
	}
	w.pacer.wait(n, rate)
	return n, nil
}

func (w *WAV) encode(p []byte) (int, uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil {
		return 0, 0, ErrDeviceUnavailable
	}

	samples := len(p) / 2
	if cap(w.buf.Data) < samples {
		w.buf.Data = make([]int, samples)
	}
	w.buf.Data = w.buf.Data[:samples]
	for i := range w.buf.Data {
		w.buf.Data[i] = int(int16(binary.LittleEndian.Uint16(p[i*2:])))
	}

	if err := w.enc.Write(w.buf); err != nil {
		return 0, 0, fmt.Errorf("failed to encode wav frames: %w", err)
	}
	w.frames += samples / 2
	return samples * 2, uint32(w.rate), nil
}

func (w *WAV) SampleRate() (uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return uint32(w.rate), nil
}

// SetSampleRate changes the header rate. Once audio was written the file's
// rate is fixed.
func (w *WAV) SetSampleRate(rate uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if int(rate) == w.rate {
		return nil
	}
	if w.enc == nil {
		return ErrDeviceUnavailable
	}
	if w.frames > 0 {
		return fmt.Errorf("%w: %d frames already recorded at %d Hz", ErrDeviceControl, w.frames, w.rate)
	}
	w.reset(int(rate))
	return nil
}

// Frames returns the number of stereo frames recorded so far.
func (w *WAV) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close finalizes the WAV headers and closes the file.
func (w *WAV) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil {
		return nil
	}
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	w.enc = nil
	if encErr != nil {
		return fmt.Errorf("failed to finalize wav: %w", encErr)
	}
	return fileErr
}
