package sink

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"audiomix/logger"
)

// DefaultDevicePath is the OSS-style output node.
const DefaultDevicePath = "/dev/dsp"

// Device writes raw PCM to an OS output path and drives its rate through
// device control calls. Writing to a plain file or FIFO works too; rate
// control then fails and is reported as ErrDeviceControl. A plain file does
// not block, so writes to one are held to real time.
type Device struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	rate   uint32
	pacer  *pacer
	logger *slog.Logger
}

// OpenDevice opens path for writing and, when rate is non-zero, configures
// the device for stereo signed 16-bit little-endian at that rate.
func OpenDevice(path string, rate uint32) (*Device, error) {
	if path == "" {
		path = DefaultDevicePath
	}

	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, path, err)
	}

	d := &Device{
		file:   file,
		path:   path,
		rate:   rate,
		logger: logger.WithFields("component", "sink", "driver", DriverDevice, "path", path),
	}
	if info, err := file.Stat(); err == nil && !blocksOnWrite(info.Mode()) {
		d.pacer = newPacer()
	}

	if err := configureFormat(int(file.Fd())); err != nil {
		d.logger.Debug("Device does not accept format control", slog.Any("error", err))
	}
	if rate != 0 {
		if err := d.SetSampleRate(rate); err != nil {
			d.logger.Warn("Could not set initial sample rate",
				slog.Uint64("sample_rate", uint64(rate)),
				slog.Any("error", err))
		}
	}

	return d, nil
}

// blocksOnWrite reports whether writes to a node of this mode wait for the
// reader, as sound devices and pipes do.
func blocksOnWrite(mode os.FileMode) bool {
	return mode&(os.ModeCharDevice|os.ModeNamedPipe) != 0
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	if d.file == nil {
		d.mu.Unlock()
		return 0, ErrDeviceUnavailable
	}
	n, err := d.file.Write(p)
	rate := d.rate
	d.mu.Unlock()

	if err != nil {
		return n, err
	}
	d.pacer.wait(n, rate)
	return n, nil
}

func (d *Device) SampleRate() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return 0, ErrDeviceUnavailable
	}
	rate, err := getSampleRate(int(d.file.Fd()))
	if err != nil {
		return 0, fmt.Errorf("%w: get sample rate: %w", ErrDeviceControl, err)
	}
	return rate, nil
}

func (d *Device) SetSampleRate(rate uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return ErrDeviceUnavailable
	}
	if err := setSampleRate(int(d.file.Fd()), rate); err != nil {
		return fmt.Errorf("%w: set sample rate to %d: %w", ErrDeviceControl, rate, err)
	}
	d.rate = rate
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
