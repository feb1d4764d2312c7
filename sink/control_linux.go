//go:build linux

package sink

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// OSS soundcard ioctl requests.
const (
	sndctlDSPSpeed    = 0xC0045002
	sndctlDSPSetFmt   = 0xC0045005
	sndctlDSPChannels = 0xC0045006
	soundPCMReadRate  = 0x80045002

	afmtS16LE = 0x00000010
)

func configureFormat(fd int) error {
	if err := unix.IoctlSetPointerInt(fd, sndctlDSPSetFmt, afmtS16LE); err != nil {
		return fmt.Errorf("set format: %w", err)
	}
	if err := unix.IoctlSetPointerInt(fd, sndctlDSPChannels, 2); err != nil {
		return fmt.Errorf("set channels: %w", err)
	}
	return nil
}

func getSampleRate(fd int) (uint32, error) {
	rate, err := unix.IoctlGetInt(fd, soundPCMReadRate)
	if err != nil {
		return 0, err
	}
	return uint32(rate), nil
}

func setSampleRate(fd int, rate uint32) error {
	if err := unix.IoctlSetPointerInt(fd, sndctlDSPSpeed, int(rate)); err != nil {
		return err
	}
	// the driver may pick a nearby rate; only an exact match counts
	got, err := getSampleRate(fd)
	if err != nil {
		return err
	}
	if got != rate {
		return fmt.Errorf("device chose %d Hz", got)
	}
	return nil
}
