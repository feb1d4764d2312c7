//go:build !linux

package sink

import "errors"

var errNoDeviceControl = errors.New("device control is only supported on linux")

func configureFormat(int) error { return errNoDeviceControl }

func getSampleRate(int) (uint32, error) { return 0, errNoDeviceControl }

func setSampleRate(int, uint32) error { return errNoDeviceControl }
