//go:build !linux

package machine

import "errors"

// NewD2r2Bus is unavailable here: the d2r2/go-i2c library drives /dev/i2c
// device files and only works on Linux. Use the periph.io backend or the
// TestBus on other systems.
func NewD2r2Bus(busNo int) (Bus, error) {
	return nil, errors.New("machine: the d2r2 backend requires linux")
}
