//go:build linux

package machine

import (
	"fmt"
	"sync"

	i2c "github.com/d2r2/go-i2c"
	logger "github.com/d2r2/go-logger"
)

///////////////////////////////////////////////////////////////////////////////
// d2r2/go-i2c backend (Linux only)
///////////////////////////////////////////////////////////////////////////////

// D2r2Bus adapts the d2r2/go-i2c library to the Bus contract. That library
// binds one file descriptor per device address, so the backend opens handles
// lazily and caches them per address on a fixed bus number.
//
// There is no combined write/read primitive in d2r2/go-i2c; combined
// transactions through this backend degrade to sequential write + read.
type D2r2Bus struct {
	mu     sync.Mutex
	busNo  int
	devs   map[uint16]*i2c.I2C
	logger Logger
}

// NewD2r2Bus adapts the Linux bus at /dev/i2c-<busNo>. The d2r2 library
// traces every transaction at debug level on its own; its package log level is
// capped at info so the shim's logger stays in charge of verbosity.
func NewD2r2Bus(busNo int) (Bus, error) {
	if err := logger.ChangePackageLogLevel("i2c", logger.InfoLevel); err != nil {
		return nil, fmt.Errorf("machine: tuning d2r2 log level: %w", err)
	}
	return &D2r2Bus{
		busNo:  busNo,
		devs:   make(map[uint16]*i2c.I2C),
		logger: NewDefaultLogger(LogLevelBasic),
	}, nil
}

func (b *D2r2Bus) TryLock() bool {
	return b.mu.TryLock()
}

func (b *D2r2Bus) Unlock() {
	b.mu.Unlock()
}

// device returns the cached handle for addr, opening it on first use.
func (b *D2r2Bus) device(addr uint16) (*i2c.I2C, error) {
	if dev, ok := b.devs[addr]; ok {
		return dev, nil
	}
	dev, err := i2c.NewI2C(uint8(addr), b.busNo)
	if err != nil {
		return nil, err
	}
	b.devs[addr] = dev
	return dev, nil
}

func (b *D2r2Bus) WriteTo(addr uint16, buf []byte) error {
	dev, err := b.device(addr)
	if err != nil {
		return err
	}
	b.logger.Detailed("D2r2Bus: write: addr=0x%02X, data=%v", addr, buf)
	n, err := dev.WriteBytes(buf)
	if err != nil {
		b.logger.Error("D2r2Bus: write: addr=0x%02X: %v", addr, err)
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("wrote %d bytes, expected %d", n, len(buf))
	}
	return nil
}

func (b *D2r2Bus) ReadFromInto(addr uint16, buf []byte) error {
	dev, err := b.device(addr)
	if err != nil {
		return err
	}
	b.logger.Detailed("D2r2Bus: read: addr=0x%02X, len=%d", addr, len(buf))
	n, err := dev.ReadBytes(buf)
	if err != nil {
		b.logger.Error("D2r2Bus: read: addr=0x%02X: %v", addr, err)
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("read %d bytes, expected %d", n, len(buf))
	}
	return nil
}

// Probe reads a single byte from addr, the receive-byte probe used by
// i2cdetect for address ranges where a quick write could confuse devices. A
// handle that fails to answer is dropped again so the cache only holds live
// devices.
func (b *D2r2Bus) Probe(addr uint16) bool {
	dev, err := b.device(addr)
	if err != nil {
		return false
	}
	var probe [1]byte
	if _, err := dev.ReadBytes(probe[:]); err != nil {
		dev.Close()
		delete(b.devs, addr)
		return false
	}
	return true
}

// Deinit closes every cached device handle.
func (b *D2r2Bus) Deinit() {
	for addr, dev := range b.devs {
		if err := dev.Close(); err != nil {
			b.logger.Error("D2r2Bus: closing handle for 0x%02X: %v", addr, err)
		}
		delete(b.devs, addr)
	}
}
