package machine

import (
	"sync"

	"periph.io/x/conn/v3/i2c"
)

///////////////////////////////////////////////////////////////////////////////
// periph.io backend
///////////////////////////////////////////////////////////////////////////////

// PeriphBus adapts a periph.io i2c.Bus to the Bus contract. periph's Tx issues
// write and read as one combined transaction, so this backend is a ComboBus
// with a real repeated start between the two halves.
type PeriphBus struct {
	mu     sync.Mutex
	bus    i2c.Bus
	logger Logger
}

// NewPeriphBus wraps an open periph.io bus. The bus stays owned by the caller;
// closing it (for BusCloser implementations) remains the caller's job.
func NewPeriphBus(bus i2c.Bus) *PeriphBus {
	return &PeriphBus{
		bus:    bus,
		logger: NewDefaultLogger(LogLevelBasic),
	}
}

func (b *PeriphBus) TryLock() bool {
	return b.mu.TryLock()
}

func (b *PeriphBus) Unlock() {
	b.mu.Unlock()
}

func (b *PeriphBus) WriteTo(addr uint16, buf []byte) error {
	b.logger.Detailed("PeriphBus: write: addr=0x%02X, data=%v", addr, buf)
	return b.bus.Tx(addr, buf, nil)
}

func (b *PeriphBus) ReadFromInto(addr uint16, buf []byte) error {
	b.logger.Detailed("PeriphBus: read: addr=0x%02X, len=%d", addr, len(buf))
	return b.bus.Tx(addr, nil, buf)
}

func (b *PeriphBus) WriteToThenReadFrom(addr uint16, w, r []byte) error {
	b.logger.Detailed("PeriphBus: combined: addr=0x%02X, write=%d, read=%d", addr, len(w), len(r))
	return b.bus.Tx(addr, w, r)
}

// Probe addresses the device with an empty write, the quick-write probe used
// by i2cdetect. An error means nothing acknowledged.
func (b *PeriphBus) Probe(addr uint16) bool {
	return b.bus.Tx(addr, []byte{}, nil) == nil
}
