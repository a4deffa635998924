package machine

import (
	"errors"
	"sync"
)

///////////////////////////////////////////////////////////////////////////////
// TestBus (in-memory emulation for tests and machines without I2C hardware)
///////////////////////////////////////////////////////////////////////////////

// ErrNoDevice is the NACK-equivalent failure the TestBus reports for addresses
// without a registered device.
var ErrNoDevice = errors.New("machine: no device at address")

// TestOp is one recorded bus transaction.
type TestOp struct {
	Kind string // "write", "read", "combined", or "probe"
	Addr uint16
	Data []byte // bytes written, nil for pure reads and probes
}

// TestDevice emulates a single device on the TestBus.
type TestDevice struct {
	Writes [][]byte // every payload written to the device, in order
	Echo   bool     // serve reads from the most recent write
	Err    error    // injected failure returned by every transaction

	reads [][]byte // queued read responses, served FIFO
}

// QueueRead queues data as the device's next read response.
func (d *TestDevice) QueueRead(data []byte) {
	d.reads = append(d.reads, append([]byte(nil), data...))
}

// respond fills buf from the queued responses, or from the most recent write
// in echo mode. Unfilled bytes stay zero.
func (d *TestDevice) respond(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	if len(d.reads) > 0 {
		copy(buf, d.reads[0])
		d.reads = d.reads[1:]
		return
	}
	if d.Echo && len(d.Writes) > 0 {
		copy(buf, d.Writes[len(d.Writes)-1])
	}
}

// TestBus emulates a busio-style bus in memory. Devices are registered per
// address with AddDevice; every transaction is recorded in Ops for later
// assertion. The TestBus implements all optional capabilities (combined
// transactions, probing, release hook).
type TestBus struct {
	mu       sync.Mutex
	locked   bool
	devices  map[uint16]*TestDevice
	deinited bool

	Ops []TestOp
}

// NewTestBus creates an empty emulated bus.
func NewTestBus() *TestBus {
	return &TestBus{
		devices: make(map[uint16]*TestDevice),
	}
}

// AddDevice registers an acknowledging device at addr and returns it for
// queueing reads or injecting failures.
func (b *TestBus) AddDevice(addr uint16) *TestDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev := &TestDevice{}
	b.devices[addr] = dev
	return dev
}

func (b *TestBus) TryLock() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locked {
		return false
	}
	b.locked = true
	return true
}

func (b *TestBus) Unlock() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.locked {
		panic("machine: TestBus unlocked while not locked")
	}
	b.locked = false
}

// Locked reports whether the bus lock is currently held.
func (b *TestBus) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

func (b *TestBus) WriteTo(addr uint16, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Ops = append(b.Ops, TestOp{Kind: "write", Addr: addr, Data: append([]byte(nil), buf...)})
	dev, ok := b.devices[addr]
	if !ok {
		return ErrNoDevice
	}
	if dev.Err != nil {
		return dev.Err
	}
	dev.Writes = append(dev.Writes, append([]byte(nil), buf...))
	return nil
}

func (b *TestBus) ReadFromInto(addr uint16, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Ops = append(b.Ops, TestOp{Kind: "read", Addr: addr})
	dev, ok := b.devices[addr]
	if !ok {
		return ErrNoDevice
	}
	if dev.Err != nil {
		return dev.Err
	}
	dev.respond(buf)
	return nil
}

func (b *TestBus) WriteToThenReadFrom(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Ops = append(b.Ops, TestOp{Kind: "combined", Addr: addr, Data: append([]byte(nil), w...)})
	dev, ok := b.devices[addr]
	if !ok {
		return ErrNoDevice
	}
	if dev.Err != nil {
		return dev.Err
	}
	dev.Writes = append(dev.Writes, append([]byte(nil), w...))
	dev.respond(r)
	return nil
}

// Probe reports whether a device is registered at addr. Probes are recorded
// but leave device state alone.
func (b *TestBus) Probe(addr uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Ops = append(b.Ops, TestOp{Kind: "probe", Addr: addr})
	_, ok := b.devices[addr]
	return ok
}

// Deinit marks the bus released.
func (b *TestBus) Deinit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deinited = true
}

// Deinited reports whether Deinit was called.
func (b *TestBus) Deinited() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deinited
}
