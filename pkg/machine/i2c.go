// Package machine lets code written against the MicroPython machine.I2C API
// run against a busio-style native bus handle. The I2C type holds a
// caller-supplied handle and translates each machine-style call into the
// handle's scoped read/write primitives. Nothing more: no retries, no caching,
// no buses other than I2C.
//
// Example usage:
//
//	bus, _ := i2creg.Open("")
//	i2c, err := machine.New(machine.NewPeriphBus(bus))
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, addr := range i2c.Scan() {
//		fmt.Printf("found device at 0x%02X\n", addr)
//	}
package machine

import (
	"fmt"
	"time"
)

// AddrSize is the width of a device memory address in bits.
type AddrSize int

const (
	AddrSize8  AddrSize = 8
	AddrSize16 AddrSize = 16
	AddrSize32 AddrSize = 32
)

// DefaultLockPoll is the interval between bus lock attempts.
const DefaultLockPoll = 5 * time.Millisecond

// I2C presents the MicroPython machine.I2C method surface over a wrapped Bus.
// Each call locks the bus, forwards to the handle's scoped primitive, and
// unlocks again. Failures from the handle propagate to the caller wrapped with
// the shimmed operation name, same error kind underneath.
//
// The wrapped handle is a shared mutable resource with single-owner semantics;
// serializing access across goroutines is the caller's job.
type I2C struct {
	bus      Bus
	combo    ComboBus // nil when the handle has no combined transaction
	prober   Prober   // nil when the handle has no probe primitive
	logger   Logger
	lockPoll time.Duration
}

// Option configures the adapter.
type Option func(*I2C)

// WithLogger replaces the default stdlib-backed logger.
func WithLogger(l Logger) Option {
	return func(i *I2C) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithLockPoll sets the interval between bus lock attempts.
func WithLockPoll(d time.Duration) Option {
	return func(i *I2C) {
		if d > 0 {
			i.lockPoll = d
		}
	}
}

// New wraps an already-initialized bus handle. A missing handle is rejected
// with ErrNoBus before any bus activity. Optional handle capabilities
// (combined transactions, probing, release hook) are detected here, once.
func New(bus Bus, opts ...Option) (*I2C, error) {
	if bus == nil {
		return nil, ErrNoBus
	}
	i := &I2C{
		bus:      bus,
		logger:   NewDefaultLogger(LogLevelBasic),
		lockPoll: DefaultLockPoll,
	}
	if cb, ok := bus.(ComboBus); ok {
		i.combo = cb
	}
	if p, ok := bus.(Prober); ok {
		i.prober = p
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// lock blocks until the bus lock is acquired.
func (i *I2C) lock() {
	for !i.bus.TryLock() {
		time.Sleep(i.lockPoll)
	}
}

// Scan probes every address from 0x08 through 0x77 and returns the ones that
// acknowledged, in ascending order with no duplicates. A probe failure means
// "no device at this address" and is never propagated.
func (i *I2C) Scan() []uint16 {
	i.lock()
	defer i.bus.Unlock()

	var found []uint16
	for addr := ScanFirst; addr <= ScanLast; addr++ {
		if i.probe(addr) {
			found = append(found, addr)
		}
	}
	i.logger.Detailed("machine: scan found %d device(s)", len(found))
	return found
}

// probe checks a single address. Needs the bus lock held.
func (i *I2C) probe(addr uint16) bool {
	if i.prober != nil {
		return i.prober.Probe(addr)
	}
	// Zero-length write: an acknowledged address completes without error.
	return i.bus.WriteTo(addr, nil) == nil
}

// WriteTo writes buf to the device at addr and returns the number of bytes
// written. The stop flag is accepted for source compatibility but ignored: the
// wrapped handle always ends the transaction with a STOP.
func (i *I2C) WriteTo(addr uint16, buf []byte, stop bool) (int, error) {
	i.lock()
	defer i.bus.Unlock()

	if err := i.bus.WriteTo(addr, buf); err != nil {
		return 0, fmt.Errorf("machine: writeto 0x%02X: %w", addr, err)
	}
	return len(buf), nil
}

// ReadFrom reads nbytes from the device at addr and returns them in a fresh
// buffer. The stop flag is accepted for source compatibility but ignored.
func (i *I2C) ReadFrom(addr uint16, nbytes int, stop bool) ([]byte, error) {
	buf := make([]byte, nbytes)
	if err := i.ReadFromInto(addr, buf, stop); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFromInto reads len(buf) bytes from the device at addr into buf, mutating
// it in place. The stop flag is accepted for source compatibility but ignored.
func (i *I2C) ReadFromInto(addr uint16, buf []byte, stop bool) error {
	i.lock()
	defer i.bus.Unlock()

	if err := i.bus.ReadFromInto(addr, buf); err != nil {
		return fmt.Errorf("machine: readfrom 0x%02X: %w", addr, err)
	}
	return nil
}

// WriteVTo writes the concatenation of vector to the device at addr as a
// single transaction and returns the total number of bytes written. The
// wrapped handle has no scatter-gather primitive, so the buffers are joined
// up front.
func (i *I2C) WriteVTo(addr uint16, vector [][]byte, stop bool) (int, error) {
	total := 0
	for _, b := range vector {
		total += len(b)
	}
	full := make([]byte, 0, total)
	for _, b := range vector {
		full = append(full, b...)
	}
	return i.WriteTo(addr, full, stop)
}

// WriteToThenReadFrom writes w to the device at addr, then reads len(r) bytes
// into r. When the wrapped handle supports a combined transaction, the read
// follows a repeated start with no STOP in between. Otherwise two sequential
// transactions are issued while the bus lock is held: the device sees a STOP
// between them, and another bus master could interleave.
func (i *I2C) WriteToThenReadFrom(addr uint16, w, r []byte) error {
	i.lock()
	defer i.bus.Unlock()
	return i.writeThenRead(addr, w, r)
}

// writeThenRead needs the bus lock held.
func (i *I2C) writeThenRead(addr uint16, w, r []byte) error {
	if i.combo != nil {
		if err := i.combo.WriteToThenReadFrom(addr, w, r); err != nil {
			return fmt.Errorf("machine: writeto_then_readfrom 0x%02X: %w", addr, err)
		}
		return nil
	}
	if err := i.bus.WriteTo(addr, w); err != nil {
		return fmt.Errorf("machine: writeto_then_readfrom 0x%02X: %w", addr, err)
	}
	if err := i.bus.ReadFromInto(addr, r); err != nil {
		return fmt.Errorf("machine: writeto_then_readfrom 0x%02X: %w", addr, err)
	}
	return nil
}

// ReadFromMem reads nbytes from memory address memaddr on the device at addr.
// The memory address is written first, then read back with a repeated start
// when the handle supports it (see WriteToThenReadFrom).
func (i *I2C) ReadFromMem(addr uint16, memaddr uint32, nbytes int, addrSize AddrSize) ([]byte, error) {
	buf := make([]byte, nbytes)
	if err := i.ReadFromMemInto(addr, memaddr, buf, addrSize); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFromMemInto reads len(buf) bytes from memory address memaddr on the
// device at addr into buf.
func (i *I2C) ReadFromMemInto(addr uint16, memaddr uint32, buf []byte, addrSize AddrSize) error {
	mem, err := memAddrBytes(memaddr, addrSize)
	if err != nil {
		return err
	}
	return i.WriteToThenReadFrom(addr, mem, buf)
}

// WriteToMem writes buf to memory address memaddr on the device at addr. The
// memory address bytes and the payload go out as one write transaction.
func (i *I2C) WriteToMem(addr uint16, memaddr uint32, buf []byte, addrSize AddrSize) error {
	mem, err := memAddrBytes(memaddr, addrSize)
	if err != nil {
		return err
	}
	full := make([]byte, 0, len(mem)+len(buf))
	full = append(full, mem...)
	full = append(full, buf...)
	_, err = i.WriteTo(addr, full, true)
	return err
}

// Deinit forwards to the wrapped handle's release hook when it has one. The
// handle's lifecycle stays with the caller; handles without a hook make this a
// no-op.
func (i *I2C) Deinit() {
	if d, ok := i.bus.(Deiniter); ok {
		i.logger.Basic("machine: releasing I2C bus handle")
		d.Deinit()
	}
}

// memAddrBytes packs a memory address big-endian at the requested width.
func memAddrBytes(memaddr uint32, size AddrSize) ([]byte, error) {
	switch size {
	case AddrSize8:
		return []byte{byte(memaddr)}, nil
	case AddrSize16:
		return []byte{byte(memaddr >> 8), byte(memaddr)}, nil
	case AddrSize32:
		return []byte{
			byte(memaddr >> 24),
			byte(memaddr >> 16),
			byte(memaddr >> 8),
			byte(memaddr),
		}, nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrAddrSize, size)
	}
}
