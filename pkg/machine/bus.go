package machine

import "errors"

// Probe range for Scan: the 7-bit addresses usable by devices. Addresses
// outside this range are reserved by the I2C specification.
const (
	ScanFirst uint16 = 0x08
	ScanLast  uint16 = 0x77
)

var (
	// ErrNoBus is returned by New when no bus handle is supplied.
	ErrNoBus = errors.New("machine: no I2C bus handle")

	// ErrAddrSize is returned by the memory operations for an address width
	// other than 8, 16, or 32 bits.
	ErrAddrSize = errors.New("machine: addrsize must be 8, 16, or 32")
)

// Bus is the contract a wrapped native handle must satisfy. It mirrors the
// scoped read/write primitives of a busio-style I2C bus: every transaction
// happens between TryLock and Unlock and always ends with a STOP condition.
//
// The handle must be fully initialized (bus acquired, pins configured) before
// it is handed to New. The shim holds a non-owning reference: it never
// constructs, reconfigures, or releases the handle.
type Bus interface {
	// TryLock attempts to grab the bus lock and reports success.
	TryLock() bool
	// Unlock releases the bus lock.
	Unlock()
	// WriteTo writes buf to the device at addr.
	WriteTo(addr uint16, buf []byte) error
	// ReadFromInto reads len(buf) bytes from the device at addr into buf.
	ReadFromInto(addr uint16, buf []byte) error
}

// ComboBus is implemented by handles with an atomic combined transaction: a
// write followed by a repeated-start read, no STOP in between.
type ComboBus interface {
	Bus
	WriteToThenReadFrom(addr uint16, w, r []byte) error
}

// Prober is implemented by handles with a non-raising acknowledgment probe.
// Scan prefers it over the zero-length-write fallback.
type Prober interface {
	Probe(addr uint16) bool
}

// Deiniter is implemented by handles that expose a release hook.
type Deiniter interface {
	Deinit()
}
