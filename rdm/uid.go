// Package rdm defines the wire-level vocabulary shared by the responder
// and controller halves of the RDM (ANSI E1.20) stack: UIDs, the request/
// response header, PID/command-class constants, and checksum helpers.
package rdm

import (
	"fmt"

	"github.com/daedaluz/dmxrdm/driverr"
)

// UID is a 48-bit RDM device identifier: a 16-bit ESTA manufacturer code
// and a 32-bit device id, concatenated big-endian on the wire.
type UID struct {
	Manufacturer uint16
	Device       uint32
}

// BroadcastAll is the UID every responder on a line accepts as addressed
// to it.
var BroadcastAll = UID{Manufacturer: 0xFFFF, Device: 0xFFFFFFFF}

// ManufacturerBroadcast returns the broadcast UID scoped to one
// manufacturer (all-ones device field).
func ManufacturerBroadcast(mfg uint16) UID {
	return UID{Manufacturer: mfg, Device: 0xFFFFFFFF}
}

// IsBroadcast reports whether u addresses every responder, or every
// responder of a single manufacturer.
func (u UID) IsBroadcast() bool { return u.Device == 0xFFFFFFFF }

// Matches reports whether a responder whose own UID is self should
// accept a packet addressed to dest.
func (u UID) Matches(self UID) bool {
	if u == self {
		return true
	}
	if u == BroadcastAll {
		return true
	}
	return u.Device == 0xFFFFFFFF && u.Manufacturer == self.Manufacturer
}

// Bytes renders the UID as its 6-byte big-endian wire form.
func (u UID) Bytes() [6]byte {
	var b [6]byte
	b[0] = byte(u.Manufacturer >> 8)
	b[1] = byte(u.Manufacturer)
	b[2] = byte(u.Device >> 24)
	b[3] = byte(u.Device >> 16)
	b[4] = byte(u.Device >> 8)
	b[5] = byte(u.Device)
	return b
}

// ParseUID decodes a 6-byte big-endian wire form.
func ParseUID(b []byte) (UID, error) {
	if len(b) != 6 {
		return UID{}, driverr.New(driverr.InvalidArg, "uid must be 6 bytes, got %d", len(b))
	}
	return UID{
		Manufacturer: uint16(b[0])<<8 | uint16(b[1]),
		Device:       uint32(b[2])<<24 | uint32(b[3])<<16 | uint32(b[4])<<8 | uint32(b[5]),
	}, nil
}

// Uint64 packs the UID into the low 48 bits of a uint64, in the same
// big-endian bit order as the wire form, so Less/ordering comparisons can
// be done with plain integer comparison.
func (u UID) Uint64() uint64 {
	return uint64(u.Manufacturer)<<32 | uint64(u.Device)
}

// Less implements the spec's lexicographic ordering over the 48-bit
// concatenation — manufacturer first, then device.
func (u UID) Less(other UID) bool { return u.Uint64() < other.Uint64() }

// FlipEndian reverses the order of all six wire bytes; used by discovery's
// single workaround retry for responders that misencode their mute
// reply.
func (u UID) FlipEndian() UID {
	b := u.Bytes()
	var r [6]byte
	for i := range b {
		r[i] = b[len(b)-1-i]
	}
	flipped, _ := ParseUID(r[:])
	return flipped
}

func (u UID) String() string {
	return fmt.Sprintf("%04X:%08X", u.Manufacturer, u.Device)
}
