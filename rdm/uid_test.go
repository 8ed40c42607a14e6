package rdm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUIDBytesParseRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		u := UID{
			Manufacturer: uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "mfg")),
			Device:       uint32(rapid.IntRange(0, 0xFFFFFFFF).Draw(t, "dev")),
		}
		b := u.Bytes()
		got, err := ParseUID(b[:])
		require.NoError(t, err)
		require.Equal(t, u, got)
	})
}

func TestParseUIDWrongLength(t *testing.T) {
	_, err := ParseUID([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestIsBroadcast(t *testing.T) {
	require.True(t, BroadcastAll.IsBroadcast())
	require.True(t, ManufacturerBroadcast(0x1234).IsBroadcast())
	require.False(t, UID{Manufacturer: 1, Device: 1}.IsBroadcast())
}

func TestMatchesExact(t *testing.T) {
	self := UID{Manufacturer: 0x1234, Device: 0x5}
	require.True(t, self.Matches(self))
}

func TestMatchesBroadcastAll(t *testing.T) {
	self := UID{Manufacturer: 0x1234, Device: 0x5}
	require.True(t, BroadcastAll.Matches(self))
}

func TestMatchesManufacturerBroadcast(t *testing.T) {
	self := UID{Manufacturer: 0x1234, Device: 0x5}
	require.True(t, ManufacturerBroadcast(0x1234).Matches(self))
	require.False(t, ManufacturerBroadcast(0x9999).Matches(self))
}

func TestMatchesUnrelatedUIDFails(t *testing.T) {
	self := UID{Manufacturer: 0x1234, Device: 0x5}
	other := UID{Manufacturer: 0x1234, Device: 0x6}
	require.False(t, other.Matches(self))
}

func TestUIDLessOrdersManufacturerFirst(t *testing.T) {
	a := UID{Manufacturer: 1, Device: 0xFFFFFFFF}
	b := UID{Manufacturer: 2, Device: 0}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
}

func TestUIDLessOrdersDeviceWithinSameManufacturer(t *testing.T) {
	a := UID{Manufacturer: 1, Device: 5}
	b := UID{Manufacturer: 1, Device: 6}
	require.True(t, a.Less(b))
}

func TestUint64RoundTripsThroughOrdering(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := UID{Manufacturer: uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "m1")), Device: uint32(rapid.IntRange(0, 0xFFFFFFFF).Draw(t, "d1"))}
		b := UID{Manufacturer: uint16(rapid.IntRange(0, 0xFFFF).Draw(t, "m2")), Device: uint32(rapid.IntRange(0, 0xFFFFFFFF).Draw(t, "d2"))}
		require.Equal(t, a.Uint64() < b.Uint64(), a.Less(b))
	})
}

func TestFlipEndianReversesByteOrder(t *testing.T) {
	u := UID{Manufacturer: 0x1234, Device: 0x56789ABC}
	flipped := u.FlipEndian()
	b := u.Bytes()
	fb := flipped.Bytes()
	for i := range b {
		require.Equal(t, b[i], fb[len(fb)-1-i])
	}
	require.Equal(t, u, flipped.FlipEndian())
}

func TestUIDString(t *testing.T) {
	u := UID{Manufacturer: 0x7FF0, Device: 0x00000001}
	require.Equal(t, "7FF0:00000001", u.String())
}
