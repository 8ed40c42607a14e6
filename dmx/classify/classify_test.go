package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func rdmPacket(data []byte) []byte {
	buf := []byte{RDMStartCode, RDMSubStartCode, byte(24 + len(data))}
	buf = append(buf, make([]byte, 20)...) // dest/src/tn/port/mcount/subdevice/cc/pid
	buf = append(buf, byte(len(data)))
	buf = append(buf, data...)
	var sum uint16
	for _, b := range buf {
		sum += uint16(b)
	}
	return append(buf, byte(sum>>8), byte(sum))
}

func TestClassifyEmptyBuffer(t *testing.T) {
	r := Classify([]byte{0, 0, 0}, 0, 10)
	require.False(t, r.Complete)
	require.Equal(t, KindUnknown, r.Kind)
}

func TestClassifyPlainDMXCompletesAtRxSize(t *testing.T) {
	buf := make([]byte, 20)
	for head := 1; head < 10; head++ {
		r := Classify(buf, head, 10)
		require.False(t, r.Complete, "head=%d", head)
	}
	r := Classify(buf, 10, 10)
	require.True(t, r.Complete)
	require.Equal(t, KindDMX, r.Kind)
}

func TestClassifyRDMIncompleteUntilDeclaredLength(t *testing.T) {
	pkt := rdmPacket([]byte{0xAA, 0xBB})
	for head := 1; head < len(pkt); head++ {
		r := Classify(pkt, head, 1000)
		require.False(t, r.Complete, "head=%d of %d", head, len(pkt))
	}
	r := Classify(pkt, len(pkt), 1000)
	require.True(t, r.Complete)
	require.Equal(t, KindRDM, r.Kind)
	require.NoError(t, r.Err)
}

func TestClassifyRDMBadChecksum(t *testing.T) {
	pkt := rdmPacket(nil)
	pkt[len(pkt)-1] ^= 0xFF
	r := Classify(pkt, len(pkt), 1000)
	require.True(t, r.Complete)
	require.ErrorIs(t, r.Err, ErrChecksum)
}

func TestClassifyRDMOverrun(t *testing.T) {
	pkt := rdmPacket(nil)
	pkt = append(pkt, 0x00) // one byte more than the declared length
	r := Classify(pkt, len(pkt), 1000)
	require.True(t, r.Complete)
	require.ErrorIs(t, r.Err, ErrPacketSize)
}

func TestClassifyFirstByteRDMStartCodeButNotSubStart(t *testing.T) {
	// buf[0] == RDMStartCode but buf[1] isn't the RDM sub-start code:
	// this is an ordinary DMX packet that happens to start with 0xCC.
	buf := make([]byte, 10)
	buf[0] = RDMStartCode
	buf[1] = 0x99
	r := Classify(buf, 2, 10)
	require.Equal(t, KindDMX, r.Kind)
}

func TestClassifyDiscoveryResponseRoundTrip(t *testing.T) {
	uid := [6]byte{0x7F, 0xF0, 0x01, 0x02, 0x03, 0x04}
	// EncodeDiscoveryResponse's frame already carries the mandatory
	// delimiter; prepend a couple of extra 0xFE preamble bytes, which a
	// conforming receiver must also tolerate.
	pkt := append([]byte{RDMPreamble, RDMPreamble}, EncodeDiscoveryResponse(uid)...)

	for head := 1; head < len(pkt); head++ {
		r := Classify(pkt, head, 1000)
		require.False(t, r.Complete, "head=%d", head)
	}
	r := Classify(pkt, len(pkt), 1000)
	require.True(t, r.Complete)
	require.Equal(t, KindRDMDiscoveryResponse, r.Kind)
	require.NoError(t, r.Err)

	decoded, ok := ExtractDiscoveryUID(pkt)
	require.True(t, ok)
	require.Equal(t, uid, [6]byte(decoded[:6]))
}

func TestClassifyDiscoveryResponsePreambleLengthsAllDecode(t *testing.T) {
	uid := [6]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	frame := EncodeDiscoveryResponse(uid)
	for n := 0; n <= MaxPreambleBytes; n++ {
		preamble := make([]byte, n)
		for i := range preamble {
			preamble[i] = RDMPreamble
		}
		pkt := append(preamble, frame...)
		r := Classify(pkt, len(pkt), 1000)
		require.True(t, r.Complete, "preamble=%d", n)
		require.Equal(t, KindRDMDiscoveryResponse, r.Kind)
		require.NoError(t, r.Err, "preamble=%d", n)
	}
}

func TestClassifyDiscoveryResponsePreambleTooLong(t *testing.T) {
	pkt := make([]byte, MaxPreambleBytes+2)
	for i := range pkt {
		pkt[i] = RDMPreamble
	}
	r := Classify(pkt, len(pkt), 1000)
	require.True(t, r.Complete)
	require.ErrorIs(t, r.Err, ErrPreambleTooLong)
}

func TestClassifyDiscoveryResponseChecksumMismatch(t *testing.T) {
	uid := [6]byte{1, 2, 3, 4, 5, 6}
	frame := EncodeDiscoveryResponse(uid)
	frame[1] ^= 0xFF // corrupt a UID-encoding byte, after the delimiter
	r := Classify(frame, len(frame), 1000)
	require.True(t, r.Complete)
	require.ErrorIs(t, r.Err, ErrChecksum)
}

func TestDecodeDiscoveryResponseWrongLength(t *testing.T) {
	_, ok := DecodeDiscoveryResponse([]byte{0x01, 0x02})
	require.False(t, ok)
}

func TestEncodeDiscoveryResponseStartsWithDelimiter(t *testing.T) {
	frame := EncodeDiscoveryResponse([6]byte{1, 2, 3, 4, 5, 6})
	require.Equal(t, byte(RDMDelimiter), frame[0])
	require.Len(t, frame, 1+discRespTrailerLen)
}

func TestEncodeDecodeDiscoveryResponseRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var uid [6]byte
		for i := range uid {
			uid[i] = byte(rapid.IntRange(0, 255).Draw(t, "byte"))
		}
		frame := EncodeDiscoveryResponse(uid)
		decoded, ok := DecodeDiscoveryResponse(frame[1:])
		require.True(t, ok)
		require.Equal(t, uid, [6]byte(decoded[:6]))

		decoded, ok = ExtractDiscoveryUID(frame)
		require.True(t, ok)
		require.Equal(t, uid, [6]byte(decoded[:6]))
	})
}

func TestManchesterEncodingPreservesBothPolaritiesPerBit(t *testing.T) {
	// Every encoded byte pair must have one copy carrying the even-bit
	// mask and one carrying the odd-bit mask, regardless of the original
	// byte's value, since the decoder recovers bits from (lo&0x55)|(hi&0xAA).
	rapid.Check(t, func(t *rapid.T) {
		b := byte(rapid.IntRange(0, 255).Draw(t, "b"))
		lo := b | 0xAA
		hi := b | 0x55
		recovered := (lo & 0x55) | (hi & 0xAA)
		require.Equal(t, b, recovered)
	})
}
