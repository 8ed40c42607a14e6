package rdm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/daedaluz/dmxrdm/driverr"
)

func sampleHeader(data []byte) Header {
	return Header{
		DestUID:            UID{Manufacturer: 0x7FF0, Device: 1},
		SrcUID:             UID{Manufacturer: 0x7FF0, Device: 2},
		TN:                 7,
		PortOrResponseType: 1,
		MessageCount:       0,
		SubDevice:          0,
		CC:                 CCGetCommand,
		PID:                PIDDeviceInfo,
		Data:               data,
	}
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := sampleHeader([]byte{0xAA, 0xBB, 0xCC})
	buf, err := h.Encode()
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHeaderEncodeDecodeRoundTripNoData(t *testing.T) {
	h := sampleHeader(nil)
	buf, err := h.Encode()
	require.NoError(t, err)
	got, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, h.DestUID, got.DestUID)
	require.Empty(t, got.Data)
}

func TestHeaderEncodeRejectsOversizedData(t *testing.T) {
	h := sampleHeader(make([]byte, MaxPDL+1))
	_, err := h.Encode()
	require.Error(t, err)
}

func TestDecodeRejectsBadStartCode(t *testing.T) {
	h := sampleHeader(nil)
	buf, err := h.Encode()
	require.NoError(t, err)
	buf[0] = 0x00
	_, err = Decode(buf)
	require.Error(t, err)
}

func TestDecodeRejectsBadSubStartCode(t *testing.T) {
	h := sampleHeader(nil)
	buf, err := h.Encode()
	require.NoError(t, err)
	buf[1] = 0x02
	_, err = Decode(buf)
	require.Error(t, err)
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	h := sampleHeader([]byte{1, 2})
	buf, err := h.Encode()
	require.NoError(t, err)
	buf[len(buf)-1] ^= 0xFF
	_, err = Decode(buf)
	require.ErrorIs(t, err, driverr.ErrInvalidCRC)
}

func TestDecodeRejectsTruncatedPacket(t *testing.T) {
	_, err := Decode(make([]byte, 10))
	require.Error(t, err)
}

func TestDecodeRejectsDeclaredLengthBeyondBuffer(t *testing.T) {
	h := sampleHeader(nil)
	buf, err := h.Encode()
	require.NoError(t, err)
	buf[2] = 250 // declare far more than the buffer actually holds
	_, err = Decode(buf)
	require.Error(t, err)
}

func TestHeaderReplySwapsUIDsAndAdvancesCC(t *testing.T) {
	h := sampleHeader([]byte{1})
	reply := h.Reply()
	require.Equal(t, h.SrcUID, reply.DestUID)
	require.Equal(t, h.DestUID, reply.SrcUID)
	require.Equal(t, h.TN, reply.TN)
	require.Equal(t, CCGetCommandResponse, reply.CC)
}

func TestHeaderRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, MaxPDL).Draw(t, "n")
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(rapid.IntRange(0, 255).Draw(t, "b"))
		}
		h := sampleHeader(data)
		h.TN = byte(rapid.IntRange(0, 255).Draw(t, "tn"))
		buf, err := h.Encode()
		require.NoError(t, err)
		got, err := Decode(buf)
		require.NoError(t, err)
		require.Equal(t, h.TN, got.TN)
		require.Equal(t, h.Data, got.Data)
	})
}
