package rdm

import (
	"github.com/daedaluz/dmxrdm/driverr"
)

// headerFixedLen is the byte count of every field up to and including
// the PDL byte, i.e. MessageLength = headerFixedLen + len(Data).
const headerFixedLen = 24

// Header is one RDM request or response, sans the trailing checksum
// (which Encode/Decode compute).
type Header struct {
	DestUID UID
	SrcUID  UID
	TN      byte
	// PortOrResponseType is the port-id on a request, ResponseType on a
	// response — same wire offset, different meaning by direction.
	PortOrResponseType byte
	MessageCount       byte
	SubDevice          uint16
	CC                 CommandClass
	PID                PID
	Data               []byte
}

// Encode serializes h into a complete wire packet (start code through
// checksum).
func (h Header) Encode() ([]byte, error) {
	if len(h.Data) > MaxPDL {
		return nil, driverr.New(driverr.PacketSize, "pdl %d exceeds max %d", len(h.Data), MaxPDL)
	}
	msgLen := headerFixedLen + len(h.Data)
	buf := make([]byte, 0, msgLen+2)
	buf = append(buf, StartCode, SubStartCode, byte(msgLen))
	dest := h.DestUID.Bytes()
	src := h.SrcUID.Bytes()
	buf = append(buf, dest[:]...)
	buf = append(buf, src[:]...)
	buf = append(buf, h.TN, h.PortOrResponseType, h.MessageCount)
	buf = append(buf, byte(h.SubDevice>>8), byte(h.SubDevice))
	buf = append(buf, byte(h.CC))
	buf = append(buf, byte(h.PID>>8), byte(h.PID))
	buf = append(buf, byte(len(h.Data)))
	buf = append(buf, h.Data...)
	return AppendChecksum(buf), nil
}

// Decode parses a complete wire packet into a Header. It validates the
// sub-start-code, declared message length, and checksum, matching the
// classifier's own validation so a packet that reached here via the
// engine decodes without surprises.
func Decode(buf []byte) (Header, error) {
	if len(buf) < headerFixedLen+2 {
		return Header{}, driverr.New(driverr.PacketSize, "packet too short: %d bytes", len(buf))
	}
	if buf[0] != StartCode {
		return Header{}, driverr.New(driverr.InvalidArg, "bad start code 0x%02X", buf[0])
	}
	if buf[1] != SubStartCode {
		return Header{}, driverr.New(driverr.InvalidArg, "bad sub-start code 0x%02X", buf[1])
	}
	msgLen := int(buf[2])
	if len(buf) < msgLen+2 {
		return Header{}, driverr.New(driverr.PacketSize, "declared length %d exceeds buffer %d", msgLen, len(buf))
	}
	pdl := msgLen - headerFixedLen
	if pdl < 0 || headerFixedLen+pdl > msgLen {
		return Header{}, driverr.New(driverr.PacketSize, "inconsistent message length %d", msgLen)
	}
	body := buf[:msgLen]
	wantSum := Checksum(body)
	gotSum := uint16(buf[msgLen])<<8 | uint16(buf[msgLen+1])
	if wantSum != gotSum {
		return Header{}, driverr.New(driverr.InvalidCRC, "checksum mismatch: want 0x%04X got 0x%04X", wantSum, gotSum)
	}

	dest, err := ParseUID(buf[3:9])
	if err != nil {
		return Header{}, err
	}
	src, err := ParseUID(buf[9:15])
	if err != nil {
		return Header{}, err
	}
	h := Header{
		DestUID:            dest,
		SrcUID:             src,
		TN:                 buf[15],
		PortOrResponseType: buf[16],
		MessageCount:       buf[17],
		SubDevice:          uint16(buf[18])<<8 | uint16(buf[19]),
		CC:                 CommandClass(buf[20]),
		PID:                PID(uint16(buf[21])<<8 | uint16(buf[22])),
	}
	if pdl > 0 {
		h.Data = append([]byte(nil), buf[24:24+pdl]...)
	}
	return h, nil
}

// Reply builds the response header for this request: UIDs swapped, TN
// copied, port_id/message_count/response filled in by the caller, CC
// advanced to the response encoding.
func (h Header) Reply() Header {
	return Header{
		DestUID: h.SrcUID,
		SrcUID:  h.DestUID,
		TN:      h.TN,
		CC:      h.CC.Response(),
		PID:     h.PID,
	}
}
