package classify

import "errors"

var (
	errChecksum        = errors.New("classify: checksum mismatch")
	errPacketSize      = errors.New("classify: packet size exceeds declared length")
	errPreambleTooLong = errors.New("classify: discovery preamble too long")
	errMalformed       = errors.New("classify: malformed discovery response")
)

// ErrChecksum reports a checksum mismatch on an otherwise complete packet.
var ErrChecksum = errChecksum

// ErrPacketSize reports more bytes arrived than the declared RDM length.
var ErrPacketSize = errPacketSize

// ErrPreambleTooLong reports a discovery response preamble of 8+ bytes.
var ErrPreambleTooLong = errPreambleTooLong

// ErrMalformed reports a discovery response missing its delimiter.
var ErrMalformed = errMalformed
