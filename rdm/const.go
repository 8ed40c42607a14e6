package rdm

// CommandClass is the RDM command-class byte; a response's class is
// always its request's class plus one (§4.4 step 6).
type CommandClass byte

const (
	CCDiscoveryCommand         CommandClass = 0x10
	CCDiscoveryCommandResponse CommandClass = 0x11
	CCGetCommand               CommandClass = 0x20
	CCGetCommandResponse       CommandClass = 0x21
	CCSetCommand               CommandClass = 0x30
	CCSetCommandResponse       CommandClass = 0x31
)

// Response returns the response-side encoding of a request command
// class.
func (c CommandClass) Response() CommandClass { return c + 1 }

// IsResponse reports whether c is already a response-side class.
func (c CommandClass) IsResponse() bool { return c&0x01 == 1 }

// ResponseType occupies the port-id/response-type header byte on a
// response packet.
type ResponseType byte

const (
	ResponseAck         ResponseType = 0x00
	ResponseAckTimer    ResponseType = 0x01
	ResponseNackReason  ResponseType = 0x02
	ResponseAckOverflow ResponseType = 0x03
)

// NackReason is the 16-bit payload of a NACK_REASON response.
type NackReason uint16

const (
	NRUnknownPID                NackReason = 0x0000
	NRFormatError                NackReason = 0x0001
	NRHardwareFault               NackReason = 0x0002
	NRProxyReject                NackReason = 0x0003
	NRWriteProtect                NackReason = 0x0004
	NRUnsupportedCommandClass     NackReason = 0x0005
	NRDataOutOfRange              NackReason = 0x0006
	NRBufferFull                  NackReason = 0x0007
	NRPacketSizeUnsupported       NackReason = 0x0008
	NRSubDeviceOutOfRange         NackReason = 0x0009
	NRProxyBufferFull             NackReason = 0x000A
)

// PID is a 16-bit RDM parameter identifier.
type PID uint16

// Parameter IDs. responder.RegisterRequired installs the always-registered
// subset; the rest are named here for callers and are not registered by
// default.
const (
	PIDDiscUniqueBranch          PID = 0x0001
	PIDDiscMute                  PID = 0x0002
	PIDDiscUnMute                PID = 0x0003
	PIDSupportedParameters       PID = 0x0050
	PIDParameterDescription      PID = 0x0051
	PIDDeviceInfo                PID = 0x0060
	PIDProductDetailIDList       PID = 0x0070
	PIDDeviceModelDescription    PID = 0x0080
	PIDManufacturerLabel         PID = 0x0081
	PIDDeviceLabel               PID = 0x0082
	PIDFactoryDefaults           PID = 0x0090
	PIDDMXPersonality            PID = 0x00E0
	PIDDMXPersonalityDescription PID = 0x00E1
	PIDDMXStartAddress           PID = 0x00F0
	PIDSlotInfo                  PID = 0x0120
	PIDSlotDescription           PID = 0x0121
	PIDSoftwareVersionLabel      PID = 0x00C0
	PIDIdentifyDevice            PID = 0x1000
	PIDRealTimeClock             PID = 0x0400
	PIDResetDevice               PID = 0x1001
)

// Data type codes used in the parameter schema and PARAMETER_DESCRIPTION
// replies.
const (
	DSNotDefined = 0x00
	DSBitField   = 0x01
	DSASCII      = 0x02
	DSUnsignedByte = 0x03
	DSSignedByte   = 0x04
	DSUnsignedWord = 0x05
	DSSignedWord   = 0x06
	DSUnsignedDword = 0x07
	DSSignedDword   = 0x08
)

const (
	StartCode    byte = 0xCC
	SubStartCode byte = 0x01

	// MaxPDL is the maximum parameter-data length a single RDM message
	// may carry.
	MaxPDL = 231
)
