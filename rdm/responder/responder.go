// Package responder dispatches incoming RDM requests to per-PID
// handlers and assembles ACK/ACK_TIMER/NACK responses, including the
// DISC_UNIQUE_BRANCH Manchester-encoded discovery reply.
package responder

import (
	"github.com/charmbracelet/log"

	"github.com/daedaluz/dmxrdm/dmx/classify"
	"github.com/daedaluz/dmxrdm/driverr"
	"github.com/daedaluz/dmxrdm/rdm"
	"github.com/daedaluz/dmxrdm/rdm/param"
)

// Responder answers RDM requests addressed to one logical device on one
// port.
type Responder struct {
	UID    rdm.UID
	PortID byte
	Store  *param.Store
	Log    *log.Logger

	muted bool
}

// Muted reports whether this responder currently withholds
// DISC_UNIQUE_BRANCH replies (§4.4 step 7/8).
func (r *Responder) Muted() bool { return r.muted }

// Mute / Unmute implement the DISC_MUTE / DISC_UN_MUTE side effects.
func (r *Responder) Mute()   { r.muted = true }
func (r *Responder) Unmute() { r.muted = false }

// Handle processes one complete, checksum-valid RDM request packet and
// returns the response packet to transmit (nil, false if no reply is
// due: unaddressed, a non-discovery broadcast, or muted discovery).
func (r *Responder) Handle(reqBuf []byte) ([]byte, bool, error) {
	req, err := rdm.Decode(reqBuf)
	if err != nil {
		return nil, false, err
	}

	if !req.DestUID.Matches(r.UID) {
		return nil, false, nil
	}

	isDiscUniqueBranch := req.CC == rdm.CCDiscoveryCommand && req.PID == rdm.PIDDiscUniqueBranch
	broadcast := req.DestUID.IsBroadcast()
	if broadcast && !isDiscUniqueBranch {
		r.dispatchAndDrop(req)
		return nil, false, nil
	}

	if isDiscUniqueBranch {
		return r.handleDiscUniqueBranch(req)
	}

	if req.CC != rdm.CCGetCommand && req.CC != rdm.CCSetCommand && req.CC != rdm.CCDiscoveryCommand {
		return nil, false, driverr.New(driverr.InvalidResponse, "request has response-side command class 0x%02X", req.CC)
	}
	if req.SubDevice != 0 {
		return r.nackReply(req, rdm.NRSubDeviceOutOfRange), true, nil
	}

	def, ok := r.Store.Definition(req.PID)
	if !ok {
		return r.nackReply(req, rdm.NRUnknownPID), true, nil
	}
	if !def.Classes.Allows(req.CC) {
		return r.nackReply(req, rdm.NRUnsupportedCommandClass), true, nil
	}

	resp := r.invoke(req)
	return r.assemble(req, resp), true, nil
}

// dispatchAndDrop runs a broadcast request's side effects (e.g. a
// DISC_UN_MUTE, or a SET of DEVICE_LABEL) without building a reply, since broadcasts never get
// one except DISC_UNIQUE_BRANCH.
func (r *Responder) dispatchAndDrop(req rdm.Header) {
	if req.SubDevice != 0 {
		return
	}
	if _, ok := r.Store.Definition(req.PID); !ok {
		return
	}
	r.invoke(req)
}

func (r *Responder) invoke(req rdm.Header) param.Response {
	if h, ok := r.Store.Handler(req.PID); ok {
		return h(param.Request{Store: r.Store, PID: req.PID, CC: req.CC, Data: req.Data, SubDevice: req.SubDevice})
	}
	switch req.CC {
	case rdm.CCGetCommand:
		out := make([]byte, param.MaxGetSize)
		n, err := r.Store.Get(req.PID, out)
		if err != nil {
			return param.Nack(rdm.NRDataOutOfRange)
		}
		return param.Ack(out[:n])
	case rdm.CCSetCommand:
		if _, err := r.Store.SetAndQueue(req.PID, req.Data); err != nil {
			return param.Nack(rdm.NRDataOutOfRange)
		}
		return param.Ack(nil)
	}
	return param.Nack(rdm.NRUnsupportedCommandClass)
}

// handleDiscUniqueBranch implements §4.4 step 7/8: respond, BREAK-less
// and Manchester-encoded, only if unmuted and our UID falls in range.
func (r *Responder) handleDiscUniqueBranch(req rdm.Header) ([]byte, bool, error) {
	if r.muted {
		return nil, false, nil
	}
	if len(req.Data) != 12 {
		return nil, false, driverr.New(driverr.PacketSize, "disc_unique_branch pdl must be 12, got %d", len(req.Data))
	}
	lower, err := rdm.ParseUID(req.Data[0:6])
	if err != nil {
		return nil, false, err
	}
	upper, err := rdm.ParseUID(req.Data[6:12])
	if err != nil {
		return nil, false, err
	}
	if r.UID.Uint64() < lower.Uint64() || r.UID.Uint64() > upper.Uint64() {
		return nil, false, nil
	}
	return classify.EncodeDiscoveryResponse(r.UID.Bytes()), true, nil
}

func (r *Responder) nackReply(req rdm.Header, reason rdm.NackReason) []byte {
	reply := req.Reply()
	reply.PortOrResponseType = byte(rdm.ResponseNackReason)
	reply.MessageCount = r.messageCount()
	reply.Data = []byte{byte(reason >> 8), byte(reason)}
	buf, err := reply.Encode()
	if err != nil {
		return nil
	}
	return buf
}

func (r *Responder) messageCount() byte {
	n := r.Store.QueueLen()
	if n > 255 {
		n = 255
	}
	return byte(n)
}

// assemble turns a handler Response into the wire reply packet. An
// ACK_OVERFLOW is folded to ACK with truncation per the Open Questions
// decision: this responder never emits ACK_OVERFLOW.
func (r *Responder) assemble(req rdm.Header, resp param.Response) []byte {
	reply := req.Reply()
	reply.MessageCount = r.messageCount()
	switch resp.Kind {
	case param.RespAck, param.RespAckOverflow:
		data := resp.Data
		if len(data) > rdm.MaxPDL {
			data = data[:rdm.MaxPDL]
		}
		reply.PortOrResponseType = byte(rdm.ResponseAck)
		reply.Data = data
	case param.RespAckTimer:
		reply.PortOrResponseType = byte(rdm.ResponseAckTimer)
		reply.Data = []byte{byte(resp.TimerUnits >> 8), byte(resp.TimerUnits)}
	case param.RespNack:
		reply.PortOrResponseType = byte(rdm.ResponseNackReason)
		reply.Data = []byte{byte(resp.Reason >> 8), byte(resp.Reason)}
	}
	buf, err := reply.Encode()
	if err != nil {
		return nil
	}
	return buf
}
