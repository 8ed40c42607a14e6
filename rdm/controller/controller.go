// Package controller implements the synchronous RDM request/response
// primitives and the ANSI E1.20 discovery tree search, built entirely on
// top of the public dmx.Port Send/Receive API.
package controller

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/daedaluz/dmxrdm/dmx"
	"github.com/daedaluz/dmxrdm/dmx/classify"
	"github.com/daedaluz/dmxrdm/driverr"
	"github.com/daedaluz/dmxrdm/rdm"
)

const (
	requestTimeout     = 23 * time.Millisecond
	broadcastGuardTime = 176*time.Microsecond + 3*time.Millisecond
	ackTimerUnit       = 100 * time.Millisecond
	maxRetries         = 3
)

// Controller drives discovery and request/response exchanges for one
// RDM client identity over one port.
type Controller struct {
	Port *dmx.Port
	UID  rdm.UID
	Log  *log.Logger
}

// send transmits a fully encoded packet and, if expectResponse, waits
// for the reply, returning its raw bytes and classifier kind.
func (c *Controller) send(ctx context.Context, frame []byte, expectResponse, discoveryResponse bool, timeout time.Duration) ([]byte, classify.Kind, error) {
	err := c.Port.Send(ctx, frame, dmx.SendOptions{ExpectResponse: expectResponse, DiscoveryResponse: discoveryResponse})
	if err != nil {
		return nil, classify.KindUnknown, err
	}
	if !expectResponse {
		return nil, classify.KindUnknown, nil
	}
	ev, data, err := c.Port.Receive(ctx, timeout)
	if err != nil {
		return nil, classify.KindUnknown, err
	}
	return data, ev.Kind, ev.Err
}

// RDMRequest sends header (TN and SrcUID filled in by this call) and, for
// a non-broadcast request, waits for and decodes the response, honouring
// a single ACK_TIMER deferral by re-polling the same PID/CC (§7).
func (c *Controller) RDMRequest(ctx context.Context, header rdm.Header) (rdm.Header, error) {
	header.SrcUID = c.UID
	header.TN = c.Port.NextTN()

	broadcast := header.DestUID.IsBroadcast()
	timeout := requestTimeout
	if broadcast {
		timeout = broadcastGuardTime
	}

	resp, err := c.exchange(ctx, header, timeout, !broadcast)
	if err != nil {
		return rdm.Header{}, err
	}
	if broadcast {
		// No reply is due; hold off for the responders' guard time.
		sleep(ctx, timeout)
		return rdm.Header{}, nil
	}

	if rdm.ResponseType(resp.PortOrResponseType) == rdm.ResponseAckTimer {
		wait := time.Duration(0)
		if len(resp.Data) == 2 {
			wait = time.Duration(uint16(resp.Data[0])<<8|uint16(resp.Data[1])) * ackTimerUnit
		}
		sleep(ctx, wait)
		resp, err = c.exchange(ctx, header, timeout, true)
		if err != nil {
			return rdm.Header{}, err
		}
		if rdm.ResponseType(resp.PortOrResponseType) == rdm.ResponseAckTimer {
			return rdm.Header{}, driverr.New(driverr.Timeout, "second ACK_TIMER deferral not honoured")
		}
	}

	if rdm.ResponseType(resp.PortOrResponseType) == rdm.ResponseAckOverflow {
		return rdm.Header{}, driverr.New(driverr.InvalidResponse, "unexpected ACK_OVERFLOW from responder")
	}
	if rdm.ResponseType(resp.PortOrResponseType) == rdm.ResponseNackReason {
		reason := rdm.NackReason(0)
		if len(resp.Data) == 2 {
			reason = rdm.NackReason(uint16(resp.Data[0])<<8 | uint16(resp.Data[1]))
		}
		return resp, driverr.New(driverr.InvalidResponse, "NACK reason 0x%04X", reason)
	}
	return resp, nil
}

// exchange sends header up to maxRetries times, retrying on any failure
// (timeout, send error, non-RDM or undecodable reply), and decodes the
// first successfully received RDM reply.
func (c *Controller) exchange(ctx context.Context, header rdm.Header, timeout time.Duration, expectResponse bool) (rdm.Header, error) {
	frame, err := header.Encode()
	if err != nil {
		return rdm.Header{}, err
	}
	var lastErr error
	attempts := 1
	if expectResponse {
		attempts = maxRetries
	}
	for i := 0; i < attempts; i++ {
		data, kind, err := c.send(ctx, frame, expectResponse, false, timeout)
		if err != nil {
			lastErr = err
			continue
		}
		if !expectResponse {
			return rdm.Header{}, nil
		}
		if kind != classify.KindRDM {
			lastErr = driverr.New(driverr.InvalidResponse, "expected RDM reply, got kind %d", kind)
			continue
		}
		resp, derr := rdm.Decode(data)
		if derr != nil {
			lastErr = derr
			continue
		}
		return resp, nil
	}
	if lastErr == nil {
		lastErr = driverr.New(driverr.Timeout, "no response after %d attempts", attempts)
	}
	return rdm.Header{}, lastErr
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
