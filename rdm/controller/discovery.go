package controller

import (
	"context"
	"errors"

	"github.com/daedaluz/dmxrdm/dmx/classify"
	"github.com/daedaluz/dmxrdm/driverr"
	"github.com/daedaluz/dmxrdm/rdm"
)

// maxStackDepth bounds the interval stack per §4.5 ("max depth 49").
const maxStackDepth = 49

type interval struct {
	lo, hi uint64
}

// Discover runs the ANSI E1.20 tree-search discovery algorithm,
// invoking found for every responder found with the UID that was muted
// (the byte-order-flipped UID when only the flipped mute succeeded). The
// mute reply's data is not read, so a binding UID in it is not reported.
func (c *Controller) Discover(ctx context.Context, found func(rdm.UID)) error {
	if err := c.unmuteAll(ctx); err != nil {
		return err
	}

	stack := []interval{{lo: 0, hi: rdm.BroadcastAll.Uint64() - 1}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.lo == cur.hi {
			uid := uidFromUint64(cur.lo)
			if reported, ok := c.tryMute(ctx, uid); ok {
				found(reported)
			}
			continue
		}

		lo, hi := uidFromUint64(cur.lo), uidFromUint64(cur.hi)
		c.resolveRange(ctx, cur, lo, hi, &stack, found)
	}
	return nil
}

// resolveRange implements one pass of §4.5's "else" branch: up to
// maxRetries attempts at DISC_UNIQUE_BRANCH(lo,hi). A clean single-UID
// reply is muted and the same range re-branched ("quick-finds") until
// silence; a collision splits the range onto stack; silence across all
// attempts means the range is empty.
func (c *Controller) resolveRange(ctx context.Context, cur interval, lo, hi rdm.UID, stack *[]interval, found func(rdm.UID)) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		kind, uid, collision, err := c.branch(ctx, lo, hi)
		if err != nil {
			continue
		}
		if collision {
			c.split(cur, stack)
			return
		}
		if kind == classify.KindUnknown {
			continue // silence this attempt; try again
		}

		// Exactly one responder answered cleanly: mute it, then keep
		// re-branching the same range until it goes silent or collides.
		if reported, ok := c.tryMute(ctx, uid); ok {
			found(reported)
		}
		for quick := 0; quick < maxRetries; quick++ {
			k2, u2, coll2, err2 := c.branch(ctx, lo, hi)
			if err2 != nil || (!coll2 && k2 == classify.KindUnknown) {
				return
			}
			if coll2 {
				c.split(cur, stack)
				return
			}
			if reported, ok := c.tryMute(ctx, u2); ok {
				found(reported)
			}
		}
		return
	}
}

func (c *Controller) split(cur interval, stack *[]interval) {
	mid := cur.lo + (cur.hi-cur.lo)/2
	if len(*stack)+2 > maxStackDepth {
		return
	}
	*stack = append(*stack, interval{lo: mid + 1, hi: cur.hi})
	*stack = append(*stack, interval{lo: cur.lo, hi: mid})
}

func (c *Controller) unmuteAll(ctx context.Context) error {
	header := rdm.Header{
		DestUID: rdm.BroadcastAll,
		CC:      rdm.CCDiscoveryCommand,
		PID:     rdm.PIDDiscUnMute,
	}
	_, err := c.RDMRequest(ctx, header)
	return err
}

// branch sends DISC_UNIQUE_BRANCH(lo,hi) once and classifies the
// outcome: a clean single-UID reply, a collision (checksum/framing
// error — multiple responders), or silence.
func (c *Controller) branch(ctx context.Context, lo, hi rdm.UID) (classify.Kind, rdm.UID, bool, error) {
	loBytes, hiBytes := lo.Bytes(), hi.Bytes()
	data := append(append([]byte{}, loBytes[:]...), hiBytes[:]...)
	header := rdm.Header{
		DestUID: rdm.BroadcastAll,
		SrcUID:  c.UID,
		CC:      rdm.CCDiscoveryCommand,
		PID:     rdm.PIDDiscUniqueBranch,
		Data:    data,
	}
	header.TN = c.Port.NextTN()
	frame, err := header.Encode()
	if err != nil {
		return classify.KindUnknown, rdm.UID{}, false, err
	}

	raw, kind, evErr := c.send(ctx, frame, true, true, requestTimeout)
	if evErr != nil {
		if errors.Is(evErr, driverr.ErrTimeout) {
			// Plain silence: nothing in range answered this attempt.
			return classify.KindUnknown, rdm.UID{}, false, nil
		}
		// Checksum mismatch or framing error on a discovery response
		// means more than one responder answered within range.
		return classify.KindUnknown, rdm.UID{}, true, nil
	}
	if err != nil {
		return classify.KindUnknown, rdm.UID{}, false, err
	}
	if kind != classify.KindRDMDiscoveryResponse {
		return classify.KindUnknown, rdm.UID{}, false, nil
	}
	decoded, ok := classify.ExtractDiscoveryUID(raw)
	if !ok {
		return classify.KindUnknown, rdm.UID{}, true, nil
	}
	uid, uerr := rdm.ParseUID(decoded[:6])
	if uerr != nil {
		return classify.KindUnknown, rdm.UID{}, true, nil
	}
	return classify.KindRDMDiscoveryResponse, uid, false, nil
}

// tryMute sends DISC_MUTE up to maxRetries times, falling back to a
// single byte-order-flipped retry for responders that misencode their
// UID (§4.5, §9 Open Questions).
func (c *Controller) tryMute(ctx context.Context, uid rdm.UID) (rdm.UID, bool) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		if c.sendMute(ctx, uid) {
			return uid, true
		}
	}
	flipped := uid.FlipEndian()
	if c.sendMute(ctx, flipped) {
		return flipped, true
	}
	return rdm.UID{}, false
}

func (c *Controller) sendMute(ctx context.Context, uid rdm.UID) bool {
	header := rdm.Header{
		DestUID: uid,
		CC:      rdm.CCDiscoveryCommand,
		PID:     rdm.PIDDiscMute,
	}
	_, err := c.RDMRequest(ctx, header)
	return err == nil
}

func uidFromUint64(v uint64) rdm.UID {
	return rdm.UID{Manufacturer: uint16(v >> 32), Device: uint32(v)}
}
