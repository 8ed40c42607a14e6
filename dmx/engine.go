package dmx

import (
	"time"

	"github.com/daedaluz/dmxrdm/dmx/classify"
	"github.com/daedaluz/dmxrdm/driverr"
)

// readTimeout bounds each ReadTimeout call so the reader goroutine wakes
// often enough to notice stopReader being closed even when the bus is
// silent.
const readTimeout = 200 * time.Millisecond

const readChunk = 1024

// runReader feeds every received byte and marker into the receive state
// (rxState/head/buf); it is the host-goroutine stand-in for the original's
// UART RX interrupt handler.
func (p *Port) runReader() {
	defer close(p.readerDone)

	raw := make([]byte, 0, readChunk)
	tmp := make([]byte, readChunk)
	events := make([]rxEvent, 0, 64)

	for {
		select {
		case <-p.stopReader:
			return
		default:
		}

		n, err := p.uart.ReadTimeout(tmp, readTimeout)
		if err != nil || n == 0 {
			// Timeout (err != nil, n == 0) just loops back to check
			// stopReader; a real I/O error does the same since the port
			// is being torn down or will be on the next Delete.
			continue
		}
		raw = append(raw, tmp[:n]...)

		events = events[:0]
		var consumed int
		events, consumed = decodeParmrk(events, raw)
		raw = raw[:copy(raw, raw[consumed:])]

		if len(events) == 0 {
			continue
		}

		p.mu.Lock()
		for _, ev := range events {
			p.handleRXEvent(ev)
		}
		p.mu.Unlock()
	}
}

// handleRXEvent applies one decoded byte/marker event to receiver state.
// Caller holds p.mu.
func (p *Port) handleRXEvent(ev rxEvent) {
	if !p.flags.has(FlagEnabled) {
		return
	}

	switch ev.kind {
	case rxBreak:
		if p.state == stateReceiving && p.head >= 0 {
			p.rxSize = p.head
		}
		p.state = stateReceiving
		p.head = 0
		p.overflowed = false
	case rxFramingErr:
		if p.state != stateReceiving {
			return
		}
		p.completeLocked(p.head, classify.KindUnknown, driverr.New(driverr.ImproperSlot, "framing error at slot %d", p.head))
		p.state = statePostPacket
	case rxData:
		p.handleRXData(ev.data)
	}
}

func (p *Port) handleRXData(b byte) {
	if p.state != stateReceiving {
		return
	}
	if p.head < 0 {
		return
	}
	if p.head >= len(p.buf) {
		p.overflowed = true
		p.completeLocked(len(p.buf), classify.KindUnknown, driverr.New(driverr.DataOverflow, "packet exceeds buffer capacity %d", len(p.buf)))
		p.state = statePostPacket
		return
	}

	p.buf[p.head] = b
	p.head++
	p.lastSlotTS = nowUS()

	result := classify.Classify(p.buf, p.head, p.rxSize)
	if result.Err != nil {
		p.completeLocked(p.head, result.Kind, result.Err)
		p.state = statePostPacket
		return
	}
	if result.Complete {
		p.completeLocked(p.head, result.Kind, nil)
		p.state = statePostPacket
	}
}

// completeLocked snapshots the just-finished packet into p.snapshot and
// signals any blocked Receive. Caller holds p.mu. Copying now — at
// completion — rather than lazily when Receive eventually reads it is
// what keeps a second packet's BREAK from corrupting the metadata of an
// unconsumed first one. While HAS_DATA is still set, later completions
// leave the pending snapshot untouched, so Receive reports the first one.
func (p *Port) completeLocked(n int, kind classify.Kind, err error) {
	if p.flags.has(FlagHasData) {
		return
	}
	if n > len(p.snapshot) {
		n = len(p.snapshot)
	}
	copy(p.snapshot, p.buf[:n])
	p.snapLen = n
	p.snapKind = kind
	p.snapErr = err
	p.flags |= FlagHasData
	p.cond.Broadcast()
}
