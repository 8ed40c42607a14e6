// Package dmx implements the line-level DMX512/RDM framing engine: BREAK/
// MAB/slot generation and detection, timing-window enforcement, and
// at-most-one-reader packet handoff. It is the host-side (goroutine and
// timer driven) equivalent of the original interrupt-driven state
// machine.
package dmx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/daedaluz/dmxrdm/driverr"
	"github.com/daedaluz/dmxrdm/dmx/classify"
	"github.com/daedaluz/dmxrdm/serial"
	"github.com/daedaluz/dmxrdm/sniffer"
)

// rxState is the receiver's internal sub-state; it is distinct from the
// externally visible Flags, which track send/idle/data-ready status.
type rxState int

const (
	stateWaitBreak rxState = iota
	stateReceiving
	statePostPacket
)

// Event describes one completed (or failed) packet handed to a Receive
// caller.
type Event struct {
	Size int
	Kind classify.Kind
	Err  error
}

// SendOptions tells the engine what to do once transmission completes.
type SendOptions struct {
	// ExpectResponse keeps SENDING asserted and turns the bus around to
	// receive, instead of immediately going idle. Set for non-broadcast
	// RDM GET/SET and for discovery commands.
	ExpectResponse bool
	// DiscoveryResponse means the expected reply has no BREAK (the
	// Manchester-encoded DISC_UNIQUE_BRANCH reply), so the receiver must
	// start in the "receiving" state at head 0 rather than waiting for a
	// BREAK.
	DiscoveryResponse bool
	// SkipBreak transmits frame with no BREAK/MAB at all — used by the
	// responder to answer DISC_UNIQUE_BRANCH, whose reply is the raw
	// Manchester-encoded form with no preceding BREAK (§4.4 step 8).
	SkipBreak bool
}

// Port is one DMX/RDM UART, driving a single reactor: one reader
// goroutine plus synchronous Send/Receive calls from user goroutines.
type Port struct {
	id   int
	name string
	log  *log.Logger

	mu   sync.Mutex
	cond *sync.Cond

	uart uartDevice

	flags      Flags
	state      rxState
	head       int
	txSize     int
	rxSize     int
	overflowed bool

	buf      []byte
	snapshot []byte
	snapLen  int
	snapKind classify.Kind
	snapErr  error

	lastSlotTS int64
	breakUS    int
	mabUS      int
	tn         uint8

	sniffer *sniffer.Ring

	stopReader chan struct{}
	readerDone chan struct{}
}

// Install opens the UART, configures raw/RS-485 mode, and starts the
// reader goroutine. The returned Port is registered under an
// automatically assigned id (see GetPort).
func Install(cfg Config) (*Port, error) {
	if cfg.Name == "" {
		return nil, driverr.New(driverr.InvalidArg, "port name is required")
	}
	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = MinBufferSz
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(nil)
		logger.SetLevel(log.WarnLevel)
	}

	baud := uint32(ClampBaud(orDefault(cfg.BaudRate, DMXBaud)))

	opener := cfg.uartOpener
	var uart uartDevice
	var err error
	if opener != nil {
		uart, err = opener(cfg.Name, baud)
	} else {
		var real *serial.Port
		real, err = serial.OpenRaw(cfg.Name, baud)
		uart = real
	}
	if err != nil {
		return nil, driverr.Wrap(driverr.InvalidState, err)
	}

	p := &Port{
		name:       cfg.Name,
		log:        logger.With("port", cfg.Name),
		uart:       uart,
		buf:        make([]byte, bufSize),
		snapshot:   make([]byte, bufSize),
		breakUS:    ClampBreak(orDefault(cfg.BreakUS, DefaultBreakUS)),
		mabUS:      ClampMab(orDefault(cfg.MabUS, DefaultMabUS)),
		state:      stateWaitBreak,
		head:       -1,
		rxSize:     MaxSlots + 1,
		flags:      FlagEnabled | FlagIdle,
		sniffer:    cfg.Sniffer,
		stopReader: make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	id, err := registry.insert(p)
	if err != nil {
		uart.Close()
		return nil, err
	}
	p.id = id

	go p.runReader()
	return p, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Delete stops the reader goroutine, closes the UART, and frees the
// port's registry slot. The Port must not be used afterward.
func (p *Port) Delete() error {
	registry.remove(p.id)
	close(p.stopReader)
	<-p.readerDone
	return p.uart.Close()
}

// ID returns the port's registry slot number (0-based), used as the
// RDM port-id field (1-based) by the responder.
func (p *Port) ID() int { return p.id }

func (p *Port) String() string {
	return fmt.Sprintf("dmx.Port(%d,%s)", p.id, p.name)
}

// Enable unmasks receive handling; Disable masks it (in-flight
// transmissions still complete). Matches §5: "disabling only masks RX
// interrupts".
func (p *Port) Enable() {
	p.mu.Lock()
	p.flags |= FlagEnabled
	p.state = stateWaitBreak
	p.head = -1
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *Port) Disable() {
	p.mu.Lock()
	p.flags &^= FlagEnabled
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *Port) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags.has(FlagEnabled)
}

// SetBreakLen clamps and applies a new BREAK length, returning the value
// actually applied.
func (p *Port) SetBreakLen(us int) int {
	applied := ClampBreak(us)
	p.mu.Lock()
	p.breakUS = applied
	p.mu.Unlock()
	return applied
}

// SetMabLen clamps and applies a new MAB length, returning the applied
// value.
func (p *Port) SetMabLen(us int) int {
	applied := ClampMab(us)
	p.mu.Lock()
	p.mabUS = applied
	p.mu.Unlock()
	return applied
}

// NextTN returns the next RDM transaction number, incrementing modulo
// 256.
func (p *Port) NextTN() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	tn := p.tn
	p.tn++
	return tn
}

// Flags reports a snapshot of the current status bits.
func (p *Port) Flags() Flags {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags
}

// Send transmits frame (a full DMX/RDM packet including start code),
// generating BREAK and MAB first. It blocks until the engine is idle,
// then blocks for the duration of BREAK+MAB+write. If opts.ExpectResponse
// is set, SENDING remains asserted and the receiver is primed for a
// reply; the caller must follow with Receive.
func (p *Port) Send(ctx context.Context, frame []byte, opts SendOptions) error {
	if len(frame) == 0 || len(frame) > len(p.buf) {
		return driverr.New(driverr.InvalidArg, "frame length %d out of range", len(frame))
	}

	p.mu.Lock()
	for p.flags.has(FlagSending) {
		if err := ctxErr(ctx); err != nil {
			p.mu.Unlock()
			return err
		}
		condWaitCtx(ctx, p.cond)
	}
	if !p.flags.has(FlagEnabled) {
		p.mu.Unlock()
		return driverr.New(driverr.InvalidState, "port disabled")
	}
	p.flags = p.flags&^FlagIdle | FlagSending
	p.txSize = len(frame)
	copy(p.buf, frame)
	p.mu.Unlock()

	var txErr error
	if opts.SkipBreak {
		txErr = p.writeOnly(frame)
	} else {
		txErr = p.transmit(ctx, frame)
	}
	if txErr != nil {
		p.mu.Lock()
		p.flags = p.flags&^FlagSending | FlagIdle
		p.cond.Broadcast()
		p.mu.Unlock()
		return txErr
	}

	p.mu.Lock()
	p.lastSlotTS = nowUS()
	if opts.ExpectResponse {
		if opts.DiscoveryResponse {
			p.state = stateReceiving
			p.head = 0
		} else {
			p.state = stateWaitBreak
			p.head = -1
		}
		p.flags &^= FlagHasData
		// SENDING stays set: Receive() clears it on reply or timeout.
	} else {
		p.flags = p.flags&^FlagSending | FlagIdle | FlagSentLast
		p.cond.Broadcast()
	}
	p.mu.Unlock()
	return nil
}

// writeOnly pushes frame straight to the UART with no BREAK/MAB framing.
func (p *Port) writeOnly(frame []byte) error {
	if _, err := p.uart.Write(frame); err != nil {
		return driverr.Wrap(driverr.InvalidState, err)
	}
	if err := p.uart.Drain(); err != nil {
		return driverr.Wrap(driverr.InvalidState, err)
	}
	return nil
}

func (p *Port) transmit(ctx context.Context, frame []byte) error {
	p.mu.Lock()
	breakUS, mabUS := p.breakUS, p.mabUS
	p.flags |= FlagInBreak
	p.mu.Unlock()

	if err := p.uart.SetBreak(); err != nil {
		return driverr.Wrap(driverr.InvalidState, err)
	}
	sleep(ctx, time.Duration(breakUS)*time.Microsecond)
	if err := p.uart.ClearBreak(); err != nil {
		return driverr.Wrap(driverr.InvalidState, err)
	}

	p.mu.Lock()
	p.flags = p.flags&^FlagInBreak | FlagInMab
	p.mu.Unlock()
	sleep(ctx, time.Duration(mabUS)*time.Microsecond)
	p.mu.Lock()
	p.flags &^= FlagInMab
	p.mu.Unlock()

	if _, err := p.uart.Write(frame); err != nil {
		return driverr.Wrap(driverr.InvalidState, err)
	}
	if err := p.uart.Drain(); err != nil {
		return driverr.Wrap(driverr.InvalidState, err)
	}

	if p.sniffer != nil {
		now := nowUS()
		p.sniffer.Push(sniffer.Width{TimestampUS: now - int64(mabUS), IsBreak: true, DurationUS: int64(breakUS)})
		p.sniffer.Push(sniffer.Width{TimestampUS: now, IsBreak: false, DurationUS: int64(mabUS)})
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	if ctx == nil {
		time.Sleep(d)
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return driverr.Wrap(driverr.Timeout, ctx.Err())
	default:
		return nil
	}
}

func nowUS() int64 { return time.Now().UnixMicro() }

// Receive blocks until a packet completes or timeout elapses, returning a
// snapshot taken at the instant the packet completed — so a second
// packet arriving before the caller gets around to calling Receive does
// not corrupt the first packet's reported metadata, even though it does
// overwrite the live buffer (§5 ordering guarantee).
func (p *Port) Receive(ctx context.Context, timeout time.Duration) (Event, []byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		if ctx == nil {
			ctx, cancel = context.WithTimeout(context.Background(), timeout)
		} else {
			ctx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()
	}

	p.mu.Lock()
	for !p.flags.has(FlagHasData) {
		if !p.flags.has(FlagEnabled) {
			p.mu.Unlock()
			return Event{}, nil, driverr.New(driverr.Timeout, "port disabled while waiting")
		}
		if err := ctxErr(ctx); err != nil {
			if p.flags.has(FlagSending) {
				p.flags = p.flags&^FlagSending | FlagIdle
			}
			p.mu.Unlock()
			return Event{}, nil, err
		}
		condWaitCtx(ctx, p.cond)
	}

	ev := Event{Size: p.snapLen, Kind: p.snapKind, Err: p.snapErr}
	data := make([]byte, p.snapLen)
	copy(data, p.snapshot[:p.snapLen])

	p.flags &^= FlagHasData
	if p.flags.has(FlagSending) {
		p.flags = p.flags&^FlagSending | FlagIdle
	}
	p.state = stateWaitBreak
	p.head = -1
	p.mu.Unlock()

	return ev, data, ev.Err
}

// LastSlotTimestampUS returns the monotonic microsecond timestamp of the
// last byte observed on the wire (RX or TX).
func (p *Port) LastSlotTimestampUS() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSlotTS
}

// Overflowed reports whether the most recently completed packet exceeded
// the buffer capacity and was truncated.
func (p *Port) Overflowed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overflowed
}
