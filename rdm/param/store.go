// Package param implements the per-port RDM parameter heap: a
// bump-allocated storage slab, the PID table (ordinary, alias, and
// deterministic entries), and the queued-message ring used to populate
// outbound message_count fields.
package param

import (
	"github.com/daedaluz/dmxrdm/driverr"
	"github.com/daedaluz/dmxrdm/rdm"
)

// MaxGetSize bounds the scratch buffer used for a plain (no custom
// handler) GET response.
const MaxGetSize = rdm.MaxPDL

// CommandClassSet is a bitset of the command classes a PID's schema
// permits.
type CommandClassSet byte

const (
	CCDisc CommandClassSet = 1 << iota
	CCGet
	CCSet
)

func (s CommandClassSet) Allows(cc rdm.CommandClass) bool {
	switch cc {
	case rdm.CCDiscoveryCommand:
		return s&CCDisc != 0
	case rdm.CCGetCommand:
		return s&CCGet != 0
	case rdm.CCSetCommand:
		return s&CCSet != 0
	}
	return false
}

// Handler computes a deterministic or side-effecting response; nil for
// ordinary stored parameters (the responder falls back to plain
// get/set of the backing bytes).
type Handler func(req Request) Response

// Request is everything a handler needs to answer one RDM command.
type Request struct {
	Store     *Store
	PID       rdm.PID
	CC        rdm.CommandClass
	Data      []byte
	SubDevice uint16
}

// ResponseKind tags which of the four RDM outcomes a handler produced.
type ResponseKind int

const (
	RespAck ResponseKind = iota
	RespAckTimer
	RespAckOverflow
	RespNack
)

// Response is the tagged-variant return value DESIGN NOTES calls for:
// ACK with data, ACK_TIMER with a delay in 100 ms units, ACK_OVERFLOW
// (folded to ACK by the responder per the Open Questions decision), or
// NACK with a reason.
type Response struct {
	Kind       ResponseKind
	Data       []byte
	TimerUnits uint16
	Reason     rdm.NackReason
}

func Ack(data []byte) Response                { return Response{Kind: RespAck, Data: data} }
func AckTimer(units uint16) Response          { return Response{Kind: RespAckTimer, TimerUnits: units} }
func Nack(reason rdm.NackReason) Response     { return Response{Kind: RespNack, Reason: reason} }

// Definition is a PID's static schema.
type Definition struct {
	PID         rdm.PID
	Classes     CommandClassSet
	DataType    byte
	PDLSize     int
	Min, Max    uint32
	Format      string
	Default     []byte
	Unit        byte
	Prefix      byte
	Description string
	AllocSize   int
	NonVolatile bool
}

type entryKind int

const (
	entryStored entryKind = iota
	entryAlias
	entryDeterministic
)

type entry struct {
	def     Definition
	kind    entryKind
	offset  int // into heap, for entryStored; into base's storage, for entryAlias
	size    int
	base    rdm.PID // entryAlias only
	handler Handler
}

// Store is one sub-device's parameter table and backing heap.
type Store struct {
	heap      []byte
	heapUsed  int
	order     []rdm.PID
	byPID     map[rdm.PID]*entry
	queue     []rdm.PID
	queueCap  int
	queuedSet map[rdm.PID]bool
}

// NewStore allocates a heap of heapSize bytes (minimum 53 per the data
// model) and a queued-message ring bounded at queueCap (default 64 when
// queueCap <= 0).
func NewStore(heapSize, queueCap int) *Store {
	if heapSize < 53 {
		heapSize = 53
	}
	if queueCap <= 0 {
		queueCap = 64
	}
	return &Store{
		heap:      make([]byte, heapSize),
		byPID:     make(map[rdm.PID]*entry),
		queueCap:  queueCap,
		queuedSet: make(map[rdm.PID]bool),
	}
}

// AddNew bump-allocates def.AllocSize bytes, seeds them with init (or
// zero-fills), and appends the PID in insertion order.
func (s *Store) AddNew(def Definition, init []byte) error {
	if _, exists := s.byPID[def.PID]; exists {
		return driverr.New(driverr.InvalidState, "pid 0x%04X already exists", def.PID)
	}
	size := def.AllocSize
	if size <= 0 {
		size = def.PDLSize
	}
	if s.heapUsed+size > len(s.heap) {
		return driverr.New(driverr.NoMem, "parameter heap exhausted: need %d, have %d free", size, len(s.heap)-s.heapUsed)
	}
	off := s.heapUsed
	s.heapUsed += size
	if len(init) > 0 {
		copy(s.heap[off:off+size], init)
	}
	e := &entry{def: def, kind: entryStored, offset: off, size: size}
	s.byPID[def.PID] = e
	s.order = append(s.order, def.PID)
	return nil
}

// AddAlias registers pid as a view into basePID's storage at offset,
// sized size, without consuming additional heap.
func (s *Store) AddAlias(def Definition, basePID rdm.PID, offset, size int) error {
	if _, exists := s.byPID[def.PID]; exists {
		return driverr.New(driverr.InvalidState, "pid 0x%04X already exists", def.PID)
	}
	base, ok := s.byPID[basePID]
	if !ok {
		return driverr.New(driverr.InvalidArg, "alias base pid 0x%04X not registered", basePID)
	}
	if offset+size > base.size {
		return driverr.New(driverr.InvalidArg, "alias range [%d:%d] exceeds base size %d", offset, offset+size, base.size)
	}
	e := &entry{def: def, kind: entryAlias, offset: base.offset + offset, size: size, base: basePID}
	s.byPID[def.PID] = e
	s.order = append(s.order, def.PID)
	return nil
}

// AddDeterministic registers a PID with no backing storage; handler
// computes every reply.
func (s *Store) AddDeterministic(def Definition, handler Handler) error {
	if _, exists := s.byPID[def.PID]; exists {
		return driverr.New(driverr.InvalidState, "pid 0x%04X already exists", def.PID)
	}
	e := &entry{def: def, kind: entryDeterministic, handler: handler}
	s.byPID[def.PID] = e
	s.order = append(s.order, def.PID)
	return nil
}

// SetHandler attaches a side-effecting handler (e.g. for SET validation
// or logging) to an already-stored or alias PID. Nil clears it, falling
// back to plain storage get/set.
func (s *Store) SetHandler(pid rdm.PID, handler Handler) error {
	e, ok := s.byPID[pid]
	if !ok {
		return driverr.New(driverr.InvalidArg, "pid 0x%04X not registered", pid)
	}
	e.handler = handler
	return nil
}

func (s *Store) Exists(pid rdm.PID) bool {
	_, ok := s.byPID[pid]
	return ok
}

func (s *Store) Definition(pid rdm.PID) (Definition, bool) {
	e, ok := s.byPID[pid]
	if !ok {
		return Definition{}, false
	}
	return e.def, true
}

// Description returns def.Description, but only for manufacturer-specific
// PIDs (§4.3): [0x8000, 0xFFDF].
func (s *Store) Description(pid rdm.PID) (string, bool) {
	if pid < 0x8000 || pid > 0xFFDF {
		return "", false
	}
	e, ok := s.byPID[pid]
	if !ok {
		return "", false
	}
	return e.def.Description, true
}

func (s *Store) storageFor(e *entry) []byte {
	switch e.kind {
	case entryStored, entryAlias:
		return s.heap[e.offset : e.offset+e.size]
	}
	return nil
}

// Get copies a stored or aliased parameter's raw bytes into out,
// returning the byte count. Deterministic PIDs have no storage and
// return INVALID_STATE; callers must invoke their handler instead.
func (s *Store) Get(pid rdm.PID, out []byte) (int, error) {
	e, ok := s.byPID[pid]
	if !ok {
		return 0, driverr.New(driverr.InvalidArg, "pid 0x%04X not registered", pid)
	}
	if e.kind == entryDeterministic {
		return 0, driverr.New(driverr.InvalidState, "pid 0x%04X is deterministic, has no storage", pid)
	}
	data := s.storageFor(e)
	n := copy(out, data)
	return n, nil
}

// Set overwrites a stored or aliased parameter's bytes, returning the
// byte count written.
func (s *Store) Set(pid rdm.PID, data []byte) (int, error) {
	e, ok := s.byPID[pid]
	if !ok {
		return 0, driverr.New(driverr.InvalidArg, "pid 0x%04X not registered", pid)
	}
	if e.kind == entryDeterministic {
		return 0, driverr.New(driverr.InvalidState, "pid 0x%04X is deterministic, has no storage", pid)
	}
	dst := s.storageFor(e)
	n := copy(dst, data)
	return n, nil
}

// SetAndQueue is Set plus an idempotent enqueue into the queued-message
// ring.
func (s *Store) SetAndQueue(pid rdm.PID, data []byte) (int, error) {
	n, err := s.Set(pid, data)
	if err != nil {
		return n, err
	}
	s.Queue(pid)
	return n, nil
}

// Queue enqueues pid if it is not already present; the ring drops the
// oldest entry to make room once full (bounded, never blocks).
func (s *Store) Queue(pid rdm.PID) {
	if s.queuedSet[pid] {
		return
	}
	if len(s.queue) >= s.queueCap {
		oldest := s.queue[0]
		s.queue = s.queue[1:]
		delete(s.queuedSet, oldest)
	}
	s.queue = append(s.queue, pid)
	s.queuedSet[pid] = true
}

// QueueLen reports the queued-message count, clamped to 255 for the
// outbound message_count field by the caller.
func (s *Store) QueueLen() int { return len(s.queue) }

// PopQueued removes and returns the oldest queued PID changed-report, or
// false if the ring is empty.
func (s *Store) PopQueued() (rdm.PID, bool) {
	if len(s.queue) == 0 {
		return 0, false
	}
	pid := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.queuedSet, pid)
	return pid, true
}

// List copies up to len(out) PIDs in insertion order into out, returning
// the total registered count (which may exceed len(out)).
func (s *Store) List(out []rdm.PID) int {
	n := copy(out, s.order)
	_ = n
	return len(s.order)
}

// Handler returns the attached handler for pid, if any.
func (s *Store) Handler(pid rdm.PID) (Handler, bool) {
	e, ok := s.byPID[pid]
	if !ok || e.handler == nil {
		return nil, false
	}
	return e.handler, true
}

// HeapUsed and HeapCap expose the bump allocator's occupancy, mainly for
// the install/delete invariant (heap use returns to zero after delete —
// trivially true here since delete discards the whole Store).
func (s *Store) HeapUsed() int { return s.heapUsed }
func (s *Store) HeapCap() int  { return len(s.heap) }
