// Package rmutex implements a goroutine-reentrant mutex.
//
// A goroutine that already holds the lock can take it again without
// deadlocking against itself. Go has no native recursive lock, so ownership is tracked explicitly by goroutine id and waiters
// park on a sync.Cond instead of busy-polling.
package rmutex

import (
	"runtime"
	"strconv"
	"sync"
)

// Mutex is a recursive mutex: the owning goroutine may lock it again
// without blocking. Each Lock must be matched by exactly one Unlock.
type Mutex struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64
	count int
}

func (m *Mutex) init() *sync.Cond {
	if m.cond == nil {
		m.cond = sync.NewCond(&m.mu)
	}
	return m.cond
}

func (m *Mutex) Lock() {
	id := goroutineID()
	m.mu.Lock()
	defer m.mu.Unlock()
	cond := m.init()
	for m.count != 0 && m.owner != id {
		cond.Wait()
	}
	m.owner = id
	m.count++
}

func (m *Mutex) Unlock() {
	id := goroutineID()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 || m.owner != id {
		panic("rmutex: Unlock of unlocked or not-owned mutex")
	}
	m.count--
	if m.count == 0 {
		m.owner = 0
		m.init().Signal()
	}
}

// goroutineID parses the numeric id out of runtime.Stack's header line.
// It is a well-known (if frowned upon) trick; used here only to implement
// reentrancy, never for scheduling decisions.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if len(b) > len(prefix) && string(b[:len(prefix)]) == prefix {
		b = b[len(prefix):]
	}
	i := 0
	for i < len(b) && b[i] != ' ' {
		i++
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
