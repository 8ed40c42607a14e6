package dmx

import (
	"sync"

	"github.com/daedaluz/dmxrdm/driverr"
)

// portRegistry is the process-wide table of installed ports, mirroring
// the original driver's fixed array of per-port control blocks. Install
// claims the lowest free slot; Delete frees it for reuse.
type portRegistry struct {
	mu    sync.Mutex
	ports []*Port
}

var registry = &portRegistry{}

func (r *portRegistry) insert(p *Port) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, slot := range r.ports {
		if slot == nil {
			r.ports[i] = p
			return i, nil
		}
	}
	if len(r.ports) >= maxPorts {
		return 0, driverr.New(driverr.NoMem, "no free port slots (max %d)", maxPorts)
	}
	r.ports = append(r.ports, p)
	return len(r.ports) - 1, nil
}

func (r *portRegistry) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id >= 0 && id < len(r.ports) {
		r.ports[id] = nil
	}
}

// Get returns the installed port at id, or nil if no port occupies that
// slot.
func (r *portRegistry) Get(id int) *Port {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.ports) {
		return nil
	}
	return r.ports[id]
}

// GetPort looks up an installed port by registry id.
func GetPort(id int) *Port { return registry.Get(id) }

// maxPorts bounds the registry the way the original's fixed-size driver
// table did; it is generous for a host process managing a handful of
// USB-serial adapters.
const maxPorts = 32
