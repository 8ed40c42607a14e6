package device

import (
	"net"
	"sync"

	"github.com/daedaluz/dmxrdm/rdm"
)

// estaManufacturerID is a placeholder ESTA-assigned manufacturer code;
// real deployments replace this with their registered ID.
const estaManufacturerID = 0x7FF0

var (
	bindingOnce sync.Once
	bindingUID  rdm.UID
)

// BindingUID returns the process-wide RDM device UID, derived once from
// the first available hardware MAC address (§5: "a single RDM device UID
// is derived once from the MAC address on first install"). Every port
// installed by this process shares it.
func BindingUID() rdm.UID {
	bindingOnce.Do(func() {
		bindingUID = rdm.UID{Manufacturer: estaManufacturerID, Device: deviceIDFromMAC()}
	})
	return bindingUID
}

func deviceIDFromMAC() uint32 {
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if len(iface.HardwareAddr) != 6 {
				continue
			}
			mac := iface.HardwareAddr
			if mac[0] == 0 && mac[1] == 0 && mac[2] == 0 && mac[3] == 0 && mac[4] == 0 && mac[5] == 0 {
				continue
			}
			return uint32(mac[2])<<24 | uint32(mac[3])<<16 | uint32(mac[4])<<8 | uint32(mac[5])
		}
	}
	// No usable hardware MAC (containers, loopback-only hosts): fall
	// back to a fixed placeholder rather than failing install.
	return 0x00000001
}
