// Package device is the port driver façade: it installs a dmx.Port, an
// RDM parameter Store, and a Responder, wires optional NVS persistence
// across delete+install cycles, and runs the background loop that
// answers incoming RDM requests. This is the "Port driver façade" row of
// the component table — everything above it (framing, classifier,
// responder, controller) is a library; this is the thing an application
// actually installs.
package device

import (
	"context"
	"encoding/binary"

	"github.com/charmbracelet/log"

	"github.com/daedaluz/dmxrdm/config"
	"github.com/daedaluz/dmxrdm/dmx"
	"github.com/daedaluz/dmxrdm/dmx/classify"
	"github.com/daedaluz/dmxrdm/nvs"
	"github.com/daedaluz/dmxrdm/rdm"
	"github.com/daedaluz/dmxrdm/rdm/param"
	"github.com/daedaluz/dmxrdm/rdm/responder"
)

// Port is one installed RDM-capable DMX port: framing engine, parameter
// store, and responder dispatch, optionally backed by persisted state.
type Port struct {
	DMX       *dmx.Port
	Store     *param.Store
	Responder *responder.Responder
	UID       rdm.UID

	nvs        *nvs.Store
	footprint  uint16
	cancel     context.CancelFunc
	loopDone   chan struct{}
	log        *log.Logger
}

// Install brings up a port end-to-end from a config.Port: opens the
// UART, allocates the parameter store, registers the required PIDs
// (seeded from NVS if cfg.NVSPath is set), and starts the responder
// loop.
func Install(cfg config.Port, logger *log.Logger) (*Port, error) {
	return install(cfg, logger, nil)
}

// InstallWithUART is Install but backed by an already-open dmx.UART
// instead of a real serial device. It exists for tests that need a
// working Port without a /dev/tty, the same seam dmx.InstallWithUART
// provides one layer down.
func InstallWithUART(cfg config.Port, logger *log.Logger, uart dmx.UART) (*Port, error) {
	return install(cfg, logger, uart)
}

func install(cfg config.Port, logger *log.Logger, uart dmx.UART) (*Port, error) {
	if logger == nil {
		logger = log.New(nil)
	}
	plog := logger.With("device", cfg.Name)

	var store *nvs.Store
	if cfg.NVSPath != "" {
		var err error
		store, err = nvs.Open(cfg.NVSPath)
		if err != nil {
			return nil, err
		}
	}

	dmxCfg := dmx.Config{
		Name:     cfg.Name,
		BreakUS:  cfg.BreakUS,
		MabUS:    cfg.MabUS,
		BaudRate: int(cfg.BaudRate),
		Logger:   plog,
	}
	var dmxPort *dmx.Port
	var err error
	if uart != nil {
		dmxPort, err = dmx.InstallWithUART(dmxCfg, uart)
	} else {
		dmxPort, err = dmx.Install(dmxCfg)
	}
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	pstore := param.NewStore(cfg.ParameterHeapSize, cfg.QueueCapacity)
	uid := BindingUID()

	r := &responder.Responder{UID: uid, PortID: byte(dmxPort.ID() + 1), Store: pstore, Log: plog}

	personalities := make([]responder.Personality, 0, len(cfg.Personalities))
	for _, p := range cfg.Personalities {
		personalities = append(personalities, responder.Personality{Footprint: p.Footprint, Description: p.Description})
	}

	devCfg := responder.DeviceConfig{
		ModelID:              cfg.ModelID,
		ProductCategory:      cfg.ProductCategory,
		SoftwareVersionID:    cfg.SoftwareVersionID,
		SoftwareVersionLabel: cfg.SoftwareVersionLabel,
		Personalities:        personalities,
	}

	footprint := uint16(0)
	if len(personalities) > 0 {
		footprint = personalities[0].Footprint
	}

	if store != nil {
		if raw, ok, _ := store.Get(nvs.KeyDMXStartAddress); ok && len(raw) == 2 {
			devCfg.InitialStartAddress = binary.BigEndian.Uint16(raw)
		}
	}

	if err := responder.RegisterRequired(pstore, r, devCfg); err != nil {
		dmxPort.Delete()
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	p := &Port{
		DMX:       dmxPort,
		Store:     pstore,
		Responder: r,
		UID:       uid,
		nvs:       store,
		footprint: footprint,
		log:       plog,
		loopDone:  make(chan struct{}),
	}

	if store != nil {
		p.restoreFromNVS()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.respondLoop(ctx)

	return p, nil
}

// Delete persists current parameter values (if NVS is configured), stops
// the responder loop, and tears down the underlying dmx.Port.
func (p *Port) Delete() error {
	p.saveToNVS()
	p.cancel()
	<-p.loopDone
	err := p.DMX.Delete()
	if p.nvs != nil {
		p.nvs.Close()
	}
	return err
}

func (p *Port) restoreFromNVS() {
	if raw, ok, _ := p.nvs.Get(nvs.KeyDeviceLabel); ok {
		p.Store.Set(rdm.PIDDeviceLabel, raw)
	}
	if raw, ok, _ := p.nvs.Get(nvs.KeyPersonality); ok && len(raw) == 2 {
		p.Store.Set(rdm.PIDDMXPersonality, raw)
	}
	if raw, ok, _ := p.nvs.Get(nvs.KeyIdentify); ok && len(raw) == 1 {
		p.Store.Set(rdm.PIDIdentifyDevice, raw)
	}
}

func (p *Port) saveToNVS() {
	if p.nvs == nil {
		return
	}
	if p.footprint > 0 {
		raw := make([]byte, 2)
		if _, err := p.Store.Get(rdm.PIDDMXStartAddress, raw); err == nil {
			p.nvs.Set(nvs.KeyDMXStartAddress, raw)
		}
	}
	raw := make([]byte, 32)
	if _, err := p.Store.Get(rdm.PIDDeviceLabel, raw); err == nil {
		p.nvs.Set(nvs.KeyDeviceLabel, raw)
	}
	pers := make([]byte, 2)
	if _, err := p.Store.Get(rdm.PIDDMXPersonality, pers); err == nil {
		p.nvs.Set(nvs.KeyPersonality, pers)
	}
	ident := make([]byte, 1)
	if _, err := p.Store.Get(rdm.PIDIdentifyDevice, ident); err == nil {
		p.nvs.Set(nvs.KeyIdentify, ident)
	}
}

// respondLoop blocks on DMX.Receive for incoming RDM requests and
// answers them through Responder.Handle, sending the reply with or
// without BREAK as the packet kind dictates.
func (p *Port) respondLoop(ctx context.Context) {
	defer close(p.loopDone)
	for {
		ev, data, err := p.DMX.Receive(ctx, 0)
		if ctx.Err() != nil {
			return
		}
		if err != nil || ev.Kind != classify.KindRDM {
			continue
		}
		reply, ok, herr := p.Responder.Handle(data)
		if herr != nil {
			p.log.Debug("rdm request rejected", "err", herr)
			continue
		}
		if !ok {
			continue
		}
		skipBreak := isDiscUniqueBranchReply(data)
		if err := p.DMX.Send(ctx, reply, dmx.SendOptions{SkipBreak: skipBreak}); err != nil {
			p.log.Debug("rdm reply send failed", "err", err)
		}
	}
}

func isDiscUniqueBranchReply(reqData []byte) bool {
	h, err := rdm.Decode(reqData)
	if err != nil {
		return false
	}
	return h.CC == rdm.CCDiscoveryCommand && h.PID == rdm.PIDDiscUniqueBranch
}
