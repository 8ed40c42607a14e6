package responder

import (
	"github.com/daedaluz/dmxrdm/rdm"
	"github.com/daedaluz/dmxrdm/rdm/param"
)

// DeviceConfig seeds the fixed fields of DEVICE_INFO at registration
// time; the variable fields (current personality, dmx start address)
// live in the parameter heap and change over the port's lifetime.
type DeviceConfig struct {
	ModelID            uint16
	ProductCategory     uint16
	SoftwareVersionID   uint32
	SoftwareVersionLabel string
	Personalities       []Personality
	InitialStartAddress uint16 // 0xFFFF == NONE
}

// Personality is one DMX_PERSONALITY slot: a footprint (1..512 slots)
// and a human description.
type Personality struct {
	Footprint   uint16
	Description string
}

// RegisterRequired installs the nine always-registered PIDs (§3) plus
// DESCRIPTION/PARAMETER_DESCRIPTION support, wiring store-backed state
// for DEVICE_LABEL/DMX_START_ADDRESS/DMX_PERSONALITY/IDENTIFY_DEVICE and
// deterministic handlers for DEVICE_INFO/SOFTWARE_VERSION_LABEL and the
// discovery PIDs.
func RegisterRequired(s *param.Store, r *Responder, cfg DeviceConfig) error {
	if err := s.AddDeterministic(param.Definition{
		PID:     rdm.PIDDiscUniqueBranch,
		Classes: param.CCDisc,
	}, func(req param.Request) param.Response {
		// Responder.Handle answers DISC_UNIQUE_BRANCH in
		// handleDiscUniqueBranch before any table lookup, so this handler
		// is not invoked; the entry only registers the PID in the table.
		return param.Ack(nil)
	}); err != nil {
		return err
	}

	if err := s.AddDeterministic(param.Definition{
		PID:     rdm.PIDDiscMute,
		Classes: param.CCDisc,
	}, func(req param.Request) param.Response {
		r.Mute()
		data, _ := param.Codec{Format: "w"}.Encode([]param.Value{{Kind: 0, Num: 0}})
		return param.Ack(data)
	}); err != nil {
		return err
	}

	if err := s.AddDeterministic(param.Definition{
		PID:     rdm.PIDDiscUnMute,
		Classes: param.CCDisc,
	}, func(req param.Request) param.Response {
		r.Unmute()
		data, _ := param.Codec{Format: "w"}.Encode([]param.Value{{Kind: 0, Num: 0}})
		return param.Ack(data)
	}); err != nil {
		return err
	}

	footprint := uint16(0)
	if len(cfg.Personalities) > 0 {
		footprint = cfg.Personalities[0].Footprint
	}

	if err := s.AddNew(param.Definition{
		PID:       rdm.PIDDMXPersonality,
		Classes:   param.CCGet | param.CCSet,
		PDLSize:   2,
		AllocSize: 2,
	}, []byte{1, byte(len(cfg.Personalities))}); err != nil {
		return err
	}
	if err := s.SetHandler(rdm.PIDDMXPersonality, func(req param.Request) param.Response {
		switch req.CC {
		case rdm.CCGetCommand:
			raw := make([]byte, 2)
			s.Get(rdm.PIDDMXPersonality, raw)
			return param.Ack([]byte{raw[0], byte(len(cfg.Personalities))})
		case rdm.CCSetCommand:
			if len(req.Data) != 1 {
				return param.Nack(rdm.NRFormatError)
			}
			idx := req.Data[0]
			if idx < 1 || int(idx) > len(cfg.Personalities) {
				return param.Nack(rdm.NRDataOutOfRange)
			}
			s.SetAndQueue(rdm.PIDDMXPersonality, []byte{idx, byte(len(cfg.Personalities))})
			return param.Ack(nil)
		}
		return param.Nack(rdm.NRUnsupportedCommandClass)
	}); err != nil {
		return err
	}

	if err := s.AddDeterministic(param.Definition{
		PID:     rdm.PIDDMXPersonalityDescription,
		Classes: param.CCGet,
	}, func(req param.Request) param.Response {
		if len(req.Data) != 1 {
			return param.Nack(rdm.NRFormatError)
		}
		idx := req.Data[0]
		if idx < 1 || int(idx) > len(cfg.Personalities) {
			return param.Nack(rdm.NRDataOutOfRange)
		}
		p := cfg.Personalities[idx-1]
		out := []byte{idx, byte(p.Footprint >> 8), byte(p.Footprint)}
		out = append(out, []byte(p.Description)...)
		return param.Ack(out)
	}); err != nil {
		return err
	}

	startAddr := cfg.InitialStartAddress
	if footprint == 0 {
		startAddr = 0xFFFF
	} else if startAddr == 0 {
		startAddr = 1
	}
	if footprint > 0 {
		if err := s.AddNew(param.Definition{
			PID:       rdm.PIDDMXStartAddress,
			Classes:   param.CCGet | param.CCSet,
			PDLSize:   2,
			AllocSize: 2,
		}, []byte{byte(startAddr >> 8), byte(startAddr)}); err != nil {
			return err
		}
		if err := s.SetHandler(rdm.PIDDMXStartAddress, func(req param.Request) param.Response {
			switch req.CC {
			case rdm.CCGetCommand:
				raw := make([]byte, 2)
				s.Get(rdm.PIDDMXStartAddress, raw)
				return param.Ack(raw)
			case rdm.CCSetCommand:
				if len(req.Data) != 2 {
					return param.Nack(rdm.NRFormatError)
				}
				addr := uint16(req.Data[0])<<8 | uint16(req.Data[1])
				if addr < 1 || int(addr)+int(footprint)-1 > 512 {
					return param.Nack(rdm.NRDataOutOfRange)
				}
				s.SetAndQueue(rdm.PIDDMXStartAddress, req.Data)
				return param.Ack(nil)
			}
			return param.Nack(rdm.NRUnsupportedCommandClass)
		}); err != nil {
			return err
		}
	}

	if err := s.AddDeterministic(param.Definition{
		PID:     rdm.PIDDeviceInfo,
		Classes: param.CCGet,
	}, func(req param.Request) param.Response {
		personalityIdx := byte(1)
		raw := make([]byte, 2)
		if _, err := s.Get(rdm.PIDDMXPersonality, raw); err == nil {
			personalityIdx = raw[0]
		}
		addr := uint16(0xFFFF)
		if footprint > 0 {
			raw := make([]byte, 2)
			s.Get(rdm.PIDDMXStartAddress, raw)
			addr = uint16(raw[0])<<8 | uint16(raw[1])
		}
		codec := param.Codec{Format: "wwwdwbbwwb$"}
		data, _ := codec.Encode([]param.Value{
			{Num: 0x0100},                         // protocol_version
			{Num: uint32(cfg.ModelID)},             // model_id
			{Num: uint32(cfg.ProductCategory)},     // product_category
			{Num: cfg.SoftwareVersionID},           // software_version_id
			{Num: uint32(footprint)},               // footprint
			{Num: uint32(personalityIdx)},          // current_personality
			{Num: uint32(len(cfg.Personalities))},  // personality_count
			{Num: uint32(addr)},                    // dmx_start_address
			{Num: 0},                               // sub_device_count
			{Num: 0},                               // sensor_count
		})
		return param.Ack(data)
	}); err != nil {
		return err
	}

	if err := s.AddDeterministic(param.Definition{
		PID:     rdm.PIDSoftwareVersionLabel,
		Classes: param.CCGet,
	}, func(req param.Request) param.Response {
		return param.Ack([]byte(cfg.SoftwareVersionLabel))
	}); err != nil {
		return err
	}

	if err := s.AddNew(param.Definition{
		PID:       rdm.PIDIdentifyDevice,
		Classes:   param.CCGet | param.CCSet,
		PDLSize:   1,
		AllocSize: 1,
	}, []byte{0}); err != nil {
		return err
	}
	// The first GET after install defers with ACK_TIMER(5) (500 ms, per
	// the RDM ACK_TIMER unit of 100 ms per count) to model a responder
	// still settling into its startup identify state; by the time a
	// controller honours the deferral and re-polls, identify reads back
	// as 1.
	identifyGetDeferred := false
	if err := s.SetHandler(rdm.PIDIdentifyDevice, func(req param.Request) param.Response {
		switch req.CC {
		case rdm.CCGetCommand:
			if !identifyGetDeferred {
				identifyGetDeferred = true
				s.SetAndQueue(rdm.PIDIdentifyDevice, []byte{1})
				return param.AckTimer(5)
			}
			raw := make([]byte, 1)
			s.Get(rdm.PIDIdentifyDevice, raw)
			return param.Ack(raw)
		case rdm.CCSetCommand:
			if len(req.Data) != 1 || (req.Data[0] != 0 && req.Data[0] != 1) {
				return param.Nack(rdm.NRDataOutOfRange)
			}
			s.SetAndQueue(rdm.PIDIdentifyDevice, req.Data)
			return param.Ack(nil)
		}
		return param.Nack(rdm.NRUnsupportedCommandClass)
	}); err != nil {
		return err
	}

	if err := s.AddNew(param.Definition{
		PID:       rdm.PIDDeviceLabel,
		Classes:   param.CCGet | param.CCSet,
		PDLSize:   32,
		AllocSize: 32,
	}, nil); err != nil {
		return err
	}
	if err := s.SetHandler(rdm.PIDDeviceLabel, func(req param.Request) param.Response {
		switch req.CC {
		case rdm.CCGetCommand:
			raw := make([]byte, 32)
			s.Get(rdm.PIDDeviceLabel, raw)
			end := 0
			for end < len(raw) && raw[end] != 0 {
				end++
			}
			return param.Ack(raw[:end])
		case rdm.CCSetCommand:
			if len(req.Data) > 32 {
				return param.Nack(rdm.NRFormatError)
			}
			padded := make([]byte, 32)
			copy(padded, req.Data)
			s.SetAndQueue(rdm.PIDDeviceLabel, padded)
			return param.Ack(nil)
		}
		return param.Nack(rdm.NRUnsupportedCommandClass)
	}); err != nil {
		return err
	}

	return registerParameterDescription(s)
}

// registerParameterDescription wires PARAMETER_DESCRIPTION: a GET whose
// request data is the PID to describe, answered from that PID's own
// Definition. Only manufacturer-specific PIDs are described (§4.3).
func registerParameterDescription(s *param.Store) error {
	return s.AddDeterministic(param.Definition{
		PID:     rdm.PIDParameterDescription,
		Classes: param.CCGet,
	}, func(req param.Request) param.Response {
		if len(req.Data) != 2 {
			return param.Nack(rdm.NRFormatError)
		}
		pid := rdm.PID(uint16(req.Data[0])<<8 | uint16(req.Data[1]))
		desc, ok := s.Description(pid)
		if !ok {
			return param.Nack(rdm.NRDataOutOfRange)
		}
		def, _ := s.Definition(pid)
		out := []byte{byte(pid >> 8), byte(pid)}
		out = append(out, byte(def.PDLSize))
		out = append(out, def.DataType, def.Unit, def.Prefix)
		out = append(out, byte(def.Min>>24), byte(def.Min>>16), byte(def.Min>>8), byte(def.Min))
		out = append(out, byte(def.Max>>24), byte(def.Max>>16), byte(def.Max>>8), byte(def.Max))
		out = append(out, []byte(desc)...)
		return param.Ack(out)
	})
}
