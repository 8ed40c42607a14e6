package dmx

import (
	"github.com/charmbracelet/log"

	"github.com/daedaluz/dmxrdm/sniffer"
)

// Config is the install-time HAL configuration for one port. It covers
// only the framing-engine concerns; RDM parameter/personality
// configuration lives one layer up, in package device.
type Config struct {
	// Name identifies the port in logs and the driver registry; it is
	// typically the device path (e.g. "/dev/ttyUSB0").
	Name string

	// BreakUS / MabUS seed the applied BREAK/MAB lengths; zero selects the
	// package defaults. Values are clamped per ClampBreak/ClampMab.
	BreakUS int
	MabUS   int

	// BaudRate seeds the line speed; zero selects DMXBaud. Clamped per
	// ClampBaud.
	BaudRate int

	// BufferSize overrides the frame buffer capacity; zero selects
	// MinBufferSz.
	BufferSize int

	// Sniffer, if non-nil, receives BREAK/MAB width observations. Purely
	// observational; see package sniffer.
	Sniffer *sniffer.Ring

	// Logger receives structured diagnostic logs; a quiet default is used
	// if nil.
	Logger *log.Logger

	// uartOpener lets tests substitute a fake UART; production code
	// leaves it nil and gets serial.OpenRaw.
	uartOpener func(name string, baud uint32) (uartDevice, error)
}
