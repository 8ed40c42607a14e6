package serial

import (
	"time"
)

// OpenRaw opens devicename in raw, 8N2 mode at the given baud rate and
// enables RS-485 half-duplex framing with the RTS line driven high only
// while transmitting. It is the standard way a DMX/RDM port acquires its
// underlying UART.
func OpenRaw(devicename string, baud uint32) (*Port, error) {
	p, err := Open(devicename, NewOptions().SetReadTimeout(-1))
	if err != nil {
		return nil, err
	}

	attrs, err := p.GetAttr2()
	if err != nil {
		p.Close()
		return nil, err
	}
	attrs.MakeRaw()
	attrs.Cflag |= CSTOPB // DMX512 uses two stop bits
	attrs.SetCustomSpeed(baud)
	// PARMRK+INPCK (with IGNPAR left clear) makes the kernel deliver a
	// \377\0\0 marker for line breaks and a \377\0 prefix before a byte
	// received with a framing error, instead of
	// silently turning them into a NUL byte; the reader goroutine scans
	// for that marker to recover RX_BREAK/RX_FRAMING_ERR events that a
	// bare-metal UART would have raised as interrupts.
	attrs.Iflag |= INPCK | PARMRK
	attrs.Iflag &^= IGNPAR
	if err := p.SetAttr2(TCSANOW, attrs); err != nil {
		p.Close()
		return nil, err
	}

	if err := p.SetRS485(&RS485{
		Flags: RS485Enabled | RS485RTSOnSend,
	}); err != nil {
		// Not every UART backs TIOCSRS485 (e.g. USB-serial adapters); the
		// error is ignored and the port is returned without kernel RS-485
		// RTS control.
		_ = err
	}
	return p, nil
}

// SetCustomBaud reprograms the line speed without touching framing bits.
func (p *Port) SetCustomBaud(baud uint32) error {
	attrs, err := p.GetAttr2()
	if err != nil {
		return err
	}
	attrs.SetCustomSpeed(baud)
	return p.SetAttr2(TCSANOW, attrs)
}

// GenerateBreak asserts a line break for d, then clears it. It blocks for
// d and cannot be cancelled; dmx.Port's transmit path calls SetBreak and
// ClearBreak itself instead.
func (p *Port) GenerateBreak(d time.Duration) error {
	if err := p.SetBreak(); err != nil {
		return err
	}
	time.Sleep(d)
	return p.ClearBreak()
}

// FlushInput discards any bytes buffered by the kernel for this port.
func (p *Port) FlushInput() error {
	return p.Flush(TCIFLUSH)
}

// RXLevel reports whether the RX line is currently idle-high, approximated
// on Linux via the CTS modem line since raw line level is not exposed
// through termios.
func (p *Port) RXLevel() (bool, error) {
	lines, err := p.GetModemLines()
	if err != nil {
		return false, err
	}
	return lines&TIOCM_CTS != 0, nil
}
