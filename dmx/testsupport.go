package dmx

// UART is the subset of hardware functionality the framing engine
// depends on, exported so packages above dmx can substitute a fake bus
// in their own tests the way spitest substitutes a fake SPI bus for
// packages built on package spi.
type UART = uartDevice

// InstallWithUART installs a Port backed by an already-open UART instead
// of a real serial device. It exists for tests in other packages that
// need a working Port without a /dev/tty.
func InstallWithUART(cfg Config, uart UART) (*Port, error) {
	cfg.uartOpener = func(string, uint32) (uartDevice, error) { return uart, nil }
	return Install(cfg)
}
