// Command rdmctl is a minimal example that opens a serial port as an RDM
// controller and runs discovery, printing every UID found. It exists to
// exercise package controller end-to-end; it is not the project's CLI
// (out of scope — see SPEC_FULL.md).
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/daedaluz/dmxrdm/device"
	"github.com/daedaluz/dmxrdm/dmx"
	"github.com/daedaluz/dmxrdm/rdm"
	"github.com/daedaluz/dmxrdm/rdm/controller"
)

func main() {
	portName := flag.String("port", "/dev/ttyUSB0", "serial device to open")
	timeout := flag.Duration("timeout", 10*time.Second, "overall discovery timeout")
	flag.Parse()

	logger := log.New(os.Stderr)
	logger.SetLevel(log.InfoLevel)

	dmxPort, err := dmx.Install(dmx.Config{Name: *portName, Logger: logger})
	if err != nil {
		logger.Fatal("install failed", "err", err)
	}
	defer dmxPort.Delete()

	c := &controller.Controller{Port: dmxPort, UID: device.BindingUID(), Log: logger}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var found []rdm.UID
	if err := c.Discover(ctx, func(uid rdm.UID) {
		found = append(found, uid)
		logger.Info("found responder", "uid", uid.String())
	}); err != nil {
		logger.Error("discovery failed", "err", err)
		os.Exit(1)
	}

	logger.Info("discovery complete", "count", len(found))
}
