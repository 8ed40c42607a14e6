// Package config loads a port's install-time configuration from YAML
// (§6: "Configuration at install time"), the programmatic path used
// directly by device.Install being the Go struct defined here.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/daedaluz/dmxrdm/driverr"
)

// Personality mirrors responder.Personality in a serialization-friendly
// shape.
type Personality struct {
	Footprint   uint16 `yaml:"footprint"`
	Description string `yaml:"description"`
}

// Port is one port's complete install-time configuration.
type Port struct {
	Name string `yaml:"name"`

	BreakUS  int    `yaml:"break_us"`
	MabUS    int    `yaml:"mab_us"`
	BaudRate uint32 `yaml:"baud_rate"`

	ModelID             uint16 `yaml:"model_id"`
	ProductCategory     uint16 `yaml:"product_category"`
	SoftwareVersionID   uint32 `yaml:"software_version_id"`
	SoftwareVersionLabel string `yaml:"software_version_label"`

	Personalities []Personality `yaml:"personalities"`

	ParameterHeapSize int `yaml:"parameter_heap_size"`
	QueueCapacity     int `yaml:"queue_capacity"`

	NVSPath string `yaml:"nvs_path"`
}

// File is the top-level document: one or more ports.
type File struct {
	Ports []Port `yaml:"ports"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, driverr.Wrap(driverr.InvalidState, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, driverr.Wrap(driverr.InvalidArg, err)
	}
	for i := range f.Ports {
		if f.Ports[i].Name == "" {
			return nil, driverr.New(driverr.InvalidArg, "port %d missing name", i)
		}
	}
	return &f, nil
}
