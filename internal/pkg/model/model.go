package model

import "fmt"

// Identity is the (bus, address) pair of the physical device owning an IIO channel.
type Identity struct {
	Bus     uint64
	Address uint64
}

func (i Identity) String() string {
	return fmt.Sprintf("%d-%04x", i.Bus, i.Address)
}

// Device is a discovered value-reading endpoint.
type Device struct {
	Path     string
	Kind     Kind
	Name     string // owning device directory name, e.g. 7-0076
	Identity Identity
}

// BaseConfigMap holds the properties of one configuration interface.
type BaseConfigMap map[string]any

// SensorData maps interface names (type tags, threshold interfaces) to their properties.
type SensorData map[string]BaseConfigMap

// Record is one configuration object as delivered by the configuration source.
type Record struct {
	Path string
	Data SensorData
}

// Snapshot is every configuration record in source order.
type Snapshot []Record
