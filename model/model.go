// Package model contains core data types for the project.
package model

import "time"

// Machine is a reporting host registered out-of-band.
type Machine struct {
	ID        string `json:"id" yaml:"id"`                 // Stable machine identifier.
	PublicKey string `json:"public_key" yaml:"public_key"` // Ed25519 public key, PEM encoded.
}

// SeriesKey identifies one metric series of one machine.
type SeriesKey struct {
	MachineID string
	Name      string
}

// Sample is one (metric name, value) pair of an ingestion report.
type Sample struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Entry is a stored sample. Timestamp is assigned by the store on append.
type Entry struct {
	Name      string    `json:"name"`
	Value     Value     `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Status is the aggregate fleet status.
type Status string

const (
	StatusOK    Status = "ok"    // StatusOK means the fleet reported healthy data.
	StatusFault Status = "fault" // StatusFault means a series was empty, stale, malformed or unhealthy.
)
