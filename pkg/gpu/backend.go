// SPDX-License-Identifier: BSD-3-Clause

package gpu

import "context"

// Sample is one GPU's telemetry at sample time, matching the §6
// telemetry JSON "gpus" array shape: vendor, name, pci, temperatures,
// and fan.
type Sample struct {
	Vendor       string  `json:"vendor"`
	Name         string  `json:"name"`
	PCIBusID     string  `json:"pci"`
	TemperatureC float64 `json:"temperatureC"`
	FanPercent   float64 `json:"fanPercent"`
	FanAvailable bool    `json:"fanAvailable"`
}

// Backend samples every GPU a vendor-specific library or tool exposes.
// Implementations must not panic or block indefinitely; Sample is called
// on the configured GPU refresh cadence.
type Backend interface {
	Name() string
	Sample(ctx context.Context) ([]Sample, error)
	Close() error
}

// BackendFactory constructs a Backend, returning an error (not a panic)
// when the backend's runtime dependency (driver, CLI tool) is absent.
type BackendFactory func() (Backend, error)
