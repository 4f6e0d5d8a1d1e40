// SPDX-License-Identifier: BSD-3-Clause

package telemetry

import (
	"github.com/fancontrold/fancontrold/pkg/engine"
	"github.com/fancontrold/fancontrold/pkg/gpu"
	"github.com/fancontrold/fancontrold/pkg/hwmon"
)

// ChipSnapshot is one hwmon chip's identity, carried in Snapshot.Hwmon.
type ChipSnapshot struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Vendor string `json:"vendor,omitempty"`
}

// TempSnapshot is one temperature input's last reading. Value is a
// pointer so an unavailable reading serializes as JSON null (§6, "a
// field marked unavailable is represented as JSON null").
type TempSnapshot struct {
	Path  string   `json:"path"`
	Label string   `json:"label,omitempty"`
	Value *float64 `json:"valueC"`
}

// FanSnapshot is one tach's last reading.
type FanSnapshot struct {
	Path  string   `json:"path"`
	Label string   `json:"label,omitempty"`
	RPM   *float64 `json:"rpm"`
}

// PWMSnapshot is one PWM output's last duty and enable mode.
type PWMSnapshot struct {
	Path        string   `json:"path"`
	Label       string   `json:"label,omitempty"`
	DutyPercent *float64 `json:"dutyPercent"`
	EnableMode  *int64   `json:"enableMode,omitempty"`
}

// HwmonSnapshot is the inventory section of a Snapshot.
type HwmonSnapshot struct {
	Chips []ChipSnapshot `json:"chips"`
	Temps []TempSnapshot `json:"temps"`
	Fans  []FanSnapshot  `json:"fans"`
	PWMs  []PWMSnapshot  `json:"pwms"`
}

// ProfileSummary is the active profile's names-only summary (§2, "active
// profile (with names; curves/controls present but without heavy
// metadata)").
type ProfileSummary struct {
	Name     string   `json:"name"`
	Curves   []string `json:"curves"`
	Controls []string `json:"controls"`
}

// Snapshot is the single JSON document telemetry publishes, matching §6
// exactly: engineEnabled, hwmon, gpus, profile.
type Snapshot struct {
	EngineEnabled bool            `json:"engineEnabled"`
	Hwmon         HwmonSnapshot   `json:"hwmon"`
	GPUs          []gpu.Sample    `json:"gpus"`
	Profile       *ProfileSummary `json:"profile"`
}

// BuildSnapshot assembles a Snapshot from the engine's enabled flag and
// active profile, a hwmon inventory, and the most recent GPU sample
// batch. The tick context calls this once per tick to publish; the
// "telemetry.json" RPC handler calls it on demand with a freshly
// sampled GPU batch.
func BuildSnapshot(e *engine.Engine, inv *hwmon.Inventory, gpuSamples []gpu.Sample) Snapshot {
	snap := Snapshot{
		EngineEnabled: e.Enabled(),
		GPUs:          gpuSamples,
	}

	for _, c := range inv.Chips {
		snap.Hwmon.Chips = append(snap.Hwmon.Chips, ChipSnapshot{
			Path: c.Path, Name: c.Name, Vendor: c.Vendor,
		})
	}
	for _, t := range inv.Temps {
		ts := TempSnapshot{Path: t.Path, Label: t.Label}
		if t.Available {
			v := t.LastValue
			ts.Value = &v
		}
		snap.Hwmon.Temps = append(snap.Hwmon.Temps, ts)
	}
	for _, f := range inv.Fans {
		fs := FanSnapshot{Path: f.Path, Label: f.Label}
		if f.Available {
			v := f.LastValue
			fs.RPM = &v
		}
		snap.Hwmon.Fans = append(snap.Hwmon.Fans, fs)
	}
	for _, p := range inv.PWMs {
		ps := PWMSnapshot{Path: p.Path, Label: p.Label}
		if p.Available && p.MaxRaw > 0 {
			duty := float64(p.LastRaw) / float64(p.MaxRaw) * 100
			ps.DutyPercent = &duty
		}
		snap.Hwmon.PWMs = append(snap.Hwmon.PWMs, ps)
	}

	if profile := e.Profile(); profile != nil {
		summary := &ProfileSummary{Name: profile.Name}
		for _, c := range profile.Curves {
			summary.Curves = append(summary.Curves, c.Name)
		}
		for _, c := range profile.Controls {
			summary.Controls = append(summary.Controls, c.Name)
		}
		snap.Profile = summary
	}

	return snap
}
