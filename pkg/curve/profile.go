// SPDX-License-Identifier: BSD-3-Clause

package curve

import "fmt"

// Control binds a PWM output (by sysfs path) to a curve by name, plus the
// flags §3 describes. A control holds no state between ticks beyond what
// the engine keeps in its own rule-state table.
type Control struct {
	Name    string `json:"name"`
	PWMPath string `json:"pwmPath"`
	Curve   string `json:"curve"`

	Enabled bool `json:"enabled"`
	Manual  bool `json:"manual"`
	Hidden  bool `json:"hidden"`

	ManualPercent float64 `json:"manualPercent"`

	// SpinUpThresholdPercent and SpinUpDwellMillis parameterize §4.2 step
	// 7; zero threshold disables spin-up correction for this control.
	SpinUpThresholdPercent float64 `json:"spinUpThresholdPercent,omitempty"`
	SpinUpDwellMillis      int64   `json:"spinUpDwellMillis,omitempty"`

	// TachPath, when set, is the tach this control checks for the
	// zero-RPM condition spin-up correction requires.
	TachPath string `json:"tachPath,omitempty"`
}

// HwmonDeviceMeta is the captured chip metadata a profile carries so an
// operator can tell which physical board a profile was built against.
type HwmonDeviceMeta struct {
	ChipPath string `json:"chipPath"`
	ChipName string `json:"chipName"`
	Vendor   string `json:"vendor,omitempty"`
}

// Profile is a named, versioned aggregate of curves and controls. Profiles
// are value types: loading one replaces the engine's active profile
// atomically at a tick boundary.
type Profile struct {
	Name      string            `json:"name"`
	SchemaTag string            `json:"schemaTag"`
	ToolVer   string            `json:"toolVersion"`
	Curves    []Curve           `json:"curves"`
	Controls  []Control         `json:"controls"`
	HwmonMeta []HwmonDeviceMeta `json:"hwmonDevices,omitempty"`
}

// CurveByName returns the curve with the given name.
func (p *Profile) CurveByName(name string) (*Curve, bool) {
	for i := range p.Curves {
		if p.Curves[i].Name == name {
			return &p.Curves[i], true
		}
	}
	return nil, false
}

// Validate checks every curve, every control's curve reference, every
// Mix's ref list, and name uniqueness.
func (p *Profile) Validate() error {
	seen := make(map[string]struct{}, len(p.Curves))
	for _, c := range p.Curves {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateCurveName, c.Name)
		}
		seen[c.Name] = struct{}{}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("curve %q: %w", c.Name, err)
		}
	}

	for _, c := range p.Curves {
		if c.Kind != KindMix {
			continue
		}
		for _, ref := range c.MixRefs {
			if _, ok := seen[ref]; !ok {
				return fmt.Errorf("%w: curve %q references %q", ErrUnknownMixRef, c.Name, ref)
			}
		}
	}

	ctlSeen := make(map[string]struct{}, len(p.Controls))
	for _, ctl := range p.Controls {
		if _, dup := ctlSeen[ctl.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateControl, ctl.Name)
		}
		ctlSeen[ctl.Name] = struct{}{}
		if ctl.Manual {
			continue
		}
		if _, ok := seen[ctl.Curve]; !ok {
			return fmt.Errorf("%w: control %q references %q", ErrUnknownCurveRef, ctl.Name, ctl.Curve)
		}
	}

	return nil
}
