// SPDX-License-Identifier: BSD-3-Clause

package importjob

import (
	"encoding/json"
	"fmt"

	"github.com/fancontrold/fancontrold/pkg/curve"
)

// NativeSchemaTag is the schemaTag value that marks a document as
// already being in this daemon's profile model (§6).
const NativeSchemaTag = "fancontrold.profile/v1"

// foreignFan is one entry of the "fans" array in the one recognized
// foreign format: a flat list of fan curves keyed by sensor path,
// the shape produced by several community fan-control tools.
type foreignFan struct {
	Name     string       `json:"name"`
	PWMPath  string       `json:"pwmPath"`
	TachPath string       `json:"tachPath"`
	Source   string       `json:"sensorPath"`
	Points   [][2]float64 `json:"points"`
}

type foreignDocument struct {
	Fans []foreignFan `json:"fans"`
}

// classify decides whether raw is already a native profile or a
// recognized foreign format, per §4.7 step 1.
func classify(raw []byte) (native bool, foreign bool) {
	var probe struct {
		SchemaTag string `json:"schemaTag"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.SchemaTag == NativeSchemaTag {
		return true, false
	}

	var doc foreignDocument
	if err := json.Unmarshal(raw, &doc); err == nil && len(doc.Fans) > 0 {
		return false, true
	}
	return false, false
}

// translateForeign converts a foreignDocument into the native profile
// model: one Graph curve and one control per fan entry. progress is
// called with a 0-100 percentage and a human message as each fan is
// mapped (§4.7 step 2).
func translateForeign(targetName string, raw []byte, progress func(percent float64, message string)) (*curve.Profile, error) {
	var doc foreignDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedInput, err)
	}

	profile := &curve.Profile{
		Name:      targetName,
		SchemaTag: NativeSchemaTag,
		ToolVer:   "fancontrold-import",
	}

	total := len(doc.Fans)
	for i, fan := range doc.Fans {
		curveName := fan.Name
		if curveName == "" {
			curveName = fmt.Sprintf("imported-%d", i)
		}

		points := make([]curve.Point, 0, len(fan.Points))
		for _, p := range fan.Points {
			points = append(points, curve.Point{TempC: p[0], DutyPercent: p[1]})
		}

		profile.Curves = append(profile.Curves, curve.Curve{
			Name:    curveName,
			Kind:    curve.KindGraph,
			Sources: []string{fan.Source},
			Points:  points,
		})
		profile.Controls = append(profile.Controls, curve.Control{
			Name:     curveName,
			PWMPath:  fan.PWMPath,
			Curve:    curveName,
			Enabled:  true,
			TachPath: fan.TachPath,
		})

		if progress != nil {
			progress(float64(i+1)/float64(total)*100, fmt.Sprintf("mapped fan %q", curveName))
		}
	}

	return profile, nil
}

// parseNative decodes raw directly as a native profile.
func parseNative(targetName string, raw []byte) (*curve.Profile, error) {
	var p curve.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedInput, err)
	}
	p.Name = targetName
	return &p, nil
}
