// SPDX-License-Identifier: BSD-3-Clause

package curve

import (
	"math"
	"sort"
)

// Kind names a curve variant.
type Kind string

const (
	KindGraph   Kind = "graph"
	KindTrigger Kind = "trigger"
	KindMix     Kind = "mix"
)

// MixFunction names the element-wise combinator a Mix curve applies.
type MixFunction string

const (
	MixMin MixFunction = "min"
	MixAvg MixFunction = "avg"
	MixMax MixFunction = "max"
)

// Point is one (temperature, duty) sample of a Graph curve.
type Point struct {
	TempC       float64 `json:"tempC"`
	DutyPercent float64 `json:"dutyPercent"`
}

// Curve is a named function from temperature to duty percent. Exactly the
// fields relevant to Kind are populated; Validate checks that.
type Curve struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// Sources are sensor sources this curve reads directly: a sysfs
	// temp-input path or a symbolic inventory identifier. Populated for
	// Graph and Trigger; empty for Mix, which instead reads MixRefs.
	Sources []string `json:"sources,omitempty"`

	// Graph.
	Points []Point `json:"points,omitempty"`

	// Trigger.
	IdleTemperature float64 `json:"idleTemperature,omitempty"`
	LoadTemperature float64 `json:"loadTemperature,omitempty"`
	IdleDuty        float64 `json:"idleDuty,omitempty"`
	LoadDuty        float64 `json:"loadDuty,omitempty"`

	// Mix.
	MixFunc MixFunction `json:"mixFunction,omitempty"`
	MixRefs []string    `json:"mixRefs,omitempty"`

	// SmoothingTauSeconds is the optional first-order low-pass time
	// constant applied by the engine after evaluation (§4.2 step 5); zero
	// disables smoothing for this curve.
	SmoothingTauSeconds float64 `json:"smoothingTauSeconds,omitempty"`
}

// Validate checks structural invariants that do not require I/O: points
// sorted ascending with no duplicate temperatures, and fields matching Kind.
func (c Curve) Validate() error {
	switch c.Kind {
	case KindGraph:
		if len(c.Points) == 0 {
			return ErrEmptyGraph
		}
		for i := 1; i < len(c.Points); i++ {
			if c.Points[i].TempC <= c.Points[i-1].TempC {
				return ErrPointsNotSorted
			}
		}
	case KindTrigger:
		if c.LoadTemperature <= c.IdleTemperature {
			return ErrTriggerBandInverted
		}
	case KindMix:
		if len(c.MixRefs) == 0 {
			return ErrEmptyMix
		}
		switch c.MixFunc {
		case MixMin, MixAvg, MixMax:
		default:
			return ErrUnknownMixFunction
		}
	default:
		return ErrUnknownKind
	}
	return nil
}

// EvaluateGraph performs piecewise-linear interpolation over sorted points,
// clamping to the first/last duty outside the point range. A single-point
// graph returns that point's duty for every temperature.
func EvaluateGraph(points []Point, tempC float64) float64 {
	if len(points) == 0 {
		return 0
	}
	if len(points) == 1 || tempC <= points[0].TempC {
		return points[0].DutyPercent
	}
	last := points[len(points)-1]
	if tempC >= last.TempC {
		return last.DutyPercent
	}

	i := sort.Search(len(points), func(i int) bool { return points[i].TempC >= tempC })
	hi := points[i]
	lo := points[i-1]
	span := hi.TempC - lo.TempC
	if span <= 0 {
		return lo.DutyPercent
	}
	frac := (tempC - lo.TempC) / span
	return lo.DutyPercent + frac*(hi.DutyPercent-lo.DutyPercent)
}

// EvaluateTrigger implements the two-state hysteresis switch of §4.2 step 4.
// wasLoad records which side of the band the control was on before this
// tick; the returned isLoad is the state to persist for the next tick.
func EvaluateTrigger(c Curve, reducedTempC float64, wasLoad bool) (dutyPercent float64, isLoad bool) {
	switch {
	case !wasLoad && reducedTempC >= c.LoadTemperature:
		return c.LoadDuty, true
	case wasLoad && reducedTempC <= c.IdleTemperature:
		return c.IdleDuty, false
	case wasLoad:
		return c.LoadDuty, true
	default:
		return c.IdleDuty, false
	}
}

// CombineMix applies fn element-wise over values, which must be non-empty;
// callers exclude unavailable referenced curves before calling.
func CombineMix(fn MixFunction, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	switch fn {
	case MixMin:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case MixMax:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case MixAvg:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	default:
		return values[0]
	}
}

// Smooth applies the first-order low-pass filter of §4.2 step 5.
func Smooth(prev, target, tauSeconds, deltaSeconds float64) float64 {
	if tauSeconds <= 0 {
		return target
	}
	alpha := 1 - math.Exp(-deltaSeconds/tauSeconds)
	return prev + alpha*(target-prev)
}
