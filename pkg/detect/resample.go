// SPDX-License-Identifier: BSD-3-Clause

package detect

import "github.com/fancontrold/fancontrold/pkg/curve"

// measuredPoint is one (duty, rpm) observation from the curve-measurement
// step (§4.4 step 4).
type measuredPoint struct {
	DutyPercent float64
	RPM         float64
}

// trimBelowThreshold discards measurements below minRPM from the bottom
// of the ramp: once a duty step produces a responsive reading, every
// later (higher-duty) step is kept without re-checking, matching "the
// fan did not spin yet" rather than a flaky later reading as the only
// reason to drop a point.
func trimBelowThreshold(points []measuredPoint, minRPM float64) []measuredPoint {
	for i, p := range points {
		if p.RPM >= minRPM {
			return points[i:]
		}
	}
	return nil
}

// resample turns a monotonic duty ramp into a Graph curve's points,
// the floor/setpoints/ceiling shape this package's detection procedure
// borrows from the NVIDIA fan-control CLI's curve builder: the lowest
// surviving duty becomes the idle anchor, the highest becomes the load
// anchor, and intermediate steps are spread evenly between them. Duty
// values are already non-decreasing by construction (the ramp walks
// upward), so the result satisfies Graph's ascending-temperature
// invariant without further sorting.
func resample(points []measuredPoint, idleTempC, loadTempC float64) []curve.Point {
	if len(points) == 0 {
		return nil
	}
	if len(points) == 1 {
		return []curve.Point{
			{TempC: idleTempC, DutyPercent: points[0].DutyPercent},
			{TempC: loadTempC, DutyPercent: points[0].DutyPercent},
		}
	}

	span := loadTempC - idleTempC
	step := span / float64(len(points)-1)

	out := make([]curve.Point, len(points))
	for i, p := range points {
		out[i] = curve.Point{
			TempC:       idleTempC + step*float64(i),
			DutyPercent: p.DutyPercent,
		}
	}
	return out
}
