// SPDX-License-Identifier: BSD-3-Clause

package curve

import "testing"

func TestEvaluateGraphSinglePoint(t *testing.T) {
	points := []Point{{TempC: 40, DutyPercent: 55}}
	for _, temp := range []float64{-10, 0, 40, 90} {
		if got := EvaluateGraph(points, temp); got != 55 {
			t.Fatalf("EvaluateGraph(%v) = %v, want 55", temp, got)
		}
	}
}

func TestEvaluateGraphClampsAndInterpolates(t *testing.T) {
	points := []Point{{TempC: 20, DutyPercent: 20}, {TempC: 80, DutyPercent: 80}}

	if got := EvaluateGraph(points, 10); got != 20 {
		t.Fatalf("below range = %v, want 20", got)
	}
	if got := EvaluateGraph(points, 90); got != 80 {
		t.Fatalf("above range = %v, want 80", got)
	}
	if got := EvaluateGraph(points, 50); got != 50 {
		t.Fatalf("midpoint = %v, want 50", got)
	}
}

func TestEvaluateTriggerHysteresis(t *testing.T) {
	c := Curve{IdleTemperature: 30, LoadTemperature: 70, IdleDuty: 20, LoadDuty: 90}

	path := []float64{20, 50, 80, 50, 20}
	want := []float64{20, 20, 90, 90, 20}

	isLoad := false
	for i, temp := range path {
		duty, nowLoad := EvaluateTrigger(c, temp, isLoad)
		if duty != want[i] {
			t.Fatalf("step %d: temp=%v duty=%v want=%v", i, temp, duty, want[i])
		}
		isLoad = nowLoad
	}
}

func TestCombineMixMaxWithOneUnavailable(t *testing.T) {
	// The unavailable curve is excluded by the caller before combination;
	// CombineMix itself only ever sees the surviving values.
	values := []float64{42}
	if got := CombineMix(MixMax, values); got != 42 {
		t.Fatalf("CombineMix(max, [42]) = %v, want 42", got)
	}
}

func TestSmoothZeroTauPassesThrough(t *testing.T) {
	if got := Smooth(10, 90, 0, 1); got != 90 {
		t.Fatalf("Smooth with tau=0 = %v, want target 90", got)
	}
}

func TestSmoothApproachesTarget(t *testing.T) {
	got := Smooth(0, 100, 5, 5)
	if got <= 0 || got >= 100 {
		t.Fatalf("Smooth(0,100,tau=5,dt=5) = %v, want strictly between 0 and 100", got)
	}
}
