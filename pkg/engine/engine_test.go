// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fancontrold/fancontrold/pkg/curve"
	"github.com/fancontrold/fancontrold/pkg/hwmon"
)

// fakeIO is an in-memory sysfsIO for deterministic tests; it never touches
// a real sysfs tree.
type fakeIO struct {
	mu     sync.Mutex
	values map[string]int64
	writes map[string]int
	failOn map[string]bool
}

func newFakeIO() *fakeIO {
	return &fakeIO{values: make(map[string]int64), writes: make(map[string]int), failOn: make(map[string]bool)}
}

func (f *fakeIO) ReadInt(ctx context.Context, path string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[path], nil
}

func (f *fakeIO) WriteInt(ctx context.Context, path string, value int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[path] {
		return errWriteFailed
	}
	f.values[path] = value
	f.writes[path]++
	return nil
}

var errWriteFailed = &testError{"write failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func testView(tempC float64) *hwmon.Inventory {
	return &hwmon.Inventory{
		Temps: []hwmon.TempInput{{Path: "/sys/class/hwmon/hwmon0/temp1_input", LastValue: tempC, Available: true}},
		PWMs: []hwmon.PWMOutput{{
			Path:       "/sys/class/hwmon/hwmon0/pwm1",
			EnablePath: "/sys/class/hwmon/hwmon0/pwm1_enable",
			MaxRaw:     255,
		}},
	}
}

func testProfile() *curve.Profile {
	return &curve.Profile{
		Name: "test",
		Curves: []curve.Curve{{
			Name:    "cpu",
			Kind:    curve.KindGraph,
			Sources: []string{"/sys/class/hwmon/hwmon0/temp1_input"},
			Points: []curve.Point{
				{TempC: 30, DutyPercent: 20},
				{TempC: 70, DutyPercent: 100},
			},
		}},
		Controls: []curve.Control{{
			Name:    "cpuFan",
			PWMPath: "/sys/class/hwmon/hwmon0/pwm1",
			Curve:   "cpu",
			Enabled: true,
		}},
	}
}

func TestTickWritesInitialDuty(t *testing.T) {
	io := newFakeIO()
	e := New(withIO(io))
	e.SetView(testView(50))
	if err := e.ApplyProfile(context.Background(), testProfile()); err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}
	if err := e.Enable(context.Background()); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	wrote, err := e.Tick(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !wrote {
		t.Fatal("expected first tick to write")
	}
	if io.writes["/sys/class/hwmon/hwmon0/pwm1"] != 1 {
		t.Fatalf("expected exactly one write, got %d", io.writes["/sys/class/hwmon/hwmon0/pwm1"])
	}
}

// TestTickDeadbandSuppressesSmallChange exercises §8 scenario 3: a
// temperature move that changes the computed duty by less than the
// dead-band must not produce a write.
func TestTickDeadbandSuppressesSmallChange(t *testing.T) {
	io := newFakeIO()
	e := New(withIO(io))
	view := testView(50)
	e.SetView(view)
	if err := e.ApplyProfile(context.Background(), testProfile()); err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}
	e.Enable(context.Background())

	if _, err := e.Tick(context.Background(), 5, 0); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	firstCount := io.writes["/sys/class/hwmon/hwmon0/pwm1"]

	// 50C -> duty 60%; nudge to 50.5C, duty moves well under 5 points.
	view.Temps[0].LastValue = 50.5
	wrote, err := e.Tick(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if wrote {
		t.Fatal("expected dead-band to suppress the write")
	}
	if io.writes["/sys/class/hwmon/hwmon0/pwm1"] != firstCount {
		t.Fatalf("expected no additional write, got %d", io.writes["/sys/class/hwmon/hwmon0/pwm1"])
	}
}

// TestTickForceIntervalOverridesDeadband exercises §8 scenario 4: once
// forceTickInterval has elapsed since the last write, the tick must write
// even though the dead-band alone would suppress it.
func TestTickForceIntervalOverridesDeadband(t *testing.T) {
	io := newFakeIO()
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	e := New(withIO(io), WithClock(clock))
	view := testView(50)
	e.SetView(view)
	if err := e.ApplyProfile(context.Background(), testProfile()); err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}
	e.Enable(context.Background())

	if _, err := e.Tick(context.Background(), 5, time.Minute); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	firstCount := io.writes["/sys/class/hwmon/hwmon0/pwm1"]

	view.Temps[0].LastValue = 50.5
	now = now.Add(2 * time.Minute)
	wrote, err := e.Tick(context.Background(), 5, time.Minute)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !wrote {
		t.Fatal("expected force-tick interval to override the dead-band")
	}
	if io.writes["/sys/class/hwmon/hwmon0/pwm1"] != firstCount+1 {
		t.Fatalf("expected one additional write, got %d", io.writes["/sys/class/hwmon/hwmon0/pwm1"]-firstCount)
	}
}

func TestEnableCapturesAndDisableRestoresMode(t *testing.T) {
	io := newFakeIO()
	io.values["/sys/class/hwmon/hwmon0/pwm1_enable"] = 2 // automatic
	e := New(withIO(io))
	e.SetView(testView(50))
	if err := e.ApplyProfile(context.Background(), testProfile()); err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}

	if err := e.Enable(context.Background()); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if io.values["/sys/class/hwmon/hwmon0/pwm1_enable"] != 1 {
		t.Fatalf("expected manual mode 1 after enable, got %d", io.values["/sys/class/hwmon/hwmon0/pwm1_enable"])
	}

	if err := e.Disable(context.Background()); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if io.values["/sys/class/hwmon/hwmon0/pwm1_enable"] != 2 {
		t.Fatalf("expected original mode 2 restored after disable, got %d", io.values["/sys/class/hwmon/hwmon0/pwm1_enable"])
	}
}

func TestApplyProfileDropsRuleStateForChangedControls(t *testing.T) {
	io := newFakeIO()
	e := New(withIO(io))
	e.SetView(testView(50))
	if err := e.ApplyProfile(context.Background(), testProfile()); err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}
	e.Enable(context.Background())
	if _, err := e.Tick(context.Background(), 2, 0); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	key := ruleKey("cpuFan", "/sys/class/hwmon/hwmon0/pwm1")
	if !e.ruleStates[key].HasWritten {
		t.Fatal("expected rule state to record the first write")
	}

	renamed := testProfile()
	renamed.Controls[0].Name = "cpuFan2"
	if err := e.ApplyProfile(context.Background(), renamed); err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}

	newKey := ruleKey("cpuFan2", "/sys/class/hwmon/hwmon0/pwm1")
	if e.ruleStates[newKey].HasWritten {
		t.Fatal("expected fresh rule state for a control whose name changed")
	}
}

func TestApplyProfileKeepsRuleStateForUnchangedControl(t *testing.T) {
	io := newFakeIO()
	e := New(withIO(io))
	e.SetView(testView(50))
	if err := e.ApplyProfile(context.Background(), testProfile()); err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}
	e.Enable(context.Background())
	if _, err := e.Tick(context.Background(), 2, 0); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if err := e.ApplyProfile(context.Background(), testProfile()); err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}

	key := ruleKey("cpuFan", "/sys/class/hwmon/hwmon0/pwm1")
	if !e.ruleStates[key].HasWritten {
		t.Fatal("expected rule state to be preserved for a control that did not change")
	}
}

func TestTickWithoutProfileReturnsError(t *testing.T) {
	e := New(withIO(newFakeIO()))
	if _, err := e.Tick(context.Background(), 2, 0); err != ErrNoProfile {
		t.Fatalf("expected ErrNoProfile, got %v", err)
	}
}
