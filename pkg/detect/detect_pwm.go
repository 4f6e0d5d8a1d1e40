// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/fancontrold/fancontrold/pkg/curve"
	"github.com/fancontrold/fancontrold/pkg/hwmon"
)

const manualEnableMode = 1

// pwmResult is what one successful §4.4 "Per-PWM sequence" pass produces:
// the resampled curve points (empty when the PWM has too few valid
// measurements to be useful), the tach that responded most, and the temp
// sensor, if any, auto-associated from the same chip.
type pwmResult struct {
	curvePoints []curve.Point
	tachPath    string
	tempSource  string
}

// detectOne runs the five-step per-PWM sequence on pwm, considering only
// tachs that share its chip. It returns (nil, nil) when no tach on the
// chip ever responds, so the caller omits the PWM from the synthesized
// profile while still counting it in the run's percent-complete math.
func (m *Manager) detectOne(ctx context.Context, r *run, pwm hwmon.PWMOutput, tachs []hwmon.FanTach) (*pwmResult, error) {
	cfg := m.cfg

	// Step 1: capture.
	origMode, err := hwmon.ReadInt(ctx, pwm.EnablePath)
	if err != nil {
		return nil, fmt.Errorf("capture enable mode: %w", err)
	}
	origDuty, err := hwmon.ReadInt(ctx, pwm.Path)
	if err != nil {
		return nil, fmt.Errorf("capture duty: %w", err)
	}
	restore := func() {
		_ = m.writeWithRetry(context.Background(), pwm.Path, origDuty, cfg.maxToggleTries)
		_ = m.writeWithRetry(context.Background(), pwm.EnablePath, origMode, cfg.maxToggleTries)
	}
	defer restore()

	// Step 2: force manual, ramp to the starting duty, settle.
	if err := m.writeWithRetry(ctx, pwm.EnablePath, manualEnableMode, cfg.maxToggleTries); err != nil {
		return nil, fmt.Errorf("force manual mode: %w", err)
	}
	if err := hwmon.WriteInt(ctx, pwm.Path, rawForPercent(cfg.rampStartPercent, pwm.MaxRaw)); err != nil {
		return nil, fmt.Errorf("write ramp-start duty: %w", err)
	}
	if err := m.sleep(ctx, r, cfg.settleDelay); err != nil {
		return nil, err
	}

	// Step 3: spin-up check at full duty.
	if err := hwmon.WriteInt(ctx, pwm.Path, pwm.MaxRaw); err != nil {
		return nil, fmt.Errorf("write spin-up duty: %w", err)
	}
	responsive, err := m.spinupCheck(ctx, r, tachs, cfg)
	if err != nil {
		return nil, err
	}
	if len(responsive) == 0 {
		return nil, nil
	}

	// Step 4: measure curve.
	measured, err := m.measureCurve(ctx, r, pwm, responsive, cfg)
	if err != nil {
		return nil, err
	}

	trimmed := trimBelowThreshold(measured, cfg.minValidRPM)
	result := &pwmResult{tachPath: responsive[0].Path}
	if len(trimmed) >= cfg.minValidPoints {
		result.curvePoints = resample(trimmed, cfg.idleTempC, cfg.loadTempC)
	}
	if temp, ok := firstTempOnChip(m.view, pwm.Chip.Path); ok {
		result.tempSource = temp
	}

	return result, nil
}

// spinupCheck polls every tach on pwm's chip every spinupPollInterval up
// to spinupCheckWindow, recording any that read above minValidRPM at
// least once (§4.4 step 3).
func (m *Manager) spinupCheck(ctx context.Context, r *run, tachs []hwmon.FanTach, cfg config) ([]hwmon.FanTach, error) {
	seen := make(map[string]bool, len(tachs))
	deadline := m.clock().Add(cfg.spinupCheckWindow)

	for m.clock().Before(deadline) {
		if r.canceled() {
			return nil, ErrCanceled
		}
		for _, t := range tachs {
			if seen[t.Path] {
				continue
			}
			rpm, err := hwmon.ReadInt(ctx, t.Path)
			if err == nil && float64(rpm) >= cfg.minValidRPM {
				seen[t.Path] = true
			}
		}
		if err := m.sleep(ctx, r, cfg.spinupPollInterval); err != nil {
			return nil, err
		}
	}

	var out []hwmon.FanTach
	for _, t := range tachs {
		if seen[t.Path] {
			out = append(out, t)
		}
	}
	return out, nil
}

// measureCurve walks duty from rampStartPercent to rampEndPercent,
// dwelling modeDwell per step, recording the maximum RPM seen across
// responsive tachs during each dwell window (§4.4 step 4).
func (m *Manager) measureCurve(ctx context.Context, r *run, pwm hwmon.PWMOutput, responsive []hwmon.FanTach, cfg config) ([]measuredPoint, error) {
	var points []measuredPoint

	for duty := cfg.rampStartPercent; duty <= cfg.rampEndPercent; duty += cfg.rampStepPercent {
		if r.canceled() {
			return nil, ErrCanceled
		}
		if err := hwmon.WriteInt(ctx, pwm.Path, rawForPercent(duty, pwm.MaxRaw)); err != nil {
			return nil, fmt.Errorf("write duty %.0f%%: %w", duty, err)
		}

		maxRPM, err := m.dwellAndSampleMax(ctx, r, responsive, cfg)
		if err != nil {
			return nil, err
		}
		points = append(points, measuredPoint{DutyPercent: duty, RPM: maxRPM})
	}

	return points, nil
}

func (m *Manager) dwellAndSampleMax(ctx context.Context, r *run, tachs []hwmon.FanTach, cfg config) (float64, error) {
	deadline := m.clock().Add(cfg.modeDwell)
	var maxRPM float64

	for {
		for _, t := range tachs {
			if rpm, err := hwmon.ReadInt(ctx, t.Path); err == nil && float64(rpm) > maxRPM {
				maxRPM = float64(rpm)
			}
		}
		if !m.clock().Before(deadline) {
			return maxRPM, nil
		}
		if err := m.sleep(ctx, r, cfg.spinupPollInterval); err != nil {
			return 0, err
		}
	}
}

// writeWithRetry retries a sysfs write up to tries times, the toggle
// failure policy of §4.4's "Failure semantics".
func (m *Manager) writeWithRetry(ctx context.Context, path string, value int64, tries int) error {
	var err error
	for i := 0; i < tries; i++ {
		if err = hwmon.WriteInt(ctx, path, value); err == nil {
			return nil
		}
	}
	return err
}

// sleep blocks for d or returns early on context cancellation or a
// cooperative cancel request, the same idiom pkg/importjob uses for its
// poll loop.
func (m *Manager) sleep(ctx context.Context, r *run, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.cancel:
		return ErrCanceled
	}
}

func rawForPercent(percent float64, maxRaw int64) int64 {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return int64(percent / 100 * float64(maxRaw))
}

func firstTempOnChip(inv *hwmon.Inventory, chipPath string) (string, bool) {
	if inv == nil {
		return "", false
	}
	for _, t := range inv.Temps {
		if t.Chip.Path == chipPath {
			return t.Path, true
		}
	}
	return "", false
}
