// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fancontrold/fancontrold/pkg/curve"
	"github.com/fancontrold/fancontrold/pkg/hwmon"
)

// Engine is the per-tick control loop of §4.2. The zero value is not
// usable; construct with New.
type Engine struct {
	cfg config

	mu      sync.RWMutex
	profile *curve.Profile
	view    *hwmon.Inventory

	ruleStates map[string]*RuleState

	enabled        bool
	capturedEnable map[string]int64 // pwmN_enable path -> original mode

	lastTick time.Time
}

// New constructs an Engine with no profile and no view installed; callers
// must call SetView and ApplyProfile before Tick does anything useful.
func New(opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		cfg:        cfg,
		ruleStates: make(map[string]*RuleState),
	}
}

// SetView installs the inventory the engine resolves curve sources
// against. The tick context owns the inventory; the engine only reads it.
func (e *Engine) SetView(inv *hwmon.Inventory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view = inv
}

// ApplyProfile atomically replaces the active profile and resizes the
// per-rule state table. Rule state survives for any control whose name and
// PWM path both match a control that already existed; no I/O is performed.
func (e *Engine) ApplyProfile(ctx context.Context, p *curve.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*RuleState, len(p.Controls))
	for _, ctl := range p.Controls {
		key := ruleKey(ctl.Name, ctl.PWMPath)
		if old, ok := e.ruleStates[key]; ok {
			next[key] = old
		} else {
			next[key] = newRuleState()
		}
	}
	e.ruleStates = next
	e.profile = p

	if e.enabled {
		e.captureAndManualLocked(ctx)
	}

	return nil
}

// Enable captures each controlled PWM's current enable mode and sets it to
// manual (1). It is idempotent: calling it while already enabled is a no-op.
func (e *Engine) Enable(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled {
		return nil
	}
	e.enabled = true
	e.capturedEnable = make(map[string]int64)
	e.captureAndManualLocked(ctx)
	return nil
}

// captureAndManualLocked captures the enable mode of any profile PWM not
// already captured and writes manual mode to it. Must be called with mu
// held and only while e.enabled is true.
func (e *Engine) captureAndManualLocked(ctx context.Context) {
	if e.profile == nil || e.view == nil {
		return
	}
	for _, ctl := range e.profile.Controls {
		pwm, ok := e.view.FindPWM(ctl.PWMPath)
		if !ok {
			continue
		}
		if _, already := e.capturedEnable[pwm.EnablePath]; already {
			continue
		}
		mode, err := e.cfg.io.ReadInt(ctx, pwm.EnablePath)
		if err != nil {
			e.cfg.logger.Warn("failed to capture pwm enable mode", "path", pwm.EnablePath, "error", err)
			continue
		}
		e.capturedEnable[pwm.EnablePath] = mode
		if err := e.cfg.io.WriteInt(ctx, pwm.EnablePath, 1); err != nil {
			e.cfg.logger.Warn("failed to force manual mode", "path", pwm.EnablePath, "error", err)
		}
	}
}

// Disable restores every captured enable mode and clears engine state. It
// attempts restoration even when called from a signal-triggered shutdown
// path, and is safe to call when not enabled.
func (e *Engine) Disable(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled {
		return nil
	}
	for path, mode := range e.capturedEnable {
		if err := e.cfg.io.WriteInt(ctx, path, mode); err != nil {
			e.cfg.logger.Warn("failed to restore pwm enable mode", "path", path, "error", err)
		}
	}
	e.capturedEnable = nil
	e.enabled = false
	return nil
}

// Enabled reports whether the engine is currently driving the profile.
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

// Profile returns the currently applied profile, or nil if none has
// been applied yet. The returned value must be treated as read-only;
// callers that need to mutate it should clone it first.
func (e *Engine) Profile() *curve.Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profile
}

// Reset disables the engine (restoring captured enable modes) and
// clears the active profile and all per-rule state, returning the
// engine to the state New leaves it in. Unlike Disable, a subsequent
// ApplyProfile starts every rule fresh rather than reusing state keyed
// on a control that happens to share a name and PWM path.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.Disable(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profile = nil
	e.ruleStates = make(map[string]*RuleState)
	e.lastTick = time.Time{}
	return nil
}

// Tick performs one evaluation round over every control in profile order
// and reports whether any duty was actually written. deadbandPercent and
// forceTickInterval are the tick's dead-band parameters (§4.2 step 6).
func (e *Engine) Tick(ctx context.Context, deadbandPercent float64, forceTickInterval time.Duration) (wrote bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.profile == nil {
		return false, ErrNoProfile
	}

	now := e.cfg.clock()
	deltaSeconds := 0.0
	if !e.lastTick.IsZero() {
		deltaSeconds = now.Sub(e.lastTick).Seconds()
	}
	e.lastTick = now

	for _, ctl := range e.profile.Controls {
		rs := e.ruleStates[ruleKey(ctl.Name, ctl.PWMPath)]
		if rs == nil {
			rs = newRuleState()
			e.ruleStates[ruleKey(ctl.Name, ctl.PWMPath)] = rs
		}

		if !e.enabled || !ctl.Enabled {
			continue
		}

		if ctl.Manual {
			if e.writeControlLocked(ctx, ctl, rs, ctl.ManualPercent, now) {
				wrote = true
			}
			continue
		}

		value, ok := e.evaluateCurveLocked(rs, ctl.Curve)
		if !ok {
			continue
		}
		rs.LastSampleTempC = value

		target := value
		if c, ok := e.profile.CurveByName(ctl.Curve); ok && c.SmoothingTauSeconds > 0 && rs.HasWritten {
			target = curve.Smooth(rs.LastWrittenDuty, value, c.SmoothingTauSeconds, deltaSeconds)
		}

		delta := math.Abs(target - rs.LastWrittenDuty)
		forceDue := forceTickInterval > 0 && (!rs.HasWritten || now.Sub(rs.LastWriteTime) >= forceTickInterval)
		if rs.HasWritten && delta < deadbandPercent && !forceDue {
			continue
		}

		final := e.applySpinUpLocked(ctl, rs, target, now)

		if e.writeControlLocked(ctx, ctl, rs, final, now) {
			wrote = true
		}
	}

	return wrote, nil
}

// applySpinUpLocked implements §4.2 step 7.
func (e *Engine) applySpinUpLocked(ctl curve.Control, rs *RuleState, target float64, now time.Time) float64 {
	if ctl.SpinUpThresholdPercent <= 0 {
		return target
	}

	if !rs.SpinUpDeadline.IsZero() && now.Before(rs.SpinUpDeadline) {
		if target < ctl.SpinUpThresholdPercent {
			return ctl.SpinUpThresholdPercent
		}
		return target
	}
	rs.SpinUpDeadline = time.Time{}

	if target <= 0 || target >= ctl.SpinUpThresholdPercent {
		return target
	}
	if !e.tachReadsZeroLocked(ctl.TachPath) {
		return target
	}

	dwell := time.Duration(ctl.SpinUpDwellMillis) * time.Millisecond
	if dwell <= 0 {
		dwell = time.Second
	}
	rs.SpinUpDeadline = now.Add(dwell)
	return ctl.SpinUpThresholdPercent
}

func (e *Engine) tachReadsZeroLocked(tachPath string) bool {
	if tachPath == "" || e.view == nil {
		return false
	}
	for _, f := range e.view.Fans {
		if f.Path == tachPath {
			return f.Available && f.LastValue == 0
		}
	}
	return false
}

// writeControlLocked converts final (a duty percent) to the control's PWM
// raw range and writes it. A write failure does not abort the tick; it is
// counted and logged once per cfg.failureLogEveryTicks consecutive
// failures on the same control.
func (e *Engine) writeControlLocked(ctx context.Context, ctl curve.Control, rs *RuleState, final float64, now time.Time) bool {
	pwm, ok := e.view.FindPWM(ctl.PWMPath)
	if !ok {
		e.recordFailureLocked(ctl, rs, fmt.Errorf("%w: %s", ErrPWMNotInView, ctl.PWMPath))
		return false
	}

	if final < 0 {
		final = 0
	} else if final > 100 {
		final = 100
	}

	raw := hwmon.PercentToRaw(final, pwm.MaxRaw)
	if err := e.cfg.io.WriteInt(ctx, pwm.Path, raw); err != nil {
		e.recordFailureLocked(ctl, rs, err)
		return false
	}

	rs.FailureCount = 0
	rs.LastWrittenDuty = final
	rs.LastWriteTime = now
	rs.HasWritten = true
	return true
}

func (e *Engine) recordFailureLocked(ctl curve.Control, rs *RuleState, err error) {
	rs.FailureCount++
	if rs.FailureCount == 1 || rs.FailureCount%e.cfg.failureLogEveryTicks == 0 {
		e.cfg.logger.Error("pwm write failed", "control", ctl.Name, "pwm", ctl.PWMPath, "consecutiveFailures", rs.FailureCount, "error", err)
	}
}

// evaluateCurveLocked recursively evaluates a curve by name, resolving
// sensor sources (Graph, Trigger) or recursing into referenced curves
// (Mix), excluding any source or referenced curve that is unavailable.
func (e *Engine) evaluateCurveLocked(rs *RuleState, name string) (float64, bool) {
	c, ok := e.profile.CurveByName(name)
	if !ok {
		return 0, false
	}

	switch c.Kind {
	case curve.KindGraph:
		temp, ok := e.resolveMaxLocked(c.Sources)
		if !ok {
			return 0, false
		}
		return curve.EvaluateGraph(c.Points, temp), true

	case curve.KindTrigger:
		temp, ok := e.resolveMaxLocked(c.Sources)
		if !ok {
			return 0, false
		}
		wasLoad := rs.TriggerState[c.Name]
		duty, nowLoad := curve.EvaluateTrigger(*c, temp, wasLoad)
		rs.TriggerState[c.Name] = nowLoad
		return duty, true

	case curve.KindMix:
		var values []float64
		for _, ref := range c.MixRefs {
			if v, ok := e.evaluateCurveLocked(rs, ref); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return 0, false
		}
		return curve.CombineMix(c.MixFunc, values), true

	default:
		return 0, false
	}
}

// resolveMaxLocked reads each source from the installed view and reduces
// the available ones to their maximum (worst-case thermal choice, §3).
func (e *Engine) resolveMaxLocked(sources []string) (float64, bool) {
	if e.view == nil {
		return 0, false
	}
	found := false
	max := math.Inf(-1)
	for _, src := range sources {
		t, ok := e.view.FindTemp(src)
		if !ok || !t.Available {
			continue
		}
		found = true
		if t.LastValue > max {
			max = t.LastValue
		}
	}
	if !found {
		return 0, false
	}
	return max, true
}
