// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fancontrold/fancontrold/pkg/curve"
	"github.com/fancontrold/fancontrold/pkg/hwmon"
	"github.com/fancontrold/fancontrold/pkg/id"
)

// Manager runs at most one detection pass at a time (§7, "Conflict |
// Detection already running") and tracks its status for status()/
// cancel()/commit(), the same job-manager shape pkg/importjob uses.
type Manager struct {
	mu      sync.Mutex
	current *run
	view    *hwmon.Inventory
	logger  *slog.Logger
	cfg     config
	clock   func() time.Time
}

// New returns a Manager with no active run.
func New(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return &Manager{
		logger: logger,
		cfg:    c,
		clock:  time.Now,
	}
}

// SetView installs the daemon's already-scanned inventory; detection
// walks it rather than rescanning the hwmon tree itself.
func (m *Manager) SetView(inv *hwmon.Inventory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = inv
}

// Start begins a new detection pass, returning its run id immediately.
// It fails with ErrAlreadyRunning if a prior run has not reached a
// terminal state yet.
func (m *Manager) Start(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.current != nil && !m.current.finished() {
		m.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	inv := m.view
	if inv == nil {
		m.mu.Unlock()
		return "", ErrNoInventory
	}

	now := m.clock()
	r := &run{
		id:      id.NewID(),
		created: now,
		updated: now,
		state:   "running",
		stage:   "starting",
		cancel:  make(chan struct{}),
	}
	m.current = r
	m.mu.Unlock()

	go m.execute(ctx, r, inv)
	return r.id, nil
}

// Cancel requests that the current run stop at its next cooperative
// checkpoint.
func (m *Manager) Cancel(runID string) error {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r == nil || r.id != runID {
		return ErrRunNotFound
	}

	select {
	case <-r.cancel:
	default:
		close(r.cancel)
	}
	return nil
}

// Status returns a run's status snapshot.
func (m *Manager) Status(runID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.id != runID {
		return Status{}, ErrRunNotFound
	}
	return m.current.snapshot(), nil
}

// List returns the current run's status, or nil if none has ever run.
func (m *Manager) List() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return []Status{m.current.snapshot()}
}

// Commit hands a done run's synthesized profile to fn, which is
// expected to persist and/or apply it; the run is cleared afterward so
// a new one may start.
func (m *Manager) Commit(runID string, fn func(*curve.Profile) error) error {
	m.mu.Lock()
	r := m.current
	if r == nil || r.id != runID {
		m.mu.Unlock()
		return ErrRunNotFound
	}
	if r.state != "done" {
		m.mu.Unlock()
		return ErrRunNotDone
	}
	profile := r.profile
	m.mu.Unlock()

	if err := fn(profile); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}

// Results returns the synthesized profile of a done run without
// consuming it, unlike Commit. Callers that only want to inspect the
// detected mapping before committing use this.
func (m *Manager) Results(runID string) (*curve.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.id != runID {
		return nil, ErrRunNotFound
	}
	if m.current.state != "done" {
		return nil, ErrRunNotDone
	}
	return m.current.profile, nil
}

func (m *Manager) setProgress(r *run, percent float64, stage, message string) {
	m.mu.Lock()
	r.percent = percent
	r.stage = stage
	r.message = message
	r.updated = m.clock()
	m.mu.Unlock()
}

func (m *Manager) fail(r *run, err error) {
	m.logger.Warn("detection run failed", "run", r.id, "error", err)
	m.mu.Lock()
	r.state = "error"
	r.err = err
	r.message = err.Error()
	r.updated = m.clock()
	m.mu.Unlock()
}

// execute walks every PWM in inv, building a synthesized profile from
// whichever ones produce a usable curve (§4.4 "Aggregation").
func (m *Manager) execute(ctx context.Context, r *run, inv *hwmon.Inventory) {
	m.logger.InfoContext(ctx, "detection run started", "run", r.id, "pwms", len(inv.PWMs))

	profile := &curve.Profile{Name: fmt.Sprintf("detected-%s", r.id[:8])}
	total := len(inv.PWMs)
	cfg := m.cfg

	for i, pwm := range inv.PWMs {
		if r.canceled() {
			m.fail(r, ErrCanceled)
			return
		}

		percent := float64(i) / float64(max(total, 1)) * 100
		m.setProgress(r, percent, "measuring", fmt.Sprintf("measuring %s", pwm.Path))

		tachs := inv.FansOnChip(pwm.Chip.Path)
		result, err := m.detectOne(ctx, r, pwm, tachs)
		if err != nil {
			m.logger.WarnContext(ctx, "pwm detection failed, continuing", "pwm", pwm.Path, "error", err)
			continue
		}
		if result == nil {
			continue // no responsive tach; not present in the synthesized profile
		}

		m.mu.Lock()
		r.mapped.MappedPWMs++
		m.mu.Unlock()

		ctl := curve.Control{
			Name:    fmt.Sprintf("%s_%s", pwm.Chip.Name, fmt.Sprintf("pwm%d", pwm.Index)),
			PWMPath: pwm.Path,
			Enabled: true,
		}
		if result.tachPath != "" {
			ctl.TachPath = result.tachPath
		}

		if len(result.curvePoints) > 0 {
			curveName := ctl.Name + "_curve"
			c := curve.Curve{
				Name:   curveName,
				Kind:   curve.KindGraph,
				Points: result.curvePoints,
			}
			if result.tempSource != "" {
				c.Sources = []string{result.tempSource}
				m.mu.Lock()
				r.mapped.MappedTemps++
				m.mu.Unlock()
			}
			profile.Curves = append(profile.Curves, c)
			ctl.Curve = curveName
		} else {
			// No usable curve (§4.4 "no usable curve"): the PWM is still
			// recorded as present, pinned manual at its ramp-start duty
			// rather than left dangling on an empty curve reference.
			ctl.Manual = true
			ctl.ManualPercent = cfg.rampStartPercent
			ctl.Enabled = false
		}

		profile.Controls = append(profile.Controls, ctl)
	}

	if r.canceled() {
		m.fail(r, ErrCanceled)
		return
	}

	m.mu.Lock()
	r.profile = profile
	r.state = "done"
	r.percent = 100
	r.stage = "done"
	r.message = "detection complete"
	r.updated = m.clock()
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "detection run done", "run", r.id, "mapped_pwms", len(profile.Controls), "curves", len(profile.Curves))
}
