// SPDX-License-Identifier: BSD-3-Clause

package importjob

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fancontrold/fancontrold/pkg/curve"
	"github.com/fancontrold/fancontrold/pkg/hwmon"
	"github.com/fancontrold/fancontrold/pkg/id"
	"github.com/fancontrold/fancontrold/pkg/state"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 250 * time.Millisecond
	manualEnableMode    = 1
)

// Manager runs import jobs concurrently, one goroutine per job, and
// tracks their status for list()/commit()/cancel().
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*job
	machines *state.Manager
	view     *hwmon.Inventory
	logger   *slog.Logger
	clock    func() time.Time
}

// New returns an empty Manager.
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		jobs:     make(map[string]*job),
		machines: state.NewManager(),
		logger:   logger,
		clock:    time.Now,
	}
}

// newJobFSM builds the pending/running/done/error state machine for
// j, its persistence callback keeping j.state mirrored on every
// transition so snapshot() never has to touch the FSM directly.
func (m *Manager) newJobFSM(j *job) (*state.FSM, error) {
	cfg := state.NewConfig(
		state.WithName(j.id),
		state.WithInitialState("pending"),
		state.WithStates("pending", "running", "done", "error"),
		state.WithTransition("pending", "running", "start"),
		state.WithTransition("running", "done", "complete"),
		state.WithTransition("pending", "error", "fail"),
		state.WithTransition("running", "error", "fail"),
		state.WithStateTimeout(defaultTimeout),
		state.WithPersistence(func(_ context.Context, _, st string) error {
			m.mu.Lock()
			j.state = st
			j.updated = m.clock()
			m.mu.Unlock()
			return nil
		}),
	)
	return state.New(cfg)
}

// SetView installs the daemon's already-scanned inventory so job
// contexts skip a redundant hwmon rescan (§4.7, "inventory priming").
// This is an optimization only; it must not change job outputs.
func (m *Manager) SetView(inv *hwmon.Inventory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = inv
}

// Create queues a new job and starts it on its own goroutine,
// returning its id immediately.
func (m *Manager) Create(ctx context.Context, spec Spec) (string, error) {
	if spec.SourcePath == "" || spec.TargetName == "" {
		return "", fmt.Errorf("importjob: source path and target name are required")
	}
	if spec.Timeout <= 0 {
		spec.Timeout = defaultTimeout
	}

	jobID := id.NewID()
	now := m.clock()
	j := &job{
		id:      jobID,
		spec:    spec,
		created: now,
		updated: now,
		state:   "pending",
		cancel:  make(chan struct{}),
	}

	fsm, err := m.newJobFSM(j)
	if err != nil {
		return "", fmt.Errorf("importjob: build job state machine: %w", err)
	}
	if err := fsm.Start(ctx); err != nil {
		return "", fmt.Errorf("importjob: start job state machine: %w", err)
	}
	if err := m.machines.Add(fsm); err != nil {
		return "", fmt.Errorf("importjob: register job state machine: %w", err)
	}
	j.fsm = fsm

	m.mu.Lock()
	m.jobs[jobID] = j
	m.mu.Unlock()

	go m.run(ctx, j)
	return jobID, nil
}

// Cancel sets a job's cancel flag; the job observes it at its next
// cooperative checkpoint and transitions to error("canceled").
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	m.mu.Unlock()
	if !ok {
		return ErrJobNotFound
	}

	select {
	case <-j.cancel:
	default:
		close(j.cancel)
	}
	return nil
}

// List returns a snapshot of every known job's status.
func (m *Manager) List() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Status, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// Status returns one job's status snapshot.
func (m *Manager) Status(jobID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return Status{}, ErrJobNotFound
	}
	return j.snapshot(), nil
}

// Commit atomically removes a done job and hands its produced profile
// to fn, which is expected to persist and activate it.
func (m *Manager) Commit(jobID string, fn func(*curve.Profile) error) error {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return ErrJobNotFound
	}
	if j.state != "done" {
		m.mu.Unlock()
		return ErrJobNotDone
	}
	profile := j.profile
	delete(m.jobs, jobID)
	m.mu.Unlock()

	_ = j.fsm.Stop(context.Background())
	_ = m.machines.Remove(j.id)

	return fn(profile)
}

func (m *Manager) setProgress(j *job, percent float64, message string) {
	m.mu.Lock()
	j.progressPercent = percent
	j.message = message
	j.updated = m.clock()
	m.mu.Unlock()
}

// fail fires the job's fsm into "error" and records err. It is only
// ever reached from "pending" or "running", never after a job's
// "complete" transition has already landed it in "done".
func (m *Manager) fail(ctx context.Context, j *job, err error) {
	m.logger.Warn("import job failed", "job", j.id, "error", err)
	if ferr := j.fsm.Fire(ctx, "fail"); ferr != nil {
		m.logger.Warn("import job state transition failed", "job", j.id, "error", ferr)
	}
	m.mu.Lock()
	j.err = err
	j.message = err.Error()
	j.updated = m.clock()
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context, j *job) {
	m.logger.InfoContext(ctx, "import job started", "job", j.id, "source", j.spec.SourcePath)
	if err := j.fsm.Fire(ctx, "start"); err != nil {
		m.fail(ctx, j, fmt.Errorf("start transition: %w", err))
		return
	}
	m.setProgress(j, 0, "reading source file")

	raw, err := os.ReadFile(filepath.Clean(j.spec.SourcePath))
	if err != nil {
		m.fail(ctx, j, fmt.Errorf("read source: %w", err))
		return
	}
	if j.canceled() {
		m.fail(ctx, j, ErrCanceled)
		return
	}

	native, foreign := classify(raw)
	var profile *curve.Profile
	switch {
	case native:
		profile, err = parseNative(j.spec.TargetName, raw)
	case foreign:
		profile, err = translateForeign(j.spec.TargetName, raw, func(percent float64, message string) {
			m.setProgress(j, percent*0.8, message) // translation is the first 80% of progress
		})
	default:
		err = ErrUnrecognizedInput
	}
	if err != nil {
		m.fail(ctx, j, err)
		return
	}
	if err := profile.Validate(); err != nil {
		m.fail(ctx, j, fmt.Errorf("translated profile is invalid: %w", err))
		return
	}
	if j.canceled() {
		m.fail(ctx, j, ErrCanceled)
		return
	}

	if j.spec.PostValidate {
		m.setProgress(j, 85, "post-validating mapped PWMs")
		if err := m.postValidate(ctx, j, profile); err != nil {
			m.fail(ctx, j, err)
			return
		}
	}

	m.mu.Lock()
	j.profile = profile
	j.progressPercent = 100
	j.message = "import complete"
	j.updated = m.clock()
	m.mu.Unlock()
	if err := j.fsm.Fire(ctx, "complete"); err != nil {
		m.fail(ctx, j, fmt.Errorf("complete transition: %w", err))
		return
	}
	m.logger.InfoContext(ctx, "import job done", "job", j.id, "curves", len(profile.Curves), "controls", len(profile.Controls))
}

// postValidate brings each mapped PWM briefly to maximum duty and
// verifies its tach crosses spec.RPMThreshold within spec.Timeout,
// restoring the originally captured enable mode afterwards regardless
// of outcome (§4.7 step 3).
func (m *Manager) postValidate(ctx context.Context, j *job, profile *curve.Profile) error {
	for _, ctl := range profile.Controls {
		if ctl.TachPath == "" {
			continue
		}
		if j.canceled() {
			return ErrCanceled
		}
		if err := m.validateOne(ctx, j, ctl); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) validateOne(ctx context.Context, j *job, ctl curve.Control) error {
	enablePath := ctl.PWMPath + "_enable"
	origMode, err := hwmon.ReadInt(ctx, enablePath)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrValidationFailed, enablePath, err)
	}
	defer func() {
		_ = hwmon.WriteInt(context.Background(), enablePath, origMode)
	}()

	if err := hwmon.WriteInt(ctx, enablePath, manualEnableMode); err != nil {
		return fmt.Errorf("%w: set manual mode on %s: %v", ErrValidationFailed, ctl.Name, err)
	}

	maxRaw := int64(255)
	if m.view != nil {
		if pwm, ok := m.view.FindPWM(ctl.PWMPath); ok {
			maxRaw = pwm.MaxRaw
		}
	}
	if err := hwmon.WriteInt(ctx, ctl.PWMPath, maxRaw); err != nil {
		return fmt.Errorf("%w: drive %s to max: %v", ErrValidationFailed, ctl.Name, err)
	}

	deadline := m.clock().Add(j.spec.Timeout)
	for {
		if j.canceled() {
			return ErrCanceled
		}
		rpm, err := hwmon.ReadInt(ctx, ctl.TachPath)
		if err == nil && float64(rpm) >= j.spec.RPMThreshold {
			return nil
		}
		if m.clock().After(deadline) {
			return fmt.Errorf("%w: %s did not reach %.0f rpm within %s", ErrValidationFailed, ctl.Name, j.spec.RPMThreshold, j.spec.Timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultPollInterval):
		}
	}
}
