// SPDX-License-Identifier: BSD-3-Clause

package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
)

// FSM is a thread-safe wrapper around qmuntal/stateless with optional
// persistence and broadcast hooks invoked after every transition.
type FSM struct {
	config  *Config
	machine *stateless.StateMachine
	mu      sync.RWMutex
	started bool
	stopped bool

	currentState      string
	persistCallback   PersistenceCallback
	broadcastCallback BroadcastCallback
}

// New creates a state machine from config, wiring every declared
// transition (guarded or unguarded, with or without an action) onto
// the underlying stateless.StateMachine.
func New(config *Config) (*FSM, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sm := &FSM{
		config:            config,
		currentState:      config.InitialState,
		persistCallback:   config.PersistenceCallback,
		broadcastCallback: config.BroadcastCallback,
		machine:           stateless.NewStateMachine(config.InitialState),
	}

	byFrom := make(map[string][]Transition)
	for _, t := range config.Transitions {
		byFrom[t.From] = append(byFrom[t.From], t)
	}
	for _, state := range config.States {
		cfg := sm.machine.Configure(state)
		for _, t := range byFrom[state] {
			t := t
			if t.Guard != nil {
				cfg.PermitDynamic(t.Trigger, func(_ context.Context, _ ...any) (any, error) {
					if t.Guard() {
						return t.To, nil
					}
					return nil, ErrTransitionGuardFailed
				})
			} else {
				cfg.Permit(t.Trigger, t.To)
			}
			if t.Action != nil {
				sm.machine.Configure(t.To).OnEntryFrom(t.Trigger, func(_ context.Context, _ ...any) error {
					return t.Action(t.From, t.To, t.Trigger)
				})
			}
		}
		if config.OnStateEntry != nil {
			cfg.OnEntry(func(ctx context.Context, _ ...any) error {
				return config.OnStateEntry(ctx, config.Name, state)
			})
		}
		if config.OnStateExit != nil {
			cfg.OnExit(func(ctx context.Context, _ ...any) error {
				return config.OnStateExit(ctx, config.Name, state)
			})
		}
	}

	return sm, nil
}

// Start marks the machine as running and persists the initial state if
// a persistence callback is configured.
func (sm *FSM) Start(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.started {
		return nil
	}
	if sm.stopped {
		return ErrStateMachineStopped
	}
	sm.started = true

	if sm.persistCallback != nil {
		if err := sm.persistCallback(ctx, sm.config.Name, sm.currentState); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
		}
	}
	return nil
}

// Stop marks the machine as stopped; subsequent Fire calls fail.
func (sm *FSM) Stop(_ context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.started || sm.stopped {
		return nil
	}
	sm.stopped = true
	return nil
}

// Fire triggers a transition, bounding it by config.StateTimeout
// (default 30s), then invokes the persistence and broadcast callbacks
// with the lock released.
func (sm *FSM) Fire(ctx context.Context, trigger string) error {
	sm.mu.Lock()
	if !sm.started {
		sm.mu.Unlock()
		return ErrStateMachineNotStarted
	}
	if sm.stopped {
		sm.mu.Unlock()
		return ErrStateMachineStopped
	}

	if ok, err := sm.machine.CanFire(trigger); err != nil {
		sm.mu.Unlock()
		return fmt.Errorf("%w: trigger %s in state %s: %w", ErrInvalidTrigger, trigger, sm.currentState, err)
	} else if !ok {
		sm.mu.Unlock()
		return fmt.Errorf("%w: trigger %s not valid in state %s", ErrInvalidTrigger, trigger, sm.currentState)
	}

	previousState := sm.currentState
	timeout := sm.config.StateTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	fireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sm.machine.FireCtx(fireCtx, trigger)
	}()

	select {
	case err := <-done:
		if err != nil {
			sm.mu.Unlock()
			return fmt.Errorf("%w: %w", ErrInvalidTransition, err)
		}
	case <-fireCtx.Done():
		sm.mu.Unlock()
		if fireCtx.Err() == context.DeadlineExceeded {
			return ErrTransitionTimeout
		}
		return fireCtx.Err()
	}

	state, err := sm.machine.State(ctx)
	if err != nil {
		sm.mu.Unlock()
		return fmt.Errorf("failed to read current state: %w", err)
	}
	sm.currentState = fmt.Sprintf("%v", state)

	name := sm.config.Name
	curr := sm.currentState
	persistCb := sm.persistCallback
	broadcastCb := sm.broadcastCallback
	sm.mu.Unlock()

	if persistCb != nil {
		if err := persistCb(ctx, name, curr); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
		}
	}
	if broadcastCb != nil {
		return broadcastCb(ctx, name, previousState, curr, trigger)
	}
	return nil
}

// CurrentState returns the machine's current state.
func (sm *FSM) CurrentState() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// CanFire reports whether trigger is valid from the current state.
func (sm *FSM) CanFire(trigger string) (bool, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.machine.CanFire(trigger)
}

// Name returns the state machine's name.
func (sm *FSM) Name() string { return sm.config.Name }

// Manager tracks multiple named state machines, one per in-flight job.
type Manager struct {
	machines map[string]*FSM
	mu       sync.RWMutex
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{machines: make(map[string]*FSM)}
}

// Add registers sm under its name, failing if the name is already in use.
func (m *Manager) Add(sm *FSM) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sm == nil {
		return fmt.Errorf("%w: nil state machine", ErrInvalidConfig)
	}
	if _, exists := m.machines[sm.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrStateMachineExists, sm.Name())
	}
	m.machines[sm.Name()] = sm
	return nil
}

// Remove drops a state machine by name.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.machines[name]; !exists {
		return fmt.Errorf("%w: %s", ErrStateMachineNotFound, name)
	}
	delete(m.machines, name)
	return nil
}

// Get returns the state machine registered under name.
func (m *Manager) Get(name string) (*FSM, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sm, exists := m.machines[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStateMachineNotFound, name)
	}
	return sm, nil
}

// List returns the names of every registered state machine.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.machines))
	for name := range m.machines {
		names = append(names, name)
	}
	return names
}

// StopAll stops every managed state machine, joining any errors.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, sm := range m.machines {
		if err := sm.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
