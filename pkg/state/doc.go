// SPDX-License-Identifier: BSD-3-Clause

// Package state provides a thread-safe finite state machine wrapper
// around qmuntal/stateless, with optional persistence and broadcast
// callbacks invoked after each transition. It backs the import job
// manager's pending/running/done/error lifecycle (§4.7).
//
// # Basic usage
//
//	cfg := NewConfig(
//		WithName("import-42"),
//		WithInitialState("pending"),
//		WithStates("pending", "running", "done", "error"),
//		WithTransition("pending", "running", "start"),
//		WithTransition("running", "done", "finish"),
//		WithTransition("running", "error", "fail"),
//	)
//	sm, err := New(cfg)
//	if err != nil {
//		return err
//	}
//	if err := sm.Start(ctx); err != nil {
//		return err
//	}
//	if err := sm.Fire(ctx, "start"); err != nil {
//		return err
//	}
//
// # Persistence and broadcast
//
// PersistenceCallback and BroadcastCallback, set via WithPersistence
// and WithBroadcast, run after a transition completes and after the
// internal lock is released, so they may themselves call back into the
// FSM without deadlocking.
//
// # Thread safety
//
// All FSM methods are safe for concurrent use. Fire is bounded by
// config.StateTimeout (default 30s); a transition that exceeds it
// returns ErrTransitionTimeout without changing the recorded state.
package state
