// SPDX-License-Identifier: BSD-3-Clause

package state

import (
	"context"
	"testing"
)

func jobConfig(name string) *Config {
	return NewConfig(
		WithName(name),
		WithInitialState("pending"),
		WithStates("pending", "running", "done", "error"),
		WithTransition("pending", "running", "start"),
		WithTransition("running", "done", "finish"),
		WithTransition("running", "error", "fail"),
	)
}

func TestFireAdvancesState(t *testing.T) {
	sm, err := New(jobConfig("job-1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := sm.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sm.Fire(ctx, "start"); err != nil {
		t.Fatalf("Fire(start): %v", err)
	}
	if sm.CurrentState() != "running" {
		t.Fatalf("expected running, got %s", sm.CurrentState())
	}
	if err := sm.Fire(ctx, "finish"); err != nil {
		t.Fatalf("Fire(finish): %v", err)
	}
	if sm.CurrentState() != "done" {
		t.Fatalf("expected done, got %s", sm.CurrentState())
	}
}

func TestFireRejectsInvalidTrigger(t *testing.T) {
	sm, err := New(jobConfig("job-2"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	_ = sm.Start(ctx)
	if err := sm.Fire(ctx, "finish"); err == nil {
		t.Fatal("expected error firing finish from pending")
	}
}

func TestFireBeforeStartFails(t *testing.T) {
	sm, err := New(jobConfig("job-3"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sm.Fire(context.Background(), "start"); err != ErrStateMachineNotStarted {
		t.Fatalf("expected ErrStateMachineNotStarted, got %v", err)
	}
}

func TestBroadcastCallbackReceivesTransition(t *testing.T) {
	var from, to, trigger string
	cfg := jobConfig("job-4")
	cfg.BroadcastCallback = func(_ context.Context, _, previousState, currentState, trig string) error {
		from, to, trigger = previousState, currentState, trig
		return nil
	}
	sm, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	_ = sm.Start(ctx)
	if err := sm.Fire(ctx, "start"); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if from != "pending" || to != "running" || trigger != "start" {
		t.Fatalf("unexpected broadcast: %s->%s (%s)", from, to, trigger)
	}
}

func TestManagerAddGetRemove(t *testing.T) {
	m := NewManager()
	sm, _ := New(jobConfig("job-5"))
	if err := m.Add(sm); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := m.Get("job-5"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := m.Remove("job-5"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := m.Get("job-5"); err == nil {
		t.Fatal("expected not found after Remove")
	}
}
