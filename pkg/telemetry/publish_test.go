// SPDX-License-Identifier: BSD-3-Clause

package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestPublishFallsBackToFileWhenShmUnavailable(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "snapshot.json")

	p := &Publisher{filePath: fallback, useShm: false}

	val := 42.0
	snap := Snapshot{EngineEnabled: true, Hwmon: HwmonSnapshot{Temps: []TempSnapshot{{Path: "x", Value: &val}}}}
	if err := p.Publish(snap); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	data, err := os.ReadFile(fallback)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !got.EngineEnabled {
		t.Fatal("expected engineEnabled true to round-trip")
	}
	if got.Hwmon.Temps[0].Value == nil || *got.Hwmon.Temps[0].Value != 42.0 {
		t.Fatalf("expected temp value to round-trip, got %+v", got.Hwmon.Temps[0])
	}
}

func TestPublishOverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "snapshot.json")
	p := &Publisher{filePath: fallback}

	if err := p.Publish(Snapshot{EngineEnabled: false}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Publish(Snapshot{EngineEnabled: true}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	data, err := os.ReadFile(fallback)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !got.EngineEnabled {
		t.Fatal("expected the second publish to fully replace the first")
	}
}

func TestShmLeafNameDerivation(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"fancontrold", "/dev/shm/fancontrold"},
		{"/var/run/fancontrold", "/dev/shm/fancontrold"},
		{"nested/path/leaf", "/dev/shm/leaf"},
	}
	for _, tc := range cases {
		p := NewPublisher(tc.in, "/tmp/fallback.json")
		if p.shmPath != tc.want {
			t.Errorf("NewPublisher(%q).shmPath = %q, want %q", tc.in, p.shmPath, tc.want)
		}
	}
}
