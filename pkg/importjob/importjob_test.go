// SPDX-License-Identifier: BSD-3-Clause

package importjob

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fancontrold/fancontrold/pkg/curve"
)

func waitForState(t *testing.T, m *Manager, id, want string, timeout time.Duration) Status {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		st, err := m.Status(id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if st.State == want {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for state %q, last seen %q (%s)", want, st.State, st.Message)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestImportNativeProfile(t *testing.T) {
	native := `{"schemaTag":"fancontrold.profile/v1","toolVersion":"1","curves":[],"controls":[]}`
	path := writeTempFile(t, native)

	m := New(nil)
	id, err := m.Create(context.Background(), Spec{SourcePath: path, TargetName: "imported"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	st := waitForState(t, m, id, "done", time.Second)
	if st.ProgressPercent != 100 {
		t.Fatalf("expected 100%% progress, got %v", st.ProgressPercent)
	}
}

func TestImportForeignProfileTranslates(t *testing.T) {
	foreign := `{"fans":[{"name":"cpuFan","pwmPath":"/sys/class/hwmon/hwmon0/pwm1","sensorPath":"/sys/class/hwmon/hwmon0/temp1_input","points":[[30,20],[70,100]]}]}`
	path := writeTempFile(t, foreign)

	m := New(nil)
	id, err := m.Create(context.Background(), Spec{SourcePath: path, TargetName: "imported"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitForState(t, m, id, "done", time.Second)

	var got *curve.Profile
	if err := m.Commit(id, func(p *curve.Profile) error { got = p; return nil }); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(got.Curves) != 1 || len(got.Controls) != 1 {
		t.Fatalf("expected one translated curve and control, got %+v", got)
	}
	if got.Controls[0].PWMPath != "/sys/class/hwmon/hwmon0/pwm1" {
		t.Fatalf("unexpected control: %+v", got.Controls[0])
	}
}

func TestImportUnrecognizedFormatFails(t *testing.T) {
	path := writeTempFile(t, `{"nonsense":true}`)

	m := New(nil)
	id, err := m.Create(context.Background(), Spec{SourcePath: path, TargetName: "imported"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	st := waitForState(t, m, id, "error", time.Second)
	if st.Err == "" {
		t.Fatal("expected an error message")
	}
}

func TestCancelBeforeRunTransitionsToError(t *testing.T) {
	path := writeTempFile(t, `{"fans":[]}`)

	m := New(nil)
	id, err := m.Create(context.Background(), Spec{SourcePath: path, TargetName: "imported"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = m.Cancel(id)

	st := waitForState(t, m, id, "error", time.Second)
	if st.Err == "" {
		t.Fatalf("expected a terminal error state, got %+v", st)
	}
}

func TestCommitRemovesJob(t *testing.T) {
	native := `{"schemaTag":"fancontrold.profile/v1","toolVersion":"1","name":"x","curves":[],"controls":[]}`
	path := writeTempFile(t, native)

	m := New(nil)
	id, err := m.Create(context.Background(), Spec{SourcePath: path, TargetName: "imported"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitForState(t, m, id, "done", time.Second)

	called := false
	if err := m.Commit(id, func(*curve.Profile) error { called = true; return nil }); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !called {
		t.Fatal("expected commit function to be invoked")
	}
	if _, err := m.Status(id); err != ErrJobNotFound {
		t.Fatalf("expected job removed after commit, got err=%v", err)
	}
}

func TestCommitBeforeDoneFails(t *testing.T) {
	path := writeTempFile(t, `{"nonsense":true}`)
	m := New(nil)
	id, err := m.Create(context.Background(), Spec{SourcePath: path, TargetName: "imported"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Commit(id, func(*curve.Profile) error { return nil }); err == nil {
		t.Fatal("expected Commit to fail before the job reaches done")
	}
}
