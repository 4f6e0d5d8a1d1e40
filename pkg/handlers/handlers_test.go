// SPDX-License-Identifier: BSD-3-Clause

package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fancontrold/fancontrold/pkg/config"
	"github.com/fancontrold/fancontrold/pkg/curve"
	"github.com/fancontrold/fancontrold/pkg/detect"
	"github.com/fancontrold/fancontrold/pkg/engine"
	"github.com/fancontrold/fancontrold/pkg/hwmon"
	"github.com/fancontrold/fancontrold/pkg/importjob"
	"github.com/fancontrold/fancontrold/pkg/profilestore"
	"github.com/fancontrold/fancontrold/pkg/rpc"
)

func testProfile(name string) curve.Profile {
	return curve.Profile{
		Name: name,
		Curves: []curve.Curve{
			{Name: "cpu", Kind: curve.KindGraph, Sources: []string{"/sys/class/hwmon/hwmon0/temp1_input"}, Points: []curve.Point{{TempC: 30, DutyPercent: 20}, {TempC: 70, DutyPercent: 100}}},
		},
		Controls: []curve.Control{
			{Name: "cpuFan", PWMPath: "/sys/class/hwmon/hwmon0/pwm1", Curve: "cpu", Enabled: true},
		},
	}
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	e := engine.New()
	inv := &hwmon.Inventory{}
	e.SetView(inv)
	defaults, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load defaults: %v", err)
	}
	return Deps{
		Engine:      e,
		Store:       profilestore.New(t.TempDir()),
		Inventory:   inv,
		ImportMgr:   importjob.New(nil),
		DetectMgr:   detect.New(nil),
		ConfigState: NewConfigState(defaults, ""),
		Daemon:      NewDaemonControl(func() {}),
		TickMs:      50,
	}
}

func call(t *testing.T, reg *rpc.Registry, method string, params interface{}) (interface{}, *rpc.ErrorPayload) {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return reg.Dispatch(context.Background(), method, raw)
}

func TestProfileSaveGetApplyLifecycle(t *testing.T) {
	deps := newTestDeps(t)
	reg := rpc.NewRegistry()
	Register(reg, deps)

	p := testProfile("default")
	if _, errPayload := call(t, reg, "profile.save", p); errPayload != nil {
		t.Fatalf("profile.save: %+v", errPayload)
	}

	if _, errPayload := call(t, reg, "profile.apply", map[string]string{"name": "default"}); errPayload != nil {
		t.Fatalf("profile.apply: %+v", errPayload)
	}

	data, errPayload := call(t, reg, "engine.status", nil)
	if errPayload != nil {
		t.Fatalf("engine.status: %+v", errPayload)
	}
	status := data.(map[string]interface{})
	if status["enabled"] != false {
		t.Fatalf("expected engine to start disabled, got %+v", status)
	}
	if status["tickMs"] != 50 {
		t.Fatalf("expected tickMs 50, got %+v", status)
	}

	if _, errPayload := call(t, reg, "engine.enable", nil); errPayload != nil {
		t.Fatalf("engine.enable: %+v", errPayload)
	}
	if !deps.Engine.Enabled() {
		t.Fatal("expected engine to be enabled after engine.enable")
	}

	if _, errPayload := call(t, reg, "profile.getActive", nil); errPayload != nil {
		t.Fatalf("profile.getActive: %+v", errPayload)
	}

	if _, errPayload := call(t, reg, "engine.reset", nil); errPayload != nil {
		t.Fatalf("engine.reset: %+v", errPayload)
	}
	if deps.Engine.Enabled() {
		t.Fatal("expected engine to be disabled after engine.reset")
	}
	if deps.Engine.Profile() != nil {
		t.Fatal("expected engine.reset to clear the active profile")
	}
}

func TestProfileLoadMarksActive(t *testing.T) {
	deps := newTestDeps(t)
	reg := rpc.NewRegistry()
	Register(reg, deps)

	if _, errPayload := call(t, reg, "profile.save", testProfile("quiet")); errPayload != nil {
		t.Fatalf("profile.save: %+v", errPayload)
	}
	if _, errPayload := call(t, reg, "profile.load", map[string]string{"name": "quiet"}); errPayload != nil {
		t.Fatalf("profile.load: %+v", errPayload)
	}

	data, errPayload := call(t, reg, "profile.getActive", nil)
	if errPayload != nil {
		t.Fatalf("profile.getActive: %+v", errPayload)
	}
	if got := data.(map[string]string)["name"]; got != "quiet" {
		t.Fatalf("expected active profile %q, got %q", "quiet", got)
	}
}

func TestConfigGetSetSave(t *testing.T) {
	deps := newTestDeps(t)
	reg := rpc.NewRegistry()
	Register(reg, deps)

	if _, errPayload := call(t, reg, "config.get", nil); errPayload != nil {
		t.Fatalf("config.get: %+v", errPayload)
	}

	_, errPayload := call(t, reg, "config.set", map[string]int{"tickMs": 100})
	if errPayload != nil {
		t.Fatalf("config.set: %+v", errPayload)
	}
	if got := deps.ConfigState.Get().TickInterval; got.Milliseconds() != 100 {
		t.Fatalf("expected tick interval 100ms after config.set, got %v", got)
	}

	if _, errPayload := call(t, reg, "config.save", nil); errPayload == nil {
		t.Fatal("expected config.save without a configured path to fail")
	}
}

func TestDaemonShutdownAndRestart(t *testing.T) {
	deps := newTestDeps(t)
	var canceled int
	deps.Daemon = NewDaemonControl(func() { canceled++ })
	reg := rpc.NewRegistry()
	Register(reg, deps)

	if _, errPayload := call(t, reg, "daemon.shutdown", nil); errPayload != nil {
		t.Fatalf("daemon.shutdown: %+v", errPayload)
	}
	if canceled != 1 {
		t.Fatalf("expected shutdown to cancel once, got %d", canceled)
	}
	if deps.Daemon.RestartRequested() {
		t.Fatal("daemon.shutdown must not mark a restart as requested")
	}

	if _, errPayload := call(t, reg, "daemon.restart", nil); errPayload != nil {
		t.Fatalf("daemon.restart: %+v", errPayload)
	}
	if canceled != 2 {
		t.Fatalf("expected restart to cancel again, got %d", canceled)
	}
	if !deps.Daemon.RestartRequested() {
		t.Fatal("expected daemon.restart to mark a restart as requested")
	}
}

func TestProfileGetUnknownReturnsNotFound(t *testing.T) {
	deps := newTestDeps(t)
	reg := rpc.NewRegistry()
	Register(reg, deps)

	_, errPayload := call(t, reg, "profile.get", map[string]string{"name": "nope"})
	if errPayload == nil || errPayload.Code != rpc.CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %+v", errPayload)
	}
}

func TestImportStatusUnknownJobReturnsJobNotFound(t *testing.T) {
	deps := newTestDeps(t)
	reg := rpc.NewRegistry()
	Register(reg, deps)

	_, errPayload := call(t, reg, "profile.importStatus", map[string]string{"jobId": "nope"})
	if errPayload == nil || errPayload.Code != rpc.CodeJobNotFound {
		t.Fatalf("expected CodeJobNotFound, got %+v", errPayload)
	}
}

func TestDetectStatusUnknownRunReturnsJobNotFound(t *testing.T) {
	deps := newTestDeps(t)
	reg := rpc.NewRegistry()
	Register(reg, deps)

	_, errPayload := call(t, reg, "detect.status", map[string]string{"id": "nope"})
	if errPayload == nil || errPayload.Code != rpc.CodeJobNotFound {
		t.Fatalf("expected CodeJobNotFound, got %+v", errPayload)
	}
}

func TestDetectStartWithoutInventoryReturnsInternalError(t *testing.T) {
	deps := newTestDeps(t)
	reg := rpc.NewRegistry()
	Register(reg, deps)

	_, errPayload := call(t, reg, "detect.start", nil)
	if errPayload == nil || errPayload.Code != rpc.CodeInternalError {
		t.Fatalf("expected detect.start without a configured inventory to fail with CodeInternalError, got %+v", errPayload)
	}
}

func TestDetectAbortUnknownRunReturnsJobNotFound(t *testing.T) {
	deps := newTestDeps(t)
	reg := rpc.NewRegistry()
	Register(reg, deps)

	_, errPayload := call(t, reg, "detect.abort", map[string]string{"id": "nope"})
	if errPayload == nil || errPayload.Code != rpc.CodeJobNotFound {
		t.Fatalf("expected CodeJobNotFound, got %+v", errPayload)
	}
}

func TestDetectResultsUnknownRunReturnsJobNotFound(t *testing.T) {
	deps := newTestDeps(t)
	reg := rpc.NewRegistry()
	Register(reg, deps)

	_, errPayload := call(t, reg, "detect.results", map[string]string{"id": "nope"})
	if errPayload == nil || errPayload.Code != rpc.CodeJobNotFound {
		t.Fatalf("expected CodeJobNotFound, got %+v", errPayload)
	}
}
