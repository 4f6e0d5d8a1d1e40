// SPDX-License-Identifier: BSD-3-Clause

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fancontrold/fancontrold/pkg/config"
	"github.com/fancontrold/fancontrold/pkg/curve"
	"github.com/fancontrold/fancontrold/pkg/detect"
	"github.com/fancontrold/fancontrold/pkg/engine"
	"github.com/fancontrold/fancontrold/pkg/gpu"
	"github.com/fancontrold/fancontrold/pkg/hwmon"
	"github.com/fancontrold/fancontrold/pkg/importjob"
	"github.com/fancontrold/fancontrold/pkg/profilestore"
	"github.com/fancontrold/fancontrold/pkg/rpc"
	"github.com/fancontrold/fancontrold/pkg/telemetry"
)

// daemonVersion is reported by "version". There is no build-time
// version injection in this tree (no ldflags convention in go.mod's
// build setup); bump this by hand alongside tagged releases.
const daemonVersion = "0.1.0"

// Deps are the components the registered handlers close over. ImportMgr
// and DetectMgr may be nil, which disables the profile.import* and
// detect.* methods respectively. Inventory and GPUSampler may also be
// nil: the sensor listings then return empty lists, telemetry.json
// fails without an inventory, and GPU samples are omitted.
type Deps struct {
	Engine      *engine.Engine
	Store       *profilestore.Store
	Inventory   *hwmon.Inventory
	ImportMgr   *importjob.Manager
	DetectMgr   *detect.Manager
	GPUSampler  *gpu.Sampler
	ConfigState *ConfigState
	Daemon      *DaemonControl
	TickMs      int
}

// Register adds every handler in this package to reg.
func Register(reg *rpc.Registry, deps Deps) {
	reg.Register("ping", "Liveness check; returns {\"pong\":true}.", handlePing(deps))
	reg.Register("version", "Report the daemon's version string.", handleVersion(deps))

	reg.Register("config.get", "Get the daemon's live configuration.", handleConfigGet(deps))
	reg.Register("config.set", "Patch one or more configuration fields.", handleConfigSet(deps))
	reg.Register("config.save", "Persist the live configuration to its file.", handleConfigSave(deps))

	reg.Register("profile.list", "List saved profile names.", handleProfileList(deps))
	reg.Register("profile.get", "Get a saved profile by name.", handleProfileGet(deps))
	reg.Register("profile.load", "Load a saved profile, apply it to the engine, and mark it active.", handleProfileLoad(deps))
	reg.Register("profile.save", "Validate and save a profile.", handleProfileSave(deps))
	reg.Register("profile.delete", "Delete a saved profile by name.", handleProfileDelete(deps))
	reg.Register("profile.rename", "Rename a saved profile.", handleProfileRename(deps))
	reg.Register("profile.getActive", "Get the name of the active profile.", handleProfileGetActive(deps))
	reg.Register("profile.setActive", "Mark a saved profile as active without loading it.", handleProfileSetActive(deps))
	reg.Register("profile.apply", "Load a saved profile and apply it to the engine.", handleProfileLoad(deps))

	reg.Register("engine.status", "Report whether the engine is driving the active profile.", handleEngineStatus(deps))
	reg.Register("engine.enable", "Start driving the active profile.", handleEngineEnable(deps))
	reg.Register("engine.disable", "Stop driving the active profile and restore captured enable modes.", handleEngineDisable(deps))
	reg.Register("engine.reset", "Disable the engine and clear its active profile and rule state.", handleEngineReset(deps))

	reg.Register("list.sensor", "List temperature inputs in the current inventory.", handleListSensor(deps))
	reg.Register("list.fan", "List tachometer inputs in the current inventory.", handleListFan(deps))
	reg.Register("list.pwm", "List PWM outputs in the current inventory.", handleListPWM(deps))

	reg.Register("telemetry.json", "Return the current telemetry document.", handleTelemetryJSON(deps))

	reg.Register("daemon.shutdown", "Stop the daemon cleanly.", handleDaemonShutdown(deps))
	reg.Register("daemon.restart", "Stop the daemon so a supervisor may re-exec it.", handleDaemonRestart(deps))

	if deps.ImportMgr != nil {
		reg.Register("profile.importAs", "Start an asynchronous profile import job.", handleImportStart(deps))
		reg.Register("profile.importStatus", "Get an import job's status.", handleImportStatus(deps))
		reg.Register("profile.importJobs", "List all known import jobs.", handleImportList(deps))
		reg.Register("profile.importCancel", "Cancel a running import job.", handleImportCancel(deps))
		reg.Register("profile.importCommit", "Save a done import job's result as a profile and mark it active.", handleImportCommit(deps))
	}

	if deps.DetectMgr != nil {
		reg.Register("detect.start", "Start an asynchronous PWM auto-detection run.", handleDetectStart(deps))
		reg.Register("detect.status", "Get a detection run's status.", handleDetectStatus(deps))
		reg.Register("detect.abort", "Cancel the current detection run.", handleDetectAbort(deps))
		reg.Register("detect.results", "Get a done detection run's synthesized mapping.", handleDetectResults(deps))
		reg.Register("detect.commit", "Save a done detection run's synthesized profile.", handleDetectCommit(deps))
	}
}

type nameParams struct {
	Name string `json:"name"`
}

func invalidParams(err error) *rpc.ErrorPayload {
	return &rpc.ErrorPayload{Code: rpc.CodeInvalidParams, Message: err.Error()}
}

func handlePing(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		return map[string]bool{"pong": true}, nil
	}
}

func handleVersion(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		return map[string]string{"version": daemonVersion}, nil
	}
}

func handleConfigGet(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		return config.ToFile(deps.ConfigState.Get()), nil
	}
}

func handleConfigSet(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var f config.File
		if err := json.Unmarshal(params, &f); err != nil {
			return nil, invalidParams(err)
		}
		next, err := deps.ConfigState.Set(f)
		if err != nil {
			return nil, invalidParams(err)
		}
		return config.ToFile(next), nil
	}
}

func handleConfigSave(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		if err := deps.ConfigState.Save(); err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInternalError, Message: err.Error()}
		}
		return nil, nil
	}
}

func handleProfileList(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		names, err := deps.Store.List()
		if err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInternalError, Message: err.Error()}
		}
		return names, nil
	}
}

func handleProfileGet(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p nameParams
		if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
			return nil, invalidParams(fmt.Errorf("%w: name is required", ErrInvalidParams))
		}
		profile, err := deps.Store.Load(p.Name)
		if err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeNotFound, Message: err.Error()}
		}
		return profile, nil
	}
}

func handleProfileSave(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var profile curve.Profile
		if err := json.Unmarshal(params, &profile); err != nil {
			return nil, invalidParams(err)
		}
		if err := deps.Store.Save(&profile); err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInvalidParams, Message: err.Error()}
		}
		return map[string]string{"name": profile.Name}, nil
	}
}

func handleProfileDelete(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p nameParams
		if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
			return nil, invalidParams(fmt.Errorf("%w: name is required", ErrInvalidParams))
		}
		if err := deps.Store.Delete(p.Name); err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInternalError, Message: err.Error()}
		}
		return nil, nil
	}
}

func handleProfileRename(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p struct {
			Name    string `json:"name"`
			NewName string `json:"newName"`
		}
		if err := json.Unmarshal(params, &p); err != nil || p.Name == "" || p.NewName == "" {
			return nil, invalidParams(fmt.Errorf("%w: name and newName are required", ErrInvalidParams))
		}
		if err := deps.Store.Rename(p.Name, p.NewName); err != nil {
			if errors.Is(err, profilestore.ErrProfileNotFound) {
				return nil, &rpc.ErrorPayload{Code: rpc.CodeNotFound, Message: err.Error()}
			}
			return nil, invalidParams(err)
		}
		return map[string]string{"name": p.NewName}, nil
	}
}

func handleProfileGetActive(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		return map[string]string{"name": deps.Store.GetActive()}, nil
	}
}

func handleProfileSetActive(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p nameParams
		if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
			return nil, invalidParams(fmt.Errorf("%w: name is required", ErrInvalidParams))
		}
		if err := deps.Store.SetActive(p.Name); err != nil {
			if errors.Is(err, profilestore.ErrProfileNotFound) || errors.Is(err, profilestore.ErrInvalidName) {
				return nil, &rpc.ErrorPayload{Code: rpc.CodeNotFound, Message: err.Error()}
			}
			return nil, invalidParams(err)
		}
		return map[string]string{"name": p.Name}, nil
	}
}

func handleProfileLoad(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p nameParams
		if err := json.Unmarshal(params, &p); err != nil || p.Name == "" {
			return nil, invalidParams(fmt.Errorf("%w: name is required", ErrInvalidParams))
		}
		profile, err := deps.Store.Load(p.Name)
		if err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeNotFound, Message: err.Error()}
		}
		if err := deps.Engine.ApplyProfile(ctx, profile); err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInvalidParams, Message: err.Error()}
		}
		if err := deps.Store.SetActive(profile.Name); err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInternalError, Message: err.Error()}
		}
		return map[string]string{"name": profile.Name}, nil
	}
}

func handleEngineStatus(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		status := map[string]interface{}{
			"enabled": deps.Engine.Enabled(),
			"tickMs":  deps.TickMs,
		}
		if profile := deps.Engine.Profile(); profile != nil {
			summary := &telemetry.ProfileSummary{Name: profile.Name}
			for _, c := range profile.Curves {
				summary.Curves = append(summary.Curves, c.Name)
			}
			for _, c := range profile.Controls {
				summary.Controls = append(summary.Controls, c.Name)
			}
			status["profile"] = summary
		}
		return status, nil
	}
}

func handleEngineEnable(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		if err := deps.Engine.Enable(ctx); err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInternalError, Message: err.Error()}
		}
		return nil, nil
	}
}

func handleEngineDisable(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		if err := deps.Engine.Disable(ctx); err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInternalError, Message: err.Error()}
		}
		return nil, nil
	}
}

func handleEngineReset(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		if err := deps.Engine.Reset(ctx); err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInternalError, Message: err.Error()}
		}
		return nil, nil
	}
}

func handleListSensor(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		if deps.Inventory == nil {
			return []telemetry.TempSnapshot{}, nil
		}
		out := make([]telemetry.TempSnapshot, 0, len(deps.Inventory.Temps))
		for _, t := range deps.Inventory.Temps {
			ts := telemetry.TempSnapshot{Path: t.Path, Label: t.Label}
			if t.Available {
				v := t.LastValue
				ts.Value = &v
			}
			out = append(out, ts)
		}
		return out, nil
	}
}

func handleListFan(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		if deps.Inventory == nil {
			return []telemetry.FanSnapshot{}, nil
		}
		out := make([]telemetry.FanSnapshot, 0, len(deps.Inventory.Fans))
		for _, f := range deps.Inventory.Fans {
			fs := telemetry.FanSnapshot{Path: f.Path, Label: f.Label}
			if f.Available {
				v := f.LastValue
				fs.RPM = &v
			}
			out = append(out, fs)
		}
		return out, nil
	}
}

func handleListPWM(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		if deps.Inventory == nil {
			return []telemetry.PWMSnapshot{}, nil
		}
		out := make([]telemetry.PWMSnapshot, 0, len(deps.Inventory.PWMs))
		for _, p := range deps.Inventory.PWMs {
			ps := telemetry.PWMSnapshot{Path: p.Path, Label: p.Label}
			if p.Available && p.MaxRaw > 0 {
				duty := float64(p.LastRaw) / float64(p.MaxRaw) * 100
				ps.DutyPercent = &duty
			}
			out = append(out, ps)
		}
		return out, nil
	}
}

func handleTelemetryJSON(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		if deps.Inventory == nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInternalError, Message: "handlers: no hwmon inventory configured"}
		}
		var samples []gpu.Sample
		if deps.GPUSampler != nil {
			samples = deps.GPUSampler.Sample(ctx)
		}
		return telemetry.BuildSnapshot(deps.Engine, deps.Inventory, samples), nil
	}
}

func handleDaemonShutdown(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		deps.Daemon.Shutdown()
		return nil, nil
	}
}

func handleDaemonRestart(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		deps.Daemon.Restart()
		return nil, nil
	}
}

type importStartParams struct {
	SourcePath    string  `json:"path"`
	TargetName    string  `json:"name"`
	PostValidate  bool    `json:"postValidate"`
	RPMThreshold  float64 `json:"rpmThreshold"`
	TimeoutMillis int     `json:"timeoutMs"`
}

func handleImportStart(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p importStartParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		spec := importjob.Spec{
			SourcePath:   p.SourcePath,
			TargetName:   p.TargetName,
			PostValidate: p.PostValidate,
			RPMThreshold: p.RPMThreshold,
		}
		if p.TimeoutMillis > 0 {
			spec.Timeout = time.Duration(p.TimeoutMillis) * time.Millisecond
		}
		jobID, err := deps.ImportMgr.Create(ctx, spec)
		if err != nil {
			return nil, invalidParams(err)
		}
		return map[string]string{"jobId": jobID}, nil
	}
}

type jobIDParams struct {
	JobID string `json:"jobId"`
}

func handleImportStatus(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p jobIDParams
		if err := json.Unmarshal(params, &p); err != nil || p.JobID == "" {
			return nil, invalidParams(fmt.Errorf("%w: jobId is required", ErrInvalidParams))
		}
		status, err := deps.ImportMgr.Status(p.JobID)
		if err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeJobNotFound, Message: err.Error()}
		}
		return status, nil
	}
}

func handleImportList(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		return deps.ImportMgr.List(), nil
	}
}

func handleImportCancel(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p jobIDParams
		if err := json.Unmarshal(params, &p); err != nil || p.JobID == "" {
			return nil, invalidParams(fmt.Errorf("%w: jobId is required", ErrInvalidParams))
		}
		if err := deps.ImportMgr.Cancel(p.JobID); err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeJobNotFound, Message: err.Error()}
		}
		return nil, nil
	}
}

func handleImportCommit(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p jobIDParams
		if err := json.Unmarshal(params, &p); err != nil || p.JobID == "" {
			return nil, invalidParams(fmt.Errorf("%w: jobId is required", ErrInvalidParams))
		}
		err := deps.ImportMgr.Commit(p.JobID, func(profile *curve.Profile) error {
			if err := deps.Store.Save(profile); err != nil {
				return err
			}
			return deps.Store.SetActive(profile.Name)
		})
		if err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeImportConflict, Message: err.Error()}
		}
		return nil, nil
	}
}

func handleDetectStart(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		id, err := deps.DetectMgr.Start(ctx)
		if err != nil {
			if errors.Is(err, detect.ErrAlreadyRunning) {
				return nil, &rpc.ErrorPayload{Code: rpc.CodeConflict, Message: err.Error()}
			}
			return nil, &rpc.ErrorPayload{Code: rpc.CodeInternalError, Message: err.Error()}
		}
		return map[string]string{"id": id}, nil
	}
}

func handleDetectStatus(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(params, &p); err != nil || p.ID == "" {
			return nil, invalidParams(fmt.Errorf("%w: id is required", ErrInvalidParams))
		}
		status, err := deps.DetectMgr.Status(p.ID)
		if err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeJobNotFound, Message: err.Error()}
		}
		return status, nil
	}
}

func handleDetectAbort(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(params, &p); err != nil || p.ID == "" {
			return nil, invalidParams(fmt.Errorf("%w: id is required", ErrInvalidParams))
		}
		if err := deps.DetectMgr.Cancel(p.ID); err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeJobNotFound, Message: err.Error()}
		}
		return nil, nil
	}
}

func handleDetectResults(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(params, &p); err != nil || p.ID == "" {
			return nil, invalidParams(fmt.Errorf("%w: id is required", ErrInvalidParams))
		}
		profile, err := deps.DetectMgr.Results(p.ID)
		if err != nil {
			if errors.Is(err, detect.ErrRunNotDone) {
				return nil, &rpc.ErrorPayload{Code: rpc.CodeConflict, Message: err.Error()}
			}
			return nil, &rpc.ErrorPayload{Code: rpc.CodeJobNotFound, Message: err.Error()}
		}
		return profile, nil
	}
}

func handleDetectCommit(deps Deps) rpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *rpc.ErrorPayload) {
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(params, &p); err != nil || p.ID == "" {
			return nil, invalidParams(fmt.Errorf("%w: id is required", ErrInvalidParams))
		}
		err := deps.DetectMgr.Commit(p.ID, func(profile *curve.Profile) error {
			return deps.Store.Save(profile)
		})
		if err != nil {
			return nil, &rpc.ErrorPayload{Code: rpc.CodeConflict, Message: err.Error()}
		}
		return nil, nil
	}
}
