// SPDX-License-Identifier: BSD-3-Clause

package orchestrator

import (
	"log/slog"
	"time"

	"github.com/fancontrold/fancontrold/pkg/config"
	"github.com/fancontrold/fancontrold/pkg/engine"
	"github.com/fancontrold/fancontrold/pkg/gpu"
	"github.com/fancontrold/fancontrold/pkg/hwmon"
	"github.com/fancontrold/fancontrold/pkg/log"
	"github.com/fancontrold/fancontrold/pkg/rpc"
	"github.com/fancontrold/fancontrold/pkg/telemetry"
	"github.com/fancontrold/fancontrold/service"
)

type cfg struct {
	name    string
	id      string
	logger  *slog.Logger
	timeout time.Duration

	tickInterval         time.Duration
	forceTickInterval    time.Duration
	deadbandPercent      float64
	hwmonRefreshInterval time.Duration
	gpuRefreshInterval   time.Duration

	engine     *engine.Engine
	inventory  *hwmon.Inventory
	gpuSampler *gpu.Sampler
	publisher  *telemetry.Publisher
	rpcServer  *rpc.Server

	extraServices []service.Service
}

// Option configures an Orchestrator at construction time, following
// u-bmc's interface-based functional-options convention.
type Option interface {
	apply(*cfg)
}

type optionFunc func(*cfg)

func (f optionFunc) apply(c *cfg) { f(c) }

// WithName sets the orchestrator's supervised service name.
func WithName(name string) Option {
	return optionFunc(func(c *cfg) { c.name = name })
}

// WithID sets a persistent identifier for this daemon instance.
func WithID(id string) Option {
	return optionFunc(func(c *cfg) { c.id = id })
}

// WithLogger overrides the structured logger used for orchestration
// events; defaults to the global logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *cfg) { c.logger = l })
}

// WithTimeout sets how long the supervision tree waits for a child to
// start or stop before considering it failed.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *cfg) { c.timeout = d })
}

// WithTickIntervals sets the engine tick cadence and the hwmon/GPU
// refresh cadences that feed it, per §5's per-context intervals.
func WithTickIntervals(tick, force, hwmonRefresh, gpuRefresh time.Duration) Option {
	return optionFunc(func(c *cfg) {
		c.tickInterval = tick
		c.forceTickInterval = force
		c.hwmonRefreshInterval = hwmonRefresh
		c.gpuRefreshInterval = gpuRefresh
	})
}

// WithDeadband sets the engine's dead-band percent (§4.2 step 6).
func WithDeadband(percent float64) Option {
	return optionFunc(func(c *cfg) { c.deadbandPercent = percent })
}

// WithEngine installs the engine the tick context drives. Required.
func WithEngine(e *engine.Engine) Option {
	return optionFunc(func(c *cfg) { c.engine = e })
}

// WithInventory installs the hwmon inventory the tick context refreshes
// and publishes. Required.
func WithInventory(inv *hwmon.Inventory) Option {
	return optionFunc(func(c *cfg) { c.inventory = inv })
}

// WithGPUSampler installs the GPU sampler the tick context polls on its
// own cadence; nil disables GPU sampling.
func WithGPUSampler(s *gpu.Sampler) Option {
	return optionFunc(func(c *cfg) { c.gpuSampler = s })
}

// WithPublisher installs the telemetry publisher the tick context
// writes a snapshot to after every tick; nil disables publishing.
func WithPublisher(p *telemetry.Publisher) Option {
	return optionFunc(func(c *cfg) { c.publisher = p })
}

// WithRPCServer installs the RPC listener the accept context owns.
// Required.
func WithRPCServer(s *rpc.Server) Option {
	return optionFunc(func(c *cfg) { c.rpcServer = s })
}

// WithExtraService adds an additional supervised service beyond the
// built-in tick and accept contexts, e.g. a pidfile janitor.
func WithExtraService(s service.Service) Option {
	return optionFunc(func(c *cfg) { c.extraServices = append(c.extraServices, s) })
}

// FromConfig derives tick-related options from a resolved daemon
// Config (§6), so callers do not have to repeat the conversion from
// milliseconds to time.Duration at the call site.
func FromConfig(fc config.Config) Option {
	return optionFunc(func(c *cfg) {
		c.tickInterval = fc.TickInterval
		c.forceTickInterval = fc.ForceTickInterval
		c.deadbandPercent = fc.DeltaC
		c.hwmonRefreshInterval = fc.HwmonRefreshInterval
		c.gpuRefreshInterval = fc.GPURefreshInterval
	})
}

func defaultCfg() cfg {
	return cfg{
		name:                 "fancontrold",
		logger:               log.GetGlobalLogger(),
		timeout:              10 * time.Second,
		tickInterval:         50 * time.Millisecond,
		hwmonRefreshInterval: time.Second,
		gpuRefreshInterval:   time.Second,
		deadbandPercent:      1.0,
	}
}
