// SPDX-License-Identifier: BSD-3-Clause

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"cirello.io/oversight/v2"
	"github.com/arunsworld/nursery"

	"github.com/fancontrold/fancontrold/pkg/gpu"
	"github.com/fancontrold/fancontrold/pkg/id"
	"github.com/fancontrold/fancontrold/pkg/log"
	"github.com/fancontrold/fancontrold/pkg/process"
	"github.com/fancontrold/fancontrold/pkg/telemetry"
	"github.com/fancontrold/fancontrold/service"
)

// Compile-time assertion that Orchestrator implements service.Service.
var _ service.Service = (*Orchestrator)(nil)

// Orchestrator supervises the daemon's long-lived execution contexts:
// a tick context driving the engine off a live hwmon/GPU view, and an
// accept context serving the JSON-RPC control surface (§5). Ad hoc job
// contexts (detection, profile import) are not supervised here; they
// are spawned directly by their owning package and tracked by their own
// status table.
type Orchestrator struct {
	cfg
}

// New creates an Orchestrator with the given options applied over the
// defaults. WithEngine, WithInventory, and WithRPCServer must be
// supplied before Run; Run returns an error otherwise.
func New(opts ...Option) *Orchestrator {
	c := defaultCfg()
	for _, opt := range opts {
		opt.apply(&c)
	}
	return &Orchestrator{cfg: c}
}

// Name returns the orchestrator's configured service name.
func (o *Orchestrator) Name() string {
	return o.name
}

// Run builds the supervision tree and blocks until ctx is canceled or a
// fatal error occurs. The tick context and the accept context are
// always added; any services passed via WithExtraService are added
// alongside them.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	if o.name == "" {
		return ErrNameEmpty
	}
	if o.engine == nil {
		return ErrNoEngine
	}
	if o.inventory == nil {
		return ErrNoInventory
	}
	if o.rpcServer == nil {
		return ErrNoRPCServer
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %w: %v", o.Name(), ErrPanicked, r)
		}
	}()

	l := o.logger
	if l == nil {
		l = log.GetGlobalLogger()
	}

	if o.id == "" {
		idStr, idErr := id.GetOrCreatePersistentID(o.Name(), "/var/lib/fancontrold")
		if idErr != nil {
			l.WarnContext(ctx, "failed to get/create persistent id, using ephemeral id", "error", idErr)
			o.id = id.NewID()
		} else {
			o.id = idStr
		}
	}

	supervisionTree := oversight.New(
		oversight.NeverHalt(),
		oversight.DefaultRestartStrategy(),
		oversight.WithLogger(log.NewOversightLogger(l)),
	)

	supervise := func(ctx context.Context, c chan error) {
		c <- supervisionTree.Start(ctx)
	}

	spawnProcs := func(ctx context.Context, c chan error) {
		services := []service.Service{
			&tickService{o: o},
			&acceptService{o: o},
		}
		services = append(services, o.extraServices...)

		for _, svc := range services {
			if err := supervisionTree.Add(
				process.New(svc),
				oversight.Transient(),
				oversight.Timeout(o.timeout),
				svc.Name(),
			); err != nil {
				c <- fmt.Errorf("%w %s to tree: %w", ErrAddProcess, svc.Name(), err)
				return
			}
		}
	}

	l.InfoContext(ctx, "starting orchestrator", "name", o.name, "id", o.id)
	return nursery.RunConcurrentlyWithContext(ctx, supervise, spawnProcs)
}

// tickService owns the engine's per-tick evaluation loop and the
// refresh cadences that feed it: hwmon inventory values on their own
// interval, GPU samples on theirs, both independent of the tick rate
// itself (§5).
type tickService struct {
	o *Orchestrator
}

func (t *tickService) Name() string { return t.o.name + "-tick" }

func (t *tickService) Run(ctx context.Context) error {
	l := t.o.logger

	tickInterval := t.o.tickInterval
	if tickInterval <= 0 {
		tickInterval = 50 * time.Millisecond
	}
	hwmonInterval := t.o.hwmonRefreshInterval
	if hwmonInterval <= 0 {
		hwmonInterval = time.Second
	}
	gpuInterval := t.o.gpuRefreshInterval
	if gpuInterval <= 0 {
		gpuInterval = time.Second
	}

	tick := time.NewTicker(tickInterval)
	defer tick.Stop()
	hwmonTick := time.NewTicker(hwmonInterval)
	defer hwmonTick.Stop()
	gpuTick := time.NewTicker(gpuInterval)
	defer gpuTick.Stop()

	var lastGPU []gpu.Sample
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-hwmonTick.C:
			t.o.inventory.RefreshValues(ctx)

		case <-gpuTick.C:
			if t.o.gpuSampler != nil {
				lastGPU = t.o.gpuSampler.Sample(ctx)
			}

		case <-tick.C:
			if _, err := t.o.engine.Tick(ctx, t.o.deadbandPercent, t.o.forceTickInterval); err != nil {
				l.DebugContext(ctx, "engine tick skipped", "error", err)
				continue
			}
			if t.o.publisher != nil {
				snap := telemetry.BuildSnapshot(t.o.engine, t.o.inventory, lastGPU)
				if err := t.o.publisher.Publish(snap); err != nil {
					l.WarnContext(ctx, "telemetry publish failed", "error", err)
				}
			}
		}
	}
}

// acceptService owns the RPC listener's lifecycle: Start binds the
// socket once, the service then blocks until ctx is canceled, and Stop
// tears the listener down on the way out.
type acceptService struct {
	o *Orchestrator
}

func (a *acceptService) Name() string { return a.o.name + "-rpc" }

func (a *acceptService) Run(ctx context.Context) error {
	if err := a.o.rpcServer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.o.rpcServer.Stop()
	return nil
}
