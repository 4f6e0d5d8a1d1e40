// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/fancontrold/fancontrold/pkg/hwmon"
)

// sysfsIO is the minimal read/write surface the engine needs from hwmon,
// narrowed to an interface so tests can substitute a fake without touching
// a real sysfs tree.
type sysfsIO interface {
	ReadInt(ctx context.Context, path string) (int64, error)
	WriteInt(ctx context.Context, path string, value int64) error
}

type hwmonIO struct{}

func (hwmonIO) ReadInt(ctx context.Context, path string) (int64, error) {
	return hwmon.ReadInt(ctx, path)
}

func (hwmonIO) WriteInt(ctx context.Context, path string, value int64) error {
	return hwmon.WriteInt(ctx, path, value)
}

// Option configures an Engine at construction time.
type Option func(*config)

type config struct {
	io                   sysfsIO
	logger               *slog.Logger
	clock                func() time.Time
	failureLogEveryTicks int
}

func defaultConfig() config {
	return config{
		io:                   hwmonIO{},
		logger:               slog.Default(),
		clock:                time.Now,
		failureLogEveryTicks: 50,
	}
}

// WithLogger sets the structured logger used for per-control write failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithFailureLogInterval sets how many consecutive tick failures on the same
// control must elapse before logging again (§4.2, "repeated failures on the
// same control trigger a log once per N ticks").
func WithFailureLogInterval(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.failureLogEveryTicks = n
		}
	}
}

// WithClock overrides the time source; tests use this to control spin-up
// dwell and force-tick timing deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.clock = now }
}

// withIO overrides the sysfs backend; unexported because only this
// package's tests should ever fake hardware access.
func withIO(io sysfsIO) Option {
	return func(c *config) { c.io = io }
}
