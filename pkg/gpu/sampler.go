// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"context"
	"log/slog"
	"sync"
)

// Sampler aggregates samples across every backend that initialized
// successfully at construction time. Backends that fail to initialize
// (driver absent, tool not on PATH) are skipped and logged once.
type Sampler struct {
	mu       sync.Mutex
	backends []Backend
	logger   *slog.Logger
}

// New probes each factory in order, keeping only the backends that
// initialize successfully.
func New(logger *slog.Logger, factories ...BackendFactory) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sampler{logger: logger}
	for _, f := range factories {
		b, err := f()
		if err != nil {
			s.logger.Debug("gpu backend unavailable", "error", err)
			continue
		}
		s.backends = append(s.backends, b)
	}
	return s
}

// Sample queries every active backend and concatenates their samples. A
// backend error is logged and excluded from the result; it never fails
// the whole sample round.
func (s *Sampler) Sample(ctx context.Context) []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Sample
	for _, b := range s.backends {
		samples, err := b.Sample(ctx)
		if err != nil {
			s.logger.Warn("gpu backend sample failed", "backend", b.Name(), "error", err)
			continue
		}
		out = append(out, samples...)
	}
	return out
}

// Close shuts down every active backend.
func (s *Sampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, b := range s.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
