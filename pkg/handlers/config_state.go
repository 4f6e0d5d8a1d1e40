// SPDX-License-Identifier: BSD-3-Clause

package handlers

import (
	"sync"

	"github.com/fancontrold/fancontrold/pkg/config"
)

// ConfigState is the daemon's live, mutable configuration, backing the
// "config.get"/"config.set"/"config.save" handlers. Unlike the rest of
// Deps it is not read-only: config.set patches it in place, and any
// other component that needs the resolved values at startup reads them
// once from the config.Config main builds before constructing this.
type ConfigState struct {
	mu   sync.RWMutex
	cfg  config.Config
	path string
}

// NewConfigState wraps an already-resolved Config. path is where
// "config.save" writes it; an empty path disables saving.
func NewConfigState(cfg config.Config, path string) *ConfigState {
	return &ConfigState{cfg: cfg, path: path}
}

// Get returns the current configuration.
func (s *ConfigState) Get() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set merges f's non-zero fields into the current configuration,
// validates the result, and installs it.
func (s *ConfigState) Set(f config.File) (config.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := config.MergeFile(s.cfg, f)
	if err != nil {
		return config.Config{}, err
	}
	s.cfg = next
	return next, nil
}

// Save persists the current configuration to the configured path.
func (s *ConfigState) Save() error {
	s.mu.RLock()
	cfg, path := s.cfg, s.path
	s.mu.RUnlock()
	if path == "" {
		return ErrNoConfigPath
	}
	return config.Save(path, cfg)
}
