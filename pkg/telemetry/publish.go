// SPDX-License-Identifier: BSD-3-Clause

package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

const shmDir = "/dev/shm"

// Publisher serializes Snapshot values and publishes them atomically,
// preferring a POSIX shared-memory region and falling back to a regular
// file when shared memory is unavailable — grounded on pkg/file's
// CreateTemp-then-rename idiom (pkg/file/atomic.go), adapted here to a
// full-content replace rather than an append-style update, since a
// telemetry snapshot always wholly supersedes the previous one.
type Publisher struct {
	mu       sync.Mutex
	shmPath  string // e.g. /dev/shm/fancontrold
	filePath string // fallback, used verbatim as configured
	useShm   bool
}

// NewPublisher derives the shared-memory leaf name from shmPathConfig
// per §6: if it contains a path separator, only the final component is
// kept, prefixed by a single slash; otherwise the whole string is
// prefixed by a single slash. filePathConfig is the fallback regular
// file path, used unmodified.
func NewPublisher(shmPathConfig, filePathConfig string) *Publisher {
	leaf := filepath.Base(strings.TrimSuffix(shmPathConfig, "/"))
	if leaf == "." || leaf == "" {
		leaf = shmPathConfig
	}
	p := &Publisher{
		shmPath:  filepath.Join(shmDir, leaf),
		filePath: filePathConfig,
	}
	if info, err := os.Stat(shmDir); err == nil && info.IsDir() {
		p.useShm = true
	}
	return p
}

// Publish serializes snap and atomically replaces the published content.
// Readers either observe the previous snapshot or the new one, never a
// torn blend (§3 invariant 5).
func (p *Publisher) Publish(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.useShm {
		if err := atomicReplace(p.shmPath, data); err == nil {
			return nil
		}
		p.useShm = false // fall back permanently once shm writes start failing
	}

	if err := atomicReplace(p.filePath, data); err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return nil
}

// atomicReplace writes data to a temp file in the same directory as
// path and renames it into place; os.Rename on Linux replaces an
// existing destination atomically within the same filesystem.
func atomicReplace(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = unix.Rename(tmpName, path); err != nil {
		return err
	}
	return nil
}
