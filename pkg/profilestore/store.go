// SPDX-License-Identifier: BSD-3-Clause

package profilestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fancontrold/fancontrold/pkg/curve"
)

const extension = ".json"

// activeMarker is the name of the file recording the active profile's
// name (§6 "profile.getActive"/"profile.setActive"), so the active
// selection survives a daemon restart.
const activeMarker = ".active"

// Store reads and writes curve.Profile documents as individual JSON
// files in a single flat directory, one file per profile name.
type Store struct {
	dir string

	mu     sync.RWMutex
	active string
}

// New returns a Store rooted at dir. dir is created on first Save if it
// does not already exist.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// List returns every profile name with a file in the store, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("profilestore: list %s: %w", s.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), extension))
	}
	sort.Strings(names)
	return names, nil
}

// Load reads and unmarshals the named profile.
func (s *Store) Load(name string) (*curve.Profile, error) {
	path, err := s.pathFor(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		return nil, fmt.Errorf("profilestore: read %s: %w", name, err)
	}

	var p curve.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profilestore: unmarshal %s: %w", name, err)
	}
	return &p, nil
}

// Save validates p and atomically writes it to p.Name's file, creating
// the store directory if necessary and overwriting any existing file
// with the same name.
func (s *Store) Save(p *curve.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("profilestore: refusing to save invalid profile %q: %w", p.Name, err)
	}
	path, err := s.pathFor(p.Name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("profilestore: create %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("profilestore: marshal %s: %w", p.Name, err)
	}
	data = append(data, '\n')

	if err := atomicReplace(path, data); err != nil {
		return fmt.Errorf("profilestore: write %s: %w", p.Name, err)
	}
	return nil
}

// atomicReplace writes data to a temp file beside path and renames it
// into place. Unlike pkg/file's AtomicUpdateFile, this never copies the
// previous content first: a saved profile always wholly supersedes the
// one it replaces (mirrors pkg/telemetry's publisher, which has the
// same whole-document-replace requirement).
func atomicReplace(path string, data []byte) (err error) {
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
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Delete removes the named profile's file. Deleting a profile that does
// not exist is not an error.
func (s *Store) Delete(name string) error {
	path, err := s.pathFor(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("profilestore: delete %s: %w", name, err)
	}
	return nil
}

// Rename loads oldName, re-saves its content under newName, and
// removes the old file. If oldName is the active profile, the active
// selection follows it to newName.
func (s *Store) Rename(oldName, newName string) error {
	p, err := s.Load(oldName)
	if err != nil {
		return err
	}
	if _, err := s.pathFor(newName); err != nil {
		return err
	}

	wasActive := s.GetActive() == oldName

	p.Name = newName
	if err := s.Save(p); err != nil {
		return err
	}
	if err := s.Delete(oldName); err != nil {
		return err
	}
	if wasActive {
		return s.SetActive(newName)
	}
	return nil
}

// SetActive records name as the active profile, persisting it beside
// the profile files so the selection survives a restart. An empty name
// clears the active selection.
func (s *Store) SetActive(name string) error {
	if name != "" {
		if _, err := s.pathFor(name); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("profilestore: create %s: %w", s.dir, err)
	}
	if err := atomicReplace(filepath.Join(s.dir, activeMarker), []byte(name)); err != nil {
		return fmt.Errorf("profilestore: write active marker: %w", err)
	}

	s.mu.Lock()
	s.active = name
	s.mu.Unlock()
	return nil
}

// GetActive returns the active profile's name, or "" if none has ever
// been set. The in-process value is authoritative once set; otherwise
// the on-disk marker left by a prior process is consulted.
func (s *Store) GetActive() string {
	s.mu.RLock()
	active := s.active
	s.mu.RUnlock()
	if active != "" {
		return active
	}

	data, err := os.ReadFile(filepath.Join(s.dir, activeMarker))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Store) pathFor(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name+extension), nil
}
