// SPDX-License-Identifier: BSD-3-Clause

package hwmon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

const (
	// DefaultHwmonPath is the default root of the kernel hardware-monitor tree.
	DefaultHwmonPath = "/sys/class/hwmon"

	// DefaultMaxRaw is the PWM duty ceiling assumed when a device has no
	// pwmN_max sibling file.
	DefaultMaxRaw = 255
)

// ReadInt reads a whole-file decimal integer from a sysfs attribute.
func ReadInt(ctx context.Context, path string) (int64, error) {
	if path == "" {
		return 0, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	type result struct {
		value int64
		err   error
	}
	done := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(path)
		if err != nil {
			done <- result{0, mapFileError(err, path)}
			return
		}

		value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			done <- result{0, fmt.Errorf("%w: %s: %w", ErrParse, path, err)}
			return
		}

		done <- result{value, nil}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %s: %w", ErrTimeout, path, ctx.Err())
	}
}

// WriteInt writes an integer value to a sysfs attribute. Writes are
// unbuffered and flush before returning; a failure is reported to the
// caller and never panics.
func WriteInt(ctx context.Context, path string, value int64) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	done := make(chan error, 1)

	go func() {
		done <- mapFileError(os.WriteFile(path, []byte(strconv.FormatInt(value, 10)), 0o644), path)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrTimeout, path, ctx.Err())
	}
}

// ReadString reads a trimmed string attribute, e.g. a chip's "name" file or
// a tempN_label/fanN_label.
func ReadString(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(path)
		if err != nil {
			done <- result{"", mapFileError(err, path)}
			return
		}
		done <- result{strings.TrimSpace(string(data)), nil}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %s: %w", ErrTimeout, path, ctx.Err())
	}
}

// FileExists reports whether path is present, without distinguishing the
// reason when it is not.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsWritable reports whether path can be opened for writing by this process.
func IsWritable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

var hwmonDirPattern = regexp.MustCompile(`^hwmon\d+$`)

// ListChipDirs lists hwmonN directories directly under root.
func ListChipDirs(root string) ([]string, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty hwmon root", ErrInvalidPath)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, mapFileError(err, root)
	}

	var dirs []string
	for _, e := range entries {
		if !hwmonDirPattern.MatchString(e.Name()) {
			continue
		}
		p := filepath.Join(root, e.Name())
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			dirs = append(dirs, p)
		}
	}
	return dirs, nil
}

// ListAttributes lists non-directory entries of a chip directory whose name
// matches pattern (a regexp); an empty pattern matches everything.
func ListAttributes(devicePath, pattern string) ([]string, error) {
	if devicePath == "" {
		return nil, fmt.Errorf("%w: empty device path", ErrInvalidPath)
	}

	entries, err := os.ReadDir(devicePath)
	if err != nil {
		return nil, mapFileError(err, devicePath)
	}

	var re *regexp.Regexp
	if pattern != "" {
		re, err = regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %w", ErrParse, pattern, err)
		}
	}

	var attrs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if re == nil || re.MatchString(e.Name()) {
			attrs = append(attrs, e.Name())
		}
	}
	return attrs, nil
}

// mapFileError classifies an os-level error into one of the four sysfs
// error kinds the rest of the package propagates.
func mapFileError(err error, path string) error {
	if err == nil {
		return nil
	}

	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	}

	var pe *os.PathError
	if errors.As(err, &pe) {
		var errno syscall.Errno
		if errors.As(pe.Err, &errno) && errno == syscall.EINVAL {
			return fmt.Errorf("%w: %s: %w", ErrParse, path, err)
		}
	}

	return fmt.Errorf("%w: %s: %w", ErrIo, path, err)
}
