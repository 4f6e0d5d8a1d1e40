// SPDX-License-Identifier: BSD-3-Clause

package profilestore

import "errors"

var (
	// ErrProfileNotFound indicates the named profile has no file on disk.
	ErrProfileNotFound = errors.New("profilestore: profile not found")
	// ErrInvalidName indicates a profile name that cannot be used as a
	// filesystem path component (empty, or containing a path separator).
	ErrInvalidName = errors.New("profilestore: invalid profile name")
)
