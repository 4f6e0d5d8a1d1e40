// SPDX-License-Identifier: BSD-3-Clause

package hwmon

import "errors"

// Error kinds for sysfs access, matching the four result kinds a caller must
// distinguish: a file that is gone, one that is present but unreadable by
// this process, one whose content does not parse, and any other I/O failure.
var (
	// ErrNotFound indicates the backing sysfs file does not exist.
	ErrNotFound = errors.New("sysfs: file not found")
	// ErrPermissionDenied indicates the process lacks rights to read or write the file.
	ErrPermissionDenied = errors.New("sysfs: permission denied")
	// ErrParse indicates the file content did not parse as the expected type.
	ErrParse = errors.New("sysfs: value did not parse")
	// ErrIo covers every other read/write failure.
	ErrIo = errors.New("sysfs: io failure")
	// ErrInvalidPath indicates an empty or otherwise unusable path was passed in.
	ErrInvalidPath = errors.New("sysfs: invalid path")
	// ErrTimeout indicates the context was canceled before the operation completed.
	ErrTimeout = errors.New("sysfs: operation timed out")
)
