// SPDX-License-Identifier: BSD-3-Clause

package detect

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when a prior run has not
	// yet reached a terminal state.
	ErrAlreadyRunning = errors.New("detect: a detection run is already in progress")
	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = errors.New("detect: run not found")
	// ErrRunNotDone is returned by Commit before the run has finished.
	ErrRunNotDone = errors.New("detect: run has not finished")
	// ErrCanceled records that a run was stopped cooperatively rather
	// than failing.
	ErrCanceled = errors.New("detect: canceled")
	// ErrNoInventory is returned by Start when no hwmon view has been
	// installed via SetView.
	ErrNoInventory = errors.New("detect: no hwmon inventory configured")
)
