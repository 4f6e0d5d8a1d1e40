// SPDX-License-Identifier: BSD-3-Clause

package handlers

import "errors"

var (
	ErrInvalidParams = errors.New("handlers: invalid params")
	// ErrNoConfigPath is returned by "config.save" when the daemon was
	// started without a configuration file path to write back to.
	ErrNoConfigPath = errors.New("handlers: no configuration file path configured")
)
