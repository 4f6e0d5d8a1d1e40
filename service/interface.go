// SPDX-License-Identifier: BSD-3-Clause

package service

import "context"

// Service is an interface for long running processes supervised by the
// orchestrator. A service that returns an error is restarted; a
// service that returns nil is regarded as done (a oneshot). Name
// should be unique within the daemon.
type Service interface {
	// Name returns the unique name of the service.
	Name() string

	// Run starts the service with the provided context. It returns an
	// error if the service needs to be restarted.
	Run(ctx context.Context) error
}
