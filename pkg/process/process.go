// SPDX-License-Identifier: BSD-3-Clause

// Package process adapts a service.Service into an oversight.ChildProcess.
package process

import (
	"context"
	"fmt"

	"cirello.io/oversight/v2"

	"github.com/fancontrold/fancontrold/service"
)

// New returns an oversight.ChildProcess that runs s, recovering from any
// panic and turning it into an error tagged with the service's name so
// the supervision tree can restart it like any other failure.
func New(s service.Service) oversight.ChildProcess {
	return func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s panicked: %v", s.Name(), r)
			}
		}()

		return s.Run(ctx)
	}
}
