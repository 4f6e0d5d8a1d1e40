// SPDX-License-Identifier: BSD-3-Clause

package orchestrator

import "errors"

var (
	// ErrNameEmpty indicates that the orchestrator name cannot be empty.
	ErrNameEmpty = errors.New("orchestrator name cannot be empty")
	// ErrNoEngine indicates no engine was configured.
	ErrNoEngine = errors.New("orchestrator: no engine configured")
	// ErrNoInventory indicates no hwmon inventory was configured.
	ErrNoInventory = errors.New("orchestrator: no hwmon inventory configured")
	// ErrNoRPCServer indicates no RPC server was configured.
	ErrNoRPCServer = errors.New("orchestrator: no rpc server configured")
	// ErrAddProcess indicates that adding a process to supervision failed.
	ErrAddProcess = errors.New("failed to add process to supervision tree")
	// ErrPanicked indicates that the orchestrator panicked during execution.
	ErrPanicked = errors.New("orchestrator panicked")
)
