// SPDX-License-Identifier: BSD-3-Clause

// Package orchestrator wires the daemon's long-lived execution contexts
// into a supervision tree, adapting u-bmc's operator package
// (cirello.io/oversight/v2 plus github.com/arunsworld/nursery) to the
// three-context model of §5: a tick context that owns the hwmon
// inventory, the GPU sampler, and the engine's evaluation loop, an
// accept context that owns the RPC listener, and ad hoc job contexts
// spawned directly by pkg/importjob rather than supervised here.
package orchestrator
