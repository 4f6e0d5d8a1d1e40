// SPDX-License-Identifier: BSD-3-Clause

// Package telemetry publishes a single JSON snapshot of daemon state —
// engine enabled flag, hwmon inventory, GPU samples, and the active
// profile summary — atomically into a named shared-memory region, with a
// regular-file fallback when shared memory is unavailable.
package telemetry
