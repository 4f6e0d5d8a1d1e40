// SPDX-License-Identifier: BSD-3-Clause

// Package gpu samples a uniform GPU telemetry record from whichever
// vendor backends are registered, best-effort. A backend failing to
// initialize (no NVIDIA driver loaded, rocm-smi not installed) simply
// contributes no samples; it never fails the daemon.
package gpu
