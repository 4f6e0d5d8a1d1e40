// SPDX-License-Identifier: BSD-3-Clause

// Package detect implements the per-PWM auto-detection procedure of §4.4:
// for each PWM output, determine which fan tachs respond and synthesize a
// starting Graph curve from the observed duty/rpm response. A run is a
// single cancellable background job, mirroring pkg/importjob's job shape,
// since only one detection run may be active at a time.
package detect
