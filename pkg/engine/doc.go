// SPDX-License-Identifier: BSD-3-Clause

// Package engine implements the per-tick control loop: resolving curve
// sources against a live hwmon inventory, evaluating graph/trigger/mix
// curves, smoothing, dead-banding, spin-up correction, and writing PWM
// duties. It owns the per-control rule state table and the captured
// enable-mode table the profile's PWMs are restored from on disable.
package engine
