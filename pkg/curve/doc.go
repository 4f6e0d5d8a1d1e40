// SPDX-License-Identifier: BSD-3-Clause

// Package curve implements the pure, I/O-free math behind the three curve
// variants a control can reference: Graph (piecewise-linear), Trigger
// (two-state hysteresis) and Mix (min/avg/max combination of other curves).
// Sensor resolution and the recursive Mix source walk live in package
// engine; this package only ever sees already-reduced temperatures.
package curve
