// SPDX-License-Identifier: BSD-3-Clause

package hwmon

import "math"

// PercentToRaw converts a duty percent in [0, 100] to a device's raw duty
// range [0, maxRaw], rounding to the nearest integer.
func PercentToRaw(percent float64, maxRaw int64) int64 {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	return int64(math.Round(percent / 100.0 * float64(maxRaw)))
}

// RawToPercent converts a raw duty value back to a percent in [0, 100].
func RawToPercent(raw, maxRaw int64) float64 {
	if maxRaw <= 0 {
		return 0
	}
	p := float64(raw) / float64(maxRaw) * 100.0
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
