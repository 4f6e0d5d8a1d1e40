// SPDX-License-Identifier: BSD-3-Clause

// Package hwmon provides typed access to the kernel hardware-monitor sysfs
// tree (temperature inputs, fan tachometers, PWM outputs) and a scan/refresh
// model over the four semantic tables it exposes.
package hwmon
