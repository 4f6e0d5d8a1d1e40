// SPDX-License-Identifier: BSD-3-Clause

package detect

import "time"

// Option configures the tunables of a detection run, following the same
// functional-option shape as pkg/engine's Option.
type Option func(*config)

type config struct {
	settleDelay        time.Duration
	spinupPollInterval time.Duration
	spinupCheckWindow  time.Duration
	modeDwell          time.Duration

	rampStartPercent float64
	rampEndPercent   float64
	rampStepPercent  float64

	minValidRPM    float64
	minValidPoints int
	maxToggleTries int

	idleTempC float64
	loadTempC float64
}

func defaultConfig() config {
	return config{
		settleDelay:        2 * time.Second,
		spinupPollInterval: 200 * time.Millisecond,
		spinupCheckWindow:  3 * time.Second,
		modeDwell:          2 * time.Second,
		rampStartPercent:   20,
		rampEndPercent:     100,
		rampStepPercent:    10,
		minValidRPM:        200,
		minValidPoints:     2,
		maxToggleTries:     3,
		idleTempC:          30,
		loadTempC:          75,
	}
}

// WithSettleDelay sets how long a PWM dwells at ramp-start-percent before
// the spin-up check (§4.4 step 2).
func WithSettleDelay(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.settleDelay = d
		}
	}
}

// WithSpinupWindow sets the poll interval and total window of the
// spin-up check (§4.4 step 3).
func WithSpinupWindow(pollInterval, checkWindow time.Duration) Option {
	return func(c *config) {
		if pollInterval > 0 {
			c.spinupPollInterval = pollInterval
		}
		if checkWindow > 0 {
			c.spinupCheckWindow = checkWindow
		}
	}
}

// WithModeDwell sets the dwell time per duty step of the curve
// measurement (§4.4 step 4).
func WithModeDwell(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.modeDwell = d
		}
	}
}

// WithRampRange sets the duty range and step size walked during curve
// measurement.
func WithRampRange(startPercent, endPercent, stepPercent float64) Option {
	return func(c *config) {
		if stepPercent > 0 && endPercent > startPercent {
			c.rampStartPercent = startPercent
			c.rampEndPercent = endPercent
			c.rampStepPercent = stepPercent
		}
	}
}

// WithMinValidRPM sets the threshold a tach reading must cross to count
// as "responsive" during the spin-up check and curve measurement.
func WithMinValidRPM(rpm float64) Option {
	return func(c *config) {
		if rpm > 0 {
			c.minValidRPM = rpm
		}
	}
}

// WithMinValidPoints sets how many measured points must survive bottom
// trimming for a PWM's curve to be usable.
func WithMinValidPoints(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.minValidPoints = n
		}
	}
}

// WithMaxToggleTries sets how many times an enable-mode toggle write is
// retried before the PWM is abandoned for this run.
func WithMaxToggleTries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxToggleTries = n
		}
	}
}

// WithTempAnchors sets the synthetic idle/load temperatures the measured
// duty response is resampled against (see resample.go).
func WithTempAnchors(idleTempC, loadTempC float64) Option {
	return func(c *config) {
		if loadTempC > idleTempC {
			c.idleTempC = idleTempC
			c.loadTempC = loadTempC
		}
	}
}
