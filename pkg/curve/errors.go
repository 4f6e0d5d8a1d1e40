// SPDX-License-Identifier: BSD-3-Clause

package curve

import "errors"

var (
	ErrEmptyGraph          = errors.New("curve: graph has no points")
	ErrPointsNotSorted     = errors.New("curve: points not strictly ascending in temperature")
	ErrTriggerBandInverted = errors.New("curve: trigger load-temperature must exceed idle-temperature")
	ErrEmptyMix            = errors.New("curve: mix has no referenced curves")
	ErrUnknownMixFunction  = errors.New("curve: unknown mix function")
	ErrUnknownKind         = errors.New("curve: unknown curve kind")
	ErrDuplicateCurveName  = errors.New("profile: duplicate curve name")
	ErrDuplicateControl    = errors.New("profile: duplicate control name")
	ErrUnknownCurveRef     = errors.New("profile: control references unknown curve")
	ErrUnknownMixRef       = errors.New("profile: mix references unknown curve")
)
