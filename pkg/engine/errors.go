// SPDX-License-Identifier: BSD-3-Clause

package engine

import "errors"

var (
	ErrNoProfile    = errors.New("engine: no profile applied")
	ErrPWMNotInView = errors.New("engine: control's pwm is not in the installed inventory view")
)
