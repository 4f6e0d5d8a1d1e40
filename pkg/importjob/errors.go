// SPDX-License-Identifier: BSD-3-Clause

package importjob

import "errors"

var (
	ErrJobNotFound       = errors.New("importjob: job not found")
	ErrJobNotDone        = errors.New("importjob: job has not finished")
	ErrCanceled          = errors.New("importjob: canceled")
	ErrUnrecognizedInput = errors.New("importjob: input is neither native nor a recognized foreign format")
	ErrValidationFailed  = errors.New("importjob: post-validation failed")
)
