// SPDX-License-Identifier: BSD-3-Clause

package config

import "errors"

var ErrInvalidConfig = errors.New("config: invalid configuration")
