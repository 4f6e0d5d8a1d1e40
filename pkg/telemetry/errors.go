// SPDX-License-Identifier: BSD-3-Clause

package telemetry

import "errors"

var ErrPublishFailed = errors.New("telemetry: failed to publish snapshot")
