// SPDX-License-Identifier: BSD-3-Clause

// Package importjob implements the asynchronous profile import manager
// described in §4.7: create() queues a job on its own goroutine, which
// reads a source file, classifies it as native or foreign, translates
// foreign formats into the native profile model, optionally
// post-validates each mapped PWM against its tach, and finally stores
// the resulting profile for commit(). Job lifecycle is a
// pending/running/done/error state machine built on pkg/state.
package importjob
