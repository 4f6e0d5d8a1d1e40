// SPDX-License-Identifier: BSD-3-Clause

package engine

import "time"

// RuleState is the per-control state the engine keeps between ticks (§3,
// "Engine rule state"). It is created when a profile is applied and lives
// until the profile is replaced.
type RuleState struct {
	LastSampleTempC float64
	LastWrittenDuty float64 // percent
	LastWriteTime   time.Time
	HasWritten      bool

	SpinUpDeadline time.Time

	// TriggerState tracks the idle/load hysteresis flag per curve name,
	// so a Trigger nested under a Mix keeps its own state independent of
	// a top-level Trigger a sibling control might reference.
	TriggerState map[string]bool

	FailureCount int
}

func newRuleState() *RuleState {
	return &RuleState{TriggerState: make(map[string]bool)}
}

func ruleKey(name, pwmPath string) string {
	return name + "|" + pwmPath
}
