// SPDX-License-Identifier: BSD-3-Clause

package importjob

import (
	"time"

	"github.com/fancontrold/fancontrold/pkg/curve"
	"github.com/fancontrold/fancontrold/pkg/state"
)

// Spec is the set of parameters create() accepts, matching §4.7's
// job shape: {id, source-path, target-name, optional post-validate
// flag, optional rpm threshold, optional timeout}.
type Spec struct {
	SourcePath   string
	TargetName   string
	PostValidate bool
	RPMThreshold float64
	Timeout      time.Duration
}

// Status is an immutable snapshot of a job's progress, returned by
// Manager.List and Manager.Status.
type Status struct {
	ID              string    `json:"id"`
	SourcePath      string    `json:"sourcePath"`
	TargetName      string    `json:"targetName"`
	State           string    `json:"state"`
	ProgressPercent float64   `json:"progressPercent"`
	Message         string    `json:"message"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Err             string    `json:"err,omitempty"`
}

// job is the manager's internal bookkeeping for one import; it is
// never exposed directly, only through Status snapshots.
type job struct {
	id      string
	spec    Spec
	created time.Time

	fsm   *state.FSM
	state string // mirrors fsm.CurrentState(), kept in sync by its persistence callback

	progressPercent float64
	message         string
	updated         time.Time
	err             error

	profile *curve.Profile
	cancel  chan struct{}
}

func (j *job) snapshot() Status {
	s := Status{
		ID:              j.id,
		SourcePath:      j.spec.SourcePath,
		TargetName:      j.spec.TargetName,
		State:           j.state,
		ProgressPercent: j.progressPercent,
		Message:         j.message,
		CreatedAt:       j.created,
		UpdatedAt:       j.updated,
	}
	if j.err != nil {
		s.Err = j.err.Error()
	}
	return s
}

func (j *job) canceled() bool {
	select {
	case <-j.cancel:
		return true
	default:
		return false
	}
}
