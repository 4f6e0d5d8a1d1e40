// SPDX-License-Identifier: BSD-3-Clause

package detect

import (
	"time"

	"github.com/fancontrold/fancontrold/pkg/curve"
)

// Counters reports how much of the hwmon inventory a run was able to
// map, per §4.4's "Result" bullet.
type Counters struct {
	MappedPWMs  int `json:"mappedPwms"`
	MappedTemps int `json:"mappedTemps"`
}

// Status is an immutable snapshot of a run's progress.
type Status struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Percent   float64   `json:"percent"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Err       string    `json:"err,omitempty"`
	Mapped    Counters  `json:"mapped"`
}

// run is the manager's internal bookkeeping for one detection pass; it
// is never exposed directly, only through Status snapshots.
type run struct {
	id      string
	created time.Time

	state   string
	percent float64
	stage   string
	message string
	updated time.Time
	err     error

	profile *curve.Profile
	mapped  Counters
	cancel  chan struct{}
}

func (r *run) snapshot() Status {
	s := Status{
		ID:        r.id,
		State:     r.state,
		Percent:   r.percent,
		Stage:     r.stage,
		Message:   r.message,
		CreatedAt: r.created,
		UpdatedAt: r.updated,
		Mapped:    r.mapped,
	}
	if r.err != nil {
		s.Err = r.err.Error()
	}
	return s
}

func (r *run) canceled() bool {
	select {
	case <-r.cancel:
		return true
	default:
		return false
	}
}

func (r *run) finished() bool {
	return r.state == "done" || r.state == "error"
}
