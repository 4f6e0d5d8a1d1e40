// SPDX-License-Identifier: BSD-3-Clause

package handlers

import "sync"

// DaemonControl lets the "daemon.shutdown" and "daemon.restart"
// handlers signal cmd/fancontrold's main loop without reaching into
// process-global state. cancel is the same CancelFunc the accept and
// tick contexts already watch via ctx.Done(), so either method drains
// the daemon through its normal shutdown path; main distinguishes the
// two afterward via RestartRequested to choose an exit code (§6, "a
// distinct non-zero code when restart was requested so a supervisor
// may re-exec").
type DaemonControl struct {
	cancel func()

	mu      sync.Mutex
	restart bool
}

// NewDaemonControl returns a DaemonControl that triggers cancel on
// shutdown or restart.
func NewDaemonControl(cancel func()) *DaemonControl {
	return &DaemonControl{cancel: cancel}
}

// Shutdown requests a clean stop.
func (d *DaemonControl) Shutdown() {
	d.cancel()
}

// Restart requests a stop followed by re-exec, recording the request
// so RestartRequested reports it once the daemon has drained.
func (d *DaemonControl) Restart() {
	d.mu.Lock()
	d.restart = true
	d.mu.Unlock()
	d.cancel()
}

// RestartRequested reports whether Restart (rather than Shutdown or an
// external signal) caused the most recent stop.
func (d *DaemonControl) RestartRequested() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.restart
}
