// SPDX-License-Identifier: BSD-3-Clause

// Package handlers registers the daemon's JSON-RPC methods (§4.6,
// §6's command surface) against a pkg/rpc.Registry: profile CRUD
// backed by pkg/profilestore, engine enable/disable/status, and the
// import job lifecycle backed by pkg/importjob.
package handlers
