// SPDX-License-Identifier: BSD-3-Clause

// Package profilestore persists named curve.Profile documents as JSON
// files under a configured directory (§6 "profilesPath"), using
// pkg/file's atomic create/update idiom so a reader never observes a
// partially written profile (§3 invariant 5, extended here to disk
// persistence as well as shared-memory telemetry).
package profilestore
