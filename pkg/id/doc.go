// SPDX-License-Identifier: BSD-3-Clause

// Package id generates job and detection-run identifiers. NewID returns an
// ephemeral UUID; GetOrCreatePersistentID and UpdatePersistentID read or
// atomically (re)write a UUID file via pkg/file, for identifiers that must
// survive a restart.
package id
