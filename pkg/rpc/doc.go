// SPDX-License-Identifier: BSD-3-Clause

// Package rpc implements the command registry and the line-delimited
// JSON-RPC 2.0 transport described in §4.6: a TCP listener accepts
// connections, each line is parsed as one JSON-RPC request and dispatched
// to a registered handler, and the response is written back as a single
// JSON line. This transport shape has no off-the-shelf library fit, so
// it is built directly on net/bufio/encoding/json.
package rpc
