// SPDX-License-Identifier: BSD-3-Clause

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Handler is a pure function of the request params and the daemon's
// current state. It returns either a success payload or an error code,
// message, and optional data (§4.6).
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, *ErrorPayload)

type entry struct {
	help    string
	handler Handler
}

// Registry maps a command name to its handler. "commands" and "help"
// are always present and introspect the registry itself.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns a Registry with the built-in "commands" and
// "help" methods already registered.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]entry)}
	r.Register("commands", "list registered command names", r.handleCommands)
	r.Register("help", "show help for a command ({\"method\":\"name\"})", r.handleHelp)
	return r
}

// Register adds or replaces a command. help is a single line shown by
// the "help" method.
func (r *Registry) Register(name, help string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{help: help, handler: h}
}

// Dispatch parses params against the named method and invokes its
// handler, classifying errors per §4.6.
func (r *Registry) Dispatch(ctx context.Context, method string, params json.RawMessage) (interface{}, *ErrorPayload) {
	r.mu.RLock()
	e, ok := r.entries[method]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrorPayload{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", method)}
	}
	return e.handler(ctx, params)
}

func (r *Registry) handleCommands(_ context.Context, _ json.RawMessage) (interface{}, *ErrorPayload) {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return map[string]interface{}{"methods": names}, nil
}

func (r *Registry) handleHelp(_ context.Context, params json.RawMessage) (interface{}, *ErrorPayload) {
	var req struct {
		Method string `json:"method"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &ErrorPayload{Code: CodeInvalidParams, Message: "help: " + err.Error()}
		}
	}
	if req.Method == "" {
		return r.handleCommands(nil, nil)
	}

	r.mu.RLock()
	e, ok := r.entries[req.Method]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrorPayload{Code: CodeNotFound, Message: fmt.Sprintf("no such method %q", req.Method)}
	}
	return map[string]interface{}{"method": req.Method, "help": e.help}, nil
}
