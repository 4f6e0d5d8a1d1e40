// SPDX-License-Identifier: BSD-3-Clause

package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fancontrold/fancontrold/pkg/log"
)

const acceptPollInterval = time.Second

// Server is the line-delimited JSON-RPC 2.0 listener described in §4.6.
// It accepts connections on a loopback address, dispatches each
// complete line to the Registry, and writes back one response line per
// request (including a minimal acknowledgement for notifications).
type Server struct {
	addr     string
	registry *Registry

	mu       sync.Mutex
	listener net.Listener
	running  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewServer returns a Server bound to addr (host:port) once Start is
// called. registry must not be nil.
func NewServer(addr string, registry *Registry) *Server {
	return &Server{addr: addr, registry: registry}
}

// Start binds the listening socket and begins accepting connections in
// the background. It returns once the socket is bound; Stop or ctx
// cancellation ends the accept loop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}

	l := log.GetGlobalLogger()
	l.InfoContext(ctx, "starting rpc server", "addr", s.addr)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", s.addr, err)
	}

	s.listener = ln
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running.Store(true)

	go s.acceptLoop(ctx)
	return nil
}

// Stop closes the listener, waits for the accept loop to exit, and
// returns once in-flight handlers have had a chance to notice context
// cancellation. It does not forcibly close accepted connections; each
// connection's handler exits on its own read error or on ctx.Done.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return
	}

	close(s.stopCh)
	if s.listener != nil {
		_ = s.listener.Close()
	}

	select {
	case <-s.doneCh:
	case <-time.After(5 * time.Second):
	}
	s.running.Store(false)
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer close(s.doneCh)
	l := log.GetGlobalLogger()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if tl, ok := s.listener.(*net.TCPListener); ok {
			_ = tl.SetDeadline(time.Now().Add(acceptPollInterval))
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if s.running.Load() {
				l.WarnContext(ctx, "rpc accept failed", "error", err)
			}
			continue
		}

		go s.handleConn(ctx, conn)
	}
}

// handleConn reads newline-terminated requests from conn until the
// connection closes or ctx is canceled, dispatching each complete line
// and writing back exactly one response line.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	l := log.GetGlobalLogger()
	remote := conn.RemoteAddr().String()
	l.DebugContext(ctx, "rpc connection accepted", "remote", remote)
	defer func() {
		_ = conn.Close()
		l.DebugContext(ctx, "rpc connection closed", "remote", remote)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	writer := bufio.NewWriter(conn)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.dispatchLine(ctx, line)
		data, err := json.Marshal(resp)
		if err != nil {
			l.WarnContext(ctx, "rpc failed to marshal response", "error", err)
			continue
		}
		data = append(data, '\n')
		if _, err := writer.Write(data); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
	}
}

// dispatchLine parses one line as a JSON-RPC request and runs it
// through the registry, classifying parse/shape errors per §4.6. A
// handler panic is reported as a handler exception rather than
// crashing the connection goroutine.
func (s *Server) dispatchLine(ctx context.Context, line []byte) (resp Response) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return failure(nil, "", CodeParseError, "parse error: "+err.Error(), nil)
	}
	if req.Method == "" {
		return failure(req.ID, "", CodeInvalidRequest, "missing method", nil)
	}

	defer func() {
		if r := recover(); r != nil {
			resp = failure(req.ID, req.Method, CodeInternalError, fmt.Sprintf("handler panic: %v", r), nil)
		}
	}()

	data, errPayload := s.registry.Dispatch(ctx, req.Method, req.Params)
	if errPayload != nil {
		return Response{JSONRPC: "2.0", ID: req.ID, Result: Result{Success: false, Method: req.Method, Error: errPayload}}
	}
	return success(req.ID, req.Method, data)
}
