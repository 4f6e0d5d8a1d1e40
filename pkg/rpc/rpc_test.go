// SPDX-License-Identifier: BSD-3-Clause

package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"
)

func TestRegistryDispatchUnknownMethod(t *testing.T) {
	r := NewRegistry()
	_, errPayload := r.Dispatch(context.Background(), "no.such.method", nil)
	if errPayload == nil || errPayload.Code != CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", errPayload)
	}
}

func TestRegistryCommandsListsBuiltins(t *testing.T) {
	r := NewRegistry()
	data, errPayload := r.Dispatch(context.Background(), "commands", nil)
	if errPayload != nil {
		t.Fatalf("unexpected error: %+v", errPayload)
	}
	methods := data.(map[string]interface{})["methods"].([]string)
	found := map[string]bool{}
	for _, m := range methods {
		found[m] = true
	}
	if !found["commands"] || !found["help"] {
		t.Fatalf("expected builtin methods present, got %v", methods)
	}
}

func TestRegistryHelpForUnknownMethod(t *testing.T) {
	r := NewRegistry()
	params, _ := json.Marshal(map[string]string{"method": "ping"})
	_, errPayload := r.Dispatch(context.Background(), "help", params)
	if errPayload == nil || errPayload.Code != CodeNotFound {
		t.Fatalf("expected CodeNotFound for unregistered method, got %+v", errPayload)
	}
}

func TestRegistryRegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	r.Register("ping", "liveness check", func(_ context.Context, _ json.RawMessage) (interface{}, *ErrorPayload) {
		return map[string]string{"status": "ok"}, nil
	})

	data, errPayload := r.Dispatch(context.Background(), "ping", nil)
	if errPayload != nil {
		t.Fatalf("unexpected error: %+v", errPayload)
	}
	if data.(map[string]string)["status"] != "ok" {
		t.Fatalf("unexpected data: %+v", data)
	}
}

func TestDispatchLineHandlesPanicAsInternalError(t *testing.T) {
	r := NewRegistry()
	r.Register("boom", "panics", func(_ context.Context, _ json.RawMessage) (interface{}, *ErrorPayload) {
		panic("kaboom")
	})
	s := NewServer("127.0.0.1:0", r)

	resp := s.dispatchLine(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"boom"}`))
	if resp.Result.Success {
		t.Fatal("expected failure result")
	}
	if resp.Result.Error.Code != CodeInternalError {
		t.Fatalf("expected CodeInternalError, got %+v", resp.Result.Error)
	}
}

func TestDispatchLineParseError(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewRegistry())
	resp := s.dispatchLine(context.Background(), []byte(`not json`))
	if resp.Result.Success || resp.Result.Error.Code != CodeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Result)
	}
}

func TestDispatchLineMissingMethod(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewRegistry())
	resp := s.dispatchLine(context.Background(), []byte(`{"jsonrpc":"2.0","id":1}`))
	if resp.Result.Success || resp.Result.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid request, got %+v", resp.Result)
	}
}

// TestServerRoundTrip exercises the full accept loop: connect, send one
// request line, read one response line, and confirm a notification (no
// id) still receives a minimal acknowledgement line (§4.6).
func TestServerRoundTrip(t *testing.T) {
	r := NewRegistry()
	r.Register("echo", "echoes params", func(_ context.Context, params json.RawMessage) (interface{}, *ErrorPayload) {
		return map[string]json.RawMessage{"params": params}, nil
	})

	s := NewServer("127.0.0.1:0", r)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.listener = ln
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running.Store(true)
	go s.acceptLoop(ctx)
	defer s.Stop()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"echo","params":{"x":1}}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Result.Success || resp.Result.Method != "echo" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if _, err := conn.Write([]byte(`{"jsonrpc":"2.0","method":"echo","params":{}}` + "\n")); err != nil {
		t.Fatalf("write notification: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("expected acknowledgement line for notification, got error: %v", err)
	}
}
