package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

func quietLogger() *log.Logger { return log.New(io.Discard) }

// serve runs a peer over input and returns the responses keyed by id.
// Notifications are returned under their method name.
func serve(t *testing.T, input string, register func(*Peer)) map[string]map[string]any {
	t.Helper()
	var out bytes.Buffer
	p := NewPeer(strings.NewReader(input), &out, quietLogger())
	register(p)
	if err := p.Serve(context.Background()); err != nil {
		t.Fatalf("Serve() error: %v", err)
	}

	got := make(map[string]map[string]any)
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			t.Fatalf("invalid output line %q: %v", line, err)
		}
		if msg["jsonrpc"] != "2.0" {
			t.Errorf("jsonrpc = %v", msg["jsonrpc"])
		}
		key, _ := json.Marshal(msg["id"])
		if m, ok := msg["method"].(string); ok {
			key = []byte(m)
		}
		got[string(key)] = msg
	}
	return got
}

func errorCode(t *testing.T, msg map[string]any) int {
	t.Helper()
	e, ok := msg["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error in %v", msg)
	}
	return int(e["code"].(float64))
}

func TestPeer_Requests(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc": "2.0", "id": 1, "method": "echo", "params": {"text": "hi"}}`,
		`{"jsonrpc": "2.0", "id": "2", "method": "missing"}`,
		`{"jsonrpc": "2.0", "id": 3, "method": "echo", "params": {"text": 5}}`,
		`{"jsonrpc": "2.0", "id": 4, "method": "auth"}`,
		`{"jsonrpc": "2.0", "id": 5, "method": "nothing"}`,
		`not json`,
		``,
		`{"jsonrpc": "2.0", "method": "echo", "params": {"text": "notified"}}`,
		`{"jsonrpc": "2.0", "id": 6, "method": "panics"}`,
	}, "\n")

	notified := make(chan string, 1)
	got := serve(t, input, func(p *Peer) {
		p.Handle("echo", func(_ context.Context, params json.RawMessage) (any, error) {
			req, err := Decode[struct {
				Text string `json:"text"`
			}](params)
			if err != nil {
				return nil, err
			}
			if req.Text == "notified" {
				notified <- req.Text
			}
			return map[string]string{"text": req.Text}, nil
		})
		p.Handle("auth", func(context.Context, json.RawMessage) (any, error) {
			return nil, errors.AuthRequired("session expired")
		})
		p.Handle("nothing", func(context.Context, json.RawMessage) (any, error) {
			return nil, nil
		})
		p.Handle("panics", func(context.Context, json.RawMessage) (any, error) {
			panic("boom")
		})
	})

	if r := got["1"]["result"].(map[string]any); r["text"] != "hi" {
		t.Errorf("echo result = %v", r)
	}
	if c := errorCode(t, got[`"2"`]); c != MethodNotFound {
		t.Errorf("missing method code = %d", c)
	}
	if c := errorCode(t, got["3"]); c != InvalidParams {
		t.Errorf("bad params code = %d", c)
	}
	if c := errorCode(t, got["4"]); c != AuthenticationRequired {
		t.Errorf("auth code = %d", c)
	}
	if r, ok := got["5"]["result"]; !ok || r != nil {
		t.Errorf("null result = %v (present %v)", r, ok)
	}
	if c := errorCode(t, got["null"]); c != ParseError {
		t.Errorf("parse error code = %d", c)
	}
	if c := errorCode(t, got["6"]); c != InternalError {
		t.Errorf("panic code = %d", c)
	}
	select {
	case <-notified:
	default:
		t.Error("notification handler not called")
	}
	if len(got) != 7 {
		t.Errorf("got %d responses, want 7 (none for the notification)", len(got))
	}
}

func TestPeer_HandlesConcurrently(t *testing.T) {
	input := `{"jsonrpc": "2.0", "id": 1, "method": "wait"}` + "\n" +
		`{"jsonrpc": "2.0", "id": 2, "method": "release"}` + "\n"
	release := make(chan struct{})

	got := serve(t, input, func(p *Peer) {
		p.Handle("wait", func(ctx context.Context, _ json.RawMessage) (any, error) {
			select {
			case <-release:
				return "released", nil
			case <-time.After(5 * time.Second):
				return nil, errors.New(errors.ErrCodeInternal, "never released")
			}
		})
		p.Handle("release", func(context.Context, json.RawMessage) (any, error) {
			close(release)
			return "ok", nil
		})
	})
	if got["1"]["result"] != "released" {
		t.Errorf("wait result = %v; requests were not handled concurrently", got["1"])
	}
}

func TestPeer_Notify(t *testing.T) {
	var out bytes.Buffer
	p := NewPeer(strings.NewReader(""), &out, quietLogger())
	if err := p.Notify("push_cache", map[string]any{"persistent_cache": map[string]string{"library": "{}"}}); err != nil {
		t.Fatal(err)
	}
	want := `{"jsonrpc":"2.0","method":"push_cache","params":{"persistent_cache":{"library":"{}"}}}` + "\n"
	if out.String() != want {
		t.Errorf("Notify() wrote %q, want %q", out.String(), want)
	}
}

func TestPeer_ServeStopsOnCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := NewPeer(r, io.Discard, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestErrorFrom(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{errors.AuthRequired("x"), AuthenticationRequired},
		{errors.New(errors.ErrCodeBackendUnavailable, "x"), BackendNotAvailable},
		{errors.UnknownBackend("x"), UnknownBackendResponse},
		{errors.New(errors.ErrCodeInvalidInput, "x"), InvalidParams},
		{errors.New(errors.ErrCodeNotFound, "x"), InternalError},
		{&Error{Code: 42, Message: "custom"}, 42},
	}
	for _, tt := range tests {
		if got := ErrorFrom(tt.err).Code; got != tt.code {
			t.Errorf("ErrorFrom(%v).Code = %d, want %d", tt.err, got, tt.code)
		}
	}
}
