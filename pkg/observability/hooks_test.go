package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	r := NoopResolveHooks{}
	r.OnResolveStart(ctx, "library")
	r.OnResolveComplete(ctx, "library", 12, time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "choice")
	c.OnCacheMiss(ctx, "choice")
	c.OnCacheSet(ctx, "choice", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "www.humblebundle.com", "/api/v1/user/order")
	h.OnResponse(ctx, "GET", "www.humblebundle.com", "/api/v1/user/order", 200, time.Second)
	h.OnError(ctx, "GET", "www.humblebundle.com", "/api/v1/user/order", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Resolve().(NoopResolveHooks); !ok {
		t.Error("Resolve() should return NoopResolveHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customResolve := &testResolveHooks{}
	SetResolveHooks(customResolve)
	if Resolve() != customResolve {
		t.Error("SetResolveHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	// nil is ignored
	SetHTTPHooks(nil)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks(nil) should keep the previous hooks")
	}

	Reset()
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("Reset() should restore noop hooks")
	}
}

type testResolveHooks struct{ NoopResolveHooks }

type testHTTPHooks struct{ NoopHTTPHooks }
