package fabric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/webforge/pkg/host"
	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectReplacesExistingPort(t *testing.T) {
	hub := NewHub()
	first := hub.Connect(7)
	second := hub.Connect(7)

	select {
	case _, ok := <-first.Events():
		if ok {
			t.Fatal("expected the replaced port's stream to be closed, got an event")
		}
	case <-time.After(time.Second):
		t.Fatal("replaced port's event stream was not closed")
	}

	hub.Send(types.NewAgentResponseEvent(7, "hello"))
	select {
	case ev := <-second.Events():
		if ev.Content != "hello" {
			t.Fatalf("event content = %q, want %q", ev.Content, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("current port did not receive the event")
	}
}

func TestSendRoutesByTab(t *testing.T) {
	hub := NewHub()
	portA := hub.Connect(1)
	portB := hub.Connect(2)

	hub.Send(types.NewAgentResponseEvent(2, "for b"))

	select {
	case ev := <-portB.Events():
		if ev.TabID != 2 {
			t.Fatalf("tabID = %d, want 2", ev.TabID)
		}
	case <-time.After(time.Second):
		t.Fatal("port for tab 2 did not receive its event")
	}
	select {
	case ev := <-portA.Events():
		t.Fatalf("port for tab 1 received %s event meant for tab 2", ev.Type)
	default:
	}
}

func TestBroadcastReachesAllPorts(t *testing.T) {
	hub := NewHub()
	ports := []*Port{hub.Connect(1), hub.Connect(2), hub.Connect(3)}

	hub.Broadcast(types.NewStorageChangedEvent("vfs:shop.test"))

	for _, p := range ports {
		select {
		case ev := <-p.Events():
			if ev.Type != types.EventStorageChanged {
				t.Fatalf("port %s got %s, want %s", p.Name(), ev.Type, types.EventStorageChanged)
			}
		case <-time.After(time.Second):
			t.Fatalf("port %s missed the broadcast", p.Name())
		}
	}
}

func TestClosedPortRejectsRequests(t *testing.T) {
	hub := NewHub()
	port := hub.Connect(4)
	port.Close()

	if _, err := port.Request(context.Background(), ReqGetMode, nil); !errors.Is(err, ErrPortClosed) {
		t.Fatalf("Request on closed port: err = %v, want ErrPortClosed", err)
	}
	// Closing twice must not panic.
	port.Close()
}

func TestCallDispatchesRegisteredHandler(t *testing.T) {
	hub := NewHub()
	hub.HandleFunc(ReqGetMode, func(ctx context.Context, req *Request) (interface{}, error) {
		return map[string]string{"mode": "plan"}, nil
	})

	req, err := NewRequest(ReqGetMode, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp := hub.Call(context.Background(), req)
	if !resp.Success {
		t.Fatalf("Call failed: %v", resp.Error)
	}
	if resp.ID != req.ID {
		t.Fatalf("response ID = %q, want %q", resp.ID, req.ID)
	}
	var out map[string]string
	if err := json.Unmarshal(resp.Payload, &out); err != nil {
		t.Fatal(err)
	}
	if out["mode"] != "plan" {
		t.Fatalf("payload mode = %q, want plan", out["mode"])
	}
}

func TestCallUnknownTypeFails(t *testing.T) {
	hub := NewHub()
	req, _ := NewRequest("NO_SUCH_THING", 1, nil)
	resp := hub.Call(context.Background(), req)
	if resp.Success || resp.Error == nil {
		t.Fatal("expected a failure response for an unregistered request type")
	}
	if !strings.Contains(resp.Error.Message, "NO_SUCH_THING") {
		t.Fatalf("error %q does not name the request type", resp.Error.Message)
	}
}

func TestPortRequestHonorsDeadline(t *testing.T) {
	hub := NewHub()
	hub.HandleFunc(ReqChatMessage, func(ctx context.Context, req *Request) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	port := hub.Connect(1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := port.Request(ctx, ReqChatMessage, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestPortRequestTransportsHandlerError(t *testing.T) {
	hub := NewHub()
	hub.HandleFunc(ReqDeleteVFSFile, func(ctx context.Context, req *Request) (interface{}, error) {
		return nil, &vfs.Error{Kind: vfs.ErrNotFound, Path: "/shop.test/cart/scripts/x.js", Message: "no such file"}
	})
	port := hub.Connect(1)

	_, err := port.Request(context.Background(), ReqDeleteVFSFile, map[string]string{"path": "/shop.test/cart/scripts/x.js"})
	if err == nil {
		t.Fatal("expected an error")
	}
	var vfsErr *vfs.Error
	if !errors.As(err, &vfsErr) {
		t.Fatalf("err %v did not transport as a vfs error", err)
	}
	if vfsErr.Kind != vfs.ErrNotFound {
		t.Fatalf("kind = %s, want %s", vfsErr.Kind, vfs.ErrNotFound)
	}
}

func TestPageRequestWithoutWorkerOrInjector(t *testing.T) {
	hub := NewHub()
	req, _ := NewRequest(ReqVFSRead, 9, ReadPayload{Path: "/shop.test/cart/page.html"})
	resp := hub.PageRequest(context.Background(), req)
	if resp.Success {
		t.Fatal("expected failure with no worker attached")
	}
	if !errors.Is(resp.Error.Err(), ErrNoReceiver) {
		t.Fatalf("err = %v, want ErrNoReceiver", resp.Error.Err())
	}
}

func TestPageRequestInjectsWorkerOnce(t *testing.T) {
	var (
		hub        *Hub
		mu         sync.Mutex
		injections int
	)
	injector := func(ctx context.Context, tabID int) error {
		mu.Lock()
		injections++
		mu.Unlock()
		hub.AttachPage(tabID, func(ctx context.Context, req *Request) (interface{}, error) {
			return &vfs.ReadResult{Path: "/shop.test/cart/page.html", Content: "<html></html>", Version: 3, Lines: 1}, nil
		})
		return nil
	}
	hub = NewHub(WithInjector(injector))

	req, _ := NewRequest(ReqVFSRead, 5, ReadPayload{Path: "/shop.test/cart/page.html"})
	resp := hub.PageRequest(context.Background(), req)
	if !resp.Success {
		t.Fatalf("request after injection failed: %v", resp.Error)
	}
	resp = hub.PageRequest(context.Background(), req)
	if !resp.Success {
		t.Fatalf("second request failed: %v", resp.Error)
	}
	mu.Lock()
	defer mu.Unlock()
	if injections != 1 {
		t.Fatalf("injections = %d, want 1", injections)
	}
}

func TestPageRequestPrivilegedPage(t *testing.T) {
	t.Run("injector refuses", func(t *testing.T) {
		hub := NewHub(WithInjector(func(ctx context.Context, tabID int) error {
			return fmt.Errorf("cannot script browser settings pages")
		}))
		req, _ := NewRequest(ReqVFSRead, 1, ReadPayload{Path: "/x/y/page.html"})
		resp := hub.PageRequest(context.Background(), req)
		if !errors.Is(resp.Error.Err(), ErrPrivilegedPage) {
			t.Fatalf("err = %v, want ErrPrivilegedPage", resp.Error.Err())
		}
	})

	t.Run("worker never attaches", func(t *testing.T) {
		hub := NewHub(WithInjector(func(ctx context.Context, tabID int) error {
			return nil
		}))
		req, _ := NewRequest(ReqVFSRead, 1, ReadPayload{Path: "/x/y/page.html"})
		resp := hub.PageRequest(context.Background(), req)
		if !errors.Is(resp.Error.Err(), ErrPrivilegedPage) {
			t.Fatalf("err = %v, want ErrPrivilegedPage", resp.Error.Err())
		}
	})
}

func TestAttachPageDetach(t *testing.T) {
	hub := NewHub()
	detach := hub.AttachPage(3, func(ctx context.Context, req *Request) (interface{}, error) {
		return nil, nil
	})
	req, _ := NewRequest(ReqVFSLs, 3, LsPayload{})
	if resp := hub.PageRequest(context.Background(), req); !resp.Success {
		t.Fatalf("request to attached worker failed: %v", resp.Error)
	}
	detach()
	if resp := hub.PageRequest(context.Background(), req); resp.Success {
		t.Fatal("request succeeded after the worker detached")
	}
}

func TestPageBroadcastJoinsFailures(t *testing.T) {
	hub := NewHub()
	hub.AttachPage(1, func(ctx context.Context, req *Request) (interface{}, error) {
		return nil, nil
	})
	hub.AttachPage(2, func(ctx context.Context, req *Request) (interface{}, error) {
		return nil, errors.New("worker 2 is wedged")
	})

	err := hub.PageBroadcast(context.Background(), ReqInvalidateCache, nil)
	if err == nil {
		t.Fatal("expected the failing worker's error to surface")
	}
	if !strings.Contains(err.Error(), "tab 2") {
		t.Fatalf("error %q does not identify the failing tab", err)
	}
}

func TestStorageRelayBroadcastsVFSKeys(t *testing.T) {
	hub := NewHub()
	port := hub.Connect(1)
	storage := host.NewMemoryStorage()
	stop := hub.StartStorageRelay(storage)
	defer stop()

	ctx := context.Background()
	if err := storage.Set(ctx, vfs.StorageKey("shop.test"), []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-port.Events():
		if ev.Type != types.EventStorageChanged || ev.StorageKey != "vfs:shop.test" {
			t.Fatalf("got %s %q, want %s vfs:shop.test", ev.Type, ev.StorageKey, types.EventStorageChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("storage change was not relayed")
	}

	// Keys outside the vfs namespace stay quiet.
	if err := storage.Set(ctx, "settings:theme", []byte(`"dark"`)); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-port.Events():
		t.Fatalf("unrelated key relayed as %s %q", ev.Type, ev.StorageKey)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResponseErrorRoundTrip(t *testing.T) {
	orig := &vfs.Error{
		Kind:            vfs.ErrVersionMismatch,
		Path:            "/shop.test/cart/page.html",
		Message:         "expected version 2 but file is at version 5; read the file again before editing",
		ExpectedVersion: 2,
		ActualVersion:   5,
	}
	resp := failure("req-1", orig)

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}

	var vfsErr *vfs.Error
	if !errors.As(decoded.Error.Err(), &vfsErr) {
		t.Fatal("decoded error lost its vfs structure")
	}
	if vfsErr.Kind != vfs.ErrVersionMismatch || vfsErr.ExpectedVersion != 2 || vfsErr.ActualVersion != 5 {
		t.Fatalf("decoded error = %+v, want the original mismatch", vfsErr)
	}
}

func TestResponseErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{ErrNoReceiver, CodeNoReceiver},
		{ErrPrivilegedPage, CodePrivilegedPage},
		{ErrTimeout, CodeTimeout},
	}
	for _, tt := range tests {
		re := wrapError(fmt.Errorf("wrapped: %w", tt.err))
		if re.Code != tt.code {
			t.Errorf("wrapError(%v).Code = %q, want %q", tt.err, re.Code, tt.code)
		}
		if !errors.Is(re.Err(), tt.err) {
			t.Errorf("round trip of %v lost its sentinel", tt.err)
		}
	}
}
