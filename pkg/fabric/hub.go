package fabric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/webforge/pkg/host"
	"github.com/entrhq/webforge/pkg/logging"
	"github.com/entrhq/webforge/pkg/types"
	"github.com/entrhq/webforge/pkg/vfs"
)

// Handler serves one request type. The returned value is JSON-encoded into
// the response payload; a nil value produces an empty success response.
type Handler func(ctx context.Context, req *Request) (interface{}, error)

// Injector creates a page worker for a tab on demand. It is called when a
// background-to-page request finds no attached worker.
type Injector func(ctx context.Context, tabID int) error

// Hub is the message router. Background handlers are registered by request
// type, page workers by tab, and UI panels connect named ports that receive
// the event stream for their tab.
type Hub struct {
	log *logging.Logger

	mu       sync.RWMutex
	ports    map[string]*Port
	pages    map[int]Handler
	handlers map[string]Handler
	injector Injector
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithInjector sets the worker injector used when a page request finds no
// receiver.
func WithInjector(fn Injector) HubOption {
	return func(h *Hub) {
		h.injector = fn
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	logger, _ := logging.NewLogger("fabric")
	h := &Hub{
		log:      logger,
		ports:    make(map[string]*Port),
		pages:    make(map[int]Handler),
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleFunc registers the background handler for a request type,
// replacing any previous registration.
func (h *Hub) HandleFunc(reqType string, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[reqType] = fn
}

// Connect attaches a panel port for a tab. A port already connected under
// the same name is closed and replaced; its pending events are dropped with
// the old port.
func (h *Hub) Connect(tabID int) *Port {
	name := PortName(tabID)
	port := newPort(name, tabID, h)

	h.mu.Lock()
	old := h.ports[name]
	h.ports[name] = port
	h.mu.Unlock()

	if old != nil {
		old.close()
		h.log.Infof("port %s reconnected, previous connection dropped", name)
	}
	return port
}

// disconnect removes a port if it is still the current one for its name.
func (h *Hub) disconnect(p *Port) {
	h.mu.Lock()
	if h.ports[p.name] == p {
		delete(h.ports, p.name)
	}
	h.mu.Unlock()
}

// AttachPage registers the request handler serving a tab's page worker.
// The returned function detaches it.
func (h *Hub) AttachPage(tabID int, fn Handler) (detach func()) {
	h.mu.Lock()
	h.pages[tabID] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		if _, ok := h.pages[tabID]; ok {
			delete(h.pages, tabID)
		}
		h.mu.Unlock()
	}
}

// Call dispatches a request to the background handler for its type.
func (h *Hub) Call(ctx context.Context, req *Request) *Response {
	h.mu.RLock()
	fn, ok := h.handlers[req.Type]
	h.mu.RUnlock()
	if !ok {
		return failure(req.ID, fmt.Errorf("%w: %s", ErrUnknownRequest, req.Type))
	}
	return h.dispatch(ctx, fn, req)
}

// PageRequest dispatches a request to the page worker for req.TabID. With
// no worker attached, the injector is given one chance to create it; a tab
// that still has no worker after injection is treated as privileged.
func (h *Hub) PageRequest(ctx context.Context, req *Request) *Response {
	h.mu.RLock()
	fn, ok := h.pages[req.TabID]
	injector := h.injector
	h.mu.RUnlock()

	if !ok {
		if injector == nil {
			return failure(req.ID, fmt.Errorf("%w %d", ErrNoReceiver, req.TabID))
		}
		h.log.Infof("no worker for tab %d, injecting before %s", req.TabID, req.Type)
		if err := injector(ctx, req.TabID); err != nil {
			return failure(req.ID, fmt.Errorf("%w: %v", ErrPrivilegedPage, err))
		}
		h.mu.RLock()
		fn, ok = h.pages[req.TabID]
		h.mu.RUnlock()
		if !ok {
			return failure(req.ID, fmt.Errorf("%w: worker did not attach for tab %d", ErrPrivilegedPage, req.TabID))
		}
	}
	return h.dispatch(ctx, fn, req)
}

// PageBroadcast sends a request to every attached page worker and joins
// the failures. It is used for fan-out notifications such as cache
// invalidation after an import.
func (h *Hub) PageBroadcast(ctx context.Context, reqType string, payload interface{}) error {
	h.mu.RLock()
	tabs := make([]int, 0, len(h.pages))
	for tabID := range h.pages {
		tabs = append(tabs, tabID)
	}
	h.mu.RUnlock()

	var errs []error
	for _, tabID := range tabs {
		req, err := NewRequest(reqType, tabID, payload)
		if err != nil {
			return err
		}
		h.mu.RLock()
		fn, ok := h.pages[tabID]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		if resp := h.dispatch(ctx, fn, req); resp.Error != nil {
			errs = append(errs, fmt.Errorf("tab %d: %w", tabID, resp.Error.Err()))
		}
	}
	return errors.Join(errs...)
}

// Send delivers an event to the port of the event's tab. Events for tabs
// without a connected panel are dropped.
func (h *Hub) Send(event *types.AgentEvent) {
	h.mu.RLock()
	port := h.ports[PortName(event.TabID)]
	h.mu.RUnlock()
	if port == nil {
		return
	}
	port.deliver(event)
}

// Broadcast delivers an event to every connected port regardless of tab.
func (h *Hub) Broadcast(event *types.AgentEvent) {
	h.mu.RLock()
	ports := make([]*Port, 0, len(h.ports))
	for _, p := range h.ports {
		ports = append(ports, p)
	}
	h.mu.RUnlock()
	for _, p := range ports {
		p.deliver(event)
	}
}

// StartStorageRelay broadcasts a VFS_STORAGE_CHANGED event for every
// persistent vfs key mutation so panels can refresh file listings without
// polling. The returned function stops the relay.
func (h *Hub) StartStorageRelay(storage host.Storage) (stop func()) {
	return storage.Watch(func(change host.StorageChange) {
		if _, ok := vfs.DomainOfKey(change.Key); !ok {
			return
		}
		h.Broadcast(types.NewStorageChangedEvent(change.Key))
	})
}

// dispatch runs a handler and shapes its outcome into a response.
func (h *Hub) dispatch(ctx context.Context, fn Handler, req *Request) *Response {
	result, err := fn(ctx, req)
	if err != nil {
		h.log.Debugf("request %s (%s) failed: %v", req.Type, req.ID, err)
		return failure(req.ID, err)
	}
	resp := &Response{ID: req.ID, Success: true}
	if result != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			return failure(req.ID, fmt.Errorf("encode %s response: %w", req.Type, err))
		}
		resp.Payload = payload
	}
	return resp
}

// failure shapes an error into a response.
func failure(id string, err error) *Response {
	return &Response{ID: id, Success: false, Error: wrapError(err)}
}
