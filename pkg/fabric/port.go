package fabric

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/entrhq/webforge/pkg/types"
)

// ErrPortClosed means the port was closed or replaced by a newer
// connection for the same tab.
var ErrPortClosed = errors.New("port is closed")

// eventBufferSize is the per-port event queue depth. A panel that stops
// draining loses events once the queue fills rather than stalling the
// agent loop.
const eventBufferSize = 256

// Port is one panel's connection for a tab: an event stream plus an entry
// point for one-shot requests. Ports are created by Hub.Connect; a newer
// connection under the same name closes the older port.
type Port struct {
	name  string
	tabID int
	hub   *Hub

	mu     sync.Mutex
	closed bool
	events chan *types.AgentEvent
}

func newPort(name string, tabID int, hub *Hub) *Port {
	return &Port{
		name:   name,
		tabID:  tabID,
		hub:    hub,
		events: make(chan *types.AgentEvent, eventBufferSize),
	}
}

// Name returns the well-known port name.
func (p *Port) Name() string {
	return p.name
}

// TabID returns the tab this port serves.
func (p *Port) TabID() int {
	return p.tabID
}

// Events returns the stream of agent events for this port's tab. The
// channel is closed when the port is closed or replaced.
func (p *Port) Events() <-chan *types.AgentEvent {
	return p.events
}

// Request issues a one-shot request to the background and returns the
// response payload. Requests without a caller deadline time out after
// RequestTimeout; handler failures come back as the transported error, so
// errors.Is and errors.As work across the fabric.
func (p *Port) Request(ctx context.Context, reqType string, payload interface{}) (json.RawMessage, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPortClosed
	}

	req, err := NewRequest(reqType, p.tabID, payload)
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
	}

	done := make(chan *Response, 1)
	go func() {
		done <- p.hub.Call(ctx, req)
	}()

	select {
	case resp := <-done:
		if resp.Error != nil {
			return nil, resp.Error.Err()
		}
		return resp.Payload, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// Close disconnects the port and closes its event stream. Closing twice
// is a no-op.
func (p *Port) Close() {
	p.hub.disconnect(p)
	p.close()
}

func (p *Port) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.events)
}

// deliver queues an event, dropping it if the port is closed or the panel
// has fallen eventBufferSize events behind.
func (p *Port) deliver(event *types.AgentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- event:
	default:
		p.hub.log.Warnf("port %s backed up, dropping %s event", p.name, event.Type)
	}
}
