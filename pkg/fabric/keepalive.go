package fabric

import (
	"sync"
	"time"
)

// heartbeatInterval keeps the background context comfortably inside the
// ~30 second service-worker idle budget.
const heartbeatInterval = 24 * time.Second

// KeepAlive holds the background context awake while agent runs are in
// flight. References are counted so overlapping runs share one heartbeat:
// the first Acquire arms the ticker, the last release stops it.
type KeepAlive struct {
	beat     func()
	interval time.Duration

	mu    sync.Mutex
	refs  int
	stop  chan struct{}
	beats int
}

// KeepAliveOption configures a KeepAlive.
type KeepAliveOption func(*KeepAlive)

// WithHeartbeatInterval overrides the heartbeat period.
func WithHeartbeatInterval(d time.Duration) KeepAliveOption {
	return func(k *KeepAlive) {
		k.interval = d
	}
}

// NewKeepAlive creates a keep-alive that calls beat on every heartbeat.
// A nil beat only counts ticks.
func NewKeepAlive(beat func(), opts ...KeepAliveOption) *KeepAlive {
	k := &KeepAlive{
		beat:     beat,
		interval: heartbeatInterval,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Acquire takes a reference and returns its release. Releasing is
// idempotent; the heartbeat stops when the last reference is released.
func (k *KeepAlive) Acquire() (release func()) {
	k.mu.Lock()
	k.refs++
	if k.refs == 1 {
		stop := make(chan struct{})
		k.stop = stop
		go k.run(stop)
	}
	k.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(k.release)
	}
}

func (k *KeepAlive) release() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.refs--
	if k.refs == 0 && k.stop != nil {
		close(k.stop)
		k.stop = nil
	}
}

func (k *KeepAlive) run(stop chan struct{}) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			k.mu.Lock()
			k.beats++
			k.mu.Unlock()
			if k.beat != nil {
				k.beat()
			}
		}
	}
}

// Active reports whether any reference is currently held.
func (k *KeepAlive) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.refs > 0
}

// Beats returns the number of heartbeats fired since creation.
func (k *KeepAlive) Beats() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.beats
}
