package fabric

import (
	"testing"
	"time"
)

func TestKeepAliveRefCounting(t *testing.T) {
	ka := NewKeepAlive(nil, WithHeartbeatInterval(time.Hour))

	if ka.Active() {
		t.Fatal("fresh keep-alive should be inactive")
	}
	release1 := ka.Acquire()
	release2 := ka.Acquire()
	if !ka.Active() {
		t.Fatal("keep-alive should be active while references are held")
	}
	release1()
	if !ka.Active() {
		t.Fatal("keep-alive went inactive with a reference still held")
	}
	release2()
	if ka.Active() {
		t.Fatal("keep-alive still active after the last release")
	}
}

func TestKeepAliveReleaseIdempotent(t *testing.T) {
	ka := NewKeepAlive(nil, WithHeartbeatInterval(time.Hour))

	release := ka.Acquire()
	other := ka.Acquire()
	release()
	release()
	if !ka.Active() {
		t.Fatal("double release dropped a reference it did not own")
	}
	other()
	if ka.Active() {
		t.Fatal("keep-alive still active after all owners released")
	}
}

func TestKeepAliveHeartbeat(t *testing.T) {
	beats := make(chan struct{}, 16)
	ka := NewKeepAlive(func() {
		select {
		case beats <- struct{}{}:
		default:
		}
	}, WithHeartbeatInterval(5*time.Millisecond))

	release := ka.Acquire()
	waitFor(t, "two heartbeats", func() bool { return ka.Beats() >= 2 })
	release()

	select {
	case <-beats:
	default:
		t.Fatal("beat callback never fired")
	}

	// After release the ticker is stopped; a tick already in flight may
	// still land, then the count settles.
	time.Sleep(20 * time.Millisecond)
	settled := ka.Beats()
	time.Sleep(30 * time.Millisecond)
	if got := ka.Beats(); got != settled {
		t.Fatalf("beats kept advancing after release: %d -> %d", settled, got)
	}
}

func TestKeepAliveRestartsAfterIdle(t *testing.T) {
	ka := NewKeepAlive(nil, WithHeartbeatInterval(5*time.Millisecond))

	release := ka.Acquire()
	waitFor(t, "first heartbeat", func() bool { return ka.Beats() >= 1 })
	release()

	before := ka.Beats()
	release = ka.Acquire()
	waitFor(t, "heartbeat after re-acquire", func() bool { return ka.Beats() > before })
	release()
}
