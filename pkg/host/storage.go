// Package host abstracts the browser-side facilities the agent runs
// against: a key-value storage area with change notification, a registry
// for persistent user scripts, and live page handles. Implementations
// back onto a real browser or onto in-memory fakes for tests.
package host

import (
	"context"
	"encoding/json"
	"sync"
)

// StorageChange describes a single key mutation in a storage area.
type StorageChange struct {
	Key      string
	OldValue json.RawMessage
	NewValue json.RawMessage
}

// Storage is a watchable key-value area holding JSON values. Watchers are
// invoked synchronously after a mutation commits, in registration order.
type Storage interface {
	// Get returns the value for key. The second return reports presence.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value json.RawMessage) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns all keys with the given prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Watch registers a change callback and returns its removal func.
	Watch(fn func(StorageChange)) (remove func())
	Close() error
}

// watcherSet is the shared watcher bookkeeping for storage implementations.
type watcherSet struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(StorageChange)
}

func (w *watcherSet) add(fn func(StorageChange)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = make(map[int]func(StorageChange))
	}
	id := w.next
	w.next++
	w.fns[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.fns, id)
	}
}

// notify dispatches a change to all watchers outside any storage lock.
func (w *watcherSet) notify(change StorageChange) {
	w.mu.Lock()
	ids := make([]int, 0, len(w.fns))
	for id := range w.fns {
		ids = append(ids, id)
	}
	fns := make([]func(StorageChange), 0, len(ids))
	for _, id := range sortedInts(ids) {
		fns = append(fns, w.fns[id])
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func sortedInts(ids []int) []int {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}
