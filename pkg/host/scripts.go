package host

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrScriptsUnavailable is returned when the host has no persistent
// user-script facility. Callers fall back to one-shot injection.
var ErrScriptsUnavailable = errors.New("user script registry unavailable")

// RegisteredScript is one persistent user script known to the host. The
// host injects Code into every page whose URL matches any of Matches.
type RegisteredScript struct {
	ID      string
	Matches []string
	Code    string
	// RunAt is the injection point, normally "document-idle".
	RunAt string
	// World is the execution world, normally "MAIN" so scripts can touch
	// page globals.
	World string
}

// ScriptRegistry manages the host's persistent user scripts.
type ScriptRegistry interface {
	// Available reports whether the facility can be used at all.
	Available() bool
	// Register adds scripts to the registry. IDs must be unique.
	Register(ctx context.Context, scripts []RegisteredScript) error
	// Unregister removes the scripts with the given IDs; nil removes all.
	Unregister(ctx context.Context, ids []string) error
	// List returns the registered scripts sorted by ID.
	List(ctx context.Context) ([]RegisteredScript, error)
}

// MemoryScriptRegistry is the in-process registry used by tests and by the
// live host's init-script bridge.
type MemoryScriptRegistry struct {
	mu      sync.RWMutex
	scripts map[string]RegisteredScript
}

// NewMemoryScriptRegistry returns an empty registry.
func NewMemoryScriptRegistry() *MemoryScriptRegistry {
	return &MemoryScriptRegistry{scripts: make(map[string]RegisteredScript)}
}

func (r *MemoryScriptRegistry) Available() bool { return true }

func (r *MemoryScriptRegistry) Register(_ context.Context, scripts []RegisteredScript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range scripts {
		if _, exists := r.scripts[s.ID]; exists {
			return errors.New("script id already registered: " + s.ID)
		}
	}
	for _, s := range scripts {
		r.scripts[s.ID] = s
	}
	return nil
}

func (r *MemoryScriptRegistry) Unregister(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ids == nil {
		r.scripts = make(map[string]RegisteredScript)
		return nil
	}
	for _, id := range ids {
		delete(r.scripts, id)
	}
	return nil
}

func (r *MemoryScriptRegistry) List(_ context.Context) ([]RegisteredScript, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisteredScript, 0, len(r.scripts))
	for _, s := range r.scripts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NoScriptRegistry reports the facility as unavailable. Hosts without a
// user-script API expose this so lifecycle management degrades to one-shot
// injection.
type NoScriptRegistry struct{}

func (NoScriptRegistry) Available() bool { return false }

func (NoScriptRegistry) Register(context.Context, []RegisteredScript) error {
	return ErrScriptsUnavailable
}

func (NoScriptRegistry) Unregister(context.Context, []string) error {
	return ErrScriptsUnavailable
}

func (NoScriptRegistry) List(context.Context) ([]RegisteredScript, error) {
	return nil, ErrScriptsUnavailable
}
