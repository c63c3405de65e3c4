package scripts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/entrhq/webforge/pkg/host"
	"github.com/entrhq/webforge/pkg/logging"
	"github.com/entrhq/webforge/pkg/vfs"
)

// Manager reconciles the host's user-script registry against the persistent
// store. Reconciliation is a full rebuild: every managed registration is
// dropped, then every enabled stored script is re-registered. Running it
// twice in a row therefore converges to the same registry state.
type Manager struct {
	store    *vfs.DomainStore
	registry host.ScriptRegistry
	log      *logging.Logger

	mu         sync.Mutex
	stopWatch  func()
	quit       chan struct{}
	done       chan struct{}
	reconciles int
}

// NewManager creates a lifecycle manager over the given store and registry.
func NewManager(store *vfs.DomainStore, registry host.ScriptRegistry) *Manager {
	logger, _ := logging.NewLogger("scripts")
	return &Manager{
		store:    store,
		registry: registry,
		log:      logger,
	}
}

// Start performs an initial reconcile and then re-runs reconciliation on
// every persistent vfs key change until Stop is called. Storage watchers
// fire inside the store's write path, so the watch callback only wakes a
// follower goroutine; it never touches the store itself. An unavailable
// registry is not an error; lifecycle management simply stays inactive and
// scripts degrade to load-time injection.
func (m *Manager) Start(ctx context.Context) error {
	if !m.registry.Available() {
		m.log.Warnf("user script registry unavailable, scripts degrade to load-time injection")
		return nil
	}

	m.mu.Lock()
	if m.quit != nil {
		m.mu.Unlock()
		return nil
	}
	wake := make(chan struct{}, 1)
	quit := make(chan struct{})
	done := make(chan struct{})
	m.quit, m.done = quit, done
	m.stopWatch = m.store.Storage().Watch(func(change host.StorageChange) {
		if _, ok := vfs.DomainOfKey(change.Key); !ok {
			return
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	m.mu.Unlock()

	if err := m.Reconcile(ctx); err != nil {
		m.Stop()
		return fmt.Errorf("initial script reconcile: %w", err)
	}

	go m.follow(ctx, wake, quit, done)
	return nil
}

// follow drains wake signals and reconciles until the context ends or Stop
// closes quit. A change landing mid-reconcile leaves a pending signal, so
// the registry always converges on the latest stored state.
func (m *Manager) follow(ctx context.Context, wake, quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-wake:
			if err := m.Reconcile(ctx); err != nil && ctx.Err() == nil {
				m.log.Errorf("script reconcile: %v", err)
			}
		}
	}
}

// Stop detaches the storage watcher and waits for the follower goroutine to
// exit. Registered scripts stay registered so they keep running without the
// agent.
func (m *Manager) Stop() {
	m.mu.Lock()
	remove, quit, done := m.stopWatch, m.quit, m.done
	m.stopWatch, m.quit, m.done = nil, nil, nil
	m.mu.Unlock()
	if remove != nil {
		remove()
	}
	if quit != nil {
		close(quit)
		<-done
	}
}

// Reconciles returns how many reconciliations have completed.
func (m *Manager) Reconciles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconciles
}

// Reconcile rebuilds the registry from the store: unregister every managed
// script, then register one entry per enabled stored script. Stored pattern
// keys that no longer compile are skipped rather than failing the rest.
func (m *Manager) Reconcile(ctx context.Context) error {
	if !m.registry.Available() {
		return host.ErrScriptsUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	desired, err := m.desiredScripts(ctx)
	if err != nil {
		return err
	}

	existing, err := m.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("list registered scripts: %w", err)
	}
	var managed []string
	for _, s := range existing {
		if IsManagedID(s.ID) {
			managed = append(managed, s.ID)
		}
	}
	if len(managed) > 0 {
		if err := m.registry.Unregister(ctx, managed); err != nil {
			return fmt.Errorf("unregister scripts: %w", err)
		}
	}

	if len(desired) > 0 {
		if err := m.registry.Register(ctx, desired); err != nil {
			return fmt.Errorf("register scripts: %w", err)
		}
	}

	m.reconciles++
	m.log.Debugf("reconciled %d scripts", len(desired))
	return nil
}

// desiredScripts enumerates every enabled stored script across all domains
// in deterministic order and shapes it for registration.
func (m *Manager) desiredScripts(ctx context.Context) ([]host.RegisteredScript, error) {
	domains, err := m.store.Domains(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate domains: %w", err)
	}
	sort.Strings(domains)

	var out []host.RegisteredScript
	taken := make(map[string]int)

	for _, domain := range domains {
		data, err := m.store.Domain(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("load domain %s: %w", domain, err)
		}

		keys := data.PathKeys()
		sort.Strings(keys)

		for _, key := range keys {
			pattern, err := vfs.CompileRoute(key)
			if err != nil {
				m.log.Warnf("skipping stored path %s/%s: %v", domain, key, err)
				continue
			}

			entry := data.Paths[key]
			names := make([]string, 0, len(entry.Scripts))
			for name := range entry.Scripts {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				file := entry.Scripts[name]
				if !file.IsEnabled() {
					continue
				}

				id := ScriptID(domain, key, name)
				if n := taken[id]; n > 0 {
					id = fmt.Sprintf("%s_%d", id, n+1)
				}
				taken[ScriptID(domain, key, name)]++

				code := file.Content
				if pattern.IsDynamic() {
					code = WrapRouteScript(pattern, code)
				}

				out = append(out, host.RegisteredScript{
					ID:      id,
					Matches: []string{MatchPattern(domain, pattern)},
					Code:    code,
					RunAt:   "document-idle",
					World:   "MAIN",
				})
			}
		}
	}

	return out, nil
}

// Describe returns a short human-readable summary of the managed
// registrations, used by the panel's file listing.
func (m *Manager) Describe(ctx context.Context) (string, error) {
	if !m.registry.Available() {
		return "user script registry unavailable", nil
	}
	scriptsList, err := m.registry.List(ctx)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	count := 0
	for _, s := range scriptsList {
		if !IsManagedID(s.ID) {
			continue
		}
		count++
		fmt.Fprintf(&sb, "%s -> %s\n", s.ID, strings.Join(s.Matches, ", "))
	}
	return fmt.Sprintf("%d registered scripts\n%s", count, sb.String()), nil
}
