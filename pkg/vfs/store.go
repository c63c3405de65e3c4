package vfs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/webforge/pkg/host"
)

// KeyPrefix namespaces domain data in the host storage area. Changes to
// keys under it drive script re-registration.
const KeyPrefix = "vfs:"

// StorageKey returns the storage key holding a domain's data.
func StorageKey(domain string) string { return KeyPrefix + domain }

// DomainOfKey extracts the domain from a storage key, reporting whether the
// key belongs to the store.
func DomainOfKey(key string) (string, bool) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, KeyPrefix), true
}

// DomainStore persists per-domain file data in the host storage area with a
// read cache. All mutation flows through Update, which serializes
// read-modify-write cycles in-process.
//
// Storage watchers fire synchronously inside Update's critical section;
// watcher callbacks must not call back into the store. Subscribers that
// need store access schedule work on their own goroutine instead.
type DomainStore struct {
	storage host.Storage

	mu    sync.Mutex
	cache map[string]*DomainData
}

// NewDomainStore wraps a storage area.
func NewDomainStore(storage host.Storage) *DomainStore {
	return &DomainStore{
		storage: storage,
		cache:   make(map[string]*DomainData),
	}
}

// Storage exposes the underlying storage area for change subscription.
func (s *DomainStore) Storage() host.Storage { return s.storage }

// Domain returns a copy of the stored data for domain. Absent domains
// return an empty value, not an error.
func (s *DomainStore) Domain(ctx context.Context, domain string) (*DomainData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.loadLocked(ctx, domain)
	if err != nil {
		return nil, err
	}
	return cloneDomainData(data), nil
}

// Domains lists all domains with stored data, sorted.
func (s *DomainStore) Domains(ctx context.Context) ([]string, error) {
	keys, err := s.storage.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	domains := make([]string, 0, len(keys))
	for _, k := range keys {
		if d, ok := DomainOfKey(k); ok {
			domains = append(domains, d)
		}
	}
	sort.Strings(domains)
	return domains, nil
}

// Update runs fn against the domain's data and persists the result. Paths
// emptied by fn are pruned; a domain left with no paths is deleted from
// storage entirely.
func (s *DomainStore) Update(ctx context.Context, domain string, fn func(*DomainData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.loadLocked(ctx, domain)
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}

	if data.Prune() {
		delete(s.cache, domain)
		return s.storage.Delete(ctx, StorageKey(domain))
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode domain %s: %w", domain, err)
	}
	s.cache[domain] = data
	return s.storage.Set(ctx, StorageKey(domain), raw)
}

// Invalidate drops the cached copy of one domain so the next read hits
// storage. Used when another writer changed storage underneath us.
func (s *DomainStore) Invalidate(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, domain)
}

// InvalidateAll drops the whole cache.
func (s *DomainStore) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*DomainData)
}

func (s *DomainStore) loadLocked(ctx context.Context, domain string) (*DomainData, error) {
	if data, ok := s.cache[domain]; ok {
		return data, nil
	}
	data := &DomainData{Paths: make(map[string]*PathEntry)}
	raw, ok, err := s.storage.Get(ctx, StorageKey(domain))
	if err != nil {
		return nil, err
	}
	if ok {
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, fmt.Errorf("decode domain %s: %w", domain, err)
		}
		if data.Paths == nil {
			data.Paths = make(map[string]*PathEntry)
		}
	}
	s.cache[domain] = data
	return data, nil
}

// ExportBundle is the portable form of the whole store.
type ExportBundle struct {
	Version    int                    `json:"version"`
	ExportedAt int64                  `json:"exportedAt"`
	Domains    map[string]*DomainData `json:"domains"`
}

// exportVersion is the current bundle format version.
const exportVersion = 1

// Export snapshots every domain into a bundle.
func (s *DomainStore) Export(ctx context.Context) (*ExportBundle, error) {
	domains, err := s.Domains(ctx)
	if err != nil {
		return nil, err
	}
	bundle := &ExportBundle{
		Version:    exportVersion,
		ExportedAt: time.Now().UnixMilli(),
		Domains:    make(map[string]*DomainData, len(domains)),
	}
	for _, d := range domains {
		data, err := s.Domain(ctx, d)
		if err != nil {
			return nil, err
		}
		bundle.Domains[d] = data
	}
	return bundle, nil
}

// ImportStats summarizes an Import. FilesAdded counts names absent from
// the store before the merge, FilesUpdated counts existing files replaced
// by a higher incoming version.
type ImportStats struct {
	Domains      int `json:"domains"`
	FilesAdded   int `json:"filesAdded"`
	FilesUpdated int `json:"filesUpdated"`
	Skipped      int `json:"skipped"`
}

// Import merges a bundle into the store. Per file, the higher version wins;
// on a tie the existing file is kept. Edit records are unioned.
func (s *DomainStore) Import(ctx context.Context, bundle *ExportBundle) (ImportStats, error) {
	var stats ImportStats
	if bundle.Version != exportVersion {
		return stats, fmt.Errorf("unsupported bundle version %d", bundle.Version)
	}

	domains := make([]string, 0, len(bundle.Domains))
	for d := range bundle.Domains {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for _, domain := range domains {
		incoming := bundle.Domains[domain]
		if incoming == nil {
			continue
		}
		err := s.Update(ctx, domain, func(data *DomainData) error {
			for urlPath, entry := range incoming.Paths {
				if entry == nil {
					continue
				}
				dst := data.Entry(urlPath)
				mergeFiles(dst.files(KindScript), entry.Scripts, &stats)
				mergeFiles(dst.files(KindStyle), entry.Styles, &stats)
				dst.EditRecords = mergeEditRecords(dst.EditRecords, entry.EditRecords)
			}
			return nil
		})
		if err != nil {
			return stats, err
		}
		stats.Domains++
	}
	return stats, nil
}

// mergeFiles copies newer incoming files into dst and updates the counts.
func mergeFiles(dst map[string]*File, src map[string]*File, stats *ImportStats) {
	for name, in := range src {
		if in == nil {
			continue
		}
		cur, ok := dst[name]
		if ok && cur.Version >= in.Version {
			stats.Skipped++
			continue
		}
		dst[name] = cloneFile(in)
		if ok {
			stats.FilesUpdated++
		} else {
			stats.FilesAdded++
		}
	}
}

func mergeEditRecords(existing, incoming []EditRecord) []EditRecord {
	seen := make(map[EditRecord]bool, len(existing))
	for _, r := range existing {
		seen[r] = true
	}
	for _, r := range incoming {
		if !seen[r] {
			existing = append(existing, r)
			seen[r] = true
		}
	}
	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].Timestamp < existing[j].Timestamp
	})
	return existing
}

func cloneFile(f *File) *File {
	cp := *f
	if f.Enabled != nil {
		b := *f.Enabled
		cp.Enabled = &b
	}
	return &cp
}

func cloneDomainData(d *DomainData) *DomainData {
	out := &DomainData{Paths: make(map[string]*PathEntry, len(d.Paths))}
	for key, entry := range d.Paths {
		ne := &PathEntry{}
		if entry.Scripts != nil {
			ne.Scripts = make(map[string]*File, len(entry.Scripts))
			for n, f := range entry.Scripts {
				ne.Scripts[n] = cloneFile(f)
			}
		}
		if entry.Styles != nil {
			ne.Styles = make(map[string]*File, len(entry.Styles))
			for n, f := range entry.Styles {
				ne.Styles[n] = cloneFile(f)
			}
		}
		if entry.EditRecords != nil {
			ne.EditRecords = append([]EditRecord(nil), entry.EditRecords...)
		}
		out.Paths[key] = ne
	}
	return out
}
