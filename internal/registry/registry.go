// Package registry holds the in-memory cache of database metadata.
//
// The registry is the single source of truth for what is known about each
// connected database: a bulk listing seeds NameOnly entries, a lazy detail
// fetch upgrades one entry to Full, and create/upload/delete mutate entries
// directly. Concurrent detail fetches for the same identifier are
// deduplicated through an in-flight set.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/dbstudio/internal/logging"
	"go.uber.org/zap"
)

// Errors for registry operations.
var (
	// ErrFetchInFlight reports that a detail fetch for the identifier is
	// already running. Callers treat it as "still loading", not a failure.
	ErrFetchInFlight = errors.New("detail fetch already in flight")
)

// DetailFetcher loads the full metadata for one database from the backend.
type DetailFetcher interface {
	GetDatabaseDetails(ctx context.Context, name string) (Metadata, error)
}

// Metrics receives registry instrumentation. Implemented by telemetry.
type Metrics interface {
	ObserveFetch(status string, dur time.Duration)
	SetDatabaseCount(n int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveFetch(string, time.Duration) {}
func (nopMetrics) SetDatabaseCount(int)               {}

// Registry maps database identifiers to cached metadata.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]Metadata
	inflight map[string]struct{}

	fetcher DetailFetcher
	log     *logging.Logger
	metrics Metrics
}

// New creates an empty registry. logger and metrics may be nil.
func New(fetcher DetailFetcher, logger *logging.Logger, metrics Metrics) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Registry{
		entries:  make(map[string]Metadata),
		inflight: make(map[string]struct{}),
		fetcher:  fetcher,
		log:      logger.Named("registry"),
		metrics:  metrics,
	}
}

// BulkInitialize replaces the entire registry with one NameOnly entry per
// name. Blank names are discarded and duplicates collapse to one entry.
// Returns the number of entries after the replace; zero means the user has
// no databases, which is distinct from a listing failure.
func (r *Registry) BulkInitialize(names []string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]Metadata, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r.entries[name] = nameOnly(name)
	}

	n := len(r.entries)
	r.metrics.SetDatabaseCount(n)
	r.log.Debug(context.Background(), "registry initialized", zap.Int("databases", n))
	return n
}

// FetchDetails upgrades one entry to Full by calling the backend.
//
// If a fetch for name is already in flight the call returns
// ErrFetchInFlight without a second remote call. On failure the previous
// entry, whatever its detail level, is left untouched; the caller may retry
// simply by fetching again. On success the entry is replaced with the Full
// record, added if it was not present.
func (r *Registry) FetchDetails(ctx context.Context, name string) (Metadata, error) {
	r.mu.Lock()
	if _, busy := r.inflight[name]; busy {
		r.mu.Unlock()
		return Metadata{}, fmt.Errorf("%q: %w", name, ErrFetchInFlight)
	}
	r.inflight[name] = struct{}{}
	r.mu.Unlock()

	ctx = logging.WithDatabase(ctx, name)
	start := time.Now()
	meta, err := r.fetcher.GetDatabaseDetails(ctx, name)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, name)

	if err != nil {
		r.metrics.ObserveFetch("error", time.Since(start))
		r.log.Warn(ctx, "detail fetch failed", zap.Error(err))
		return Metadata{}, fmt.Errorf("fetch details for %q: %w", name, err)
	}

	full := normalizeFull(name, meta)
	r.entries[name] = full
	r.metrics.ObserveFetch("success", time.Since(start))
	r.metrics.SetDatabaseCount(len(r.entries))
	r.log.Debug(ctx, "detail fetch complete",
		zap.Int("tables", len(full.Tables)),
		zap.Duration("took", time.Since(start)))
	return clone(full), nil
}

// Upsert fully replaces the entry for name with meta, forced to Full.
// Used after a successful credential create/update or file upload.
func (r *Registry) Upsert(name string, meta Metadata) Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()

	full := normalizeFull(name, meta)
	r.entries[name] = full
	r.metrics.SetDatabaseCount(len(r.entries))
	return clone(full)
}

// Remove deletes the entry for name. Returns whether it existed.
// Selection re-pointing is the caller's concern; the registry knows nothing
// about selection.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[name]
	delete(r.entries, name)
	r.metrics.SetDatabaseCount(len(r.entries))
	return ok
}

// Get returns a copy of the entry for name.
func (r *Registry) Get(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.entries[name]
	if !ok {
		return Metadata{}, false
	}
	return clone(meta), true
}

// Has reports whether name is a registry key.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// InFlight reports whether a detail fetch for name is running.
func (r *Registry) InFlight(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, busy := r.inflight[name]
	return busy
}

// Names returns all identifiers, sorted for stable display.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
