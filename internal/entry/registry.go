package entry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ChangeType describes what happened to an entry.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// Change is delivered to listeners after the repository write succeeded.
type Change struct {
	Type  ChangeType
	Entry Entry
}

// Registry provides entry management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache indexed by ID and by
// (domain, unique_id).
//
// The cache is populated on startup via RefreshCache() and kept in sync by
// the write operations. Before RefreshCache has run, reads go to the
// repository.
type Registry struct {
	repo Repository

	cacheMu  sync.RWMutex
	cache    map[string]*Entry // by ID
	byUnique map[string]string // key(domain, unique_id) -> ID
	loaded   bool

	listenersMu sync.RWMutex
	listeners   []func(Change)

	logger Logger
}

// NewRegistry creates a new entry registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:     repo,
		cache:    make(map[string]*Entry),
		byUnique: make(map[string]string),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Subscribe registers fn to be called after every successful change.
// Listeners run synchronously on the writer's goroutine and must not call
// back into the registry's write methods.
func (r *Registry) Subscribe(fn func(Change)) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.listenersMu.Unlock()
}

func (r *Registry) notify(t ChangeType, e *Entry) {
	r.listenersMu.RLock()
	listeners := r.listeners
	r.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(Change{Type: t, Entry: *e.DeepCopy()})
	}
}

// RefreshCache reloads all entries from the repository into the cache.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entries, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Entry, len(entries))
	r.byUnique = make(map[string]string, len(entries))
	for i := range entries {
		r.put(&entries[i])
	}
	r.loaded = true

	r.logger.Info("entry cache refreshed", "count", len(entries))
	return nil
}

// put stores a copy of e. cacheMu must be held.
func (r *Registry) put(e *Entry) {
	r.cache[e.ID] = e.DeepCopy()
	r.byUnique[key(e.Domain, e.UniqueID)] = e.ID
}

// GetEntry retrieves an entry by ID. The result is a copy.
func (r *Registry) GetEntry(ctx context.Context, id string) (*Entry, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	loaded := r.loaded
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}
	if loaded {
		return nil, ErrEntryNotFound
	}
	return r.repo.GetByID(ctx, id)
}

// FindEntry retrieves the entry for (domain, uniqueID) in either state.
// Returns ErrEntryNotFound if the device has no entry.
func (r *Registry) FindEntry(ctx context.Context, domain, uniqueID string) (*Entry, error) {
	r.cacheMu.RLock()
	id, ok := r.byUnique[key(domain, uniqueID)]
	var cached *Entry
	if ok {
		cached = r.cache[id]
	}
	loaded := r.loaded
	r.cacheMu.RUnlock()

	if cached != nil {
		return cached.DeepCopy(), nil
	}
	if loaded {
		return nil, ErrEntryNotFound
	}
	return r.repo.GetByUniqueID(ctx, domain, uniqueID)
}

// ListEntries retrieves all entries sorted by domain and title.
func (r *Registry) ListEntries(ctx context.Context) ([]Entry, error) {
	return r.list(ctx, "")
}

// ListByDomain retrieves the entries of one domain sorted by title.
func (r *Registry) ListByDomain(ctx context.Context, domain string) ([]Entry, error) {
	return r.list(ctx, domain)
}

func (r *Registry) list(ctx context.Context, domain string) ([]Entry, error) {
	r.cacheMu.RLock()
	if !r.loaded {
		r.cacheMu.RUnlock()
		if domain == "" {
			return r.repo.List(ctx)
		}
		return r.repo.ListByDomain(ctx, domain)
	}

	entries := make([]Entry, 0, len(r.cache))
	for _, e := range r.cache {
		if domain == "" || e.Domain == domain {
			entries = append(entries, *e.DeepCopy())
		}
	}
	r.cacheMu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Domain != entries[j].Domain {
			return entries[i].Domain < entries[j].Domain
		}
		if entries[i].Title != entries[j].Title {
			return entries[i].Title < entries[j].Title
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// CreateEntry validates and persists a new entry, generating its ID if
// needed. Returns ErrEntryExists if (domain, unique_id) is taken.
func (r *Registry) CreateEntry(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = GenerateID()
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	if err := Validate(e); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, e); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.put(e)
	r.cacheMu.Unlock()

	r.logger.Info("config entry created",
		"entry_id", e.ID, "domain", e.Domain, "unique_id", e.UniqueID, "state", e.State)
	r.notify(ChangeAdded, e)
	return nil
}

// ReplaceEntry overwrites an existing entry, keeping its ID and creation
// time. Used to promote an ignored entry to active.
func (r *Registry) ReplaceEntry(ctx context.Context, e *Entry) error {
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	if err := Validate(e); err != nil {
		return err
	}

	existing, err := r.GetEntry(ctx, e.ID)
	if err != nil {
		return err
	}
	if existing.Domain != e.Domain || existing.UniqueID != e.UniqueID {
		return fmt.Errorf("%w: domain and unique_id cannot change", ErrInvalidEntry)
	}
	e.CreatedAt = existing.CreatedAt

	if err := r.repo.Update(ctx, e); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.put(e)
	r.cacheMu.Unlock()

	r.logger.Info("config entry replaced",
		"entry_id", e.ID, "domain", e.Domain, "unique_id", e.UniqueID, "state", e.State)
	r.notify(ChangeUpdated, e)
	return nil
}

// DeleteEntry removes an entry by ID.
func (r *Registry) DeleteEntry(ctx context.Context, id string) error {
	existing, err := r.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			r.evict(existing)
		}
		return err
	}

	r.evict(existing)

	r.logger.Info("config entry removed",
		"entry_id", id, "domain", existing.Domain, "unique_id", existing.UniqueID)
	r.notify(ChangeRemoved, existing)
	return nil
}

func (r *Registry) evict(e *Entry) {
	r.cacheMu.Lock()
	delete(r.cache, e.ID)
	if r.byUnique[key(e.Domain, e.UniqueID)] == e.ID {
		delete(r.byUnique, key(e.Domain, e.UniqueID))
	}
	r.cacheMu.Unlock()
}

// Count returns the number of cached entries.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
