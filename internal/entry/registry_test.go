package entry

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	entries map[string]*Entry

	createErr error
	listErr   error
	calls     int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{entries: make(map[string]*Entry)}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if e, ok := m.entries[id]; ok {
		return e.DeepCopy(), nil
	}
	return nil, ErrEntryNotFound
}

func (m *MockRepository) GetByUniqueID(_ context.Context, domain, uniqueID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, e := range m.entries {
		if e.Domain == domain && e.UniqueID == uniqueID {
			return e.DeepCopy(), nil
		}
	}
	return nil, ErrEntryNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e.DeepCopy())
	}
	return out, nil
}

func (m *MockRepository) ListByDomain(ctx context.Context, domain string) ([]Entry, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Domain == domain {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRepository) Create(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.entries {
		if existing.Domain == e.Domain && existing.UniqueID == e.UniqueID {
			return ErrEntryExists
		}
	}
	m.entries[e.ID] = e.DeepCopy()
	return nil
}

func (m *MockRepository) Update(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		return ErrEntryNotFound
	}
	m.entries[e.ID] = e.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func newLoadedRegistry(t *testing.T, repo Repository) *Registry {
	t.Helper()
	r := NewRegistry(repo)
	if err := r.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	return r
}

func TestRegistry_CreateAndFind(t *testing.T) {
	r := newLoadedRegistry(t, NewMockRepository())
	ctx := context.Background()

	e := &Entry{Domain: "thermopro", UniqueID: "AA:BB", Title: "TP357 (2142) AABB", Source: SourceUser, State: StateActive}
	if err := r.CreateEntry(ctx, e); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	if e.ID == "" {
		t.Fatal("CreateEntry() did not generate an ID")
	}
	if e.Data == nil {
		t.Error("CreateEntry() left Data nil, want empty map")
	}

	got, err := r.FindEntry(ctx, "thermopro", "AA:BB")
	if err != nil {
		t.Fatalf("FindEntry() error = %v", err)
	}
	if got.ID != e.ID {
		t.Errorf("FindEntry().ID = %q, want %q", got.ID, e.ID)
	}

	if _, err := r.FindEntry(ctx, "inkbird", "AA:BB"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("FindEntry() other domain error = %v, want ErrEntryNotFound", err)
	}
}

func TestRegistry_CreateDuplicate(t *testing.T) {
	r := newLoadedRegistry(t, NewMockRepository())
	ctx := context.Background()

	first := &Entry{Domain: "d", UniqueID: "A", Title: "t", Source: SourceUser, State: StateActive}
	if err := r.CreateEntry(ctx, first); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	second := &Entry{Domain: "d", UniqueID: "A", Title: "t", Source: SourceUser, State: StateActive}
	if err := r.CreateEntry(ctx, second); !errors.Is(err, ErrEntryExists) {
		t.Errorf("CreateEntry() duplicate error = %v, want ErrEntryExists", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistry_CreateInvalid(t *testing.T) {
	r := newLoadedRegistry(t, NewMockRepository())

	tests := []struct {
		name  string
		entry Entry
	}{
		{"no domain", Entry{UniqueID: "A", Title: "t", Source: "user", State: StateActive}},
		{"no unique id", Entry{Domain: "d", Title: "t", Source: "user", State: StateActive}},
		{"no title", Entry{Domain: "d", UniqueID: "A", Source: "user", State: StateActive}},
		{"no source", Entry{Domain: "d", UniqueID: "A", Title: "t", State: StateActive}},
		{"bad state", Entry{Domain: "d", UniqueID: "A", Title: "t", Source: "user", State: "gone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entry
			if err := r.CreateEntry(context.Background(), &e); !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("CreateEntry() error = %v, want ErrInvalidEntry", err)
			}
		})
	}
}

func TestRegistry_ReplacePromotesIgnored(t *testing.T) {
	r := newLoadedRegistry(t, NewMockRepository())
	ctx := context.Background()

	ignored := &Entry{Domain: "d", UniqueID: "A", Title: "t", Source: SourceIgnore, State: StateIgnored}
	if err := r.CreateEntry(ctx, ignored); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}

	promoted := &Entry{ID: ignored.ID, Domain: "d", UniqueID: "A", Title: "new", Source: SourceUser, State: StateActive}
	if err := r.ReplaceEntry(ctx, promoted); err != nil {
		t.Fatalf("ReplaceEntry() error = %v", err)
	}

	entries, err := r.ListByDomain(ctx, "d")
	if err != nil {
		t.Fatalf("ListByDomain() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListByDomain() = %d entries, want 1", len(entries))
	}
	if entries[0].State != StateActive || entries[0].Title != "new" {
		t.Errorf("entry = %+v, want active with new title", entries[0])
	}
	if !entries[0].CreatedAt.Equal(ignored.CreatedAt) {
		t.Error("ReplaceEntry() changed CreatedAt")
	}

	moved := &Entry{ID: ignored.ID, Domain: "d", UniqueID: "B", Title: "x", Source: SourceUser, State: StateActive}
	if err := r.ReplaceEntry(ctx, moved); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("ReplaceEntry() with new unique_id error = %v, want ErrInvalidEntry", err)
	}
}

func TestRegistry_Delete(t *testing.T) {
	r := newLoadedRegistry(t, NewMockRepository())
	ctx := context.Background()

	e := &Entry{Domain: "d", UniqueID: "A", Title: "t", Source: SourceUser, State: StateActive}
	if err := r.CreateEntry(ctx, e); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	if err := r.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	if _, err := r.FindEntry(ctx, "d", "A"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("FindEntry() after delete error = %v, want ErrEntryNotFound", err)
	}
	if err := r.DeleteEntry(ctx, e.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("DeleteEntry() twice error = %v, want ErrEntryNotFound", err)
	}
}

func TestRegistry_ChangeEvents(t *testing.T) {
	r := newLoadedRegistry(t, NewMockRepository())
	ctx := context.Background()

	var got []ChangeType
	r.Subscribe(func(c Change) { got = append(got, c.Type) })

	e := &Entry{Domain: "d", UniqueID: "A", Title: "t", Source: SourceIgnore, State: StateIgnored}
	if err := r.CreateEntry(ctx, e); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	e.State = StateActive
	if err := r.ReplaceEntry(ctx, e); err != nil {
		t.Fatalf("ReplaceEntry() error = %v", err)
	}
	if err := r.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}

	want := []ChangeType{ChangeAdded, ChangeUpdated, ChangeRemoved}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRegistry_CacheIsolation(t *testing.T) {
	r := newLoadedRegistry(t, NewMockRepository())
	ctx := context.Background()

	e := &Entry{Domain: "d", UniqueID: "A", Title: "t", Source: SourceUser, State: StateActive, Data: map[string]any{"k": "v"}}
	if err := r.CreateEntry(ctx, e); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	e.Data["k"] = "mutated"

	got, err := r.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.Data["k"] != "v" {
		t.Errorf("cache was mutated through caller's map: %v", got.Data)
	}
}

func TestRegistry_FallsBackBeforeRefresh(t *testing.T) {
	repo := NewMockRepository()
	repo.entries["x"] = &Entry{ID: "x", Domain: "d", UniqueID: "A", Title: "t", Source: "user", State: StateActive}
	r := NewRegistry(repo)

	got, err := r.FindEntry(context.Background(), "d", "A")
	if err != nil {
		t.Fatalf("FindEntry() error = %v", err)
	}
	if got.ID != "x" {
		t.Errorf("FindEntry().ID = %q, want %q", got.ID, "x")
	}
}

func TestRegistry_RefreshError(t *testing.T) {
	repo := NewMockRepository()
	repo.listErr = errors.New("disk on fire")
	r := NewRegistry(repo)

	if err := r.RefreshCache(context.Background()); err == nil {
		t.Error("RefreshCache() expected error, got nil")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := newLoadedRegistry(t, NewMockRepository())
	ctx := context.Background()

	for _, e := range []*Entry{
		{Domain: "z", UniqueID: "1", Title: "b", Source: "user", State: StateActive},
		{Domain: "a", UniqueID: "2", Title: "c", Source: "user", State: StateActive},
		{Domain: "z", UniqueID: "3", Title: "a", Source: "user", State: StateActive},
	} {
		if err := r.CreateEntry(ctx, e); err != nil {
			t.Fatalf("CreateEntry() error = %v", err)
		}
	}

	list, err := r.ListEntries(ctx)
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	var order []string
	for _, e := range list {
		order = append(order, e.Domain+"/"+e.Title)
	}
	want := []string{"a/c", "z/a", "z/b"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("ListEntries() order = %v, want %v", order, want)
		}
	}
}
