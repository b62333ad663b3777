package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/bleflow/internal/infrastructure/database"
	_ "github.com/nerrad567/bleflow/migrations"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func seed(t *testing.T, repo *SQLiteRepository) {
	t.Helper()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	records := []Record{
		{FlowID: "f1", Domain: "thermopro", Source: "bluetooth", UniqueID: "AA:BB", Outcome: OutcomeAbort, Reason: "not_supported"},
		{FlowID: "f2", Domain: "thermopro", Source: "bluetooth", UniqueID: "AA:BB", Outcome: OutcomeAbort, Reason: "superseded"},
		{FlowID: "f3", Domain: "thermopro", Source: "user", UniqueID: "AA:BB", Outcome: OutcomeCreateEntry, EntryID: "e1", Title: "TP357 (2142) AC3D"},
		{FlowID: "f4", Domain: "govee", Source: "user", Outcome: OutcomeAbort, Reason: "no_devices_found"},
	}
	for i := range records {
		records[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(context.Background(), &records[i]); err != nil {
			t.Fatalf("Create(%s) error = %v", records[i].FlowID, err)
		}
	}
}

func flowIDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.FlowID)
	}
	return ids
}

func TestSQLiteRepository_CreateGeneratesID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)

	rec := &Record{FlowID: "f1", Domain: "thermopro", Source: "user", Outcome: OutcomeAbort, Reason: "no_devices_found"}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Errorf("Create() left ID=%q CreatedAt=%v unset", rec.ID, rec.CreatedAt)
	}

	got, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got.Records) != 1 {
		t.Fatalf("List() = %d records, want 1", len(got.Records))
	}
	if diff := cmp.Diff(*rec, got.Records[0]); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)
	seed(t, repo)

	tests := []struct {
		name      string
		filter    Filter
		wantIDs   []string
		wantTotal int
	}{
		{"all newest first", Filter{}, []string{"f4", "f3", "f2", "f1"}, 4},
		{"by domain", Filter{Domain: "thermopro"}, []string{"f3", "f2", "f1"}, 3},
		{"by outcome", Filter{Outcome: OutcomeCreateEntry}, []string{"f3"}, 1},
		{"by reason", Filter{Reason: "superseded"}, []string{"f2"}, 1},
		{"by unique id", Filter{UniqueID: "AA:BB", Outcome: OutcomeAbort}, []string{"f2", "f1"}, 2},
		{"paged", Filter{Limit: 2, Offset: 1}, []string{"f3", "f2"}, 4},
		{"no match", Filter{Domain: "inkbird"}, []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantIDs, flowIDs(got.Records)); diff != "" {
				t.Errorf("flow IDs mismatch (-want +got):\n%s", diff)
			}
			if got.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", got.Total, tt.wantTotal)
			}
		})
	}
}

func TestSQLiteRepository_ListClampsLimit(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t).DB)

	tests := []struct {
		in, want int
	}{
		{0, defaultLimit},
		{-5, defaultLimit},
		{10, 10},
		{1000, maxLimit},
	}
	for _, tt := range tests {
		got, err := repo.List(context.Background(), Filter{Limit: tt.in, Offset: -1})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if got.Limit != tt.want || got.Offset != 0 {
			t.Errorf("List(limit=%d) Limit/Offset = %d/%d, want %d/0", tt.in, got.Limit, got.Offset, tt.want)
		}
	}
}
