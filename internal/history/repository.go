package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome values mirror the flow result types that end a flow.
const (
	OutcomeCreateEntry = "create_entry"
	OutcomeAbort       = "abort"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Record is one finished flow.
type Record struct {
	ID        string    `json:"id"`
	FlowID    string    `json:"flow_id"`
	Domain    string    `json:"domain"`
	Source    string    `json:"source"`
	UniqueID  string    `json:"unique_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	EntryID   string    `json:"entry_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which records List returns.
type Filter struct {
	Domain   string // optional
	UniqueID string // optional
	Outcome  string // optional: create_entry or abort
	Reason   string // optional
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult is a page of records.
type ListResult struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Repository defines the interface for flow history storage.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores flow history in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new flow history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts rec. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = "fh-" + uuid.NewString()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO flow_history (id, flow_id, domain, source, unique_id, outcome, reason, entry_id, title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FlowID, rec.Domain, rec.Source,
		nullableString(rec.UniqueID), rec.Outcome,
		nullableString(rec.Reason), nullableString(rec.EntryID), nullableString(rec.Title),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting flow history: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so optional columns stay NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns records matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	for _, c := range []struct{ column, value string }{
		{"domain", filter.Domain},
		{"unique_id", filter.UniqueID},
		{"outcome", filter.Outcome},
		{"reason", filter.Reason},
	} {
		if c.value != "" {
			conditions = append(conditions, c.column+" = ?")
			args = append(args, c.value)
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM flow_history " + where //nolint:gosec // WHERE built from fixed column names
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting flow history: %w", err)
	}

	query := `SELECT id, flow_id, domain, source, unique_id, outcome, reason, entry_id, title, created_at
		FROM flow_history ` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?` //nolint:gosec // as above
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying flow history: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var uniqueID, reason, entryID, title sql.NullString
		var createdAt string

		if err := rows.Scan(&rec.ID, &rec.FlowID, &rec.Domain, &rec.Source,
			&uniqueID, &rec.Outcome, &reason, &entryID, &title, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning flow history: %w", err)
		}
		rec.UniqueID = uniqueID.String
		rec.Reason = reason.String
		rec.EntryID = entryID.String
		rec.Title = title.String

		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing flow history timestamp %q: %w", createdAt, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating flow history: %w", err)
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
