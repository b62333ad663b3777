package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for entry persistence operations.
type Repository interface {
	// GetByID retrieves an entry by ID.
	// Returns ErrEntryNotFound if the entry does not exist.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// GetByUniqueID retrieves the entry for a device within a domain.
	// Returns ErrEntryNotFound if there is none.
	GetByUniqueID(ctx context.Context, domain, uniqueID string) (*Entry, error)

	// List retrieves all entries.
	List(ctx context.Context) ([]Entry, error)

	// ListByDomain retrieves all entries of one integration domain.
	ListByDomain(ctx context.Context, domain string) ([]Entry, error)

	// Create inserts a new entry.
	// Returns ErrEntryExists if (domain, unique_id) is taken.
	Create(ctx context.Context, e *Entry) error

	// Update overwrites title, data, source and state of an existing entry.
	// Returns ErrEntryNotFound if the entry does not exist.
	Update(ctx context.Context, e *Entry) error

	// Delete removes an entry by ID.
	// Returns ErrEntryNotFound if the entry does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `
		SELECT id, domain, unique_id, title, data, source, state, created_at, updated_at
		FROM config_entries`

// GetByID retrieves an entry by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	e, err := scanEntryRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying entry by id: %w", err)
	}
	return e, nil
}

// GetByUniqueID retrieves the entry for (domain, uniqueID).
func (r *SQLiteRepository) GetByUniqueID(ctx context.Context, domain, uniqueID string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE domain = ? AND unique_id = ?`, domain, uniqueID)
	e, err := scanEntryRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying entry by unique id: %w", err)
	}
	return e, nil
}

// List retrieves all entries ordered by domain and title.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	return r.queryEntries(ctx, selectColumns+` ORDER BY domain, title`)
}

// ListByDomain retrieves all entries of one domain.
func (r *SQLiteRepository) ListByDomain(ctx context.Context, domain string) ([]Entry, error) {
	return r.queryEntries(ctx, selectColumns+` WHERE domain = ? ORDER BY title`, domain)
}

// Create inserts a new entry. Timestamps are set if zero.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	dataJSON, err := marshalData(e.Data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO config_entries (
			id, domain, unique_id, title, data, source, state, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Domain,
		e.UniqueID,
		e.Title,
		dataJSON,
		e.Source,
		string(e.State),
		e.CreatedAt.Format(time.RFC3339Nano),
		e.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntryExists
		}
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of an existing entry.
func (r *SQLiteRepository) Update(ctx context.Context, e *Entry) error {
	dataJSON, err := marshalData(e.Data)
	if err != nil {
		return err
	}

	e.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE config_entries
		SET title = ?, data = ?, source = ?, state = ?, updated_at = ?
		WHERE id = ?`,
		e.Title,
		dataJSON,
		e.Source,
		string(e.State),
		e.UpdatedAt.Format(time.RFC3339Nano),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Delete removes an entry by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM config_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntryRow(scanner rowScanner) (*Entry, error) {
	var e Entry
	var dataJSON, state, createdAt, updatedAt string

	if err := scanner.Scan(
		&e.ID,
		&e.Domain,
		&e.UniqueID,
		&e.Title,
		&dataJSON,
		&e.Source,
		&state,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	e.State = State(state)

	if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
		return nil, fmt.Errorf("unmarshalling data: %w", err)
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &e, nil
}

func marshalData(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshalling data: %w", err)
	}
	return string(b), nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
