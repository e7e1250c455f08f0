package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tigel-agm/NL-SQL/internal/history"
	"github.com/tigel-agm/NL-SQL/internal/observability"
)

// createdAtLayout is fixed width so that text ordering matches time ordering.
const createdAtLayout = "2006-01-02T15:04:05.000000Z07:00"

// Repository stores history in query_history. The SQL is shared by sqlite and
// postgres, both of which accept $N placeholders and RETURNING.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

func (r *Repository) Append(ctx context.Context, in history.AppendInput) (entry history.Entry, err error) {
	defer func() { observability.ObserveHistoryWrite(err) }()

	status := in.Status
	if status == "" {
		status = history.StatusOK
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	createdAt = createdAt.UTC().Truncate(time.Microsecond)

	rows := in.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	resultJSON, err := json.Marshal(rows)
	if err != nil {
		return history.Entry{}, fmt.Errorf("encode history rows: %w", err)
	}
	columns := in.Columns
	if columns == nil {
		columns = []string{}
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return history.Entry{}, fmt.Errorf("encode history columns: %w", err)
	}

	query := `
INSERT INTO query_history (question, sql, result, column_names, row_count, status, error, dialect, archive_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`
	var id int64
	if err := r.db.QueryRowContext(
		ctx,
		query,
		in.Question,
		in.Query,
		string(resultJSON),
		string(columnsJSON),
		in.RowCount,
		status,
		in.Error,
		in.Dialect,
		in.ArchiveKey,
		createdAt.Format(createdAtLayout),
	).Scan(&id); err != nil {
		return history.Entry{}, fmt.Errorf("append history: %w", err)
	}

	return history.Entry{
		ID:         id,
		Question:   in.Question,
		Query:      in.Query,
		Dialect:    in.Dialect,
		Status:     status,
		RowCount:   in.RowCount,
		Error:      in.Error,
		Columns:    columns,
		Rows:       rows,
		ArchiveKey: in.ArchiveKey,
		CreatedAt:  createdAt,
	}, nil
}

func (r *Repository) List(ctx context.Context, limit int) ([]history.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, question, sql, result, column_names, row_count, status, error, dialect, archive_key, created_at
FROM query_history
ORDER BY created_at DESC, id DESC
LIMIT $1`, history.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]history.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (history.Entry, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, question, sql, result, column_names, row_count, status, error, dialect, archive_key, created_at
FROM query_history
WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Entry{}, history.ErrNotFound
		}
		return history.Entry{}, err
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (history.Entry, error) {
	var (
		entry       history.Entry
		resultJSON  string
		columnsJSON string
		createdAt   string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.Question,
		&entry.Query,
		&resultJSON,
		&columnsJSON,
		&entry.RowCount,
		&entry.Status,
		&entry.Error,
		&entry.Dialect,
		&entry.ArchiveKey,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Entry{}, err
		}
		return history.Entry{}, fmt.Errorf("scan history entry: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(resultJSON)))
	decoder.UseNumber()
	if err := decoder.Decode(&entry.Rows); err != nil {
		return history.Entry{}, fmt.Errorf("decode history rows for %d: %w", entry.ID, err)
	}
	if entry.Rows == nil {
		entry.Rows = []map[string]any{}
	}
	if err := json.Unmarshal([]byte(columnsJSON), &entry.Columns); err != nil {
		return history.Entry{}, fmt.Errorf("decode history columns for %d: %w", entry.ID, err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return history.Entry{}, fmt.Errorf("parse created_at for %d: %w", entry.ID, err)
	}
	entry.CreatedAt = parsed.UTC()
	return entry, nil
}
