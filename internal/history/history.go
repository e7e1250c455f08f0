package history

import (
	"context"
	"errors"
	"sort"
	"time"
)

var ErrNotFound = errors.New("history: not found")

const (
	StatusOK    = "ok"
	StatusError = "error"

	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Entry is one asked question. Entries are only ever appended.
type Entry struct {
	ID         int64
	Question   string
	Query      string
	Dialect    string
	Status     string
	RowCount   int
	Error      string
	Columns    []string
	Rows       []map[string]any
	ArchiveKey string
	CreatedAt  time.Time
}

type AppendInput struct {
	Question   string
	Query      string
	Dialect    string
	Status     string
	RowCount   int
	Error      string
	Columns    []string
	Rows       []map[string]any
	ArchiveKey string
	CreatedAt  time.Time
}

// OrderedColumns returns the result columns in query order. Entries written
// before column names were recorded fall back to the sorted row keys.
func (e Entry) OrderedColumns() []string {
	if len(e.Columns) > 0 {
		return e.Columns
	}
	seen := map[string]struct{}{}
	for _, row := range e.Rows {
		for key := range row {
			seen[key] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return columns
}

type Store interface {
	HealthCheck(ctx context.Context) error
	Append(ctx context.Context, in AppendInput) (Entry, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, id int64) (Entry, error)
}

// NormalizeLimit applies the default and the upper bound to a requested page size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
