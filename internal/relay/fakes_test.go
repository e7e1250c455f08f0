package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tigel-agm/NL-SQL/internal/history"
	"github.com/tigel-agm/NL-SQL/internal/nl2sql"
	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/query/mongo"
	"github.com/tigel-agm/NL-SQL/internal/query/sqldb"
	"github.com/tigel-agm/NL-SQL/internal/storage"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

type fakeTranslator struct {
	result   nl2sql.Result
	err      error
	requests []nl2sql.Request
}

func (f *fakeTranslator) Translate(_ context.Context, req nl2sql.Request) (nl2sql.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nl2sql.Result{}, f.err
	}
	return f.result, nil
}

type fakeSQL struct {
	tables     []query.Table
	inspectErr error
	results    map[string]query.Result
	execErr    error
	executed   []string
	profiles   []sqldb.ColumnProfile
	explained  string
	analyze    bool
}

func (f *fakeSQL) Execute(_ context.Context, _ target.Target, sqlText string) (query.Result, error) {
	f.executed = append(f.executed, sqlText)
	if f.execErr != nil {
		return query.Result{}, f.execErr
	}
	return f.results[sqlText], nil
}

func (f *fakeSQL) ListTables(_ context.Context, _ target.Target) (query.Result, error) {
	rows := make([][]any, 0, len(f.tables))
	for _, name := range query.TableNames(f.tables) {
		rows = append(rows, []any{name})
	}
	return query.Result{Columns: []string{"name"}, Rows: rows}, nil
}

func (f *fakeSQL) ListDatabases(_ context.Context, _ target.Target) (query.Result, error) {
	return query.Result{Columns: []string{"name"}, Rows: [][]any{{"main"}}}, nil
}

func (f *fakeSQL) Inspect(_ context.Context, _ target.Target) ([]query.Table, error) {
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	return f.tables, nil
}

func (f *fakeSQL) Preview(_ context.Context, _ target.Target, table string, n int) (query.Result, error) {
	for _, known := range f.tables {
		if known.Name == table {
			return query.Result{Columns: []string{"n"}, Rows: [][]any{{n}}}, nil
		}
	}
	return query.Result{}, &sqldb.UnknownTableError{Table: table, Available: query.TableNames(f.tables)}
}

func (f *fakeSQL) Profile(_ context.Context, _ target.Target, _ string) ([]sqldb.ColumnProfile, error) {
	return f.profiles, nil
}

func (f *fakeSQL) Explain(_ context.Context, _ target.Target, sqlText string, analyze bool) (query.Result, error) {
	f.explained = sqlText
	f.analyze = analyze
	return query.Result{Columns: []string{"detail"}, Rows: [][]any{{"SCAN orders"}}}, nil
}

type fakeMongo struct {
	found       []mongo.FindQuery
	result      query.Result
	err         error
	collections []string
	samples     map[string]query.Result
}

func (f *fakeMongo) Find(_ context.Context, _ target.Target, q mongo.FindQuery) (query.Result, error) {
	f.found = append(f.found, q)
	if f.err != nil {
		return query.Result{}, f.err
	}
	return f.result, nil
}

func (f *fakeMongo) Sample(_ context.Context, _ target.Target, collection string, _ int) (query.Result, error) {
	return f.samples[collection], nil
}

func (f *fakeMongo) ListDatabases(_ context.Context, _ target.Target) (query.Result, error) {
	return query.Result{Columns: []string{"name"}, Rows: [][]any{{"admin"}, {"inventory"}}}, nil
}

func (f *fakeMongo) ListCollections(_ context.Context, _ target.Target, _ string) (query.Result, error) {
	rows := make([][]any, 0, len(f.collections))
	for _, name := range f.collections {
		rows = append(rows, []any{name})
	}
	return query.Result{Columns: []string{"name"}, Rows: rows}, nil
}

type memoryHistory struct {
	entries   []history.Entry
	appendErr error
}

func (m *memoryHistory) HealthCheck(context.Context) error { return nil }

func (m *memoryHistory) Append(_ context.Context, in history.AppendInput) (history.Entry, error) {
	if m.appendErr != nil {
		return history.Entry{}, m.appendErr
	}
	entry := history.Entry{
		ID:         int64(len(m.entries) + 1),
		Question:   in.Question,
		Query:      in.Query,
		Dialect:    in.Dialect,
		Status:     in.Status,
		RowCount:   in.RowCount,
		Error:      in.Error,
		Columns:    in.Columns,
		Rows:       in.Rows,
		ArchiveKey: in.ArchiveKey,
		CreatedAt:  in.CreatedAt,
	}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memoryHistory) List(_ context.Context, limit int) ([]history.Entry, error) {
	out := make([]history.Entry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memoryHistory) Get(_ context.Context, id int64) (history.Entry, error) {
	for _, entry := range m.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return history.Entry{}, history.ErrNotFound
}

type fakeArchiver struct {
	stored    map[string][][]any
	discarded []string
	storeErr  error
}

func (f *fakeArchiver) Store(_ context.Context, at time.Time, _ []string, rows [][]any) (string, error) {
	if f.storeErr != nil {
		return "", f.storeErr
	}
	if f.stored == nil {
		f.stored = map[string][][]any{}
	}
	key := fmt.Sprintf("results/date=%s/result-%d.parquet", at.Format("2006-01-02"), len(f.stored)+1)
	f.stored[key] = rows
	return key, nil
}

func (f *fakeArchiver) Discard(_ context.Context, key string) error {
	f.discarded = append(f.discarded, key)
	delete(f.stored, key)
	return nil
}

func (f *fakeArchiver) Lookup(_ context.Context, key string) (storage.ObjectInfo, error) {
	if _, ok := f.stored[key]; !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: 128}, nil
}

type fakeReplay struct {
	requests []query.Request
	err      error
}

func (f *fakeReplay) Execute(_ context.Context, request query.Request) (query.Result, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return query.Result{}, f.err
	}
	return query.Result{Columns: []string{"c"}, Rows: [][]any{{int64(2)}}}, nil
}

var errBoom = errors.New("boom")
