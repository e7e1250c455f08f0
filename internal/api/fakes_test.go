package api

import (
	"context"
	"fmt"
	"time"

	"github.com/tigel-agm/NL-SQL/internal/config"
	"github.com/tigel-agm/NL-SQL/internal/history"
	"github.com/tigel-agm/NL-SQL/internal/nl2sql"
	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/query/mongo"
	"github.com/tigel-agm/NL-SQL/internal/query/sqldb"
	"github.com/tigel-agm/NL-SQL/internal/relay"
	"github.com/tigel-agm/NL-SQL/internal/storage"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func testConfig(values map[string]string) config.Config {
	cfg, err := config.Load("nlsql-api", mapLookup(values))
	if err != nil {
		panic(err)
	}
	return cfg
}

type fakeTranslator struct {
	result nl2sql.Result
	err    error
}

func (f *fakeTranslator) Translate(_ context.Context, _ nl2sql.Request) (nl2sql.Result, error) {
	if f.err != nil {
		return nl2sql.Result{}, f.err
	}
	return f.result, nil
}

type fakeSQL struct {
	tables  []query.Table
	results map[string]query.Result
	err     error
}

func (f *fakeSQL) Execute(_ context.Context, _ target.Target, sqlText string) (query.Result, error) {
	if f.err != nil {
		return query.Result{}, f.err
	}
	result, ok := f.results[sqlText]
	if !ok {
		return query.Result{}, fmt.Errorf("no such table: %s", sqlText)
	}
	return result, nil
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
	return f.tables, nil
}

func (f *fakeSQL) Preview(_ context.Context, _ target.Target, table string, n int) (query.Result, error) {
	return query.Result{Columns: []string{"table", "n"}, Rows: [][]any{{table, n}}}, nil
}

func (f *fakeSQL) Profile(_ context.Context, _ target.Target, _ string) ([]sqldb.ColumnProfile, error) {
	return []sqldb.ColumnProfile{{Column: "id", Type: "INTEGER", DistinctCount: 2}}, nil
}

func (f *fakeSQL) Explain(_ context.Context, _ target.Target, _ string, _ bool) (query.Result, error) {
	return query.Result{Columns: []string{"detail"}, Rows: [][]any{{"SCAN customers"}}}, nil
}

type fakeMongo struct{}

func (fakeMongo) Find(context.Context, target.Target, mongo.FindQuery) (query.Result, error) {
	return query.Result{Columns: []string{"_id"}, Rows: [][]any{{"65f0"}}}, nil
}

func (fakeMongo) Sample(context.Context, target.Target, string, int) (query.Result, error) {
	return query.Result{Columns: []string{"_id"}}, nil
}

func (fakeMongo) ListDatabases(context.Context, target.Target) (query.Result, error) {
	return query.Result{Columns: []string{"name"}, Rows: [][]any{{"inventory"}}}, nil
}

func (fakeMongo) ListCollections(context.Context, target.Target, string) (query.Result, error) {
	return query.Result{Columns: []string{"name"}, Rows: [][]any{{"products"}}}, nil
}

type memoryHistory struct {
	entries []history.Entry
	pingErr error
}

func (m *memoryHistory) HealthCheck(context.Context) error { return m.pingErr }

func (m *memoryHistory) Append(_ context.Context, in history.AppendInput) (history.Entry, error) {
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

type memoryArchiver struct {
	keys map[string]bool
}

func (m *memoryArchiver) Store(_ context.Context, _ time.Time, _ []string, _ [][]any) (string, error) {
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	key := fmt.Sprintf("results/date=2024-05-01/result-%d.parquet", len(m.keys)+1)
	m.keys[key] = true
	return key, nil
}

func (m *memoryArchiver) Discard(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func (m *memoryArchiver) Lookup(_ context.Context, key string) (storage.ObjectInfo, error) {
	if !m.keys[key] {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: 64}, nil
}

type staticEngine struct {
	lastSQL string
}

func (e *staticEngine) Execute(_ context.Context, request query.Request) (query.Result, error) {
	e.lastSQL = request.SQL
	return query.Result{Columns: []string{"c"}, Rows: [][]any{{int64(2)}}}, nil
}

const customersSQL = "SELECT name, country FROM customers;"

func newTestRelay(translator nl2sql.Translator) (*relay.Service, *memoryHistory) {
	store := &memoryHistory{}
	return &relay.Service{
		Translator: translator,
		SQL: &fakeSQL{
			tables: []query.Table{
				{Name: "customers", Columns: []query.Column{{Name: "id"}, {Name: "name"}, {Name: "country"}}},
			},
			results: map[string]query.Result{
				customersSQL: {
					Columns:  []string{"name", "country"},
					Rows:     [][]any{{"Ada", "UK"}, {"Linus", "FI"}},
					Duration: 12 * time.Millisecond,
				},
			},
		},
		Mongo:   fakeMongo{},
		History: store,
		Clock:   func() time.Time { return time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC) },
	}, store
}

func configRateLimit(rps float64, burst int) config.RateLimitConfig {
	return config.RateLimitConfig{RequestsPerSecond: rps, Burst: burst}
}
