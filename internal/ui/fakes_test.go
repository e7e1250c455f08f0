package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/tigel-agm/NL-SQL/internal/history"
	"github.com/tigel-agm/NL-SQL/internal/nl2sql"
	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/query/sqldb"
	"github.com/tigel-agm/NL-SQL/internal/relay"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

const salesSQL = "SELECT country, SUM(amount) AS total FROM orders GROUP BY country;"

type recordingTranslator struct {
	questions []string
	sql       string
}

func (f *recordingTranslator) Translate(_ context.Context, req nl2sql.Request) (nl2sql.Result, error) {
	f.questions = append(f.questions, req.Question)
	return nl2sql.Result{Query: f.sql, Provider: "openai", Model: "gpt-4o-mini"}, nil
}

type stubSQL struct {
	results    map[string]query.Result
	explainErr error
}

func (s *stubSQL) Execute(_ context.Context, _ target.Target, sqlText string) (query.Result, error) {
	result, ok := s.results[sqlText]
	if !ok {
		return query.Result{}, fmt.Errorf("no such table: %s", sqlText)
	}
	return result, nil
}

func (s *stubSQL) ListTables(context.Context, target.Target) (query.Result, error) {
	return query.Result{Columns: []string{"name"}, Rows: [][]any{{"customers"}, {"orders"}}}, nil
}

func (s *stubSQL) ListDatabases(context.Context, target.Target) (query.Result, error) {
	return query.Result{Columns: []string{"name"}, Rows: [][]any{{"main"}}}, nil
}

func (s *stubSQL) Inspect(context.Context, target.Target) ([]query.Table, error) {
	return []query.Table{
		{Name: "customers", Columns: []query.Column{{Name: "id"}, {Name: "country"}}},
		{
			Name:        "orders",
			Columns:     []query.Column{{Name: "id"}, {Name: "customer_id"}, {Name: "amount"}},
			ForeignKeys: []query.ForeignKey{{Column: "customer_id", RefTable: "customers", RefColumn: "id"}},
		},
	}, nil
}

func (s *stubSQL) Preview(_ context.Context, _ target.Target, table string, n int) (query.Result, error) {
	return query.Result{Columns: []string{"table", "limit"}, Rows: [][]any{{table, int64(n)}}}, nil
}

func (s *stubSQL) Profile(context.Context, target.Target, string) ([]sqldb.ColumnProfile, error) {
	return []sqldb.ColumnProfile{{Column: "amount", Type: "REAL", DistinctCount: 7, Min: 1.5, Max: 99.0}}, nil
}

func (s *stubSQL) Explain(context.Context, target.Target, string, bool) (query.Result, error) {
	if s.explainErr != nil {
		return query.Result{}, s.explainErr
	}
	return query.Result{Columns: []string{"detail"}, Rows: [][]any{{"SCAN orders"}}}, nil
}

type listHistory struct {
	entries []history.Entry
}

func (m *listHistory) HealthCheck(context.Context) error { return nil }

func (m *listHistory) Append(_ context.Context, in history.AppendInput) (history.Entry, error) {
	entry := history.Entry{
		ID:        int64(len(m.entries) + 1),
		Question:  in.Question,
		Query:     in.Query,
		Dialect:   in.Dialect,
		Status:    in.Status,
		RowCount:  in.RowCount,
		Error:     in.Error,
		Columns:   in.Columns,
		Rows:      in.Rows,
		CreatedAt: in.CreatedAt,
	}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *listHistory) List(_ context.Context, limit int) ([]history.Entry, error) {
	out := make([]history.Entry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *listHistory) Get(_ context.Context, id int64) (history.Entry, error) {
	for _, entry := range m.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return history.Entry{}, history.ErrNotFound
}

func newTestHandler(translator nl2sql.Translator) (*Handler, *listHistory) {
	store := &listHistory{}
	svc := &relay.Service{
		Translator: translator,
		SQL: &stubSQL{results: map[string]query.Result{
			salesSQL: {
				Columns:  []string{"country", "total"},
				Rows:     [][]any{{"UK", 120.5}, {"FI", int64(80)}},
				Duration: 12 * time.Millisecond,
			},
		}},
		History: store,
		Clock: func() time.Time {
			return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
		},
	}
	return NewHandler(svc, nil), store
}
