package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/query/sqldb"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

// Tables lists tables, or collections for MongoDB targets.
func (s *Service) Tables(ctx context.Context, connectionURL string) (query.Result, error) {
	t, err := s.parseTarget(connectionURL)
	if err != nil {
		return query.Result{}, err
	}
	var result query.Result
	if t.IsMongo() {
		result, err = s.Mongo.ListCollections(ctx, t, "")
	} else {
		result, err = s.SQL.ListTables(ctx, t)
	}
	if err != nil {
		return query.Result{}, executionError(err)
	}
	return result, nil
}

// Schema describes every table. MongoDB has no fixed schema, so columns are inferred
// from a sample of each collection.
func (s *Service) Schema(ctx context.Context, connectionURL string) ([]query.Table, error) {
	t, err := s.parseTarget(connectionURL)
	if err != nil {
		return nil, err
	}
	if t.IsMongo() {
		return s.mongoSchema(ctx, t)
	}
	tables, err := s.SQL.Inspect(ctx, t)
	if err != nil {
		return nil, executionError(err)
	}
	return tables, nil
}

func (s *Service) mongoSchema(ctx context.Context, t target.Target) ([]query.Table, error) {
	collections, err := s.Mongo.ListCollections(ctx, t, "")
	if err != nil {
		return nil, executionError(err)
	}
	tables := make([]query.Table, 0, len(collections.Rows))
	for _, row := range collections.Rows {
		name, _ := row[0].(string)
		sample, err := s.Mongo.Sample(ctx, t, name, s.previewRows())
		if err != nil {
			return nil, executionError(err)
		}
		table := query.Table{Name: name}
		for i, column := range sample.Columns {
			table.Columns = append(table.Columns, query.Column{
				Name:     column,
				Type:     sampledType(sample.Rows, i),
				Nullable: column != "_id",
			})
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (s *Service) Diagram(ctx context.Context, connectionURL string) (string, error) {
	tables, err := s.Schema(ctx, connectionURL)
	if err != nil {
		return "", err
	}
	return BuildDiagram(tables), nil
}

func (s *Service) Preview(ctx context.Context, connectionURL, table string, n int) (query.Result, error) {
	if strings.TrimSpace(table) == "" {
		return query.Result{}, newError(KindInvalidInput, nil, "table is required")
	}
	t, err := s.parseTarget(connectionURL)
	if err != nil {
		return query.Result{}, err
	}
	if n <= 0 {
		n = s.previewRows()
	}
	var result query.Result
	if t.IsMongo() {
		result, err = s.Mongo.Sample(ctx, t, table, n)
	} else {
		result, err = s.SQL.Preview(ctx, t, table, n)
	}
	if err != nil {
		return query.Result{}, executionError(err)
	}
	return result, nil
}

func (s *Service) Profile(ctx context.Context, connectionURL, table string) ([]sqldb.ColumnProfile, error) {
	if strings.TrimSpace(table) == "" {
		return nil, newError(KindInvalidInput, nil, "table is required")
	}
	t, err := s.sqlTarget(connectionURL, "profiling")
	if err != nil {
		return nil, err
	}
	profiles, err := s.SQL.Profile(ctx, t, table)
	if err != nil {
		return nil, executionError(err)
	}
	return profiles, nil
}

func (s *Service) Explain(ctx context.Context, connectionURL, sqlText string, analyze bool) (query.Result, error) {
	if strings.TrimSpace(sqlText) == "" {
		return query.Result{}, newError(KindInvalidInput, nil, "sql is required")
	}
	t, err := s.sqlTarget(connectionURL, "explain")
	if err != nil {
		return query.Result{}, err
	}
	result, err := s.SQL.Explain(ctx, t, sqlText, analyze)
	if err != nil {
		return query.Result{}, executionError(err)
	}
	return result, nil
}

func (s *Service) Databases(ctx context.Context, connectionURL string) (query.Result, error) {
	t, err := s.parseTarget(connectionURL)
	if err != nil {
		return query.Result{}, err
	}
	var result query.Result
	if t.IsMongo() {
		result, err = s.Mongo.ListDatabases(ctx, t)
	} else {
		result, err = s.SQL.ListDatabases(ctx, t)
	}
	if err != nil {
		return query.Result{}, executionError(err)
	}
	return result, nil
}

// Collections lists the collections of database, defaulting to the database in the URL.
func (s *Service) Collections(ctx context.Context, connectionURL, database string) (query.Result, error) {
	t, err := s.parseTarget(connectionURL)
	if err != nil {
		return query.Result{}, err
	}
	if !t.IsMongo() {
		return query.Result{}, newError(KindUnsupported, nil, "collections are only available for mongodb targets")
	}
	result, err := s.Mongo.ListCollections(ctx, t, strings.TrimSpace(database))
	if err != nil {
		return query.Result{}, executionError(err)
	}
	return result, nil
}

func (s *Service) sqlTarget(connectionURL, operation string) (target.Target, error) {
	t, err := s.parseTarget(connectionURL)
	if err != nil {
		return target.Target{}, err
	}
	if t.IsMongo() {
		return target.Target{}, newError(KindUnsupported, nil, "%s is not supported for mongodb targets", operation)
	}
	return t, nil
}

func executionError(err error) error {
	return newError(KindExecution, err, "%v", err)
}

// BuildDiagram renders tables and foreign keys as a Graphviz ER diagram.
func BuildDiagram(tables []query.Table) string {
	var b strings.Builder
	b.WriteString("digraph ER {\n  rankdir=LR;\n  node [shape=record];\n")
	for _, table := range tables {
		columns := make([]string, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, escapeRecordField(column.Name))
		}
		label := "{" + escapeRecordField(table.Name) + "|" + strings.Join(columns, `\l`) + `\l}`
		fmt.Fprintf(&b, "  %s [label=%s];\n", quoteDOT(table.Name), quoteDOT(label))
	}
	for _, table := range tables {
		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(&b, "  %s -> %s [label=%s];\n", quoteDOT(table.Name), quoteDOT(fk.RefTable), quoteDOT(fk.Column))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func quoteDOT(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}

var recordFieldReplacer = strings.NewReplacer("{", `\{`, "}", `\}`, "|", `\|`, "<", `\<`, ">", `\>`)

func escapeRecordField(value string) string {
	return recordFieldReplacer.Replace(value)
}

func sampledType(rows [][]any, column int) string {
	for _, row := range rows {
		if column >= len(row) || row[column] == nil {
			continue
		}
		switch row[column].(type) {
		case string:
			return "string"
		case bool:
			return "bool"
		case int32, int64, int, float64:
			return "number"
		case time.Time:
			return "date"
		case map[string]any:
			return "object"
		case []any:
			return "array"
		default:
			return fmt.Sprintf("%T", row[column])
		}
	}
	return "null"
}
