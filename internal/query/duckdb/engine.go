package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/storage"
)

var readOnlyStatementPattern = regexp.MustCompile(`(?is)^\s*(select|with)\b`)

// Engine replays read-only SQL over archived parquet results. Each TableFile is
// downloaded and exposed as a view named after its TableName.
type Engine struct {
	Store storage.ObjectReader
}

func NewEngine(store storage.ObjectReader) *Engine {
	return &Engine{Store: store}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if !readOnlyStatementPattern.MatchString(sqlText) || strings.Contains(sqlText, ";") {
		return query.Result{}, fmt.Errorf("only a single SELECT or WITH statement can run against an archived result")
	}
	if len(request.Files) == 0 {
		return query.Result{}, fmt.Errorf("no archived files to query")
	}
	if e.Store == nil {
		return query.Result{}, fmt.Errorf("object store is required")
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "nlsql-replay-")
	if err != nil {
		return query.Result{}, fmt.Errorf("create replay temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	groupedPaths := map[string][]string{}
	for index, file := range request.Files {
		reader, err := e.Store.Get(ctx, file.ObjectPath)
		if err != nil {
			return query.Result{}, fmt.Errorf("get object %q: %w", file.ObjectPath, err)
		}

		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(file.TableName), index))
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			return query.Result{}, fmt.Errorf("write local parquet file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return query.Result{}, fmt.Errorf("close object %q: %w", file.ObjectPath, err)
		}
		groupedPaths[file.TableName] = append(groupedPaths[file.TableName], localPath)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	for tableName, localPaths := range groupedPaths {
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(tableName), quoteStringArray(localPaths))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			return query.Result{}, fmt.Errorf("create view for table %q: %w", tableName, err)
		}
	}

	limit := request.RowLimit
	if limit > 0 {
		// One extra row tells us whether the result was cut off.
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, limit+1)
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	databaseTypes := query.DatabaseTypes(rows)
	result := query.Result{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if limit > 0 && len(result.Rows) >= limit {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		result.Rows = append(result.Rows, query.NormalizeRow(databaseTypes, values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
