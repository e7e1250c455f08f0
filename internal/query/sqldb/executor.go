package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigel-agm/NL-SQL/internal/observability"
	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

type Options struct {
	MaxRows            int
	Timeout            time.Duration
	ProfileParallelism int
}

// Executor runs statements against SQL targets. Each call opens its own handle to the
// target and closes it before returning.
type Executor struct {
	opts Options
	open func(driver, dsn string) (*sql.DB, error)
}

func New(opts Options) *Executor {
	if opts.ProfileParallelism <= 0 {
		opts.ProfileParallelism = 4
	}
	return &Executor{opts: opts, open: sql.Open}
}

// Execute runs one statement inside a transaction. Statements without a result set
// (DDL, DML) return no columns and no rows.
func (e *Executor) Execute(ctx context.Context, t target.Target, sqlText string) (query.Result, error) {
	if strings.TrimSpace(sqlText) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	start := time.Now()
	var result query.Result
	err := e.withDB(ctx, t, func(ctx context.Context, db *sql.DB) error {
		var err error
		result, err = e.runInTx(ctx, db, sqlText, true)
		return err
	})
	observability.ObserveQueryExecution(string(t.Dialect), time.Since(start), err)
	if err != nil {
		return query.Result{}, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Executor) runInTx(ctx context.Context, db *sql.DB, sqlText string, commit bool) (query.Result, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return query.Result{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, err
	}
	result, err := collectRows(rows, e.opts.MaxRows)
	if closeErr := rows.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return query.Result{}, err
	}
	if commit {
		if err := tx.Commit(); err != nil {
			return query.Result{}, fmt.Errorf("commit transaction: %w", err)
		}
	}
	return result, nil
}

func (e *Executor) query(ctx context.Context, db *sql.DB, sqlText string) (query.Result, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = rows.Close() }()
	return collectRows(rows, e.opts.MaxRows)
}

func (e *Executor) withDB(ctx context.Context, t target.Target, fn func(context.Context, *sql.DB) error) error {
	if t.IsMongo() || t.Driver == "" {
		return fmt.Errorf("%s is not a sql target", t.Dialect)
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	db, err := e.open(t.Driver, t.DSN)
	if err != nil {
		return fmt.Errorf("open %s database: %w", t.Dialect, err)
	}
	defer func() { _ = db.Close() }()
	if t.Dialect == target.DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	return fn(ctx, db)
}

func collectRows(rows *sql.Rows, maxRows int) (query.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}
	result := query.Result{Columns: columns, Rows: make([][]any, 0)}
	if result.Columns == nil {
		result.Columns = []string{}
	}
	databaseTypes := query.DatabaseTypes(rows)

	// Drivers such as sqlite only step a statement on Next, so statements without a
	// result set are still iterated.
	for rows.Next() {
		if len(columns) == 0 {
			continue
		}
		if maxRows > 0 && len(result.Rows) >= maxRows {
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
	return result, nil
}

// ListTablesSQL is the catalog query used for "list tables" questions. It returns ""
// for dialects without one.
func ListTablesSQL(dialect target.Dialect) string {
	switch dialect {
	case target.DialectPostgres:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema='public';"
	case target.DialectMySQL:
		return "SHOW TABLES;"
	case target.DialectSQLite:
		return "SELECT name FROM sqlite_master WHERE type='table';"
	case target.DialectDuckDB:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema='main';"
	default:
		return ""
	}
}

func listDatabasesSQL(dialect target.Dialect) string {
	switch dialect {
	case target.DialectPostgres:
		return "SELECT datname FROM pg_database WHERE datistemplate = false;"
	case target.DialectMySQL:
		return "SHOW DATABASES;"
	case target.DialectSQLite:
		return "PRAGMA database_list;"
	case target.DialectDuckDB:
		return "SELECT database_name FROM duckdb_databases();"
	default:
		return ""
	}
}

func (e *Executor) ListTables(ctx context.Context, t target.Target) (query.Result, error) {
	sqlText := ListTablesSQL(t.Dialect)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("listing tables is not supported for %s", t.Dialect)
	}
	return e.Execute(ctx, t, sqlText)
}

func (e *Executor) ListDatabases(ctx context.Context, t target.Target) (query.Result, error) {
	sqlText := listDatabasesSQL(t.Dialect)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("listing databases is not supported for %s", t.Dialect)
	}
	var result query.Result
	err := e.withDB(ctx, t, func(ctx context.Context, db *sql.DB) error {
		var err error
		result, err = e.query(ctx, db, sqlText)
		return err
	})
	return result, err
}

// Explain returns the plan for a statement. ANALYZE is honoured only on postgres; the
// statement runs in a transaction that is always rolled back.
func (e *Executor) Explain(ctx context.Context, t target.Target, sqlText string, analyze bool) (query.Result, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	prefix := "EXPLAIN"
	switch t.Dialect {
	case target.DialectSQLite:
		prefix = "EXPLAIN QUERY PLAN"
	case target.DialectPostgres:
		if analyze {
			prefix = "EXPLAIN ANALYZE"
		}
	}

	var result query.Result
	err := e.withDB(ctx, t, func(ctx context.Context, db *sql.DB) error {
		var err error
		result, err = e.runInTx(ctx, db, prefix+" "+sqlText, false)
		return err
	})
	return result, err
}

func quoteIdent(dialect target.Dialect, name string) string {
	if dialect == target.DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
