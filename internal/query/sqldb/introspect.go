package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

const (
	postgresColumnsSQL = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = 'public'
ORDER BY table_name, ordinal_position`
	postgresForeignKeysSQL = `
SELECT tc.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'
ORDER BY tc.table_name, kcu.column_name`
	mysqlColumnsSQL = `
SELECT table_name, column_name, column_type, is_nullable
FROM information_schema.columns
WHERE table_schema = DATABASE()
ORDER BY table_name, ordinal_position`
	mysqlForeignKeysSQL = `
SELECT table_name, column_name, referenced_table_name, referenced_column_name
FROM information_schema.key_column_usage
WHERE table_schema = DATABASE() AND referenced_table_name IS NOT NULL
ORDER BY table_name, column_name`
	duckdbColumnsSQL = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = 'main'
ORDER BY table_name, ordinal_position`
	sqliteTablesSQL = `
SELECT name
FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`
)

// Inspect reflects the tables of the target with their columns and foreign keys.
// Foreign keys are not reported for duckdb.
func (e *Executor) Inspect(ctx context.Context, t target.Target) ([]query.Table, error) {
	var tables []query.Table
	err := e.withDB(ctx, t, func(ctx context.Context, db *sql.DB) error {
		var err error
		tables, err = inspect(ctx, db, t.Dialect)
		return err
	})
	return tables, err
}

func inspect(ctx context.Context, db *sql.DB, dialect target.Dialect) ([]query.Table, error) {
	switch dialect {
	case target.DialectSQLite:
		return inspectSQLite(ctx, db)
	case target.DialectPostgres:
		return inspectInformationSchema(ctx, db, postgresColumnsSQL, postgresForeignKeysSQL)
	case target.DialectMySQL:
		return inspectInformationSchema(ctx, db, mysqlColumnsSQL, mysqlForeignKeysSQL)
	case target.DialectDuckDB:
		return inspectInformationSchema(ctx, db, duckdbColumnsSQL, "")
	default:
		return nil, fmt.Errorf("schema inspection is not supported for %s", dialect)
	}
}

func inspectInformationSchema(ctx context.Context, db *sql.DB, columnsSQL, foreignKeysSQL string) ([]query.Table, error) {
	rows, err := db.QueryContext(ctx, columnsSQL)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]query.Table, 0)
	index := map[string]int{}
	for rows.Next() {
		var (
			tableName  string
			columnName string
			dataType   sql.NullString
			isNullable sql.NullString
		)
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		pos, ok := index[tableName]
		if !ok {
			pos = len(tables)
			index[tableName] = pos
			tables = append(tables, query.Table{Name: tableName, Columns: []query.Column{}, ForeignKeys: []query.ForeignKey{}})
		}
		tables[pos].Columns = append(tables[pos].Columns, query.Column{
			Name:     columnName,
			Type:     dataType.String,
			Nullable: strings.EqualFold(isNullable.String, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if foreignKeysSQL == "" {
		return tables, nil
	}

	fkRows, err := db.QueryContext(ctx, foreignKeysSQL)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer func() { _ = fkRows.Close() }()
	for fkRows.Next() {
		var tableName, column, refTable, refColumn string
		if err := fkRows.Scan(&tableName, &column, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		if pos, ok := index[tableName]; ok {
			tables[pos].ForeignKeys = append(tables[pos].ForeignKeys, query.ForeignKey{
				Column:    column,
				RefTable:  refTable,
				RefColumn: refColumn,
			})
		}
	}
	if err := fkRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return tables, nil
}

func inspectSQLite(ctx context.Context, db *sql.DB) ([]query.Table, error) {
	names, err := sqliteTableNames(ctx, db)
	if err != nil {
		return nil, err
	}

	tables := make([]query.Table, 0, len(names))
	for _, name := range names {
		table := query.Table{Name: name, Columns: []query.Column{}, ForeignKeys: []query.ForeignKey{}}

		columns, err := sqliteColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		table.Columns = columns

		foreignKeys, err := sqliteForeignKeys(ctx, db, name)
		if err != nil {
			return nil, err
		}
		table.ForeignKeys = foreignKeys
		tables = append(tables, table)
	}
	return tables, nil
}

func sqliteTableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, sqliteTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return names, nil
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]query.Column, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(target.DialectSQLite, table)+")")
	if err != nil {
		return nil, fmt.Errorf("query columns for %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]query.Column, 0)
	for rows.Next() {
		var (
			cid       int
			name      string
			dataType  string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan column for %q: %w", table, err)
		}
		columns = append(columns, query.Column{Name: name, Type: dataType, Nullable: notNull == 0 && pk == 0})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns for %q: %w", table, err)
	}
	return columns, nil
}

func sqliteForeignKeys(ctx context.Context, db *sql.DB, table string) ([]query.ForeignKey, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA foreign_key_list("+quoteIdent(target.DialectSQLite, table)+")")
	if err != nil {
		return nil, fmt.Errorf("query foreign keys for %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	foreignKeys := make([]query.ForeignKey, 0)
	for rows.Next() {
		var (
			id, seq            int
			refTable, from     string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scan foreign key for %q: %w", table, err)
		}
		foreignKeys = append(foreignKeys, query.ForeignKey{Column: from, RefTable: refTable, RefColumn: to.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys for %q: %w", table, err)
	}
	return foreignKeys, nil
}

// Preview returns the first n rows of a table that exists in the target.
func (e *Executor) Preview(ctx context.Context, t target.Target, table string, n int) (query.Result, error) {
	if n <= 0 {
		n = 5
	}
	var result query.Result
	err := e.withDB(ctx, t, func(ctx context.Context, db *sql.DB) error {
		if _, err := lookupTable(ctx, db, t.Dialect, table); err != nil {
			return err
		}
		var err error
		result, err = e.query(ctx, db, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(t.Dialect, table), n))
		return err
	})
	return result, err
}

func lookupTable(ctx context.Context, db *sql.DB, dialect target.Dialect, name string) (query.Table, error) {
	tables, err := inspect(ctx, db, dialect)
	if err != nil {
		return query.Table{}, err
	}
	for _, table := range tables {
		if table.Name == name {
			return table, nil
		}
	}
	return query.Table{}, &UnknownTableError{Table: name, Available: query.TableNames(tables)}
}

type UnknownTableError struct {
	Table     string
	Available []string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("table %q does not exist. Available tables: %s", e.Table, strings.Join(e.Available, ", "))
}
