package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

type ColumnProfile struct {
	Column        string `json:"column"`
	Type          string `json:"type"`
	NullCount     int64  `json:"null_count"`
	DistinctCount int64  `json:"distinct_count"`
	Min           any    `json:"min,omitempty"`
	Max           any    `json:"max,omitempty"`
	Avg           any    `json:"avg,omitempty"`
}

// numericTypeFamilies are the base type names, lowercased and without modifiers,
// that MIN, MAX and AVG are computed for.
var numericTypeFamilies = map[string]struct{}{
	"int": {}, "integer": {}, "int2": {}, "int4": {}, "int8": {},
	"tinyint": {}, "smallint": {}, "mediumint": {}, "bigint": {}, "hugeint": {},
	"utinyint": {}, "usmallint": {}, "uinteger": {}, "ubigint": {}, "uhugeint": {},
	"real": {}, "float": {}, "float4": {}, "float8": {}, "double": {}, "double precision": {},
	"numeric": {}, "decimal": {}, "number": {},
	"serial": {}, "smallserial": {}, "bigserial": {},
}

// isNumericType reports whether dataType is a plain numeric scalar. Arrays, intervals,
// geometric types and money do not qualify.
func isNumericType(dataType string) bool {
	lower := strings.ToLower(strings.TrimSpace(dataType))
	if lower == "" || strings.HasPrefix(lower, "_") || strings.HasPrefix(lower, "array") || strings.Contains(lower, "[") {
		return false
	}
	if paren := strings.IndexByte(lower, '('); paren >= 0 {
		rest := ""
		if end := strings.IndexByte(lower[paren:], ')'); end >= 0 {
			rest = lower[paren+end+1:]
		}
		lower = strings.TrimSpace(lower[:paren]) + rest
	}
	for _, modifier := range []string{" unsigned", " signed", " zerofill"} {
		lower = strings.ReplaceAll(lower, modifier, "")
	}
	_, ok := numericTypeFamilies[strings.Join(strings.Fields(lower), " ")]
	return ok
}

// Profile computes per-column statistics for one table. Columns are profiled in
// parallel, bounded by ProfileParallelism.
func (e *Executor) Profile(ctx context.Context, t target.Target, tableName string) ([]ColumnProfile, error) {
	var profiles []ColumnProfile
	err := e.withDB(ctx, t, func(ctx context.Context, db *sql.DB) error {
		table, err := lookupTable(ctx, db, t.Dialect, tableName)
		if err != nil {
			return err
		}

		profiles = make([]ColumnProfile, len(table.Columns))
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(e.opts.ProfileParallelism)
		for i, column := range table.Columns {
			group.Go(func() error {
				profile, err := profileColumn(groupCtx, db, t.Dialect, table.Name, column)
				if err != nil {
					return err
				}
				profiles[i] = profile
				return nil
			})
		}
		return group.Wait()
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// profileColumn computes the statistics of one column. When the aggregates are not
// defined for the column type the query is retried with fewer statistics, leaving the
// rest empty.
func profileColumn(ctx context.Context, db *sql.DB, dialect target.Dialect, table string, column query.Column) (ColumnProfile, error) {
	col := quoteIdent(dialect, column.Name)
	from := quoteIdent(dialect, table)
	profile := ColumnProfile{Column: column.Name, Type: column.Type}

	if isNumericType(column.Type) {
		var minValue, maxValue, avgValue any
		stmt := fmt.Sprintf(
			"SELECT COUNT(*) - COUNT(%s), COUNT(DISTINCT %s), MIN(%s), MAX(%s), AVG(%s) FROM %s",
			col, col, col, col, col, from,
		)
		err := db.QueryRowContext(ctx, stmt).Scan(&profile.NullCount, &profile.DistinctCount, &minValue, &maxValue, &avgValue)
		if err == nil {
			profile.Min = query.NormalizeValue(minValue)
			profile.Max = query.NormalizeValue(maxValue)
			profile.Avg = query.NormalizeValue(avgValue)
			return profile, nil
		}
		if ctx.Err() != nil {
			return ColumnProfile{}, fmt.Errorf("profile column %q: %w", column.Name, err)
		}
	}

	stmt := fmt.Sprintf("SELECT COUNT(*) - COUNT(%s), COUNT(DISTINCT %s) FROM %s", col, col, from)
	err := db.QueryRowContext(ctx, stmt).Scan(&profile.NullCount, &profile.DistinctCount)
	if err == nil {
		return profile, nil
	}
	if ctx.Err() != nil {
		return ColumnProfile{}, fmt.Errorf("profile column %q: %w", column.Name, err)
	}

	// Some types (json on postgres, for one) have no equality operator for DISTINCT.
	profile.DistinctCount = 0
	stmt = fmt.Sprintf("SELECT COUNT(*) - COUNT(%s) FROM %s", col, from)
	if err := db.QueryRowContext(ctx, stmt).Scan(&profile.NullCount); err != nil {
		return ColumnProfile{}, fmt.Errorf("profile column %q: %w", column.Name, err)
	}
	return profile, nil
}
