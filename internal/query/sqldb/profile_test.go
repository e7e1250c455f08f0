package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

func TestIsNumericTypeMatchesWholeTypeFamilies(t *testing.T) {
	cases := map[string]bool{
		"INTEGER":             true,
		"bigint":              true,
		"int unsigned":        true,
		"bigint(20) unsigned": true,
		"DECIMAL(10,2)":       true,
		"double precision":    true,
		"REAL":                true,
		"HUGEINT":             true,
		"numeric":             true,
		"INTEGER[]":           false,
		"_int4":               false,
		"ARRAY":               false,
		"interval":            false,
		"INTERVAL":            false,
		"point":               false,
		"money":               false,
		"international":       false,
		"TEXT":                false,
		"":                    false,
	}
	for dataType, want := range cases {
		require.Equal(t, want, isNumericType(dataType), "isNumericType(%q)", dataType)
	}
}

func TestProfileSkipsAggregatesForListAndIntervalColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.duckdb")
	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	_, err = db.Exec(`
CREATE TABLE events (id INTEGER, tags INTEGER[], span INTERVAL);
INSERT INTO events VALUES (1, [1, 2], INTERVAL 1 HOUR), (2, [3], INTERVAL 2 HOUR), (3, NULL, NULL);
`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	tgt, err := target.Parse("duckdb:///" + path)
	require.NoError(t, err)

	profiles, err := New(Options{ProfileParallelism: 2}).Profile(context.Background(), tgt, "events")
	require.NoError(t, err)
	require.Len(t, profiles, 3)

	id := profiles[0]
	require.Equal(t, "id", id.Column)
	require.EqualValues(t, 1, id.Min)
	require.EqualValues(t, 3, id.Max)

	tags := profiles[1]
	require.Equal(t, "tags", tags.Column)
	require.Equal(t, int64(1), tags.NullCount)
	require.Equal(t, int64(2), tags.DistinctCount)
	require.Nil(t, tags.Min)
	require.Nil(t, tags.Avg)

	span := profiles[2]
	require.Equal(t, "span", span.Column)
	require.Equal(t, int64(1), span.NullCount)
	require.Nil(t, span.Avg)
}

func TestProfileColumnFallsBackWhenAggregatesFail(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) - COUNT("amount"), COUNT(DISTINCT "amount"), MIN("amount")`)).
		WillReturnError(errors.New("function avg(numeric[]) does not exist"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) - COUNT("amount"), COUNT(DISTINCT "amount") FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"nulls", "distinct"}).AddRow(int64(2), int64(5)))

	profile, err := profileColumn(context.Background(), db, target.DialectPostgres, "orders", query.Column{Name: "amount", Type: "numeric"})
	require.NoError(t, err)
	require.Equal(t, int64(2), profile.NullCount)
	require.Equal(t, int64(5), profile.DistinctCount)
	require.Nil(t, profile.Min)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileColumnCountsNullsWhenDistinctIsUnsupported(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery(regexp.QuoteMeta(`COUNT(DISTINCT "payload")`)).
		WillReturnError(errors.New("could not identify an equality operator for type json"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) - COUNT("payload") FROM "events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"nulls"}).AddRow(int64(4)))

	profile, err := profileColumn(context.Background(), db, target.DialectPostgres, "events", query.Column{Name: "payload", Type: "json"})
	require.NoError(t, err)
	require.Equal(t, int64(4), profile.NullCount)
	require.Zero(t, profile.DistinctCount)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(`COUNT\(DISTINCT`).WillReturnError(errors.New("relation gone"))
	mock.ExpectQuery(`COUNT\(\*\)`).WillReturnError(errors.New("relation gone"))
	_, err = profileColumn(context.Background(), db, target.DialectPostgres, "events", query.Column{Name: "payload", Type: "json"})
	require.ErrorContains(t, err, `profile column "payload"`)
}
