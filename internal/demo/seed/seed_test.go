package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tigel-agm/NL-SQL/internal/target"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(nil))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"NLSQL_DEMO_URL":       "duckdb:///demo.duckdb",
		"NLSQL_DEMO_CUSTOMERS": "5",
		"NLSQL_DEMO_PRODUCTS":  "3",
		"NLSQL_DEMO_ORDERS":    "0",
		"NLSQL_DEMO_SEED":      "7",
		"NLSQL_DEMO_RESET":     "false",
	}))
	require.NoError(t, err)
	require.Equal(t, Config{TargetURL: "duckdb:///demo.duckdb", Customers: 5, Products: 3, Orders: 0, Seed: 7, Reset: false}, cfg)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	for _, values := range []map[string]string{
		{"NLSQL_DEMO_URL": "postgresql://db/sales"},
		{"NLSQL_DEMO_URL": ""},
		{"NLSQL_DEMO_CUSTOMERS": "0"},
		{"NLSQL_DEMO_PRODUCTS": "x"},
		{"NLSQL_DEMO_ORDERS": "-1"},
		{"NLSQL_DEMO_RESET": "maybe"},
	} {
		_, err := LoadConfigFromEnv(mapLookup(values))
		require.Error(t, err, "values %v", values)
	}
	_, err := LoadConfigFromEnv(nil)
	require.Error(t, err)
}

func TestGeneratorDeterministicForSeed(t *testing.T) {
	a := NewGenerator(42).Generate(10, 5, 50)
	b := NewGenerator(42).Generate(10, 5, 50)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("datasets differ for the same seed")
	}
	c := NewGenerator(43).Generate(10, 5, 50)
	require.NotEqual(t, a.Orders, c.Orders)
}

func TestGeneratorReferentialIntegrity(t *testing.T) {
	data := NewGenerator(1).Generate(8, 4, 100)
	require.Len(t, data.Customers, 8)
	require.Len(t, data.Products, 4)
	require.Len(t, data.Orders, 100)

	customers := map[int64]Customer{}
	for _, c := range data.Customers {
		customers[c.ID] = c
	}
	prices := map[int64]float64{}
	for _, p := range data.Products {
		require.Greater(t, p.Price, 0.0)
		prices[p.ID] = p.Price
	}
	for _, o := range data.Orders {
		customer, ok := customers[o.CustomerID]
		require.True(t, ok, "order %d references unknown customer %d", o.ID, o.CustomerID)
		price, ok := prices[o.ProductID]
		require.True(t, ok, "order %d references unknown product %d", o.ID, o.ProductID)
		require.GreaterOrEqual(t, o.Quantity, 1)
		require.LessOrEqual(t, o.Quantity, 5)
		require.InDelta(t, price*float64(o.Quantity), o.Amount, 0.01)
		require.False(t, o.OrderedAt.Before(customer.CreatedAt))
	}
}

func TestGeneratorWithoutOrders(t *testing.T) {
	data := NewGenerator(1).Generate(0, 2, 10)
	require.Empty(t, data.Customers)
	require.Empty(t, data.Orders)
	require.Len(t, data.Products, 2)
}

func openMemorySQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, parsed, err := Open(context.Background(), "sqlite://")
	require.NoError(t, err)
	require.Equal(t, target.DialectSQLite, parsed.Dialect)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSeederLoadsSQLite(t *testing.T) {
	db := openMemorySQLite(t)
	seeder, err := NewSeeder(db, target.DialectSQLite, nil)
	require.NoError(t, err)

	data := NewGenerator(42).Generate(6, 3, 20)
	summary, err := seeder.Load(context.Background(), data, true)
	require.NoError(t, err)
	require.Equal(t, Summary{Customers: 6, Products: 3, Orders: 20}, summary)

	var orders int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&orders))
	require.Equal(t, 20, orders)

	var orphans int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		WHERE c.id IS NULL`).Scan(&orphans))
	require.Zero(t, orphans)

	// Loading again without reset replaces rows by id.
	_, err = seeder.Load(context.Background(), data, false)
	require.NoError(t, err)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&orders))
	require.Equal(t, 20, orders)

	// A reset with a smaller dataset leaves only the new rows.
	_, err = seeder.Load(context.Background(), NewGenerator(42).Generate(2, 1, 3), true)
	require.NoError(t, err)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&orders))
	require.Equal(t, 3, orders)
}

func TestSeederLoadsAndReloadsDuckDB(t *testing.T) {
	ctx := context.Background()
	url := "duckdb:///" + filepath.Join(t.TempDir(), "demo.duckdb")

	db, parsed, err := Open(ctx, url)
	require.NoError(t, err)
	require.Equal(t, target.DialectDuckDB, parsed.Dialect)
	seeder, err := NewSeeder(db, parsed.Dialect, nil)
	require.NoError(t, err)

	summary, err := seeder.Load(ctx, NewGenerator(7).Generate(5, 3, 12), false)
	require.NoError(t, err)
	require.Equal(t, Summary{Customers: 5, Products: 3, Orders: 12}, summary)
	require.NoError(t, db.Close())

	// Reopening sees the committed rows; a reset reload swaps them for the new dataset.
	db, _, err = Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.Equal(t, 12, countRows(t, db, "orders"))

	seeder, err = NewSeeder(db, target.DialectDuckDB, nil)
	require.NoError(t, err)
	_, err = seeder.Load(ctx, NewGenerator(7).Generate(5, 3, 12), false)
	require.NoError(t, err)
	require.Equal(t, 5, countRows(t, db, "customers"))
	require.Equal(t, 12, countRows(t, db, "orders"))
	_, err = seeder.Load(ctx, NewGenerator(8).Generate(2, 2, 4), true)
	require.NoError(t, err)
	require.Equal(t, 2, countRows(t, db, "customers"))
	require.Equal(t, 2, countRows(t, db, "products"))
	require.Equal(t, 4, countRows(t, db, "orders"))

	var amountType string
	require.NoError(t, db.QueryRow(`SELECT data_type FROM information_schema.columns
		WHERE table_name = 'orders' AND column_name = 'amount'`).Scan(&amountType))
	require.Equal(t, "DOUBLE", amountType)
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestOpenRejectsServerTargets(t *testing.T) {
	_, _, err := Open(context.Background(), "postgresql://u:p@localhost/db")
	require.Error(t, err)

	_, err = NewSeeder(nil, target.DialectSQLite, nil)
	require.Error(t, err)
}
