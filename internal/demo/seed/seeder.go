package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigel-agm/NL-SQL/internal/target"
)

type Summary struct {
	Customers int
	Products  int
	Orders    int
}

// Seeder loads a Dataset into a sqlite or duckdb database.
type Seeder struct {
	db      *sql.DB
	dialect target.Dialect
	log     *slog.Logger
}

// Open connects to the demo target named by a connection URL.
func Open(ctx context.Context, rawURL string) (*sql.DB, target.Target, error) {
	t, err := target.Parse(rawURL)
	if err != nil {
		return nil, target.Target{}, err
	}
	if t.Dialect != target.DialectSQLite && t.Dialect != target.DialectDuckDB {
		return nil, target.Target{}, fmt.Errorf("demo seed supports sqlite and duckdb targets, got %s", t.Dialect)
	}
	db, err := sql.Open(t.Driver, t.DSN)
	if err != nil {
		return nil, target.Target{}, fmt.Errorf("open demo db: %w", err)
	}
	if t.Dialect == target.DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, target.Target{}, fmt.Errorf("ping demo db: %w", err)
	}
	return db, t, nil
}

func NewSeeder(db *sql.DB, dialect target.Dialect, logger *slog.Logger) (*Seeder, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dialect != target.DialectSQLite && dialect != target.DialectDuckDB {
		return nil, fmt.Errorf("unsupported demo dialect %q", dialect)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Seeder{db: db, dialect: dialect, log: logger}, nil
}

func (s *Seeder) schema() []string {
	integer, text, decimal := "INTEGER", "TEXT", "REAL"
	customerRef, productRef := " REFERENCES customers(id)", " REFERENCES products(id)"
	if s.dialect == target.DialectDuckDB {
		integer, text, decimal = "BIGINT", "VARCHAR", "DOUBLE"
		// duckdb rejects INSERT OR REPLACE on rows that a foreign key points at.
		customerRef, productRef = "", ""
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS customers (
	id %[1]s PRIMARY KEY,
	name %[2]s NOT NULL,
	country %[2]s NOT NULL,
	created_at TIMESTAMP NOT NULL
)`, integer, text),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
	id %[1]s PRIMARY KEY,
	name %[2]s NOT NULL,
	category %[2]s NOT NULL,
	price %[3]s NOT NULL
)`, integer, text, decimal),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS orders (
	id %[1]s PRIMARY KEY,
	customer_id %[1]s NOT NULL%[3]s,
	product_id %[1]s NOT NULL%[4]s,
	quantity INTEGER NOT NULL,
	amount %[2]s NOT NULL,
	ordered_at TIMESTAMP NOT NULL
)`, integer, decimal, customerRef, productRef),
	}
}

// Load creates the demo tables and inserts data in one transaction. With reset the
// tables are dropped first; otherwise rows with existing ids are replaced.
func (s *Seeder) Load(ctx context.Context, data Dataset, reset bool) (Summary, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if reset {
		for _, table := range []string{"orders", "products", "customers"} {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return Summary{}, fmt.Errorf("drop %s: %w", table, err)
			}
		}
	}
	for _, statement := range s.schema() {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return Summary{}, fmt.Errorf("create demo schema: %w", err)
		}
	}

	err = insertAll(ctx, tx,
		"INSERT OR REPLACE INTO customers (id, name, country, created_at) VALUES (?, ?, ?, ?)",
		len(data.Customers), func(i int) []any {
			c := data.Customers[i]
			return []any{c.ID, c.Name, c.Country, c.CreatedAt}
		})
	if err != nil {
		return Summary{}, fmt.Errorf("insert customers: %w", err)
	}
	err = insertAll(ctx, tx,
		"INSERT OR REPLACE INTO products (id, name, category, price) VALUES (?, ?, ?, ?)",
		len(data.Products), func(i int) []any {
			p := data.Products[i]
			return []any{p.ID, p.Name, p.Category, p.Price}
		})
	if err != nil {
		return Summary{}, fmt.Errorf("insert products: %w", err)
	}
	err = insertAll(ctx, tx,
		"INSERT OR REPLACE INTO orders (id, customer_id, product_id, quantity, amount, ordered_at) VALUES (?, ?, ?, ?, ?, ?)",
		len(data.Orders), func(i int) []any {
			o := data.Orders[i]
			return []any{o.ID, o.CustomerID, o.ProductID, o.Quantity, o.Amount, o.OrderedAt}
		})
	if err != nil {
		return Summary{}, fmt.Errorf("insert orders: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("commit seed transaction: %w", err)
	}
	summary := Summary{Customers: len(data.Customers), Products: len(data.Products), Orders: len(data.Orders)}
	s.log.InfoContext(ctx, "demo data loaded",
		slog.String("dialect", string(s.dialect)),
		slog.Int("customers", summary.Customers),
		slog.Int("products", summary.Products),
		slog.Int("orders", summary.Orders),
	)
	return summary, nil
}

func insertAll(ctx context.Context, tx *sql.Tx, statement string, n int, args func(int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, statement)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}
