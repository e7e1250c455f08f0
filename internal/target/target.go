package target

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var ErrUnsupportedScheme = errors.New("unsupported database scheme")

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectDuckDB   Dialect = "duckdb"
	DialectMongo    Dialect = "mongodb"
)

// Target is a parsed connection URL. Driver and DSN are ready for sql.Open, except for
// MongoDB where DSN is the unmodified URI handed to the mongo client.
type Target struct {
	Raw      string
	Scheme   string
	Dialect  Dialect
	Driver   string
	DSN      string
	Database string
}

func (t Target) IsMongo() bool {
	return t.Dialect == DialectMongo
}

func (t Target) String() string {
	return Redact(t.Raw)
}

// Parse accepts SQLAlchemy-style URLs such as postgresql+psycopg2://, mysql+pymysql://,
// sqlite:///relative.db, sqlite:////abs.db, duckdb:///file.duckdb and mongodb+srv://.
func Parse(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("connection url is required")
	}
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return Target{}, fmt.Errorf("invalid connection url: missing scheme")
	}
	scheme = strings.ToLower(scheme)
	base, _, _ := strings.Cut(scheme, "+")

	switch base {
	case "postgresql", "postgres":
		u, err := url.Parse("postgres://" + rest)
		if err != nil {
			return Target{}, fmt.Errorf("parse postgres url: %w", err)
		}
		return Target{
			Raw:      raw,
			Scheme:   scheme,
			Dialect:  DialectPostgres,
			Driver:   "pgx",
			DSN:      u.String(),
			Database: strings.TrimPrefix(u.Path, "/"),
		}, nil
	case "mysql", "mariadb":
		return parseMySQL(raw, scheme, rest)
	case "sqlite":
		path, query := filePath(rest)
		dsn := path
		if path == "" {
			path = ":memory:"
			dsn = ":memory:"
		}
		if query != "" {
			dsn = "file:" + path + "?" + query
		}
		return Target{Raw: raw, Scheme: scheme, Dialect: DialectSQLite, Driver: "sqlite3", DSN: dsn, Database: path}, nil
	case "duckdb":
		path, _ := filePath(rest)
		if path == ":memory:" {
			path = ""
		}
		return Target{Raw: raw, Scheme: scheme, Dialect: DialectDuckDB, Driver: "duckdb", DSN: path, Database: path}, nil
	case "mongodb":
		u, err := url.Parse(raw)
		if err != nil {
			return Target{}, fmt.Errorf("parse mongodb url: %w", err)
		}
		return Target{
			Raw:      raw,
			Scheme:   scheme,
			Dialect:  DialectMongo,
			Driver:   "mongo",
			DSN:      raw,
			Database: strings.TrimPrefix(u.Path, "/"),
		}, nil
	default:
		return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

func parseMySQL(raw, scheme, rest string) (Target, error) {
	u, err := url.Parse("mysql://" + rest)
	if err != nil {
		return Target{}, fmt.Errorf("parse mysql url: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = hostPort(u.Hostname(), u.Port(), "127.0.0.1", "3306")
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		cfg.Params[key] = values[len(values)-1]
	}
	return Target{
		Raw:      raw,
		Scheme:   scheme,
		Dialect:  DialectMySQL,
		Driver:   "mysql",
		DSN:      cfg.FormatDSN(),
		Database: cfg.DBName,
	}, nil
}

// filePath follows SQLAlchemy: three slashes is a relative path, four is absolute,
// and an empty path is an in-memory database.
func filePath(rest string) (string, string) {
	path, query, _ := strings.Cut(rest, "?")
	path = strings.TrimPrefix(path, "/")
	return path, query
}

func hostPort(host, port, defaultHost, defaultPort string) string {
	if host == "" {
		host = defaultHost
	}
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(host, port)
}

// Redact masks the password of a connection URL for logs and error messages.
func Redact(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "<unparseable url>"
	}
	return u.Redacted()
}

type ConnectionParams struct {
	Dialect  Dialect `json:"dialect"`
	Host     string  `json:"host"`
	Port     string  `json:"port"`
	User     string  `json:"user"`
	Password string  `json:"password"`
	Database string  `json:"database"`
	Path     string  `json:"path"`
}

// Build assembles a connection URL from discrete fields.
func Build(params ConnectionParams) (string, error) {
	switch params.Dialect {
	case DialectPostgres:
		return buildNetworkURL("postgresql", params, "5432"), nil
	case DialectMySQL:
		return buildNetworkURL("mysql", params, "3306"), nil
	case DialectMongo:
		return buildNetworkURL("mongodb", params, "27017"), nil
	case DialectSQLite, DialectDuckDB:
		path := strings.TrimSpace(params.Path)
		if path == "" {
			return "", fmt.Errorf("path is required for %s", params.Dialect)
		}
		return string(params.Dialect) + ":///" + path, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, params.Dialect)
	}
}

func buildNetworkURL(scheme string, params ConnectionParams, defaultPort string) string {
	u := url.URL{
		Scheme: scheme,
		Host:   hostPort(strings.TrimSpace(params.Host), strings.TrimSpace(params.Port), "localhost", defaultPort),
	}
	user := strings.TrimSpace(params.User)
	switch {
	case user != "" && params.Password != "":
		u.User = url.UserPassword(user, params.Password)
	case user != "":
		u.User = url.User(user)
	}
	if db := strings.TrimSpace(params.Database); db != "" {
		u.Path = "/" + db
	}
	return u.String()
}
