package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tigel-agm/NL-SQL/internal/observability"
	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

type Options struct {
	MaxRows int
	Timeout time.Duration
}

type FindQuery struct {
	Collection string
	Filter     json.RawMessage
}

// Executor runs find queries against MongoDB targets, one client per call.
type Executor struct {
	opts Options
}

func New(opts Options) *Executor {
	return &Executor{opts: opts}
}

func (e *Executor) Find(ctx context.Context, t target.Target, q FindQuery) (query.Result, error) {
	start := time.Now()
	result, err := e.find(ctx, t, q, e.opts.MaxRows)
	observability.ObserveQueryExecution(string(target.DialectMongo), time.Since(start), err)
	if err != nil {
		return query.Result{}, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Sample returns up to n documents of a collection, unfiltered.
func (e *Executor) Sample(ctx context.Context, t target.Target, collection string, n int) (query.Result, error) {
	if n <= 0 {
		n = 5
	}
	return e.find(ctx, t, FindQuery{Collection: collection}, n)
}

func (e *Executor) find(ctx context.Context, t target.Target, q FindQuery, maxRows int) (query.Result, error) {
	if t.Database == "" {
		return query.Result{}, fmt.Errorf("connection url must name a database")
	}
	if strings.TrimSpace(q.Collection) == "" {
		return query.Result{}, fmt.Errorf("collection is required")
	}
	filter, err := decodeFilter(q.Filter)
	if err != nil {
		return query.Result{}, err
	}

	var result query.Result
	err = e.withClient(ctx, t, func(ctx context.Context, client *driver.Client) error {
		findOpts := options.Find()
		if maxRows > 0 {
			findOpts.SetLimit(int64(maxRows) + 1)
		}
		cursor, err := client.Database(t.Database).Collection(q.Collection).Find(ctx, filter, findOpts)
		if err != nil {
			return err
		}
		var docs []bson.M
		if err := cursor.All(ctx, &docs); err != nil {
			return fmt.Errorf("read cursor: %w", err)
		}
		result = documentsToResult(docs, maxRows)
		return nil
	})
	return result, err
}

func (e *Executor) ListDatabases(ctx context.Context, t target.Target) (query.Result, error) {
	var names []string
	err := e.withClient(ctx, t, func(ctx context.Context, client *driver.Client) error {
		var err error
		names, err = client.ListDatabaseNames(ctx, bson.D{})
		return err
	})
	if err != nil {
		return query.Result{}, err
	}
	return namesResult(names), nil
}

// ListCollections lists collections of database, or of the database in the URL when empty.
func (e *Executor) ListCollections(ctx context.Context, t target.Target, database string) (query.Result, error) {
	if database == "" {
		database = t.Database
	}
	if database == "" {
		return query.Result{}, fmt.Errorf("database is required")
	}
	var names []string
	err := e.withClient(ctx, t, func(ctx context.Context, client *driver.Client) error {
		var err error
		names, err = client.Database(database).ListCollectionNames(ctx, bson.D{})
		return err
	})
	if err != nil {
		return query.Result{}, err
	}
	return namesResult(names), nil
}

func (e *Executor) withClient(ctx context.Context, t target.Target, fn func(context.Context, *driver.Client) error) error {
	if !t.IsMongo() {
		return fmt.Errorf("%s is not a mongodb target", t.Dialect)
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	clientOpts := options.Client().ApplyURI(t.DSN)
	if e.opts.Timeout > 0 {
		clientOpts.SetServerSelectionTimeout(e.opts.Timeout)
	}
	client, err := driver.Connect(ctx, clientOpts)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	return fn(ctx, client)
}

func decodeFilter(raw json.RawMessage) (bson.D, error) {
	filter := bson.D{}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return filter, nil
	}
	if err := bson.UnmarshalExtJSON([]byte(trimmed), false, &filter); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	return filter, nil
}

func namesResult(names []string) query.Result {
	sort.Strings(names)
	rows := make([][]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, []any{name})
	}
	return query.Result{Columns: []string{"name"}, Rows: rows}
}

// documentsToResult flattens documents into a table whose columns are the union of
// top-level keys, with _id first and the rest sorted.
func documentsToResult(docs []bson.M, maxRows int) query.Result {
	result := query.Result{Columns: []string{}, Rows: make([][]any, 0, len(docs))}
	if maxRows > 0 && len(docs) > maxRows {
		docs = docs[:maxRows]
		result.Truncated = true
	}

	seen := map[string]struct{}{}
	for _, doc := range docs {
		for key := range doc {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				result.Columns = append(result.Columns, key)
			}
		}
	}
	sort.Slice(result.Columns, func(i, j int) bool {
		a, b := result.Columns[i], result.Columns[j]
		if a == "_id" || b == "_id" {
			return a == "_id" && b != "_id"
		}
		return a < b
	})

	for _, doc := range docs {
		row := make([]any, len(result.Columns))
		for i, column := range result.Columns {
			if value, ok := doc[column]; ok {
				row[i] = normalize(value)
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result
}

func normalize(value any) any {
	switch typed := value.(type) {
	case primitive.ObjectID:
		return typed.Hex()
	case primitive.DateTime:
		return typed.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(typed.T), 0).UTC()
	case primitive.Decimal128:
		return typed.String()
	case primitive.Binary:
		return typed.Data
	case primitive.Regex:
		return typed.String()
	case primitive.Null, primitive.Undefined:
		return nil
	case bson.M:
		out := make(map[string]any, len(typed))
		for key, nested := range typed {
			out[key] = normalize(nested)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(typed))
		for _, elem := range typed {
			out[elem.Key] = normalize(elem.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(typed))
		for i, nested := range typed {
			out[i] = normalize(nested)
		}
		return out
	default:
		return query.NormalizeValue(typed)
	}
}
