package query

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Result is a tabular query result. Rows hold JSON-friendly values in column order.
type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

// Records converts rows into column-keyed objects, the shape returned to clients.
func (r Result) Records() []map[string]any {
	records := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		record := make(map[string]any, len(r.Columns))
		for i, column := range r.Columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		records = append(records, record)
	}
	return records
}

// TableFile is an archived parquet object exposed to the replay engine as a view.
type TableFile struct {
	TableName     string
	ObjectPath    string
	FileSizeBytes int64
}

type Request struct {
	SQL      string
	RowLimit int
	Files    []TableFile
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// SummarizeSchema renders tables as "orders(id, amount); customers(id, name)" for prompts.
func SummarizeSchema(tables []Table) string {
	parts := make([]string, 0, len(tables))
	for _, table := range tables {
		names := make([]string, 0, len(table.Columns))
		for _, column := range table.Columns {
			names = append(names, column.Name)
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", table.Name, strings.Join(names, ", ")))
	}
	return strings.Join(parts, "; ")
}

func TableNames(tables []Table) []string {
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.Name)
	}
	return names
}

// NormalizeValue maps driver values onto types encoding/json can always marshal.
// Binary values that are not valid UTF-8 come back base64 encoded.
func NormalizeValue(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case []byte:
		if utf8.Valid(typed) {
			return string(typed)
		}
		return base64.StdEncoding.EncodeToString(typed)
	case float64:
		return normalizeFloat(typed)
	case float32:
		return normalizeFloat(float64(typed))
	case time.Time, string, bool, int64, int32, int, json.Marshaler:
		return typed
	case fmt.Stringer:
		return typed.String()
	default:
		return typed
	}
}

func NormalizeValues(values []any) []any {
	return NormalizeRow(nil, values)
}

// NormalizeTypedValue is NormalizeValue with the column's database type name at hand,
// so that UUID columns delivered as raw bytes render in their canonical form.
func NormalizeTypedValue(databaseType string, value any) any {
	if strings.EqualFold(databaseType, "UUID") {
		if id, ok := uuidValue(value); ok {
			return id.String()
		}
	}
	return NormalizeValue(value)
}

// NormalizeRow normalizes one scanned row. databaseTypes may be shorter than values
// or nil.
func NormalizeRow(databaseTypes []string, values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		var databaseType string
		if i < len(databaseTypes) {
			databaseType = databaseTypes[i]
		}
		normalized[i] = NormalizeTypedValue(databaseType, value)
	}
	return normalized
}

// DatabaseTypes returns the driver's type name for each result column. A driver that
// cannot report them yields nil.
func DatabaseTypes(rows *sql.Rows) []string {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil
	}
	names := make([]string, len(columnTypes))
	for i, columnType := range columnTypes {
		names[i] = columnType.DatabaseTypeName()
	}
	return names
}

func uuidValue(value any) (uuid.UUID, bool) {
	switch typed := value.(type) {
	case uuid.UUID:
		return typed, true
	case []byte:
		if len(typed) == 16 {
			id, err := uuid.FromBytes(typed)
			return id, err == nil
		}
		id, err := uuid.ParseBytes(typed)
		return id, err == nil
	case string:
		id, err := uuid.Parse(typed)
		return id, err == nil
	}
	// Drivers ship their own [16]byte UUID types.
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Array || rv.Len() != 16 || rv.Type().Elem().Kind() != reflect.Uint8 {
		return uuid.Nil, false
	}
	var id uuid.UUID
	for i := range id {
		id[i] = byte(rv.Index(i).Uint())
	}
	return id, true
}

func normalizeFloat(value float64) any {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'g', -1, 64)
	}
	return value
}
