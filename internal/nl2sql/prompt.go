package nl2sql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tigel-agm/NL-SQL/internal/target"
)

const (
	mongoSystemPrompt = "You are an assistant that converts natural language questions into MongoDB find queries. " +
		"Respond with a JSON object with keys 'collection' and 'filter' only, without explanation."
	sqliteSystemPrompt = "You are an assistant that converts natural language questions into SQL queries for SQLite databases. " +
		"Use SQLite-specific syntax (e.g., pragma, sqlite_master) for metadata. " +
		"Respond with only the SQL query without explanation or formatting."
	sqlSystemPrompt = "You are an assistant that converts natural language questions into SQL queries for SQL databases. " +
		"Respond with only the SQL query without explanation or formatting."

	sqliteListTablesSQL = "SELECT name FROM sqlite_master WHERE type='table';"
)

func BuildPrompt(req Request) Prompt {
	question := strings.TrimSpace(req.Question)
	switch req.Dialect {
	case target.DialectMongo:
		return Prompt{System: mongoSystemPrompt, User: question}
	case target.DialectSQLite:
		return Prompt{System: sqliteSystemPrompt + schemaSuffix(req.Schema), User: question}
	default:
		return Prompt{System: sqlSystemPrompt + schemaSuffix(req.Schema), User: question}
	}
}

func schemaSuffix(schema string) string {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return ""
	}
	return " This database has the following tables: " + schema
}

// stripCodeFence drops the opening and closing fence lines of a markdown reply.
func stripCodeFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= 2 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

// CleanSQL turns a raw model reply into an executable statement.
func CleanSQL(reply string, dialect target.Dialect) (string, error) {
	sql := stripCodeFence(reply)
	if sql == "" {
		return "", fmt.Errorf("model returned empty SQL")
	}
	if dialect == target.DialectSQLite && strings.Contains(strings.ToLower(sql), "information_schema.tables") {
		sql = sqliteListTablesSQL
	}
	if !strings.HasSuffix(sql, ";") {
		sql += ";"
	}
	return sql, nil
}

// ParseMongoReply decodes a {"collection": ..., "filter": {...}} reply. The returned
// string is the reply with fences removed, which is what gets displayed and stored.
func ParseMongoReply(reply string) (MongoQuery, string, error) {
	content := stripCodeFence(reply)
	if content == "" {
		return MongoQuery{}, "", fmt.Errorf("model returned empty query")
	}
	var parsed struct {
		Collection string          `json:"collection"`
		Filter     json.RawMessage `json:"filter"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return MongoQuery{}, content, fmt.Errorf("decode query json: %w", err)
	}
	if strings.TrimSpace(parsed.Collection) == "" {
		return MongoQuery{}, content, fmt.Errorf("query json is missing 'collection'")
	}
	filter := bytes.TrimSpace(parsed.Filter)
	if len(filter) == 0 || bytes.Equal(filter, []byte("null")) {
		filter = []byte("{}")
	}
	if filter[0] != '{' {
		return MongoQuery{}, content, fmt.Errorf("query 'filter' must be a JSON object")
	}
	return MongoQuery{Collection: parsed.Collection, Filter: json.RawMessage(filter)}, content, nil
}
