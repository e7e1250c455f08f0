package nl2sql

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tigel-agm/NL-SQL/internal/target"
)

// ErrNotConfigured is returned when no LLM provider has credentials.
var ErrNotConfigured = errors.New("llm provider not configured")

type Request struct {
	Question string         `json:"question"`
	Dialect  target.Dialect `json:"dialect"`
	// Schema is a one-line summary such as "orders(id, amount); customers(id, name)".
	Schema string `json:"schema,omitempty"`
}

// MongoQuery is a find query produced for MongoDB targets. Filter is kept as raw JSON
// so that extended JSON operators survive until the driver decodes them.
type MongoQuery struct {
	Collection string          `json:"collection"`
	Filter     json.RawMessage `json:"filter"`
}

type Result struct {
	// Query is the text shown to the user: SQL for SQL targets, the reply JSON for MongoDB.
	Query    string      `json:"query"`
	Mongo    *MongoQuery `json:"mongo,omitempty"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

type Prompt struct {
	System string
	User   string
}

type Completion struct {
	Text  string
	Model string
}

// Completer is a single chat-completion round trip against one provider.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt Prompt) (Completion, error)
}
