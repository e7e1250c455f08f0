package nl2sql

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tigel-agm/NL-SQL/internal/observability"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

// Service implements Translator on top of any Completer.
type Service struct {
	completer Completer
}

func NewService(completer Completer) (*Service, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	return &Service{completer: completer}, nil
}

// Close releases the client behind the completer, for providers that hold one.
func (s *Service) Close() error {
	if closer, ok := s.completer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *Service) Provider() string {
	return s.completer.Name()
}

func (s *Service) Translate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Question) == "" {
		return Result{}, fmt.Errorf("question is required")
	}

	start := time.Now()
	completion, err := s.completer.Complete(ctx, BuildPrompt(req))
	observability.ObserveLLMRequest(s.completer.Name(), time.Since(start), err)
	if err != nil {
		return Result{}, err
	}

	result := Result{Provider: s.completer.Name(), Model: completion.Model}
	if req.Dialect == target.DialectMongo {
		mongoQuery, display, err := ParseMongoReply(completion.Text)
		if err != nil {
			return Result{}, err
		}
		result.Query = display
		result.Mongo = &mongoQuery
		return result, nil
	}

	sql, err := CleanSQL(completion.Text, req.Dialect)
	if err != nil {
		return Result{}, err
	}
	result.Query = sql
	return result, nil
}
