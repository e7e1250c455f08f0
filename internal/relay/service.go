package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/tigel-agm/NL-SQL/internal/history"
	"github.com/tigel-agm/NL-SQL/internal/nl2sql"
	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/query/mongo"
	"github.com/tigel-agm/NL-SQL/internal/query/sqldb"
	"github.com/tigel-agm/NL-SQL/internal/storage"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

var listTablesPattern = regexp.MustCompile(`(?i)\b(?:list|show)\b.*\btables?\b`)

type SQLExecutor interface {
	Execute(ctx context.Context, t target.Target, sqlText string) (query.Result, error)
	ListTables(ctx context.Context, t target.Target) (query.Result, error)
	ListDatabases(ctx context.Context, t target.Target) (query.Result, error)
	Inspect(ctx context.Context, t target.Target) ([]query.Table, error)
	Preview(ctx context.Context, t target.Target, table string, n int) (query.Result, error)
	Profile(ctx context.Context, t target.Target, table string) ([]sqldb.ColumnProfile, error)
	Explain(ctx context.Context, t target.Target, sqlText string, analyze bool) (query.Result, error)
}

type MongoExecutor interface {
	Find(ctx context.Context, t target.Target, q mongo.FindQuery) (query.Result, error)
	Sample(ctx context.Context, t target.Target, collection string, n int) (query.Result, error)
	ListDatabases(ctx context.Context, t target.Target) (query.Result, error)
	ListCollections(ctx context.Context, t target.Target, database string) (query.Result, error)
}

type ResultArchiver interface {
	Store(ctx context.Context, at time.Time, columns []string, rows [][]any) (string, error)
	Discard(ctx context.Context, key string) error
	Lookup(ctx context.Context, key string) (storage.ObjectInfo, error)
}

type Config struct {
	PreviewRows    int
	ReplayRowLimit int
}

// Service relays questions to the translator, runs the generated query against the
// target named by the request and records the outcome in history. Translator,
// Archiver and Replay are optional.
type Service struct {
	Translator nl2sql.Translator
	SQL        SQLExecutor
	Mongo      MongoExecutor
	History    history.Store
	Archiver   ResultArchiver
	Replay     query.Engine
	Config     Config
	Logger     *slog.Logger
	Clock      func() time.Time
}

type AskRequest struct {
	Question      string
	ConnectionURL string
}

type Answer struct {
	Query      string
	Columns    []string
	Rows       [][]any
	Dialect    target.Dialect
	HistoryID  int64
	ArchiveKey string
	Truncated  bool
	Duration   time.Duration
	Provider   string
	Model      string
}

func (a Answer) Records() []map[string]any {
	return query.Result{Columns: a.Columns, Rows: a.Rows}.Records()
}

func (a *Answer) setResult(result query.Result) {
	a.Columns = result.Columns
	a.Rows = result.Rows
	a.Truncated = result.Truncated
	a.Duration = result.Duration
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (s *Service) previewRows() int {
	if s.Config.PreviewRows > 0 {
		return s.Config.PreviewRows
	}
	return 5
}

func (s *Service) replayRowLimit() int {
	if s.Config.ReplayRowLimit > 0 {
		return s.Config.ReplayRowLimit
	}
	return 10000
}

func (s *Service) TranslatorConfigured() bool {
	return s.Translator != nil
}

func (s *Service) Ask(ctx context.Context, req AskRequest) (Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Answer{}, newError(KindInvalidInput, nil, "question is required")
	}
	t, err := s.parseTarget(req.ConnectionURL)
	if err != nil {
		return Answer{}, err
	}

	answer := Answer{Dialect: t.Dialect}
	var askErr error
	if t.IsMongo() {
		askErr = s.askMongo(ctx, question, t, &answer)
	} else {
		askErr = s.askSQL(ctx, question, t, &answer)
	}
	if KindOf(askErr) == KindNotConfigured {
		return Answer{}, askErr
	}

	if askErr == nil && s.Archiver != nil && len(answer.Rows) > 0 {
		key, err := s.Archiver.Store(ctx, s.now(), answer.Columns, answer.Rows)
		if err != nil {
			s.logger().WarnContext(ctx, "archive result failed", slog.Any("error", err))
		} else {
			answer.ArchiveKey = key
		}
	}

	s.record(ctx, question, &answer, askErr)
	if askErr != nil {
		return Answer{}, askErr
	}
	return answer, nil
}

func (s *Service) askSQL(ctx context.Context, question string, t target.Target, answer *Answer) error {
	if listTablesPattern.MatchString(question) {
		if sqlText := sqldb.ListTablesSQL(t.Dialect); sqlText != "" {
			answer.Query = sqlText
			result, err := s.SQL.Execute(ctx, t, sqlText)
			if err != nil {
				return newError(KindExecution, err, "Error executing list tables query: %v", err)
			}
			answer.setResult(result)
			return nil
		}
	}
	if s.Translator == nil {
		return newError(KindNotConfigured, nl2sql.ErrNotConfigured, "no LLM provider is configured")
	}

	tables, err := s.SQL.Inspect(ctx, t)
	if err != nil {
		s.logger().DebugContext(ctx, "schema inspection failed", slog.String("target", t.String()), slog.Any("error", err))
	}

	translated, err := s.Translator.Translate(ctx, nl2sql.Request{
		Question: question,
		Dialect:  t.Dialect,
		Schema:   query.SummarizeSchema(tables),
	})
	if err != nil {
		return newError(KindGeneration, err, "Error generating SQL: %v", err)
	}
	answer.Query = translated.Query
	answer.Provider = translated.Provider
	answer.Model = translated.Model

	result, err := s.SQL.Execute(ctx, t, translated.Query)
	if err != nil {
		if isMissingTable(err) {
			return newError(KindExecution, err, "%v. Available tables: %s", err, strings.Join(query.TableNames(tables), ", "))
		}
		return newError(KindExecution, err, "SQL execution error: %v", err)
	}
	answer.setResult(result)
	return nil
}

func (s *Service) askMongo(ctx context.Context, question string, t target.Target, answer *Answer) error {
	if s.Translator == nil {
		return newError(KindNotConfigured, nl2sql.ErrNotConfigured, "no LLM provider is configured")
	}
	translated, err := s.Translator.Translate(ctx, nl2sql.Request{Question: question, Dialect: t.Dialect})
	if err == nil && translated.Mongo == nil {
		err = errors.New("translator returned no mongodb query")
	}
	if err != nil {
		return newError(KindGeneration, err, "Error generating MongoDB query: %v", err)
	}
	answer.Query = translated.Query
	answer.Provider = translated.Provider
	answer.Model = translated.Model

	result, err := s.Mongo.Find(ctx, t, mongo.FindQuery{
		Collection: translated.Mongo.Collection,
		Filter:     translated.Mongo.Filter,
	})
	if err != nil {
		return newError(KindExecution, err, "MongoDB execution error: %v", err)
	}
	answer.setResult(result)
	return nil
}

// record appends the outcome to history. History failures never fail the request; an
// archive that no entry will reference is removed again.
func (s *Service) record(ctx context.Context, question string, answer *Answer, askErr error) {
	if s.History == nil {
		return
	}
	in := history.AppendInput{
		Question:  question,
		Query:     answer.Query,
		Dialect:   string(answer.Dialect),
		Status:    history.StatusOK,
		CreatedAt: s.now(),
	}
	if askErr != nil {
		in.Status = history.StatusError
		in.Error = askErr.Error()
	} else {
		in.RowCount = len(answer.Rows)
		in.Columns = answer.Columns
		in.Rows = answer.Records()
		in.ArchiveKey = answer.ArchiveKey
	}

	entry, err := s.History.Append(ctx, in)
	if err != nil {
		s.logger().WarnContext(ctx, "history append failed", slog.Any("error", err))
		if answer.ArchiveKey != "" && s.Archiver != nil {
			if err := s.Archiver.Discard(ctx, answer.ArchiveKey); err != nil {
				s.logger().WarnContext(ctx, "discard orphaned archive failed", slog.String("key", answer.ArchiveKey), slog.Any("error", err))
			}
			answer.ArchiveKey = ""
		}
		return
	}
	answer.HistoryID = entry.ID
}

func (s *Service) ListHistory(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.History == nil {
		return nil, ErrHistoryDisabled
	}
	return s.History.List(ctx, history.NormalizeLimit(limit))
}

func (s *Service) GetHistory(ctx context.Context, id int64) (history.Entry, error) {
	if s.History == nil {
		return history.Entry{}, ErrHistoryDisabled
	}
	return s.History.Get(ctx, id)
}

// ReplayArchived runs read-only SQL over the archived result of a history entry. The
// archived rows are exposed as a view named result with columns row_index and row_json.
func (s *Service) ReplayArchived(ctx context.Context, id int64, sqlText string) (query.Result, error) {
	if s.Archiver == nil || s.Replay == nil {
		return query.Result{}, ErrArchiveDisabled
	}
	if strings.TrimSpace(sqlText) == "" {
		return query.Result{}, newError(KindInvalidInput, nil, "sql is required")
	}
	entry, err := s.GetHistory(ctx, id)
	if err != nil {
		return query.Result{}, err
	}
	if entry.ArchiveKey == "" {
		return query.Result{}, ErrNoArchive
	}
	info, err := s.Archiver.Lookup(ctx, entry.ArchiveKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return query.Result{}, fmt.Errorf("%w: %s", ErrNoArchive, entry.ArchiveKey)
		}
		return query.Result{}, fmt.Errorf("stat archive: %w", err)
	}

	result, err := s.Replay.Execute(ctx, query.Request{
		SQL:      sqlText,
		RowLimit: s.replayRowLimit(),
		Files: []query.TableFile{{
			TableName:     "result",
			ObjectPath:    entry.ArchiveKey,
			FileSizeBytes: info.Size,
		}},
	})
	if err != nil {
		return query.Result{}, newError(KindExecution, err, "SQL execution error: %v", err)
	}
	return result, nil
}

// HealthCheck reports whether the history store is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.History == nil {
		return ErrHistoryDisabled
	}
	return s.History.HealthCheck(ctx)
}

func (s *Service) parseTarget(raw string) (target.Target, error) {
	if strings.TrimSpace(raw) == "" {
		return target.Target{}, newError(KindInvalidInput, nil, "connection_url is required")
	}
	t, err := target.Parse(raw)
	if err != nil {
		if errors.Is(err, target.ErrUnsupportedScheme) {
			return target.Target{}, newError(KindUnsupported, err, "%v", err)
		}
		return target.Target{}, newError(KindInvalidInput, err, "%v", err)
	}
	return t, nil
}

func isMissingTable(err error) bool {
	var unknown *sqldb.UnknownTableError
	if errors.As(err, &unknown) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "UndefinedTable") ||
		strings.Contains(msg, "no such table")
}
