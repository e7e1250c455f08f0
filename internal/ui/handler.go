package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gomponents "maragu.dev/gomponents"

	"github.com/tigel-agm/NL-SQL/internal/api/uistatic"
	"github.com/tigel-agm/NL-SQL/internal/history"
	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/relay"
	"github.com/tigel-agm/NL-SQL/internal/target"
)

var errUnknownOperation = errors.New("unknown explore operation")

const (
	maxFormBytes    = 1 << 20
	historyPageSize = 50
	resultMaxRows   = 200
)

// Handler serves the server-rendered dashboard.
type Handler struct {
	Relay  *relay.Service
	Logger *slog.Logger

	mux *http.ServeMux
}

func NewHandler(svc *relay.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{Relay: svc, Logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.AskPage)
	mux.HandleFunc("GET /ui", h.AskPage)
	mux.HandleFunc("POST /ui/ask", h.Ask)
	mux.HandleFunc("GET /ui/history", h.HistoryPage)
	mux.HandleFunc("GET /ui/explore", h.ExplorePage)
	mux.HandleFunc("POST /ui/explore", h.Explore)
	mux.Handle("GET /ui/static/{file}", uistatic.Handler())
	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) AskPage(w http.ResponseWriter, r *http.Request) {
	if h.Relay == nil {
		renderHTML(w, http.StatusNotImplemented, errorPage("Unavailable", "The relay is not configured."))
		return
	}
	form := askForm{
		ConnectionURL: strings.TrimSpace(r.URL.Query().Get("connection_url")),
		Chart:         parseChartKind(r.URL.Query().Get("chart")),
	}
	renderHTML(w, http.StatusOK, askPage(form, nil, ""))
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.Relay == nil {
		renderHTML(w, http.StatusNotImplemented, errorPage("Unavailable", "The relay is not configured."))
		return
	}
	if !parseFormOrRenderBadRequest(w, r) {
		return
	}
	form := askForm{
		Question:      strings.TrimSpace(r.Form.Get("question")),
		ConnectionURL: strings.TrimSpace(r.Form.Get("connection_url")),
		Preset:        strings.TrimSpace(r.Form.Get("preset")),
		Table:         strings.TrimSpace(r.Form.Get("table")),
		Column:        strings.TrimSpace(r.Form.Get("column")),
		Chart:         parseChartKind(r.Form.Get("chart")),
	}
	if form.Question == "" && form.Preset != "" {
		question, err := relay.RenderPreset(form.Preset, form.Table, form.Column)
		if err != nil {
			renderHTML(w, http.StatusBadRequest, askPage(form, nil, err.Error()))
			return
		}
		form.Question = question
	}

	answer, err := h.Relay.Ask(r.Context(), relay.AskRequest{
		Question:      form.Question,
		ConnectionURL: form.ConnectionURL,
	})
	if err != nil {
		h.Logger.WarnContext(r.Context(), "dashboard question failed", slog.Any("error", err))
		renderHTML(w, statusForError(err), askPage(form, nil, err.Error()))
		return
	}
	renderHTML(w, http.StatusOK, askPage(form, h.withPlan(r.Context(), form.ConnectionURL, answer), ""))
}

// withPlan attaches the EXPLAIN output of a SQL answer. A plan that cannot be read
// never fails the answer.
func (h *Handler) withPlan(ctx context.Context, connectionURL string, answer relay.Answer) *answerView {
	view := &answerView{Answer: answer}
	if answer.Dialect == target.DialectMongo || strings.TrimSpace(answer.Query) == "" {
		return view
	}
	plan, err := h.Relay.Explain(ctx, connectionURL, answer.Query, false)
	if err != nil {
		h.Logger.DebugContext(ctx, "query plan unavailable", slog.Any("error", err))
		view.PlanError = err.Error()
		return view
	}
	view.Plan = &plan
	return view
}

func (h *Handler) HistoryPage(w http.ResponseWriter, r *http.Request) {
	if h.Relay == nil {
		renderHTML(w, http.StatusNotImplemented, errorPage("Unavailable", "The relay is not configured."))
		return
	}
	limit := historyPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			renderHTML(w, http.StatusBadRequest, errorPage("Bad Request", "limit must be a positive integer."))
			return
		}
		limit = parsed
	}
	entries, err := h.Relay.ListHistory(r.Context(), limit)
	if err != nil {
		renderHTML(w, statusForError(err), errorPage("History Unavailable", err.Error()))
		return
	}
	renderHTML(w, http.StatusOK, historyPage(entries))
}

func (h *Handler) ExplorePage(w http.ResponseWriter, r *http.Request) {
	if h.Relay == nil {
		renderHTML(w, http.StatusNotImplemented, errorPage("Unavailable", "The relay is not configured."))
		return
	}
	form := exploreForm{
		Operation:     "tables",
		ConnectionURL: strings.TrimSpace(r.URL.Query().Get("connection_url")),
	}
	renderHTML(w, http.StatusOK, explorePage(form, exploreOutput{}, ""))
}

func (h *Handler) Explore(w http.ResponseWriter, r *http.Request) {
	if h.Relay == nil {
		renderHTML(w, http.StatusNotImplemented, errorPage("Unavailable", "The relay is not configured."))
		return
	}
	if !parseFormOrRenderBadRequest(w, r) {
		return
	}
	form := exploreForm{
		Operation:     strings.TrimSpace(r.Form.Get("op")),
		ConnectionURL: strings.TrimSpace(r.Form.Get("connection_url")),
		Table:         strings.TrimSpace(r.Form.Get("table")),
	}
	out, err := h.explore(r, form)
	if err != nil {
		renderHTML(w, statusForError(err), explorePage(form, exploreOutput{}, err.Error()))
		return
	}
	renderHTML(w, http.StatusOK, explorePage(form, out, ""))
}

type exploreOutput struct {
	Result   *query.Result
	DOT      string
	Profiles []profileRow
}

type profileRow struct {
	Column, Type, Nulls, Distinct, Min, Max, Avg string
}

func (h *Handler) explore(r *http.Request, form exploreForm) (exploreOutput, error) {
	ctx := r.Context()
	switch form.Operation {
	case "tables":
		result, err := h.Relay.Tables(ctx, form.ConnectionURL)
		return exploreOutput{Result: &result}, err
	case "databases":
		result, err := h.Relay.Databases(ctx, form.ConnectionURL)
		return exploreOutput{Result: &result}, err
	case "diagram":
		dot, err := h.Relay.Diagram(ctx, form.ConnectionURL)
		return exploreOutput{DOT: dot}, err
	case "preview":
		result, err := h.Relay.Preview(ctx, form.ConnectionURL, form.Table, 0)
		return exploreOutput{Result: &result}, err
	case "profile":
		profiles, err := h.Relay.Profile(ctx, form.ConnectionURL, form.Table)
		if err != nil {
			return exploreOutput{}, err
		}
		rows := make([]profileRow, 0, len(profiles))
		for _, p := range profiles {
			rows = append(rows, profileRow{
				Column:   p.Column,
				Type:     p.Type,
				Nulls:    strconv.FormatInt(p.NullCount, 10),
				Distinct: strconv.FormatInt(p.DistinctCount, 10),
				Min:      optionalCell(p.Min),
				Max:      optionalCell(p.Max),
				Avg:      optionalCell(p.Avg),
			})
		}
		return exploreOutput{Profiles: rows}, nil
	default:
		return exploreOutput{}, fmt.Errorf("%w %q", errUnknownOperation, form.Operation)
	}
}

func statusForError(err error) int {
	switch relay.KindOf(err) {
	case relay.KindInvalidInput, relay.KindUnsupported, relay.KindExecution:
		return http.StatusBadRequest
	case relay.KindNotConfigured:
		return http.StatusNotImplemented
	case relay.KindGeneration:
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, errUnknownOperation):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, relay.ErrHistoryDisabled):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func parseFormOrRenderBadRequest(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		renderHTML(w, http.StatusBadRequest, errorPage("Bad Request", "Invalid form payload."))
		return false
	}
	return true
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func cellString(value any) string {
	if value == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", value)
}

func optionalCell(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%v", value)
}
