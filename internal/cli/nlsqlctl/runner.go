package nlsqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultBaseURL = "http://localhost:8001"

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// httpError is a response with a 4xx or 5xx status.
type httpError struct {
	Status int
	Body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// requestError is a transport failure before any response arrived.
type requestError struct {
	err error
}

func (e *requestError) Error() string {
	return "request failed: " + e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

type runner struct {
	defaults Options
	baseURL  string
	timeout  time.Duration
	output   string
	client   *http.Client
}

// Run executes one CLI invocation and returns the process exit code: 0 on success, 1
// when the request or the API failed and 2 for usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	if defaults.Stdout == nil {
		defaults.Stdout = io.Discard
	}
	if defaults.Stderr == nil {
		defaults.Stderr = io.Discard
	}

	r := &runner{defaults: defaults}
	root := r.rootCmd()
	root.SetArgs(args)
	root.SetOut(defaults.Stdout)
	root.SetErr(defaults.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var reqErr *requestError
	var respErr *httpError
	if errors.As(err, &reqErr) || errors.As(err, &respErr) {
		_, _ = fmt.Fprintln(defaults.Stderr, err)
		return 1
	}
	_, _ = fmt.Fprintf(defaults.Stderr, "Error: %v\n", err)
	_, _ = fmt.Fprintln(defaults.Stderr, "Run 'nlsqlctl --help' for usage.")
	return 2
}

func (r *runner) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nlsqlctl",
		Short:         "Command-line client for the NL-SQL API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if r.output != "json" && r.output != "table" {
				return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", r.output)
			}
			r.client = r.defaults.HTTPClient
			if r.client == nil {
				r.client = &http.Client{Timeout: r.timeout}
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return errors.New("a command is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&r.baseURL, "base-url", firstNonEmpty(r.defaults.BaseURL, defaultBaseURL), "NL-SQL API base URL")
	root.PersistentFlags().DurationVar(&r.timeout, "timeout", durationOr(r.defaults.Timeout, 10*time.Second), "HTTP timeout (e.g. 10s)")
	root.PersistentFlags().StringVarP(&r.output, "output", "o", "json", "Output format (json, table)")

	root.AddCommand(
		r.simpleGetCmd("health", "Check API liveness", "/v1/health"),
		r.simpleGetCmd("ready", "Check API readiness", "/v1/ready"),
		r.askCmd(),
		r.historyCmd(),
		r.exploreCmd("tables", "List tables or collections", "tables", renderResult),
		r.exploreCmd("schema", "Show tables and columns", "schema", renderSchema),
		r.exploreCmd("diagram", "Print the ER diagram as Graphviz DOT", "diagram", renderDOT),
		r.explainCmd(),
	)
	return root
}

func (r *runner) simpleGetCmd(name, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := r.do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return r.print(cmd.OutOrStdout(), body, renderKeyValues)
		},
	}
}

func (r *runner) askCmd() *cobra.Command {
	var connectionURL string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Translate a question to a query and run it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := r.do(cmd.Context(), http.MethodPost, "/v1/query", map[string]string{
				"question":       strings.Join(args, " "),
				"connection_url": connectionURL,
			})
			if err != nil {
				return err
			}
			return r.print(cmd.OutOrStdout(), body, renderAnswer)
		},
	}
	cmd.Flags().StringVar(&connectionURL, "url", "", "Target database connection URL")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func (r *runner) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/v1/history"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}
			body, err := r.do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return r.print(cmd.OutOrStdout(), body, renderHistory)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries")

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid history id %q", args[0])
			}
			body, err := r.do(cmd.Context(), http.MethodGet, "/v1/history/"+strconv.FormatInt(id, 10), nil)
			if err != nil {
				return err
			}
			return r.print(cmd.OutOrStdout(), body, renderKeyValues)
		},
	})
	return cmd
}

func (r *runner) exploreCmd(name, short, op string, render renderer) *cobra.Command {
	var connectionURL string
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := r.do(cmd.Context(), http.MethodPost, "/v1/explore/"+url.PathEscape(op), map[string]any{
				"connection_url": connectionURL,
			})
			if err != nil {
				return err
			}
			return r.print(cmd.OutOrStdout(), body, render)
		},
	}
	cmd.Flags().StringVar(&connectionURL, "url", "", "Target database connection URL")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func (r *runner) explainCmd() *cobra.Command {
	var (
		connectionURL string
		analyze       bool
	)
	cmd := &cobra.Command{
		Use:   "explain <sql>",
		Short: "Show the query plan for a SQL statement",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := r.do(cmd.Context(), http.MethodPost, "/v1/explore/explain", map[string]any{
				"connection_url": connectionURL,
				"sql":            strings.Join(args, " "),
				"analyze":        analyze,
			})
			if err != nil {
				return err
			}
			return r.print(cmd.OutOrStdout(), body, renderResult)
		},
	}
	cmd.Flags().StringVar(&connectionURL, "url", "", "Target database connection URL")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Execute the statement to collect runtime statistics")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func (r *runner) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, &requestError{err: err}
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(r.baseURL, "/")+path, body)
	if err != nil {
		return nil, &requestError{err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &requestError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &requestError{err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &httpError{Status: resp.StatusCode, Body: strings.TrimSpace(string(responseBody))}
	}
	return responseBody, nil
}

func (r *runner) print(w io.Writer, body []byte, render renderer) error {
	if r.output == "table" {
		if value, ok := decodeJSON(body); ok {
			return render(w, value)
		}
	}
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(w, pretty)
		return nil
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(w, string(body))
	}
	return nil
}

func prettyJSON(raw []byte) (string, bool) {
	value, ok := decodeJSON(raw)
	if !ok {
		return "", false
	}
	formatted, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func decodeJSON(raw []byte) (any, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, false
	}
	return value, true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
