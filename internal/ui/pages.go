package ui

import (
	"fmt"
	"strconv"
	"time"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"github.com/tigel-agm/NL-SQL/internal/history"
	"github.com/tigel-agm/NL-SQL/internal/query"
	"github.com/tigel-agm/NL-SQL/internal/relay"
)

type navItem struct {
	Key   string
	Label string
	Href  string
}

var navItems = []navItem{
	{Key: "ask", Label: "Ask", Href: "/ui"},
	{Key: "history", Label: "History", Href: "/ui/history"},
	{Key: "explore", Label: "Explore", Href: "/ui/explore"},
}

var exploreOperations = []struct {
	Value string
	Label string
}{
	{Value: "tables", Label: "List tables"},
	{Value: "databases", Label: "List databases"},
	{Value: "diagram", Label: "ER diagram (DOT)"},
	{Value: "preview", Label: "Preview table"},
	{Value: "profile", Label: "Profile table"},
}

type askForm struct {
	Question      string
	ConnectionURL string
	Preset        string
	Table         string
	Column        string
	Chart         chartKind
}

// answerView is a successful answer together with the plan of its query. Plan is nil
// when no plan was requested; PlanError is set when the plan could not be read.
type answerView struct {
	Answer    relay.Answer
	Plan      *query.Result
	PlanError string
}

type exploreForm struct {
	Operation     string
	ConnectionURL string
	Table         string
}

func appPage(title, active string, body ...gomponents.Node) gomponents.Node {
	nav := make([]gomponents.Node, 0, len(navItems))
	for _, item := range navItems {
		className := ""
		if item.Key == active {
			className = "active"
		}
		nav = append(nav, html.A(html.Href(item.Href), html.Class(className), gomponents.Text(item.Label)))
	}

	return html.Doctype(html.HTML(
		html.Lang("en"),
		html.Head(
			html.Meta(html.Charset("utf-8")),
			html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
			html.TitleEl(gomponents.Text(title+" | NL-SQL")),
			html.Link(html.Rel("stylesheet"), html.Href("/ui/static/style.css")),
		),
		html.Body(
			html.Main(
				html.Class("layout"),
				html.Div(
					html.Class("topbar"),
					html.Strong(gomponents.Text("NL-SQL")),
					html.P(html.Class("muted"), gomponents.Text("Ask your database in plain language")),
				),
				html.Nav(html.Class("nav"), gomponents.Group(nav)),
				html.H1(html.Class("page-title"), gomponents.Text(title)),
				gomponents.Group(body),
			),
		),
	))
}

func errorPage(title, message string) gomponents.Node {
	return appPage(title, "", errorCard(title, message))
}

func errorCard(title, message string) gomponents.Node {
	return html.Div(
		html.Class("card error"),
		html.H2(gomponents.Text(title)),
		html.Pre(gomponents.Text(message)),
	)
}

func askPage(form askForm, view *answerView, askError string) gomponents.Node {
	presetOptions := []gomponents.Node{optionSelectedValue("", form.Preset, "(no preset)")}
	for _, preset := range relay.Presets() {
		presetOptions = append(presetOptions, optionSelectedValue(preset.Name, form.Preset, preset.Name))
	}
	chartOptions := make([]gomponents.Node, 0, len(chartKinds))
	for _, kind := range chartKinds {
		chartOptions = append(chartOptions, optionSelectedValue(string(kind.Value), string(form.Chart), kind.Label))
	}

	resultNode := gomponents.Node(html.P(html.Class("muted"), gomponents.Text("Ask a question to see results.")))
	switch {
	case askError != "":
		resultNode = errorCard("Query Error", askError)
	case view != nil:
		resultNode = html.Div(
			answerCard(view.Answer, form.Chart),
			insightsCard(view.Plan, view.PlanError),
		)
	}

	return appPage(
		"Ask",
		"ask",
		html.Div(
			html.Class("card"),
			html.Form(
				html.Method("post"),
				html.Action("/ui/ask"),
				formRow("question", "Question",
					html.Textarea(html.ID("question"), html.Name("question"), html.Placeholder("Which customers placed the most orders?"), gomponents.Text(form.Question)),
				),
				formRow("connection_url", "Connection URL",
					html.Input(html.Type("text"), html.ID("connection_url"), html.Name("connection_url"), html.Placeholder("sqlite:///example.db"), html.Value(form.ConnectionURL)),
				),
				html.Div(
					html.Class("inline"),
					formRow("preset", "Quick query",
						html.Select(html.ID("preset"), html.Name("preset"), gomponents.Group(presetOptions)),
					),
					formRow("table", "Table",
						html.Input(html.Type("text"), html.ID("table"), html.Name("table"), html.Value(form.Table)),
					),
					formRow("column", "Column",
						html.Input(html.Type("text"), html.ID("column"), html.Name("column"), html.Value(form.Column)),
					),
					formRow("chart", "Chart",
						html.Select(html.ID("chart"), html.Name("chart"), gomponents.Group(chartOptions)),
					),
				),
				html.P(html.Class("muted"), gomponents.Text("A quick query is used when the question is left empty.")),
				html.Button(html.Type("submit"), gomponents.Text("Ask")),
			),
		),
		resultNode,
	)
}

func answerCard(answer relay.Answer, chart chartKind) gomponents.Node {
	meta := fmt.Sprintf("%d row(s) from %s in %s", len(answer.Rows), answer.Dialect, answer.Duration.Round(time.Millisecond))
	if answer.Truncated {
		meta += ", truncated"
	}
	if answer.Provider != "" {
		meta += fmt.Sprintf(" | generated by %s %s", answer.Provider, answer.Model)
	}

	downloads := gomponents.Node(nil)
	if answer.HistoryID > 0 {
		base := "/v1/history/" + strconv.FormatInt(answer.HistoryID, 10) + "/export"
		downloads = html.P(
			html.Class("downloads"),
			html.A(html.Href(base+"?format=csv"), gomponents.Text("Download CSV")),
			html.A(html.Href(base+"?format=json"), gomponents.Text("Download JSON")),
		)
	}

	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Generated Query")),
		html.Pre(html.Code(gomponents.Text(answer.Query))),
		html.P(html.Class("muted"), gomponents.Text(meta)),
		resultTable(answer.Columns, answer.Rows),
		renderChart(chart, answer.Columns, answer.Rows),
		downloads,
	)
}

func insightsCard(plan *query.Result, planError string) gomponents.Node {
	if plan == nil && planError == "" {
		return nil
	}
	body := gomponents.Node(html.P(html.Class("muted"), gomponents.Text("No plan available: "+planError)))
	if plan != nil {
		body = resultTable(plan.Columns, plan.Rows)
	}
	return html.Div(
		html.Class("card"),
		html.H2(gomponents.Text("Performance Insights")),
		html.P(html.Class("muted"), gomponents.Text("Query plan reported by EXPLAIN.")),
		body,
	)
}

func resultTable(columns []string, rows [][]any) gomponents.Node {
	if len(columns) == 0 {
		return html.P(html.Class("muted"), gomponents.Text("No columns returned."))
	}
	headerCols := make([]gomponents.Node, 0, len(columns))
	for _, column := range columns {
		headerCols = append(headerCols, html.Th(gomponents.Text(column)))
	}

	displayRows := rows
	if len(displayRows) > resultMaxRows {
		displayRows = displayRows[:resultMaxRows]
	}
	bodyRows := make([]gomponents.Node, 0, len(displayRows))
	for _, row := range displayRows {
		cells := make([]gomponents.Node, 0, len(row))
		for _, value := range row {
			cells = append(cells, html.Td(gomponents.Text(cellString(value))))
		}
		bodyRows = append(bodyRows, html.Tr(gomponents.Group(cells)))
	}

	var note gomponents.Node
	if len(rows) > resultMaxRows {
		note = html.P(html.Class("muted"), gomponents.Textf("Showing first %d of %d rows.", resultMaxRows, len(rows)))
	}
	return html.Div(
		html.Class("table-wrap"),
		html.Table(
			html.THead(html.Tr(gomponents.Group(headerCols))),
			html.TBody(gomponents.Group(bodyRows)),
		),
		note,
	)
}

func historyPage(entries []history.Entry) gomponents.Node {
	items := make([]gomponents.Node, 0, len(entries))
	for _, entry := range entries {
		items = append(items, historyItem(entry))
	}
	list := gomponents.Node(html.P(html.Class("muted"), gomponents.Text("No questions asked yet.")))
	if len(items) > 0 {
		list = gomponents.Group(items)
	}

	return appPage(
		"History",
		"history",
		html.Div(
			html.Class("card"),
			html.P(
				html.Class("downloads"),
				html.A(html.Href("/v1/history/export?format=csv"), gomponents.Text("Download history CSV")),
				html.A(html.Href("/v1/history/export?format=json"), gomponents.Text("Download history JSON")),
			),
			list,
		),
	)
}

func historyItem(entry history.Entry) gomponents.Node {
	id := strconv.FormatInt(entry.ID, 10)
	summary := fmt.Sprintf("#%s %s", id, entry.Question)
	meta := fmt.Sprintf("%s | %s | %d row(s) | %s", entry.Status, entry.Dialect, entry.RowCount, entry.CreatedAt.UTC().Format(time.RFC3339))

	var errNode gomponents.Node
	if entry.Error != "" {
		errNode = html.Pre(gomponents.Text(entry.Error))
	}

	columns := entry.OrderedColumns()
	rows := make([][]any, 0, len(entry.Rows))
	for _, record := range entry.Rows {
		row := make([]any, len(columns))
		for i, column := range columns {
			row[i] = record[column]
		}
		rows = append(rows, row)
	}
	var table gomponents.Node
	if len(rows) > 0 {
		table = resultTable(columns, rows)
	}

	return html.Details(
		html.Summary(gomponents.Text(summary)),
		html.P(html.Class("muted"), gomponents.Text(meta)),
		html.Pre(html.Code(gomponents.Text(entry.Query))),
		errNode,
		table,
		html.P(
			html.Class("downloads"),
			html.A(html.Href("/v1/history/"+id+"/export?format=csv"), gomponents.Text("CSV")),
			html.A(html.Href("/v1/history/"+id+"/export?format=json"), gomponents.Text("JSON")),
		),
	)
}

func explorePage(form exploreForm, out exploreOutput, exploreError string) gomponents.Node {
	opOptions := make([]gomponents.Node, 0, len(exploreOperations))
	for _, op := range exploreOperations {
		opOptions = append(opOptions, optionSelectedValue(op.Value, form.Operation, op.Label))
	}

	var resultNode gomponents.Node
	switch {
	case exploreError != "":
		resultNode = errorCard("Explore Error", exploreError)
	case out.DOT != "":
		resultNode = html.Div(
			html.Class("card"),
			html.H2(gomponents.Text("ER Diagram")),
			html.P(html.Class("muted"), gomponents.Text("Graphviz DOT source.")),
			html.Pre(gomponents.Text(out.DOT)),
		)
	case out.Profiles != nil:
		resultNode = html.Div(html.Class("card"), html.H2(gomponents.Text("Profile")), profileTable(out.Profiles))
	case out.Result != nil:
		resultNode = html.Div(
			html.Class("card"),
			html.H2(gomponents.Text("Result")),
			resultTable(out.Result.Columns, out.Result.Rows),
		)
	}

	return appPage(
		"Explore",
		"explore",
		html.Div(
			html.Class("card"),
			html.Form(
				html.Method("post"),
				html.Action("/ui/explore"),
				formRow("connection_url", "Connection URL",
					html.Input(html.Type("text"), html.ID("connection_url"), html.Name("connection_url"), html.Placeholder("sqlite:///example.db"), html.Value(form.ConnectionURL)),
				),
				html.Div(
					html.Class("inline"),
					formRow("op", "Operation",
						html.Select(html.ID("op"), html.Name("op"), gomponents.Group(opOptions)),
					),
					formRow("table", "Table",
						html.Input(html.Type("text"), html.ID("table"), html.Name("table"), html.Value(form.Table)),
					),
				),
				html.Button(html.Type("submit"), gomponents.Text("Run")),
			),
		),
		resultNode,
	)
}

func profileTable(profiles []profileRow) gomponents.Node {
	headers := []string{"column", "type", "nulls", "distinct", "min", "max", "avg"}
	headerCols := make([]gomponents.Node, 0, len(headers))
	for _, header := range headers {
		headerCols = append(headerCols, html.Th(gomponents.Text(header)))
	}
	rows := make([]gomponents.Node, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, html.Tr(
			html.Td(gomponents.Text(p.Column)),
			html.Td(gomponents.Text(p.Type)),
			html.Td(gomponents.Text(p.Nulls)),
			html.Td(gomponents.Text(p.Distinct)),
			html.Td(gomponents.Text(p.Min)),
			html.Td(gomponents.Text(p.Max)),
			html.Td(gomponents.Text(p.Avg)),
		))
	}
	return html.Div(
		html.Class("table-wrap"),
		html.Table(
			html.THead(html.Tr(gomponents.Group(headerCols))),
			html.TBody(gomponents.Group(rows)),
		),
	)
}

func formRow(id, label string, control gomponents.Node) gomponents.Node {
	return html.Div(
		html.Class("row"),
		html.Label(html.For(id), gomponents.Text(label)),
		control,
	)
}

func optionSelectedValue(value, selected, label string) gomponents.Node {
	if value == selected {
		return html.Option(html.Value(value), html.Selected(), gomponents.Text(label))
	}
	return html.Option(html.Value(value), gomponents.Text(label))
}
