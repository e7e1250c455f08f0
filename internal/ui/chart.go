package ui

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

const (
	chartMaxBars    = 20
	chartWidth      = 640
	chartLabelWidth = 160
	chartValueWidth = 80
	chartBarHeight  = 18
	chartBarGap     = 6

	chartTrendHeight  = 240
	chartTrendPadding = 36
	chartTrendLabels  = 8
)

type chartKind string

const (
	chartKindBar  chartKind = "bar"
	chartKindLine chartKind = "line"
	chartKindArea chartKind = "area"
)

var chartKinds = []struct {
	Value chartKind
	Label string
}{
	{Value: chartKindBar, Label: "Bar"},
	{Value: chartKindLine, Label: "Line"},
	{Value: chartKindArea, Label: "Area"},
}

// parseChartKind falls back to a bar chart for empty or unknown values.
func parseChartKind(raw string) chartKind {
	kind := chartKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range chartKinds {
		if known.Value == kind {
			return kind
		}
	}
	return chartKindBar
}

type chartBar struct {
	Label string
	Value float64
}

// chartSeries plots the first numeric column after the first column, labelled by the
// first column. Rows whose value is not numeric are skipped.
func chartSeries(columns []string, rows [][]any) (string, []chartBar, bool) {
	if len(columns) < 2 || len(rows) == 0 {
		return "", nil, false
	}
	valueColumn := -1
	for i := 1; i < len(columns); i++ {
		if columnIsNumeric(rows, i) {
			valueColumn = i
			break
		}
	}
	if valueColumn < 0 {
		return "", nil, false
	}

	bars := make([]chartBar, 0, chartMaxBars)
	for _, row := range rows {
		if len(bars) == chartMaxBars {
			break
		}
		if valueColumn >= len(row) {
			continue
		}
		value, ok := numericValue(row[valueColumn])
		if !ok {
			continue
		}
		bars = append(bars, chartBar{Label: cellString(row[0]), Value: value})
	}
	return columns[valueColumn], bars, len(bars) > 0
}

func columnIsNumeric(rows [][]any, column int) bool {
	seen := false
	for _, row := range rows {
		if column >= len(row) || row[column] == nil {
			continue
		}
		if _, ok := numericValue(row[column]); !ok {
			return false
		}
		seen = true
	}
	return seen
}

func numericValue(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	case json.Number:
		parsed, err := typed.Float64()
		return parsed, err == nil
	default:
		return 0, false
	}
}

func renderChart(kind chartKind, columns []string, rows [][]any) gomponents.Node {
	switch kind {
	case chartKindLine:
		return trendChart(columns, rows, false)
	case chartKindArea:
		return trendChart(columns, rows, true)
	default:
		return barChart(columns, rows)
	}
}

// barChart renders a horizontal SVG bar chart, or nothing when no numeric column exists.
func barChart(columns []string, rows [][]any) gomponents.Node {
	valueName, bars, ok := chartSeries(columns, rows)
	if !ok {
		return nil
	}
	maxValue := 0.0
	for _, bar := range bars {
		if bar.Value > maxValue {
			maxValue = bar.Value
		}
	}
	plotWidth := float64(chartWidth - chartLabelWidth - chartValueWidth)
	height := len(bars)*(chartBarHeight+chartBarGap) + chartBarGap

	shapes := make([]gomponents.Node, 0, len(bars)*3)
	for i, bar := range bars {
		y := chartBarGap + i*(chartBarHeight+chartBarGap)
		width := 0.0
		if maxValue > 0 && bar.Value > 0 {
			width = bar.Value / maxValue * plotWidth
		}
		value := strconv.FormatFloat(bar.Value, 'f', -1, 64)
		shapes = append(shapes,
			svgText(0, y+chartBarHeight-5, truncateLabel(bar.Label)),
			gomponents.El("rect",
				gomponents.Attr("x", strconv.Itoa(chartLabelWidth)),
				gomponents.Attr("y", strconv.Itoa(y)),
				gomponents.Attr("width", strconv.FormatFloat(width, 'f', 1, 64)),
				gomponents.Attr("height", strconv.Itoa(chartBarHeight)),
				gomponents.El("title", gomponents.Text(bar.Label+": "+value)),
			),
			svgText(chartLabelWidth+int(width)+4, y+chartBarHeight-5, value),
		)
	}

	return chartFrame(valueName+" by "+columns[0], height, shapes)
}

// trendChart plots the series as a line in row order, optionally filled down to
// the zero baseline.
func trendChart(columns []string, rows [][]any, filled bool) gomponents.Node {
	valueName, points, ok := chartSeries(columns, rows)
	if !ok {
		return nil
	}
	minValue, maxValue := 0.0, 0.0
	for _, point := range points {
		minValue = math.Min(minValue, point.Value)
		maxValue = math.Max(maxValue, point.Value)
	}
	span := maxValue - minValue
	if span == 0 {
		span = 1
	}

	plotWidth := float64(chartWidth - 2*chartTrendPadding)
	plotHeight := float64(chartTrendHeight - 2*chartTrendPadding)
	step := 0.0
	if len(points) > 1 {
		step = plotWidth / float64(len(points)-1)
	}
	xAt := func(i int) float64 {
		if len(points) == 1 {
			return chartTrendPadding + plotWidth/2
		}
		return chartTrendPadding + float64(i)*step
	}
	yAt := func(value float64) float64 {
		return chartTrendPadding + (maxValue-value)/span*plotHeight
	}
	baseline := yAt(0)

	coords := make([]string, 0, len(points)+2)
	markers := make([]gomponents.Node, 0, len(points)*2)
	labelEvery := (len(points) + chartTrendLabels - 1) / chartTrendLabels
	for i, point := range points {
		x, y := xAt(i), yAt(point.Value)
		coords = append(coords, svgPoint(x, y))
		value := strconv.FormatFloat(point.Value, 'f', -1, 64)
		markers = append(markers, gomponents.El("circle",
			gomponents.Attr("cx", formatCoord(x)),
			gomponents.Attr("cy", formatCoord(y)),
			gomponents.Attr("r", "3"),
			gomponents.El("title", gomponents.Text(point.Label+": "+value)),
		))
		if i%labelEvery == 0 {
			markers = append(markers, gomponents.El("text",
				gomponents.Attr("x", formatCoord(x)),
				gomponents.Attr("y", strconv.Itoa(chartTrendHeight-chartTrendPadding/2)),
				gomponents.Attr("text-anchor", "middle"),
				gomponents.Text(truncateLabel(point.Label)),
			))
		}
	}

	shapes := []gomponents.Node{
		gomponents.El("line",
			gomponents.Attr("class", "axis"),
			gomponents.Attr("x1", strconv.Itoa(chartTrendPadding)),
			gomponents.Attr("y1", formatCoord(baseline)),
			gomponents.Attr("x2", strconv.Itoa(chartWidth-chartTrendPadding)),
			gomponents.Attr("y2", formatCoord(baseline)),
		),
	}
	if filled {
		outline := append([]string{svgPoint(xAt(0), baseline)}, coords...)
		outline = append(outline, svgPoint(xAt(len(points)-1), baseline))
		shapes = append(shapes, gomponents.El("polygon", gomponents.Attr("points", strings.Join(outline, " "))))
	} else {
		shapes = append(shapes, gomponents.El("polyline", gomponents.Attr("points", strings.Join(coords, " "))))
	}
	shapes = append(shapes,
		svgText(0, chartTrendPadding-12, strconv.FormatFloat(maxValue, 'f', -1, 64)),
		gomponents.Group(markers),
	)
	return chartFrame(valueName+" by "+columns[0], chartTrendHeight, shapes)
}

func chartFrame(title string, height int, shapes []gomponents.Node) gomponents.Node {
	return html.Div(
		html.H2(gomponents.Text(title)),
		gomponents.El("svg",
			gomponents.Attr("class", "chart"),
			gomponents.Attr("xmlns", "http://www.w3.org/2000/svg"),
			gomponents.Attr("width", strconv.Itoa(chartWidth)),
			gomponents.Attr("height", strconv.Itoa(height)),
			gomponents.Attr("viewBox", "0 0 "+strconv.Itoa(chartWidth)+" "+strconv.Itoa(height)),
			gomponents.Attr("role", "img"),
			gomponents.Group(shapes),
		),
	)
}

func svgPoint(x, y float64) string {
	return formatCoord(x) + "," + formatCoord(y)
}

func formatCoord(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64)
}

func svgText(x, y int, text string) gomponents.Node {
	return gomponents.El("text",
		gomponents.Attr("x", strconv.Itoa(x)),
		gomponents.Attr("y", strconv.Itoa(y)),
		gomponents.Text(text),
	)
}

func truncateLabel(label string) string {
	runes := []rune(label)
	if len(runes) <= 22 {
		return label
	}
	return string(runes[:21]) + "…"
}
