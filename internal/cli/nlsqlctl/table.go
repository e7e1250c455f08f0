package nlsqlctl

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

type renderer func(w io.Writer, value any) error

var historyColumns = []string{"id", "status", "dialect", "row_count", "created_at", "question"}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeRow(tw *tabwriter.Writer, cells []string) {
	_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
}

// renderResult prints a {columns, rows} payload as an aligned table.
func renderResult(w io.Writer, value any) error {
	object, ok := value.(map[string]any)
	if !ok {
		return renderKeyValues(w, value)
	}
	columns := stringList(object["columns"])
	rows, _ := object["rows"].([]any)
	if len(columns) == 0 {
		_, _ = fmt.Fprintln(w, "(no columns)")
		return nil
	}

	tw := newTabWriter(w)
	header := make([]string, len(columns))
	for i, column := range columns {
		header[i] = strings.ToUpper(column)
	}
	writeRow(tw, header)
	for _, raw := range rows {
		record, _ := raw.(map[string]any)
		cells := make([]string, len(columns))
		for i, column := range columns {
			cells[i] = cellText(record[column])
		}
		writeRow(tw, cells)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if truncated, _ := object["truncated"].(bool); truncated {
		_, _ = fmt.Fprintf(w, "(%d rows, truncated)\n", len(rows))
	} else {
		_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	}
	return nil
}

func renderAnswer(w io.Writer, value any) error {
	if object, ok := value.(map[string]any); ok {
		if sql, ok := object["sql"].(string); ok {
			_, _ = fmt.Fprintf(w, "%s\n\n", sql)
		}
	}
	return renderResult(w, value)
}

func renderHistory(w io.Writer, value any) error {
	entries, ok := value.([]any)
	if !ok {
		return renderKeyValues(w, value)
	}
	tw := newTabWriter(w)
	header := make([]string, len(historyColumns))
	for i, column := range historyColumns {
		header[i] = strings.ToUpper(column)
	}
	writeRow(tw, header)
	for _, raw := range entries {
		entry, _ := raw.(map[string]any)
		cells := make([]string, len(historyColumns))
		for i, column := range historyColumns {
			cells[i] = cellText(entry[column])
		}
		writeRow(tw, cells)
	}
	return tw.Flush()
}

func renderSchema(w io.Writer, value any) error {
	object, ok := value.(map[string]any)
	if !ok {
		return renderKeyValues(w, value)
	}
	tables, _ := object["tables"].([]any)
	tw := newTabWriter(w)
	writeRow(tw, []string{"TABLE", "COLUMN", "TYPE", "NULLABLE"})
	for _, rawTable := range tables {
		table, _ := rawTable.(map[string]any)
		columns, _ := table["columns"].([]any)
		for _, rawColumn := range columns {
			column, _ := rawColumn.(map[string]any)
			writeRow(tw, []string{
				cellText(table["name"]),
				cellText(column["name"]),
				cellText(column["type"]),
				cellText(column["nullable"]),
			})
		}
	}
	return tw.Flush()
}

func renderDOT(w io.Writer, value any) error {
	if object, ok := value.(map[string]any); ok {
		if dot, ok := object["dot"].(string); ok {
			_, err := io.WriteString(w, dot)
			return err
		}
	}
	return renderKeyValues(w, value)
}

// renderKeyValues prints the top-level fields of an object, one per line.
func renderKeyValues(w io.Writer, value any) error {
	object, ok := value.(map[string]any)
	if !ok {
		_, _ = fmt.Fprintln(w, cellText(value))
		return nil
	}
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tw := newTabWriter(w)
	for _, key := range keys {
		writeRow(tw, []string{key, cellText(object[key])})
	}
	return tw.Flush()
}

func stringList(value any) []string {
	items, _ := value.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func cellText(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return strings.ReplaceAll(typed, "\n", " ")
	case json.Number:
		return typed.String()
	case bool:
		if typed {
			return "true"
		}
		return "false"
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}
		return string(encoded)
	}
}
