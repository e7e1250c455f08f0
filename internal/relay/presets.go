package relay

import (
	"fmt"
	"strings"
)

type Preset struct {
	Name        string `json:"name"`
	NeedsTable  bool   `json:"needs_table"`
	NeedsColumn bool   `json:"needs_column"`
}

var presets = []Preset{
	{Name: "List tables"},
	{Name: "Show first 10 rows", NeedsTable: true},
	{Name: "Count rows", NeedsTable: true},
	{Name: "Describe table schema", NeedsTable: true},
	{Name: "Distinct values", NeedsTable: true, NeedsColumn: true},
	{Name: "Top 5 by column", NeedsTable: true, NeedsColumn: true},
}

// Presets returns the quick-query templates in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// RenderPreset turns a preset into the question sent through Ask.
func RenderPreset(name, table, column string) (string, error) {
	table = strings.TrimSpace(table)
	column = strings.TrimSpace(column)

	var preset *Preset
	for i := range presets {
		if strings.EqualFold(presets[i].Name, strings.TrimSpace(name)) {
			preset = &presets[i]
			break
		}
	}
	if preset == nil {
		return "", newError(KindInvalidInput, nil, "unknown preset %q", name)
	}
	if preset.NeedsTable && table == "" {
		return "", newError(KindInvalidInput, nil, "preset %q requires a table", preset.Name)
	}
	if preset.NeedsColumn && column == "" {
		return "", newError(KindInvalidInput, nil, "preset %q requires a column", preset.Name)
	}

	switch preset.Name {
	case "List tables":
		return "List all tables in the database.", nil
	case "Show first 10 rows":
		return fmt.Sprintf("Show me the first 10 rows from the %s table.", table), nil
	case "Count rows":
		return fmt.Sprintf("Count the number of rows in the %s table.", table), nil
	case "Describe table schema":
		return fmt.Sprintf("Describe the schema of the %s table.", table), nil
	case "Distinct values":
		return fmt.Sprintf("List distinct values of column %s in table %s.", column, table), nil
	default:
		return fmt.Sprintf("Show the top 5 values in column %s of table %s.", column, table), nil
	}
}
