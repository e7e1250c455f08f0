package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var historyExportColumns = []string{"id", "question", "sql", "status", "row_count", "dialect", "error", "created_at"}

func handleExportEntry(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Relay == nil {
		relayNotConfigured(r.Context(), w)
		return
	}
	format, ok := parseExportFormat(w, r)
	if !ok {
		return
	}
	id, ok := parseHistoryID(w, r)
	if !ok {
		return
	}
	entry, err := deps.Relay.GetHistory(r.Context(), id)
	if err != nil {
		writeRelayError(r.Context(), w, err)
		return
	}

	filename := fmt.Sprintf("history-%d.%s", entry.ID, format)
	rows := entry.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	if format == "json" {
		writeAttachmentJSON(w, filename, rows)
		return
	}

	columns := entry.OrderedColumns()
	writeAttachmentCSV(w, filename, func(out *csv.Writer) error {
		if err := out.Write(columns); err != nil {
			return err
		}
		for _, row := range rows {
			record := make([]string, len(columns))
			for i, column := range columns {
				record[i] = csvValue(row[column])
			}
			if err := out.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

func handleExportHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Relay == nil {
		relayNotConfigured(r.Context(), w)
		return
	}
	format, ok := parseExportFormat(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := deps.Relay.ListHistory(r.Context(), limit)
	if err != nil {
		writeRelayError(r.Context(), w, err)
		return
	}

	filename := "history." + format
	if format == "json" {
		response := make([]historyResponse, 0, len(entries))
		for _, entry := range entries {
			response = append(response, newHistoryResponse(entry))
		}
		writeAttachmentJSON(w, filename, response)
		return
	}

	writeAttachmentCSV(w, filename, func(out *csv.Writer) error {
		if err := out.Write(historyExportColumns); err != nil {
			return err
		}
		for _, entry := range entries {
			if err := out.Write([]string{
				strconv.FormatInt(entry.ID, 10),
				entry.Question,
				entry.Query,
				entry.Status,
				strconv.Itoa(entry.RowCount),
				entry.Dialect,
				entry.Error,
				entry.CreatedAt.UTC().Format(time.RFC3339Nano),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func parseExportFormat(w http.ResponseWriter, r *http.Request) (string, bool) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "":
		return "csv", true
	case "csv", "json":
		return format, true
	default:
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or json", false, map[string]any{"format": format})
		return "", false
	}
}

func writeAttachmentJSON(w http.ResponseWriter, filename string, payload any) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writeJSON(w, http.StatusOK, payload)
}

func writeAttachmentCSV(w http.ResponseWriter, filename string, write func(*csv.Writer) error) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_ = writeCSV(w, write)
}

func writeCSV(w io.Writer, write func(*csv.Writer) error) error {
	out := csv.NewWriter(w)
	if err := write(out); err != nil {
		return err
	}
	out.Flush()
	return out.Error()
}

func csvValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	case json.Number:
		return typed.String()
	case map[string]any, []any:
		payload, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(payload)
	default:
		return fmt.Sprint(typed)
	}
}

