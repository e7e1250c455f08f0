package archive

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/tigel-agm/NL-SQL/internal/query"
)

const ContentType = "application/vnd.apache.parquet"

// Row is the on-disk layout of an archived result. Each result row is stored as one
// JSON object so archives from different targets share a single schema.
type Row struct {
	RowIndex int64  `parquet:"row_index"`
	RowJSON  string `parquet:"row_json"`
}

func EncodeResult(columns []string, rows [][]any) ([]byte, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("columns are required")
	}

	encoded := make([]Row, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(columns))
		}
		record := make(map[string]any, len(columns))
		for j, column := range columns {
			record[column] = query.NormalizeValue(row[j])
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		encoded = append(encoded, Row{RowIndex: int64(i), RowJSON: string(payload)})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Row](buf)
	if _, err := writer.Write(encoded); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
