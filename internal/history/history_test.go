package history

import (
	"slices"
	"testing"
)

func TestNormalizeLimit(t *testing.T) {
	tests := map[int]int{
		-1:   DefaultListLimit,
		0:    DefaultListLimit,
		25:   25,
		1000: 1000,
		5000: MaxListLimit,
	}
	for input, want := range tests {
		if got := NormalizeLimit(input); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", input, got, want)
		}
	}
}

func TestOrderedColumnsPrefersStoredOrder(t *testing.T) {
	rows := []map[string]any{{"total": 3, "country": "UK"}, {"country": "FI", "note": "x"}}

	stored := Entry{Columns: []string{"total", "country", "note"}, Rows: rows}
	if got := stored.OrderedColumns(); !slices.Equal(got, []string{"total", "country", "note"}) {
		t.Fatalf("OrderedColumns() = %v", got)
	}

	legacy := Entry{Rows: rows}
	if got := legacy.OrderedColumns(); !slices.Equal(got, []string{"country", "note", "total"}) {
		t.Fatalf("OrderedColumns() without stored columns = %v", got)
	}

	if got := (Entry{}).OrderedColumns(); len(got) != 0 {
		t.Fatalf("OrderedColumns() of empty entry = %v", got)
	}
}
