package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

const resultsRoot = "results"

var resultIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// BuildResultPath returns the object key of an archived result, partitioned by UTC day:
// results/date=2024-05-01/result-<id>.parquet.
func BuildResultPath(at time.Time, resultID string) (string, error) {
	if !resultIDPattern.MatchString(resultID) {
		return "", fmt.Errorf("invalid result id: %q", resultID)
	}
	ts := at.UTC()
	return path.Join(
		resultsRoot,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("result-%s.parquet", resultID),
	), nil
}
