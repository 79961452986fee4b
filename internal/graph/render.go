// internal/graph/render.go
package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EmptyResult is what the model sees when a query matched nothing.
const EmptyResult = "Query returned no results."

// Render serializes rows for the model: one line per row, columns sorted
// by name and rendered as "key: value" joined by ", ". Null columns are
// omitted from their row. The output is deterministic for a given input.
func Render(rows []Row) string {
	if len(rows) == 0 {
		return EmptyResult
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			if row[k] == nil {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		cols := make([]string, 0, len(keys))
		for _, k := range keys {
			cols = append(cols, k+": "+formatScalar(row[k]))
		}
		lines = append(lines, strings.Join(cols, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		// JSON numbers decode as float64; render 4.0 as "4".
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		// Non-scalar values shouldn't appear in rows; render something
		// readable rather than dropping data.
		return fmt.Sprintf("%v", val)
	}
}
