package metrics

import "sort"

// StatusBucket is the failure count for one response status code.
type StatusBucket struct {
	Code  int
	Count int
}

// FlattenStatusCodes converts a code->count map into rows sorted by
// descending count, then by code for stability.
func FlattenStatusCodes(codes map[int]int) []StatusBucket {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0, len(codes))
	for code, count := range codes {
		rows = append(rows, StatusBucket{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
