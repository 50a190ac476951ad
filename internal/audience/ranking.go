package audience

import "sort"

// TopEntities orders counts by count descending, ties by ascending entity id,
// and keeps the first n.
func TopEntities(counts []EntityCount, n int) []EntityCount {
	out := append([]EntityCount(nil), counts...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].EntityID < out[j].EntityID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
