package processor

// Keyed is anything identified by a URL-like key.
type Keyed interface {
	Key() string
}

// Dedupe collapses items sharing a key. The last occurrence of a key wins,
// and the result keeps the position where that key was first seen.
// Keys are compared by exact string equality.
func Dedupe[T Keyed](items []T) []T {
	out := make([]T, 0, len(items))
	index := make(map[string]int, len(items))

	for _, it := range items {
		k := it.Key()
		if i, ok := index[k]; ok {
			out[i] = it
			continue
		}
		index[k] = len(out)
		out = append(out, it)
	}

	return out
}

// truncateRunes cuts s to at most limit runes, appending an ellipsis when cut.
func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
