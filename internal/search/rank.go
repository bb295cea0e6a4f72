package search

import "sort"

// sortResults orders results by the requested sort key. Every key ends
// with the same deterministic tie-break chain: importance descending,
// creation time descending, unit ID ascending.
func sortResults(results []*Result, sortBy string) {
	switch sortBy {
	case SortDate:
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i], results[j]
			if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
				return a.Item.CreatedAt.After(b.Item.CreatedAt)
			}
			return a.Unit.ID < b.Unit.ID
		})
	case SortImportance:
		sort.SliceStable(results, func(i, j int) bool {
			return tieBreak(results[i], results[j])
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i], results[j]
			if a.Relevance != b.Relevance {
				return a.Relevance > b.Relevance
			}
			return tieBreak(a, b)
		})
	}
}

// tieBreak resolves equal-relevance ordering: higher unit importance
// first, then newer items, then lexicographic unit ID.
func tieBreak(a, b *Result) bool {
	if a.Unit.Importance != b.Unit.Importance {
		return a.Unit.Importance > b.Unit.Importance
	}
	if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
		return a.Item.CreatedAt.After(b.Item.CreatedAt)
	}
	return a.Unit.ID < b.Unit.ID
}
