package search

import (
	"sort"
	"time"
)

// computeFacets aggregates counts over the filtered result set. Counts
// are per result hit, so the four date buckets always sum to the number
// of results.
func computeFacets(results []*Result, now time.Time, tagLimit int) *Facets {
	fileTypes := make(map[string]int)
	unitKinds := make(map[string]int)
	tags := make(map[string]int)
	var dates DateBuckets

	for _, r := range results {
		fileTypes[r.Item.FileType]++
		unitKinds[r.Unit.Kind]++
		for _, t := range r.Item.Tags {
			tags[t]++
		}

		age := now.Sub(r.Item.CreatedAt)
		switch {
		case age < 24*time.Hour:
			dates.LastDay++
		case age < 7*24*time.Hour:
			dates.LastWeek++
		case age < 30*24*time.Hour:
			dates.LastMonth++
		default:
			dates.Older++
		}
	}

	f := &Facets{
		FileTypes: sortedCounts(fileTypes, 0),
		UnitKinds: sortedCounts(unitKinds, 0),
		Tags:      sortedCounts(tags, tagLimit),
		Dates:     dates,
	}
	return f
}

// sortedCounts orders by count descending, then value ascending, and
// optionally truncates to the top N entries.
func sortedCounts(counts map[string]int, limit int) []FacetCount {
	out := make([]FacetCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, FacetCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
