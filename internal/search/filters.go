package search

import (
	"github.com/UncleTupelo/pulse/internal/store"
)

// resultFilter holds the pre-computed filter sets for one query.
type resultFilter struct {
	unitKinds    map[string]struct{}
	fileTypes    map[string]struct{}
	tags         []string
	matchAllTags bool
	opts         Options
}

func newResultFilter(opts Options) *resultFilter {
	return &resultFilter{
		unitKinds:    toSet(opts.UnitKinds),
		fileTypes:    toSet(opts.FileTypes),
		tags:         opts.Tags,
		matchAllTags: opts.MatchAllTags,
		opts:         opts,
	}
}

// matches reports whether a candidate passes every configured filter.
// Relevance thresholds are checked separately because metadata-only
// scans carry no score.
func (f *resultFilter) matches(item *store.SourceItem, unit *store.ContentUnit) bool {
	if len(f.unitKinds) > 0 {
		if _, ok := f.unitKinds[unit.Kind]; !ok {
			return false
		}
	}
	if len(f.fileTypes) > 0 {
		if _, ok := f.fileTypes[item.FileType]; !ok {
			return false
		}
	}
	if len(f.tags) > 0 && !matchTags(item.Tags, f.tags, f.matchAllTags) {
		return false
	}
	if !f.opts.CreatedFrom.IsZero() && item.CreatedAt.Before(f.opts.CreatedFrom) {
		return false
	}
	if !f.opts.CreatedTo.IsZero() && item.CreatedAt.After(f.opts.CreatedTo) {
		return false
	}
	return true
}

func matchTags(itemTags, wanted []string, matchAll bool) bool {
	have := toSet(itemTags)
	if matchAll {
		for _, t := range wanted {
			if _, ok := have[t]; !ok {
				return false
			}
		}
		return true
	}
	for _, t := range wanted {
		if _, ok := have[t]; ok {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
