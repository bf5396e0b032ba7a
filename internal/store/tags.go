package store

import (
	"sort"
	"strings"
)

func NormalizeTag(in string) string {
	trimmed := strings.TrimSpace(in)
	if trimmed == "" {
		return ""
	}
	collapsed := strings.Join(strings.Fields(trimmed), " ")
	return strings.ToLower(collapsed)
}

// NormalizeTags lowercases, trims, deduplicates and sorts. An input with no
// usable tags yields nil.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{})
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TagText is the space-joined form indexed for full-text search.
func TagText(tags []string) string {
	return strings.Join(NormalizeTags(tags), " ")
}

// MatchesAnyTag reports whether have and want intersect. Both must already be
// normalized.
func MatchesAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
