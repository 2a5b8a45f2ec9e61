package intent

import (
	"sort"
	"strings"
)

// Tier orders match quality, best first
type Tier int

const (
	TierExact Tier = iota
	TierPrefix
	TierWord
	TierSubstring
	TierNone
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierPrefix:
		return "prefix"
	case TierWord:
		return "word"
	case TierSubstring:
		return "substring"
	}
	return "none"
}

// Match is one ranked candidate
type Match[T any] struct {
	Item T
	Tier Tier
	// Key is the candidate name that matched; Pos is where the query starts in it
	Key string
	Pos int
}

func isBoundary(b byte) bool {
	return b == ' ' || b == '\t' || b == '_' || b == '-'
}

// score compares case insensitively. A word boundary match starts right after
// whitespace, '_' or '-'.
func score(query, key string) (Tier, int) {
	q := strings.ToLower(strings.TrimSpace(query))
	k := strings.ToLower(key)
	if q == "" || k == "" {
		return TierNone, 0
	}
	if q == k {
		return TierExact, 0
	}
	if strings.HasPrefix(k, q) {
		return TierPrefix, 0
	}

	first := -1
	for from := 0; from < len(k); {
		i := strings.Index(k[from:], q)
		if i < 0 {
			break
		}
		i += from
		if first < 0 {
			first = i
		}
		if i > 0 && isBoundary(k[i-1]) {
			return TierWord, i
		}
		from = i + 1
	}
	if first >= 0 {
		return TierSubstring, first
	}
	return TierNone, 0
}

// Rank scores every item by its best key and returns the matching ones, best
// first: tier, then earliest position, then shortest key, then key order.
func Rank[T any](query string, items []T, keys func(T) []string) []Match[T] {
	out := make([]Match[T], 0)
	for _, item := range items {
		best := Match[T]{Item: item, Tier: TierNone}
		for _, key := range keys(item) {
			tier, pos := score(query, key)
			if tier == TierNone {
				continue
			}
			candidate := Match[T]{Item: item, Tier: tier, Key: key, Pos: pos}
			if best.Tier == TierNone || less(candidate, best) {
				best = candidate
			}
		}
		if best.Tier != TierNone {
			out = append(out, best)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func less[T any](a, b Match[T]) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if a.Pos != b.Pos {
		return a.Pos < b.Pos
	}
	if len(a.Key) != len(b.Key) {
		return len(a.Key) < len(b.Key)
	}
	return strings.ToLower(a.Key) < strings.ToLower(b.Key)
}
