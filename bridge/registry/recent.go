package registry

import "sync"

// Pair is a chain and denom the user picked
type Pair struct {
	ChainID string `json:"chain_id"`
	Denom   string `json:"denom"`
}

// RecentPairs keeps the most recently used pairs, newest first.
type RecentPairs struct {
	mu    sync.Mutex
	limit int
	pairs []Pair
}

func NewRecentPairs(limit int) *RecentPairs {
	if limit <= 0 {
		limit = 5
	}
	return &RecentPairs{limit: limit}
}

// Add moves p to the front, dropping the oldest pair past the limit
func (r *RecentPairs) Add(p Pair) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]Pair, 0, r.limit)
	next = append(next, p)
	for _, existing := range r.pairs {
		if existing == p {
			continue
		}
		if len(next) == r.limit {
			break
		}
		next = append(next, existing)
	}
	r.pairs = next
}

// List returns a copy of the pairs
func (r *RecentPairs) List() []Pair {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Pair(nil), r.pairs...)
}
