package discovery

import (
	"sort"
	"time"
)

// Board is one candidate job board, the best observation seen for its domain.
type Board struct {
	URL          string    `json:"url"`
	Domain       string    `json:"domain"`
	Title        string    `json:"title"`
	Snippet      string    `json:"snippet"`
	Score        float64   `json:"score"`
	Indicators   []string  `json:"indicators"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Boards keeps one record per domain.
type Boards map[string]Board

// Observe records b if it is the first for its domain or scores strictly higher than the
// kept one. It reports (added, replaced).
func (bs Boards) Observe(b Board) (bool, bool) {
	existing, ok := bs[b.Domain]
	if !ok {
		bs[b.Domain] = b
		return true, false
	}
	if b.Score > existing.Score {
		bs[b.Domain] = b
		return false, true
	}
	return false, false
}

// Sorted returns the boards by score, highest first; ties by domain.
func (bs Boards) Sorted() []Board {
	list := make([]Board, 0, len(bs))
	for _, b := range bs {
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].Domain < list[j].Domain
	})
	return list
}
