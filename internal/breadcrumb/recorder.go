// Package breadcrumb keeps per-session counters and a bounded diagnostic event log.
package breadcrumb

import (
	"fmt"
	"sync"
	"time"
)

type Crumb struct {
	At      time.Time `json:"at"`
	Action  string    `json:"action"`
	Target  string    `json:"target,omitempty"`
	Outcome string    `json:"outcome"`
}

func (c Crumb) String() string {
	if c.Target == "" {
		return fmt.Sprintf("[%s] %s: %s", c.At.Format("15:04:05"), c.Action, c.Outcome)
	}
	return fmt.Sprintf("[%s] %s %s: %s", c.At.Format("15:04:05"), c.Action, c.Target, c.Outcome)
}

type Stats struct {
	PagesVisited       int `json:"pages_visited"`
	LinksFound         int `json:"links_found"`
	CacheHits          int `json:"cache_hits"`
	PagesCached        int `json:"pages_cached"`
	FetchFailures      int `json:"fetch_failures"`
	LinksSkipped       int `json:"links_skipped"`
	CacheWriteFailures int `json:"cache_write_failures"`
	RateLimitsHit      int `json:"rate_limits_hit"`
}

type Counter int

const (
	PagesVisited Counter = iota
	LinksFound
	CacheHits
	PagesCached
	FetchFailures
	LinksSkipped
	CacheWriteFailures
	RateLimitsHit
)

// Recorder is written by its owning session only; snapshots may be taken from anywhere.
type Recorder struct {
	mu    sync.Mutex
	ring  []Crumb
	next  int
	full  bool
	stats Stats
	now   func() time.Time
}

func New(limit int) *Recorder {
	if limit < 1 {
		limit = 1
	}
	return &Recorder{ring: make([]Crumb, limit), now: time.Now}
}

// WithClock is for tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Add appends an event, evicting the oldest once the ring is full.
func (r *Recorder) Add(action, target, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ring[r.next] = Crumb{At: r.now(), Action: action, Target: target, Outcome: outcome}
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns the retained events, oldest first.
func (r *Recorder) Snapshot() []Crumb {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		return append([]Crumb(nil), r.ring[:r.next]...)
	}
	out := make([]Crumb, 0, len(r.ring))
	out = append(out, r.ring[r.next:]...)
	return append(out, r.ring[:r.next]...)
}

func (r *Recorder) Incr(c Counter, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch c {
	case PagesVisited:
		r.stats.PagesVisited += n
	case LinksFound:
		r.stats.LinksFound += n
	case CacheHits:
		r.stats.CacheHits += n
	case PagesCached:
		r.stats.PagesCached += n
	case FetchFailures:
		r.stats.FetchFailures += n
	case LinksSkipped:
		r.stats.LinksSkipped += n
	case CacheWriteFailures:
		r.stats.CacheWriteFailures += n
	case RateLimitsHit:
		r.stats.RateLimitsHit += n
	}
}

func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
