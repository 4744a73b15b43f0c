// Define the pagination contract shared by every site type
// Keep per-session cursor state in one place

package scraper

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/config"
)

// JobLink is one discovered posting.
type JobLink struct {
	URL  string `json:"url"`
	Text string `json:"text,omitempty"`
	//Content is set when the posting was read inline instead of fetched separately
	Content string `json:"-"`
	Cached  bool   `json:"cached"`
}

// PaginationState is the cursor of one session. It is never shared.
type PaginationState struct {
	//Page counts listing pages reached so far, starting at 1 once Open succeeds
	Page int
	//ReadPage is the last Page whose links were extracted
	ReadPage int
	PageURL  string
	//Visited holds identifiers already enumerated, for strategies that dedup by hand
	Visited   mapset.Set[string]
	LastCount int
	Terminal  bool
}

func NewState() *PaginationState {
	return &PaginationState{Visited: mapset.NewThreadUnsafeSet[string]()}
}

// Advanced reports that the cursor moved past the last page read. Advance implementations
// return Continue without moving again in that case, so a retried Advance never skips a page.
func (s *PaginationState) Advanced() bool {
	return s.Page != s.ReadPage
}

// MarkRead records that the current page's links were extracted.
func (s *PaginationState) MarkRead(count int) {
	s.ReadPage = s.Page
	s.LastCount = count
}

type Step int

const (
	Continue Step = iota
	Exhausted
)

func (s Step) String() string {
	if s == Exhausted {
		return "exhausted"
	}
	return "continue"
}

// Skip is a listing item the strategy gave up on.
type Skip struct {
	Target string
	Err    error
}

type Batch struct {
	Links   []JobLink
	Skipped []Skip
}

// Strategy drives one navigation pattern. Open loads the first listing page and dismisses
// consent once. ExtractLinks must tolerate an empty page. Advance moves to the next page or
// reports Exhausted.
type Strategy interface {
	Type() string
	Open(ctx context.Context, page browser.Page, st *PaginationState) error
	ExtractLinks(ctx context.Context, page browser.Page, st *PaginationState) (Batch, error)
	Advance(ctx context.Context, page browser.Page, st *PaginationState) (Step, error)
}

// Env is what a strategy constructor receives.
type Env struct {
	Site config.SiteConfig
	Nav  *Navigator
	Log  logrus.FieldLogger
	//Pause is the randomized anti-pattern delay between page fetches
	Pause func(ctx context.Context, min, max time.Duration) error
	//Known reports whether a URL is already cached, so inline strategies can skip clicks
	Known func(ctx context.Context, url string) bool
}
