// Package urlpaging drives listings addressed by a page number in the URL.
// A page that yields no links is the end of the listing.
package urlpaging

import (
	"context"
	"strconv"
	"strings"

	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/scraper"
)

const Type = "url_pagination"

type Scraper struct {
	env scraper.Env
}

func New(env scraper.Env) (scraper.Strategy, error) {
	if err := env.RequireSelectors("job_link"); err != nil {
		return nil, err
	}
	return &Scraper{env: env}, nil
}

func (s *Scraper) Type() string { return Type }

// PageURL fills url_pattern for the n-th listing page (n counted from start_page).
func (s *Scraper) PageURL(n int) string {
	base := s.env.Site.Settings.BaseURL
	if base == "" {
		base = s.env.Site.URL
	}
	r := strings.NewReplacer("{base_url}", base, "{page_num}", strconv.Itoa(n))
	return r.Replace(s.env.Site.Settings.URLPattern)
}

func (s *Scraper) pageNum(page int) int {
	return s.env.Site.Settings.StartPage + page - 1
}

func (s *Scraper) Open(ctx context.Context, page browser.Page, st *scraper.PaginationState) error {
	return s.env.OpenListing(ctx, page, st, s.PageURL(s.pageNum(1)))
}

func (s *Scraper) ExtractLinks(ctx context.Context, page browser.Page, st *scraper.PaginationState) (scraper.Batch, error) {
	links, err := s.env.ReadLinks(page, "", s.env.Site.Selector("job_table"), nil)
	if err != nil {
		return scraper.Batch{}, err
	}
	return scraper.Batch{Links: links}, nil
}

func (s *Scraper) Advance(ctx context.Context, page browser.Page, st *scraper.PaginationState) (scraper.Step, error) {
	if st.Advanced() {
		return scraper.Continue, nil
	}
	if st.LastCount == 0 {
		s.env.Log.Infof("🏁 Page %d returned no jobs, stopping", s.pageNum(st.Page))
		return scraper.Exhausted, nil
	}

	if err := s.env.PauseBetweenPages(ctx); err != nil {
		return scraper.Continue, err
	}

	next := s.PageURL(s.pageNum(st.Page + 1))
	if err := s.env.Nav.Goto(ctx, page, next); err != nil {
		return scraper.Continue, err
	}
	st.Page++
	st.PageURL = page.URL()
	return scraper.Continue, nil
}
