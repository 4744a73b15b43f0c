// Package standard drives listings paginated by a "next" control on the page itself.
package standard

import (
	"context"
	"errors"

	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/scraper"
)

const Type = "standard"

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

func (s *Scraper) Open(ctx context.Context, page browser.Page, st *scraper.PaginationState) error {
	return s.env.OpenListing(ctx, page, st, s.env.Site.URL)
}

func (s *Scraper) ExtractLinks(ctx context.Context, page browser.Page, st *scraper.PaginationState) (scraper.Batch, error) {
	links, err := s.env.ReadLinks(page, "", s.env.Site.Selector("container"), nil)
	if err != nil {
		return scraper.Batch{}, err
	}
	return scraper.Batch{Links: links}, nil
}

func (s *Scraper) Advance(ctx context.Context, page browser.Page, st *scraper.PaginationState) (scraper.Step, error) {
	if st.Advanced() {
		return scraper.Continue, nil
	}

	next := s.env.Site.Selector("next_page")
	if next == "" {
		s.env.Log.Debug("no next_page selector, single page listing")
		return scraper.Exhausted, nil
	}

	done, err := scraper.NextDisabled(page, next, s.env.Site.Selector("next_page_disabled"))
	if err != nil {
		return scraper.Continue, err
	}
	if done {
		s.env.Log.Infof("🏁 Reached last page - next button is disabled or gone")
		return scraper.Exhausted, nil
	}

	if err := s.env.Nav.Click(ctx, page, next); err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			return scraper.Exhausted, nil
		}
		return scraper.Continue, err
	}
	st.Page++
	st.PageURL = page.URL()
	return scraper.Continue, nil
}
