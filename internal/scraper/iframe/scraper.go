// Package iframe drives listings rendered inside an embedded frame, such as ATS widgets.
// Extraction and pagination both run in the frame's document.
package iframe

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/scraper"
)

const Type = "iframe"

type Scraper struct {
	env    scraper.Env
	filter *regexp.Regexp
}

func New(env scraper.Env) (scraper.Strategy, error) {
	if err := env.RequireSelectors("iframe", "job_link"); err != nil {
		return nil, err
	}
	filter, err := env.LinkFilter()
	if err != nil {
		return nil, err
	}
	return &Scraper{env: env, filter: filter}, nil
}

func (s *Scraper) Type() string { return Type }

func (s *Scraper) Open(ctx context.Context, page browser.Page, st *scraper.PaginationState) error {
	if err := s.env.OpenListing(ctx, page, st, s.env.Site.URL); err != nil {
		return err
	}
	_, err := s.frame(ctx, page)
	return err
}

// frame re-resolves the iframe on every call; a navigation inside it may replace the element.
func (s *Scraper) frame(ctx context.Context, page browser.Page) (browser.Page, error) {
	sel := s.env.Site.Selector("iframe")
	var frame browser.Page
	err := s.env.Nav.Act(ctx, "frame "+sel, func(context.Context) error {
		f, err := page.Frame(sel)
		if errors.Is(err, browser.ErrNotFound) {
			//not attached yet is worth another attempt
			return fmt.Errorf("iframe %s not attached", sel)
		}
		if err != nil {
			return err
		}
		frame = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frame, nil
}

func (s *Scraper) ExtractLinks(ctx context.Context, page browser.Page, st *scraper.PaginationState) (scraper.Batch, error) {
	frame, err := s.frame(ctx, page)
	if err != nil {
		return scraper.Batch{}, err
	}
	baseURL := frame.URL()
	if baseURL == "" {
		baseURL = page.URL()
	}
	links, err := s.env.ReadLinks(frame, baseURL, "", s.filter)
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
		return scraper.Exhausted, nil
	}

	frame, err := s.frame(ctx, page)
	if err != nil {
		return scraper.Continue, err
	}
	done, err := scraper.NextDisabled(frame, next, s.env.Site.Selector("next_page_disabled_check"))
	if err != nil {
		return scraper.Continue, err
	}
	if done {
		s.env.Log.Infof("🏁 Reached last page - next button is disabled inside the iframe")
		return scraper.Exhausted, nil
	}

	if err := s.env.Nav.Click(ctx, frame, next); err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			return scraper.Exhausted, nil
		}
		return scraper.Continue, err
	}
	st.Page++
	st.PageURL = frame.URL()
	return scraper.Continue, nil
}
