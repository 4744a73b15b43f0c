// Package customnav drives boards with their own next-page links and no reliable end
// marker. Every job link is checked against the session's visited set; a page offering
// nothing new, or a next link back to a page already read, ends the listing.
package customnav

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/extract"
	"go-jobharvest/internal/scraper"
)

const Type = "custom_navigation"

type Scraper struct {
	env scraper.Env
	//pages holds listing URLs already loaded
	pages mapset.Set[string]
}

func New(env scraper.Env) (scraper.Strategy, error) {
	if err := env.RequireSelectors("job_link"); err != nil {
		return nil, err
	}
	return &Scraper{env: env, pages: mapset.NewThreadUnsafeSet[string]()}, nil
}

func (s *Scraper) Type() string { return Type }

func (s *Scraper) Open(ctx context.Context, page browser.Page, st *scraper.PaginationState) error {
	if err := s.env.OpenListing(ctx, page, st, s.env.Site.URL); err != nil {
		return err
	}
	s.pages.Add(page.URL())
	return nil
}

func (s *Scraper) ExtractLinks(ctx context.Context, page browser.Page, st *scraper.PaginationState) (scraper.Batch, error) {
	found, err := s.env.ReadLinks(page, "", s.env.Site.Selector("container"), nil)
	if err != nil {
		return scraper.Batch{}, err
	}

	var batch scraper.Batch
	for _, link := range found {
		if st.Visited.Contains(link.URL) {
			continue
		}
		st.Visited.Add(link.URL)
		batch.Links = append(batch.Links, link)
	}

	if len(found) > 0 && len(batch.Links) == 0 {
		s.env.Log.Infof("🏁 Page %d only repeats jobs already seen", st.Page)
		st.Terminal = true
	}
	s.env.Log.Debugf("Extracted %d job links (total unique: %d)", len(batch.Links), st.Visited.Cardinality())
	return batch, nil
}

// nextURL resolves the next_page href, prefixing base_url for site-relative links.
func (s *Scraper) nextURL(page browser.Page) (string, error) {
	html, err := page.Content()
	if err != nil {
		return "", err
	}
	hrefs, err := extract.Attrs(html, s.env.Site.Selector("next_page"), "href")
	if err != nil || len(hrefs) == 0 {
		return "", err
	}
	href := strings.TrimSpace(hrefs[0])
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", nil
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href, nil
	}
	if base := s.env.Site.Settings.BaseURL; base != "" {
		if strings.HasPrefix(href, "?") {
			return strings.TrimRight(base, "/") + href, nil
		}
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/"), nil
	}
	current, err := url.Parse(page.URL())
	if err != nil {
		return href, nil
	}
	return extract.Resolve(current, href), nil
}

func (s *Scraper) Advance(ctx context.Context, page browser.Page, st *scraper.PaginationState) (scraper.Step, error) {
	if st.Advanced() {
		return scraper.Continue, nil
	}
	if st.Terminal || s.env.Site.Selector("next_page") == "" {
		return scraper.Exhausted, nil
	}

	next, err := s.nextURL(page)
	if err != nil {
		return scraper.Continue, fmt.Errorf("failed to read next page link: %w", err)
	}
	if next == "" {
		s.env.Log.Info("🏁 No more next button found")
		return scraper.Exhausted, nil
	}
	if s.pages.Contains(next) {
		s.env.Log.Infof("🏁 Next page %s was already visited", next)
		return scraper.Exhausted, nil
	}

	if err := s.env.PauseBetweenPages(ctx); err != nil {
		return scraper.Continue, err
	}
	if err := s.env.Nav.Goto(ctx, page, next); err != nil {
		return scraper.Continue, err
	}
	s.pages.Add(next)
	st.Page++
	st.PageURL = page.URL()
	return scraper.Continue, nil
}
