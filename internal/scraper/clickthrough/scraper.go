// Package clickthrough handles boards where postings open inline when a listing item is
// clicked (ADP style). Each item is clicked, read, and navigated back from; content is
// returned with the link so no second fetch is needed.
package clickthrough

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/cache"
	"go-jobharvest/internal/config"
	"go-jobharvest/internal/extract"
	"go-jobharvest/internal/scraper"
)

const Type = "custom_click"

type Scraper struct {
	env scraper.Env
}

func New(env scraper.Env) (scraper.Strategy, error) {
	if err := env.RequireSelectors("job_button"); err != nil {
		return nil, err
	}
	return &Scraper{env: env}, nil
}

func (s *Scraper) Type() string { return Type }

func (s *Scraper) Open(ctx context.Context, page browser.Page, st *scraper.PaginationState) error {
	if err := s.env.OpenListing(ctx, page, st, s.env.Site.URL); err != nil {
		return err
	}
	return s.viewAll(ctx, page)
}

// viewAll expands the listing when the site has a "view all" control; its absence is fine.
func (s *Scraper) viewAll(ctx context.Context, page browser.Page) error {
	sel := s.env.Site.Selector("view_all_button")
	if sel == "" {
		return nil
	}
	found, err := page.Exists(sel)
	if err != nil || !found {
		s.env.Log.Debugf("no view-all button %s", sel)
		return nil
	}
	s.env.Log.Info("Found 'View all' button, clicking...")
	return s.env.Nav.Click(ctx, page, sel)
}

// itemIDs lists the addressable listing items, preferring data-id over id.
func (s *Scraper) itemIDs(html string) ([]string, string, error) {
	sel := s.env.Site.Selector("job_button")
	for _, attr := range []string{"data-id", "id"} {
		ids, err := extract.Attrs(html, sel, attr)
		if err != nil {
			return nil, "", err
		}
		if len(ids) > 0 {
			return ids, attr, nil
		}
	}
	return nil, "", nil
}

// JobURL builds the stable identifier a posting is cached under.
func (s *Scraper) JobURL(itemID string) string {
	jobID := itemID
	if _, after, ok := strings.Cut(itemID, "_"); ok && after != "" {
		jobID = after
	}
	base := s.env.Site.Settings.BaseURL
	if base == "" {
		base = s.env.Site.URL
	}
	pattern := s.env.Site.Settings.JobURLPattern
	if pattern == "" {
		pattern = "{base_url}?jobId={id}"
		if strings.Contains(base, "?") {
			pattern = "{base_url}&jobId={id}"
		}
	}
	return strings.NewReplacer("{base_url}", base, "{id}", jobID).Replace(pattern)
}

func (s *Scraper) ExtractLinks(ctx context.Context, page browser.Page, st *scraper.PaginationState) (scraper.Batch, error) {
	html, err := page.Content()
	if err != nil {
		return scraper.Batch{}, fmt.Errorf("failed to read listing: %w", err)
	}
	ids, attr, err := s.itemIDs(html)
	if err != nil {
		return scraper.Batch{}, err
	}

	var batch scraper.Batch
	if len(ids) == 0 {
		if found, _ := page.Exists(s.env.Site.Selector("job_button")); found {
			batch.Skipped = append(batch.Skipped, scraper.Skip{
				Target: s.env.Site.Selector("job_button"),
				Err:    errors.New("listing items carry no data-id or id attribute"),
			})
		}
		return batch, nil
	}
	s.env.Log.Infof("Found %d job buttons", len(ids))

	for _, id := range ids {
		if st.Visited.Contains(id) {
			continue
		}
		st.Visited.Add(id)
		if err := ctx.Err(); err != nil {
			return batch, err
		}

		jobURL := s.JobURL(id)
		if s.env.Known != nil && s.env.Known(ctx, jobURL) {
			s.env.Log.Debugf("Skipping already cached: %s", jobURL)
			batch.Links = append(batch.Links, scraper.JobLink{URL: jobURL, Cached: true})
			continue
		}

		item := fmt.Sprintf(`%s[%s="%s"]`, s.env.Site.Selector("job_button"), attr, id)
		if err := s.env.Nav.Click(ctx, page, item); err != nil {
			//still on the listing, move on to the next item
			batch.Skipped = append(batch.Skipped, scraper.Skip{Target: jobURL, Err: err})
			continue
		}

		link, err := s.read(page, jobURL)
		if err != nil {
			batch.Skipped = append(batch.Skipped, scraper.Skip{Target: jobURL, Err: err})
		} else {
			batch.Links = append(batch.Links, link)
		}

		if err := s.back(ctx, page); err != nil {
			//without the listing there is nothing left to click
			return batch, fmt.Errorf("failed to return to listing: %w", err)
		}
		if d := s.env.Site.Settings.SleepBetweenJobs.Duration; d > 0 && s.env.Pause != nil {
			if err := s.env.Pause(ctx, d, d); err != nil {
				return batch, err
			}
		}
	}
	return batch, nil
}

// read extracts the inline details of the item just opened.
func (s *Scraper) read(page browser.Page, jobURL string) (scraper.JobLink, error) {
	html, err := page.Content()
	if err != nil {
		return scraper.JobLink{}, err
	}

	var text string
	if container := s.env.Site.Selector("container"); container != "" {
		text = extract.ScopedText(html, container)
	}
	if strings.TrimSpace(text) == "" {
		text = extract.MainText(html)
	}
	if strings.TrimSpace(text) == "" {
		return scraper.JobLink{}, fmt.Errorf("%s: %w", jobURL, cache.ErrEmptyContent)
	}
	title, _ := page.Title()
	return scraper.JobLink{URL: jobURL, Text: title, Content: jobURL + "\n\n" + text}, nil
}

func (s *Scraper) back(ctx context.Context, page browser.Page) error {
	settings := s.env.Site.Settings
	if !config.Flag(settings.ClickBackAfterJob, true) {
		return nil
	}
	sel := s.env.Site.Selector("back_button")
	found := false
	if sel != "" {
		found, _ = page.Exists(sel)
	}
	var err error
	if found {
		err = s.env.Nav.Click(ctx, page, sel)
	} else {
		err = s.env.Nav.Act(ctx, "go back", page.GoBack)
	}
	if err != nil {
		return err
	}
	if config.Flag(settings.ClickViewAllAfterBack, true) {
		return s.viewAll(ctx, page)
	}
	return nil
}

// Advance follows an optional next_page control; most click-through boards are one page.
func (s *Scraper) Advance(ctx context.Context, page browser.Page, st *scraper.PaginationState) (scraper.Step, error) {
	if st.Advanced() {
		return scraper.Continue, nil
	}
	next := s.env.Site.Selector("next_page")
	if next == "" {
		return scraper.Exhausted, nil
	}
	done, err := scraper.NextDisabled(page, next, s.env.Site.Selector("next_page_disabled"))
	if err != nil {
		return scraper.Continue, err
	}
	if done {
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
