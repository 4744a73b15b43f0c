package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/config"
	"go-jobharvest/internal/extract"
)

// Helpers shared by the strategy packages.

// OpenListing loads rawURL as the first listing page and dismisses consent once.
func (e Env) OpenListing(ctx context.Context, page browser.Page, st *PaginationState, rawURL string) error {
	if err := e.Nav.Goto(ctx, page, rawURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", rawURL, err)
	}
	st.Page = 1
	st.PageURL = page.URL()
	e.DismissConsent(ctx, page)
	return nil
}

// DismissConsent is a no-op when the site turned handle_cookies off.
func (e Env) DismissConsent(ctx context.Context, page browser.Page) bool {
	if !config.Flag(e.Site.Settings.HandleCookies, true) {
		return false
	}
	buttons := browser.DefaultConsentButtons
	if custom := e.Site.Selector("cookie_button"); custom != "" {
		buttons = append([]string{custom}, buttons...)
	}
	return browser.DismissConsent(ctx, page, e.Site.Selector("cookie_modal"), buttons, e.Log)
}

// LinkFilter compiles the optional job_link_filter selector.
func (e Env) LinkFilter() (*regexp.Regexp, error) {
	pattern := e.Site.Selector("job_link_filter")
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid job_link_filter %q: %w", pattern, err)
	}
	return re, nil
}

// RequireSelectors fails construction when a role the strategy cannot work without is missing.
func (e Env) RequireSelectors(roles ...string) error {
	var missing []string
	for _, role := range roles {
		if e.Site.Selector(role) == "" {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("site %s (%s) is missing selectors: %s", e.Site.Name, e.Site.Type, strings.Join(missing, ", "))
	}
	return nil
}

// ReadLinks extracts job_link anchors from page, scoped to scope when set.
func (e Env) ReadLinks(page browser.Page, baseURL, scope string, filter *regexp.Regexp) ([]JobLink, error) {
	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	if baseURL == "" {
		baseURL = page.URL()
	}
	found, err := extract.Links(html, baseURL, e.Site.Selector("job_link"), scope, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}
	links := make([]JobLink, 0, len(found))
	for _, l := range found {
		links = append(links, JobLink{URL: l.URL, Text: l.Text})
	}
	return links, nil
}

// PauseBetweenPages applies the site's randomized wait window.
func (e Env) PauseBetweenPages(ctx context.Context) error {
	if e.Pause == nil {
		return nil
	}
	return e.Pause(ctx, e.Site.Settings.WaitMin.Duration, e.Site.Settings.WaitMax.Duration)
}

// NextDisabled reports whether the listing has reached its last page: the explicit
// disabled selector matches, or the next control is gone or carries a disabled marker.
func NextDisabled(page browser.Page, next, disabled string) (bool, error) {
	if disabled != "" {
		found, err := page.Exists(disabled)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	found, err := page.Exists(next)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	if strings.Contains(next, ",") {
		return false, nil
	}
	marked := fmt.Sprintf(`%[1]s[disabled], %[1]s[aria-disabled="true"], %[1]s.disabled`, next)
	return page.Exists(marked)
}
