package iframe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jobharvest/internal/browser/browsertest"
	"go-jobharvest/internal/retry"
	"go-jobharvest/internal/scraper"
	"go-jobharvest/internal/scraper/scrapertest"
)

const (
	outerURL = "https://careers.example.com/jobs"
	frameURL = "https://recruiting.example-ats.com/board"
)

var selectors = map[string]string{
	"iframe":                   "iframe#jobs",
	"job_link":                 "a.opportunity-link",
	"next_page":                "a.next",
	"next_page_disabled_check": "li.disabled a.next",
	"job_link_filter":          "/opportunity/",
}

func framePage(i int) string {
	if i == 1 {
		return frameURL
	}
	return fmt.Sprintf("%s?pg=%d", frameURL, i)
}

// setup returns the outer page with an iframe whose document pages through n listings.
func setup(n int) (*browsertest.Page, *browsertest.Page) {
	inner := make(map[string]string)
	for i := 1; i <= n; i++ {
		pager := fmt.Sprintf(`<li><a class="next" href="/board?pg=%d">›</a></li>`, i+1)
		if i == n {
			pager = `<li class="disabled"><a class="next" href="#">›</a></li>`
		}
		inner[framePage(i)] = fmt.Sprintf(`<html><body>
<div class="opportunities">
  <a class="opportunity-link" href="/opportunity/%d01">Nurse</a>
  <a class="opportunity-link" href="/opportunity/%d02">Clerk</a>
  <a class="opportunity-link" href="/help">How to apply</a>
</div>
<ul class="pager">%s</ul>
</body></html>`, i, i, pager)
	}
	frame := browsertest.New(inner)
	frame.Load(frameURL)

	outer := browsertest.New(map[string]string{
		outerURL: `<html><head><title>Careers</title></head><body><iframe id="jobs" src="` + frameURL + `"></iframe></body></html>`,
	})
	outer.Frames["iframe#jobs"] = frame
	return outer, frame
}

func newScraper(t *testing.T) scraper.Strategy {
	t.Helper()
	s, err := New(scrapertest.Env(scrapertest.Site("ultipro", Type, outerURL, selectors), nil))
	require.NoError(t, err)
	return s
}

func TestStopsWhenNextDisabledInsideFrame(t *testing.T) {
	for _, n := range []int{1, 3, 6} {
		t.Run(fmt.Sprintf("%d pages", n), func(t *testing.T) {
			outer, frame := setup(n)
			links, pages, err := scrapertest.Drive(context.Background(), newScraper(t), outer)
			require.NoError(t, err)

			assert.Equal(t, n, pages)
			assert.Equal(t, n-1, frame.ClickCount("a.next"))
			assert.Zero(t, outer.ClickCount("a.next"), "clicks must stay inside the frame")
			assert.Len(t, links, 2*n)
			assert.Equal(t, "https://recruiting.example-ats.com/opportunity/101", links[0].URL)
			assert.Equal(t, []string{outerURL}, outer.Gotos)
		})
	}
}

func TestLinkFilterDropsNonPostings(t *testing.T) {
	outer, _ := setup(1)
	links, _, err := scrapertest.Drive(context.Background(), newScraper(t), outer)
	require.NoError(t, err)
	for _, l := range links {
		assert.Contains(t, l.URL, "/opportunity/")
	}
}

func TestMissingFrameExhaustsRetries(t *testing.T) {
	outer, _ := setup(1)
	delete(outer.Frames, "iframe#jobs")

	err := newScraper(t).Open(context.Background(), outer, scraper.NewState())
	require.Error(t, err)
	assert.True(t, errors.Is(err, retry.ErrNavigationExhausted))
}

func TestInvalidLinkFilter(t *testing.T) {
	sel := map[string]string{"iframe": "iframe", "job_link": "a", "job_link_filter": "("}
	_, err := New(scrapertest.Env(scrapertest.Site("bad", Type, outerURL, sel), nil))
	require.Error(t, err)
}
