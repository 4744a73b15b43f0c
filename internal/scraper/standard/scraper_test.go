package standard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jobharvest/internal/browser/browsertest"
	"go-jobharvest/internal/scraper"
	"go-jobharvest/internal/scraper/scrapertest"
)

const base = "https://jobs.example.com/jobs"

func pageURL(i int) string {
	if i == 1 {
		return base
	}
	return fmt.Sprintf("%s?p=%d", base, i)
}

// feed builds n listing pages with two postings each; every page but the last links to the next.
func feed(n int, lastNext string) map[string]string {
	docs := make(map[string]string)
	for i := 1; i <= n; i++ {
		next := fmt.Sprintf(`<a class="next" href="/jobs?p=%d">Next</a>`, i+1)
		if i == n {
			next = lastNext
		}
		docs[pageURL(i)] = fmt.Sprintf(`<html><head><title>Jobs page %d</title></head><body>
<ul class="results">
  <li><a class="job" href="/job/%d-a">Analyst %d</a></li>
  <li><a class="job" href="/job/%d-b">Buyer %d</a></li>
</ul>
%s
</body></html>`, i, i, i, i, i, next)
	}
	return docs
}

func newScraper(t *testing.T, selectors map[string]string) scraper.Strategy {
	t.Helper()
	site := scrapertest.Site("acme", Type, base, selectors)
	s, err := New(scrapertest.Env(site, nil))
	require.NoError(t, err)
	return s
}

func TestStopsAtTerminalPage(t *testing.T) {
	tests := []struct {
		name     string
		pages    int
		lastNext string
	}{
		{"single page", 1, ""},
		{"three pages, next gone", 3, ""},
		{"five pages, next disabled attribute", 5, `<a class="next" href="/jobs?p=6" disabled>Next</a>`},
		{"four pages, aria-disabled", 4, `<a class="next" aria-disabled="true" href="#">Next</a>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.New(feed(tt.pages, tt.lastNext))
			s := newScraper(t, map[string]string{"job_link": "a.job", "next_page": "a.next"})

			links, pages, err := scrapertest.Drive(context.Background(), s, page)
			require.NoError(t, err)

			assert.Equal(t, tt.pages, pages)
			assert.Equal(t, tt.pages-1, page.ClickCount("a.next"))
			assert.Len(t, links, 2*tt.pages)
			assert.Equal(t, "https://jobs.example.com/job/1-a", links[0].URL)
		})
	}
}

func TestExplicitDisabledSelector(t *testing.T) {
	docs := feed(3, "")
	docs[pageURL(2)] = `<html><body><a class="job" href="/job/2-a">A</a>
<span class="pager"><a class="next is-off" href="/jobs?p=3">Next</a></span></body></html>`

	page := browsertest.New(docs)
	s := newScraper(t, map[string]string{
		"job_link":           "a.job",
		"next_page":          "a.next",
		"next_page_disabled": ".pager a.next.is-off",
	})

	links, pages, err := scrapertest.Drive(context.Background(), s, page)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Len(t, links, 3)
}

func TestAdvanceIsIdempotentUntilRead(t *testing.T) {
	ctx := context.Background()
	page := browsertest.New(feed(3, ""))
	s := newScraper(t, map[string]string{"job_link": "a.job", "next_page": "a.next"})

	st := scraper.NewState()
	require.NoError(t, s.Open(ctx, page, st))
	batch, err := s.ExtractLinks(ctx, page, st)
	require.NoError(t, err)
	st.MarkRead(len(batch.Links))

	step, err := s.Advance(ctx, page, st)
	require.NoError(t, err)
	assert.Equal(t, scraper.Continue, step)
	assert.Equal(t, 2, st.Page)

	//a second Advance before page 2 is read must not skip it
	step, err = s.Advance(ctx, page, st)
	require.NoError(t, err)
	assert.Equal(t, scraper.Continue, step)
	assert.Equal(t, 2, st.Page)
	assert.Equal(t, 1, page.ClickCount("a.next"))
	assert.Equal(t, pageURL(2), page.URL())
}

func TestTransientClickFailureIsRetried(t *testing.T) {
	page := browsertest.New(feed(2, ""))
	page.ClickErrs["a.next"] = []error{errors.New("element is not attached to the DOM")}
	s := newScraper(t, map[string]string{"job_link": "a.job", "next_page": "a.next"})

	links, pages, err := scrapertest.Drive(context.Background(), s, page)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Len(t, links, 4)
	assert.Equal(t, 2, page.ClickCount("a.next"))
}

func TestRequiresJobLinkSelector(t *testing.T) {
	site := scrapertest.Site("acme", Type, base, map[string]string{"next_page": "a.next"})
	_, err := New(scrapertest.Env(site, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job_link")
}
