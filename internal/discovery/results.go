package discovery

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"go-jobharvest/internal/config"
	"go-jobharvest/internal/extract"
)

// Result is one organic search hit.
type Result struct {
	URL     string
	Title   string
	Snippet string
}

// ParseResults reads hits from a result page using the first result selector that matches.
// An empty slice with a "" selector means nothing matched.
func ParseResults(html, pageURL string, se config.SearchEngineConfig) ([]Result, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse results page: %w", err)
	}
	var base *url.URL
	if pageURL != "" {
		base, _ = url.Parse(pageURL)
	}

	for _, selector := range se.ResultSelectors {
		items := doc.Find(selector)
		if items.Length() == 0 {
			continue
		}

		var results []Result
		items.Each(func(_ int, item *goquery.Selection) {
			link := item.Find(se.LinkSelector).First()
			href, ok := link.Attr("href")
			if !ok || strings.TrimSpace(href) == "" {
				return
			}
			results = append(results, Result{
				URL:     extract.Resolve(base, strings.TrimSpace(href)),
				Title:   strings.TrimSpace(link.Text()),
				Snippet: strings.TrimSpace(item.Find(se.SnippetSelector).First().Text()),
			})
		})
		return results, selector, nil
	}

	return nil, "", nil
}
