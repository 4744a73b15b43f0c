// Package extract pulls links and readable text out of fetched HTML.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

type Link struct {
	URL  string
	Text string
}

// Links returns the hrefs matched by selector, resolved against baseURL, in document order.
// scope narrows the search to a container when non-empty. Duplicate URLs keep the first hit.
func Links(doc, baseURL, selector, scope string, filter *regexp.Regexp) ([]Link, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}

	sel := root.Selection
	if scope != "" {
		sel = root.Find(scope)
	}

	base, _ := url.Parse(baseURL)
	seen := make(map[string]bool)
	var links []Link

	sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			//the selector may point at a wrapper; take its first anchor
			href, ok = s.Find("a[href]").First().Attr("href")
		}
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}

		abs := Resolve(base, href)
		if filter != nil && !filter.MatchString(abs) {
			return
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, Link{URL: abs, Text: collapse(s.Text())})
	})

	return links, nil
}

// Resolve makes href absolute against base, returning href unchanged when either fails to parse.
func Resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// Attrs returns every value of attr on elements matched by selector.
func Attrs(doc, selector, attr string) ([]string, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}
	var out []string
	root.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok && v != "" {
			out = append(out, v)
		}
	})
	return out, nil
}

var (
	noiseSelectors = "script, style, noscript, svg, nav, header, footer, iframe, form, template"
	mainSelectors  = []string{"main", "article", "[role=main]", "#content", ".job-description", ".content"}
	blockElements  = map[string]bool{
		"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true, "tr": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"section": true, "article": true, "table": true, "dd": true, "dt": true, "blockquote": true, "pre": true,
	}
)

const minMainText = 200

// MainText returns the readable text of the page's main content, one block per line.
// It prefers a main/article container and falls back to the whole body.
func MainText(doc string) string {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	root.Find(noiseSelectors).Remove()

	for _, sel := range mainSelectors {
		node := root.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := blockText(node); len(text) >= minMainText {
			return text
		}
	}
	return blockText(root.Find("body"))
}

// ScopedText is MainText restricted to the first element matching selector.
func ScopedText(doc, selector string) string {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	root.Find(noiseSelectors).Remove()
	return blockText(root.Find(selector).First())
}

// BodyText is the whole visible body text on one line, for heuristics.
func BodyText(doc string) string {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	root.Find("script, style, noscript").Remove()
	return collapse(root.Find("body").Text())
}

func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		walk(n, &b)
	}

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = collapse(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func walk(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b)
	}
	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte('\n')
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
