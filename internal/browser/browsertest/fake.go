// Package browsertest provides a scripted, in-memory browser.Page for unit tests.
package browsertest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"go-jobharvest/internal/browser"
)

// Page serves HTML documents from a map keyed by URL. Clicking an element with an href
// follows it; ClickHandlers override that per selector.
type Page struct {
	mu sync.Mutex

	Docs          map[string]string
	Status        map[string]int
	GotoErrs      map[string][]error
	ClickErrs     map[string][]error
	ClickHandlers map[string]func(p *Page) error
	Frames        map[string]*Page

	Gotos   []string
	Clicks  []string
	Scripts []string
	Closed  bool

	current string
	html    string
	history []string
}

func New(docs map[string]string) *Page {
	return &Page{
		Docs:          docs,
		Status:        map[string]int{},
		GotoErrs:      map[string][]error{},
		ClickErrs:     map[string][]error{},
		ClickHandlers: map[string]func(p *Page) error{},
		Frames:        map[string]*Page{},
	}
}

// Load switches the current document, recording history like a navigation.
func (p *Page) Load(rawURL string) {
	if p.current != "" {
		p.history = append(p.history, p.current)
	}
	p.current = rawURL
	p.html = p.Docs[rawURL]
}

// SetHTML replaces the current document without navigating, as client-side rendering would.
func (p *Page) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

func (p *Page) GotoCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Gotos)
}

func (p *Page) ClickCount(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.Clicks {
		if c == selector {
			n++
		}
	}
	return n
}

func pop(m map[string][]error, key string) error {
	errs := m[key]
	if len(errs) == 0 {
		return nil
	}
	m[key] = errs[1:]
	return errs[0]
}

func (p *Page) Goto(ctx context.Context, rawURL string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Gotos = append(p.Gotos, rawURL)
	if err := pop(p.GotoErrs, rawURL); err != nil {
		return 0, err
	}

	if _, ok := p.Docs[rawURL]; !ok {
		p.Load(rawURL)
		p.html = "<html><head><title>Not Found</title></head><body></body></html>"
		return 404, nil
	}
	p.Load(rawURL)
	if status, ok := p.Status[rawURL]; ok {
		return status, nil
	}
	return 200, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Page) document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(p.html))
}

func (p *Page) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.document()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}

func (p *Page) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *Page) Exists(selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, err := p.document()
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.Clicks = append(p.Clicks, selector)
	if err := pop(p.ClickErrs, selector); err != nil {
		p.mu.Unlock()
		return err
	}
	if handler, ok := p.ClickHandlers[selector]; ok {
		p.mu.Unlock()
		return handler(p)
	}
	defer p.mu.Unlock()

	doc, err := p.document()
	if err != nil {
		return err
	}
	el := doc.Find(selector).First()
	if el.Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, selector)
	}
	if href, ok := el.Attr("href"); ok && href != "" {
		target := href
		if base, err := url.Parse(p.current); err == nil {
			if ref, err := base.Parse(href); err == nil {
				target = ref.String()
			}
		}
		p.Load(target)
	}
	return nil
}

// Navigate is Load for use inside ClickHandlers, which run without the page lock.
func (p *Page) Navigate(rawURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Load(rawURL)
}

func (p *Page) GoBack(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return fmt.Errorf("no history")
	}
	prev := p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	p.current = prev
	p.html = p.Docs[prev]
	return nil
}

func (p *Page) Frame(selector string) (browser.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame, ok := p.Frames[selector]
	if !ok {
		return nil, browser.ErrNotFound
	}
	return frame, nil
}

func (p *Page) Evaluate(script string) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Scripts = append(p.Scripts, script)
	return nil, nil
}

func (p *Page) Screenshot(path string) error {
	return os.WriteFile(path, []byte("fake-png"), 0644)
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Session hands out pre-built pages in order.
type Session struct {
	Pages  []*Page
	next   int
	Closed bool
}

func (s *Session) NewPage() (browser.Page, error) {
	if s.next >= len(s.Pages) {
		return nil, fmt.Errorf("no more fake pages")
	}
	p := s.Pages[s.next]
	s.next++
	return p, nil
}

func (s *Session) Close() error {
	s.Closed = true
	return nil
}

// Engine returns a session per site from Sessions.
type Engine struct {
	mu       sync.Mutex
	Sessions map[string]*Session
}

func (e *Engine) NewSession(ctx context.Context, site string) (browser.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.Sessions[site]
	if !ok {
		return nil, fmt.Errorf("no fake session for %s", site)
	}
	return s, nil
}

func (e *Engine) Close() error { return nil }
