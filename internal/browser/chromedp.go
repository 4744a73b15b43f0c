package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// ChromedpManager is the CDP-native engine, for hosts without the playwright driver.
type ChromedpManager struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	opts     Options
	log      logrus.FieldLogger
}

func NewChromedp(ctx context.Context, opts Options, log logrus.FieldLogger) (*ChromedpManager, error) {
	flags := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	flags = append(flags,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		flags = append(flags, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = 20 * time.Second
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, flags...)
	return &ChromedpManager{allocCtx: allocCtx, cancel: cancel, opts: opts, log: log}, nil
}

// NewSession starts a separate browser for the site so nothing is shared between sessions.
func (m *ChromedpManager) NewSession(ctx context.Context, site string) (Session, error) {
	browserCtx, cancel := chromedp.NewContext(m.allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	cookieFile := filepath.Join(m.opts.CookiesPath, fmt.Sprintf("cookies-%s.json", site))
	if _, err := os.Stat(cookieFile); err == nil {
		cookies, err := ReadCookieFile(cookieFile)
		if err != nil {
			m.log.Warnf("⚠️ Could not load %s cookies: %v. Continuing.", site, err)
		} else {
			params := make([]*network.CookieParam, len(cookies))
			for i, c := range cookies {
				params[i] = c.ToCDP()
			}
			if err := chromedp.Run(browserCtx, network.SetCookies(params)); err != nil {
				m.log.Warnf("⚠️ Could not apply %s cookies: %v. Continuing.", site, err)
			}
		}
	}

	return &chromedpSession{ctx: browserCtx, cancel: cancel, timeout: m.opts.NavigationTimeout}, nil
}

func (m *ChromedpManager) Close() error {
	m.cancel()
	return nil
}

type chromedpSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewPage opens a new tab in the session's browser.
func (s *chromedpSession) NewPage() (Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &chromedpPage{ctx: tabCtx, cancel: cancel, timeout: s.timeout}, nil
}

func (s *chromedpSession) Close() error {
	s.cancel()
	return nil
}

type chromedpPage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	//non-empty when this page is scoped to an iframe
	frameSelector string
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeoutFrom(ctx, p.timeout))
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// doc is the JS expression for the document this page is scoped to.
func (p *chromedpPage) doc() string {
	if p.frameSelector == "" {
		return "document"
	}
	return fmt.Sprintf("document.querySelector(%s).contentDocument", jsString(p.frameSelector))
}

func (p *chromedpPage) Goto(ctx context.Context, url string) (int, error) {
	if p.frameSelector != "" {
		script := fmt.Sprintf("document.querySelector(%s).src = %s", jsString(p.frameSelector), jsString(url))
		return 0, p.run(ctx, chromedp.Evaluate(script, nil))
	}

	runCtx, cancel := context.WithTimeout(p.ctx, timeoutFrom(ctx, p.timeout))
	defer cancel()
	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return 0, err
	}
	if resp == nil {
		return 0, nil
	}
	return int(resp.Status), nil
}

func (p *chromedpPage) URL() string {
	var loc string
	_ = p.run(context.Background(), chromedp.Evaluate(p.doc()+".location.href", &loc))
	return loc
}

func (p *chromedpPage) Title() (string, error) {
	var title string
	err := p.run(context.Background(), chromedp.Evaluate(p.doc()+".title", &title))
	return title, err
}

func (p *chromedpPage) Content() (string, error) {
	var html string
	err := p.run(context.Background(), chromedp.Evaluate(p.doc()+".documentElement.outerHTML", &html))
	return html, err
}

func (p *chromedpPage) Exists(selector string) (bool, error) {
	var found bool
	script := fmt.Sprintf("%s.querySelector(%s) !== null", p.doc(), jsString(selector))
	err := p.run(context.Background(), chromedp.Evaluate(script, &found))
	return found, err
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	var clicked bool
	script := fmt.Sprintf(`(() => {
		const el = %s.querySelector(%s);
		if (!el) return false;
		el.click();
		return true;
	})()`, p.doc(), jsString(selector))
	if err := p.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return p.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (p *chromedpPage) GoBack(ctx context.Context) error {
	if p.frameSelector != "" {
		return ErrNotSupported
	}
	return p.run(ctx, chromedp.NavigateBack())
}

func (p *chromedpPage) Frame(selector string) (Page, error) {
	if p.frameSelector != "" {
		return nil, ErrNotSupported
	}
	var ok bool
	script := fmt.Sprintf("(() => { const f = document.querySelector(%s); return !!(f && f.contentDocument); })()", jsString(selector))
	if err := p.run(context.Background(), chromedp.Evaluate(script, &ok)); err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return &chromedpPage{ctx: p.ctx, cancel: func() {}, timeout: p.timeout, frameSelector: selector}, nil
}

func (p *chromedpPage) Evaluate(script string) (interface{}, error) {
	var res interface{}
	err := p.run(context.Background(), chromedp.Evaluate(script, &res))
	return res, err
}

func (p *chromedpPage) Screenshot(path string) error {
	if p.frameSelector != "" {
		return ErrNotSupported
	}
	var buf []byte
	if err := p.run(context.Background(), chromedp.FullScreenshot(&buf, 90)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

func (p *chromedpPage) Close() error {
	p.cancel()
	return nil
}
