package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

type PlaywrightManager struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
	log     logrus.FieldLogger
}

func NewPlaywright(ctx context.Context, opts Options, log logrus.FieldLogger) (*PlaywrightManager, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     []string{"--disable-blink-features=AutomationControlled"},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = 20 * time.Second
	}

	return &PlaywrightManager{pw: pw, browser: browser, opts: opts, log: log}, nil
}

// NewSession opens a fresh browser context, with the site's cookie file applied when present.
func (pm *PlaywrightManager) NewSession(ctx context.Context, site string) (Session, error) {
	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1920, Height: 1080},
	}
	if pm.opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(pm.opts.UserAgent)
	}

	bctx, err := pm.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	cookieFile := filepath.Join(pm.opts.CookiesPath, fmt.Sprintf("cookies-%s.json", site))
	if _, err := os.Stat(cookieFile); err == nil {
		cookies, err := LoadCookies(cookieFile)
		if err != nil {
			pm.log.Warnf("⚠️ Could not load %s cookies: %v. Continuing.", site, err)
		} else if err := bctx.AddCookies(cookies); err != nil {
			pm.log.Warnf("⚠️ Could not apply %s cookies: %v. Continuing.", site, err)
		} else {
			pm.log.Infof("🍪 Loaded %s cookies (%d)", site, len(cookies))
		}
	}

	return &playwrightSession{bctx: bctx, timeout: pm.opts.NavigationTimeout}, nil
}

func (pm *PlaywrightManager) Close() error {
	if pm.browser != nil {
		if err := pm.browser.Close(); err != nil {
			pm.log.Warnf("⚠️ Failed to close browser: %v", err)
		}
	}
	if pm.pw != nil {
		return pm.pw.Stop()
	}
	return nil
}

type playwrightSession struct {
	bctx    playwright.BrowserContext
	timeout time.Duration
}

func (s *playwrightSession) NewPage() (Page, error) {
	page, err := s.bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(s.timeout.Milliseconds()))
	return &playwrightPage{page: page, timeout: s.timeout}, nil
}

func (s *playwrightSession) Close() error {
	return s.bctx.Close()
}

// WrapPlaywrightPage adapts an existing playwright page, e.g. one driven by page.Route in tests.
func WrapPlaywrightPage(page playwright.Page, timeout time.Duration) Page {
	return &playwrightPage{page: page, timeout: timeout}
}

type playwrightPage struct {
	page    playwright.Page
	timeout time.Duration
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *playwrightPage) Goto(ctx context.Context, url string) (int, error) {
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(timeoutFrom(ctx, p.timeout)),
	})
	if err != nil {
		return 0, err
	}
	if resp == nil {
		return 0, nil
	}
	return resp.Status(), nil
}

func (p *playwrightPage) URL() string { return p.page.URL() }

func (p *playwrightPage) Title() (string, error) { return p.page.Title() }

func (p *playwrightPage) Content() (string, error) { return p.page.Content() }

func (p *playwrightPage) Exists(selector string) (bool, error) {
	count, err := p.page.Locator(selector).Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	loc := p.page.Locator(selector).First()
	if count, err := loc.Count(); err != nil {
		return err
	} else if count == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}

	timeout := timeoutFrom(ctx, p.timeout)
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: ms(timeout)}); err != nil {
		return err
	}
	//click may or may not navigate; settle either way
	_ = p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: ms(timeout),
	})
	return nil
}

func (p *playwrightPage) GoBack(ctx context.Context) error {
	_, err := p.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(timeoutFrom(ctx, p.timeout)),
	})
	return err
}

func (p *playwrightPage) Frame(selector string) (Page, error) {
	el, err := p.page.QuerySelector(selector)
	return frameFromHandle(el, err, p.timeout)
}

func (p *playwrightPage) Evaluate(script string) (interface{}, error) {
	return p.page.Evaluate(script)
}

func (p *playwrightPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (p *playwrightPage) Close() error { return p.page.Close() }

// frameFromHandle scopes a page to an iframe element, inheriting the navigation timeout.
func frameFromHandle(el playwright.ElementHandle, err error, timeout time.Duration) (Page, error) {
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, ErrNotFound
	}
	frame, err := el.ContentFrame()
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, ErrNotFound
	}
	return &playwrightFrame{frame: frame, timeout: timeout}, nil
}

// playwrightFrame scopes Page operations to an iframe document.
type playwrightFrame struct {
	frame   playwright.Frame
	timeout time.Duration
}

func (f *playwrightFrame) Goto(ctx context.Context, url string) (int, error) {
	resp, err := f.frame.Goto(url, playwright.FrameGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(timeoutFrom(ctx, f.timeout)),
	})
	if err != nil || resp == nil {
		return 0, err
	}
	return resp.Status(), nil
}

func (f *playwrightFrame) URL() string { return f.frame.URL() }

func (f *playwrightFrame) Title() (string, error) { return f.frame.Title() }

func (f *playwrightFrame) Content() (string, error) { return f.frame.Content() }

func (f *playwrightFrame) Exists(selector string) (bool, error) {
	count, err := f.frame.Locator(selector).Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (f *playwrightFrame) Click(ctx context.Context, selector string) error {
	loc := f.frame.Locator(selector).First()
	if count, err := loc.Count(); err != nil {
		return err
	} else if count == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	timeout := timeoutFrom(ctx, f.timeout)
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: ms(timeout)}); err != nil {
		return err
	}
	_ = f.frame.WaitForLoadState(playwright.FrameWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: ms(timeout),
	})
	return nil
}

func (f *playwrightFrame) GoBack(ctx context.Context) error { return ErrNotSupported }

func (f *playwrightFrame) Frame(selector string) (Page, error) {
	el, err := f.frame.QuerySelector(selector)
	return frameFromHandle(el, err, f.timeout)
}

func (f *playwrightFrame) Evaluate(script string) (interface{}, error) {
	return f.frame.Evaluate(script)
}

func (f *playwrightFrame) Screenshot(path string) error { return ErrNotSupported }

func (f *playwrightFrame) Close() error { return nil }
