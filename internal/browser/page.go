package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the selector or frame is confirmed absent.
	ErrNotFound = errors.New("element not found")
	// ErrNotSupported is returned by scoped pages for operations only a top-level page can do.
	ErrNotSupported = errors.New("operation not supported")
)

// Page is the slice of browser behaviour the scraper needs. Frames implement it too,
// scoped to the frame document.
type Page interface {
	// Goto navigates and returns the main response status (0 when unknown).
	Goto(ctx context.Context, url string) (int, error)
	URL() string
	Title() (string, error)
	Content() (string, error)
	Exists(selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	GoBack(ctx context.Context) error
	Frame(selector string) (Page, error)
	Evaluate(script string) (interface{}, error)
	Screenshot(path string) error
	Close() error
}

// Session is an isolated browser context (own cookies and storage) owned by one scrape session.
type Session interface {
	NewPage() (Page, error)
	Close() error
}

// Engine launches isolated sessions.
type Engine interface {
	NewSession(ctx context.Context, site string) (Session, error)
	Close() error
}

type Options struct {
	Headless          bool
	UserAgent         string
	CookiesPath       string
	NavigationTimeout time.Duration
}

// timeoutFrom returns the time left on ctx, or def when ctx has no deadline.
func timeoutFrom(ctx context.Context, def time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left > 0 {
			return left
		}
		return time.Millisecond
	}
	return def
}
