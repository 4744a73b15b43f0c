// Package reporter hands terminal failures and session summaries to external channels.
// It does not decide what failed; sessions build the records.
package reporter

import (
	"context"
	"errors"
	"time"

	"go-jobharvest/internal/breadcrumb"
)

// FailureRecord describes one aborted session.
type FailureRecord struct {
	ID             string             `json:"id"`
	SessionID      string             `json:"session_id"`
	Site           string             `json:"site"`
	Group          string             `json:"group,omitempty"`
	Type           string             `json:"type"`
	Classification string             `json:"classification"`
	Stage          string             `json:"stage"`
	Message        string             `json:"message"`
	URL            string             `json:"url,omitempty"`
	Page           int                `json:"page"`
	Breadcrumbs    []breadcrumb.Crumb `json:"breadcrumbs"`
	Stats          breadcrumb.Stats   `json:"stats"`
	Screenshot     string             `json:"screenshot,omitempty"`
	HTMLDump       string             `json:"html_dump,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// Summary is sent once per session when it ends, successfully or not.
type Summary struct {
	SessionID      string           `json:"session_id"`
	Site           string           `json:"site"`
	Success        bool             `json:"success"`
	Classification string           `json:"classification,omitempty"`
	Pages          int              `json:"pages"`
	Links          int              `json:"links"`
	Stats          breadcrumb.Stats `json:"stats"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
}

func (s Summary) Duration() time.Duration { return s.FinishedAt.Sub(s.StartedAt) }

type Reporter interface {
	ReportFailure(ctx context.Context, rec FailureRecord) error
	ReportSummary(ctx context.Context, sum Summary) error
}

// Multi fans out to every reporter and joins their errors.
type Multi []Reporter

func (m Multi) ReportFailure(ctx context.Context, rec FailureRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportFailure(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) ReportSummary(ctx context.Context, sum Summary) error {
	var errs []error
	for _, r := range m {
		if err := r.ReportSummary(ctx, sum); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ReportFailure(context.Context, FailureRecord) error { return nil }
func (Nop) ReportSummary(context.Context, Summary) error       { return nil }
