package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FileReporter writes each failure as JSON under <dir>/errors and logs summaries.
type FileReporter struct {
	dir string
	log logrus.FieldLogger
}

func NewFileReporter(dir string, log logrus.FieldLogger) *FileReporter {
	return &FileReporter{dir: dir, log: log}
}

func (f *FileReporter) ReportFailure(ctx context.Context, rec FailureRecord) error {
	errDir := filepath.Join(f.dir, "errors")
	if err := os.MkdirAll(errDir, 0755); err != nil {
		return fmt.Errorf("failed to create errors directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}

	//short uuid suffix keeps same-second failures apart
	name := fmt.Sprintf("%s_%s_%s_%s.json", safeName(rec.Site), safeName(rec.Classification),
		rec.OccurredAt.Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(errDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write failure record: %w", err)
	}

	f.log.Errorf("❌ %s failed (%s) at %s: %s", rec.Site, rec.Classification, rec.Stage, rec.Message)
	f.log.Infof("📁 Failure record saved to %s", path)
	return nil
}

func (f *FileReporter) ReportSummary(ctx context.Context, sum Summary) error {
	status := "✅"
	if !sum.Success {
		status = "❌"
	}
	f.log.WithFields(logrus.Fields{
		"site":        sum.Site,
		"pages":       sum.Pages,
		"links":       sum.Links,
		"cache_hits":  sum.Stats.CacheHits,
		"cached":      sum.Stats.PagesCached,
		"skipped":     sum.Stats.LinksSkipped,
		"rate_limits": sum.Stats.RateLimitsHit,
	}).Infof("%s Session %s finished in %s", status, sum.Site, sum.Duration().Round(1e9))
	return nil
}

// safeName keeps a site name usable as a single path element.
func safeName(name string) string {
	if name == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}
