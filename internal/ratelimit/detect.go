package ratelimit

import (
	"net/http"
	"strings"
)

// Signal is what a navigation observed; detectors decide whether it was throttled.
type Signal struct {
	Status int
	Title  string
	Body   string
}

// Detector reports whether a response is a rate-limit page.
type Detector func(Signal) bool

// DefaultIndicators suit search-engine result pages, where a bare "429" is meaningful.
var DefaultIndicators = []string{"429", "too many requests", "rate limit", "slow down"}

// SessionIndicators avoid the bare "429" so job ids and salaries do not trip detection.
var SessionIndicators = []string{"too many requests", "rate limit exceeded", "slow down"}

// NewDetector matches an explicit 429 status, "429" in the title, or any indicator in the body.
func NewDetector(indicators []string) Detector {
	lowered := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		if ind = strings.ToLower(strings.TrimSpace(ind)); ind != "" {
			lowered = append(lowered, ind)
		}
	}

	return func(s Signal) bool {
		if s.Status == http.StatusTooManyRequests {
			return true
		}

		title := strings.ToLower(s.Title)
		if strings.Contains(title, "429") || strings.Contains(title, "too many requests") {
			return true
		}

		body := strings.ToLower(s.Body)
		for _, ind := range lowered {
			if strings.Contains(body, ind) {
				return true
			}
		}
		return false
	}
}
