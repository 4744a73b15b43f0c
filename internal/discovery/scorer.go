package discovery

import (
	"fmt"
	"net/url"
	"strings"

	"go-jobharvest/internal/config"
	"go-jobharvest/internal/extract"
)

// Scorer rates search results as candidate job boards.
type Scorer struct {
	Terms         []string
	URLWeight     float64
	ContentWeight float64
	Excluded      []string
}

func NewScorer(cfg config.DiscoveryConfig) *Scorer {
	s := &Scorer{
		Terms:         cfg.JobTerms,
		URLWeight:     1.0,
		ContentWeight: 0.5,
		Excluded:      cfg.ExcludedDomains,
	}
	if cfg.URLWeight != nil {
		s.URLWeight = *cfg.URLWeight
	}
	if cfg.ContentWeight != nil {
		s.ContentWeight = *cfg.ContentWeight
	}
	return s
}

// Score adds URLWeight per term found in the URL and ContentWeight per term found in
// title+snippet. The indicators name every match.
func (s *Scorer) Score(rawURL, title, snippet string) (float64, []string) {
	var (
		score      float64
		indicators []string
	)

	lowered := strings.ToLower(rawURL)
	for _, term := range s.Terms {
		if strings.Contains(lowered, strings.ToLower(term)) {
			score += s.URLWeight
			indicators = append(indicators, fmt.Sprintf("URL contains '%s'", term))
		}
	}

	content := extract.Fold(title + " " + snippet)
	for _, term := range s.Terms {
		if strings.Contains(content, extract.Fold(term)) {
			score += s.ContentWeight
			indicators = append(indicators, fmt.Sprintf("Content mentions '%s'", term))
		}
	}

	return score, indicators
}

// IsExcluded matches the URL's domain against the exclusion list by substring, so
// excluding a parent domain also excludes its subdomains.
func (s *Scorer) IsExcluded(rawURL string) bool {
	domain := ExtractDomain(rawURL)
	if domain == "" {
		return false
	}
	for _, ex := range s.Excluded {
		ex = strings.ToLower(strings.TrimSpace(ex))
		if ex != "" && strings.Contains(domain, ex) {
			return true
		}
	}
	return false
}

// ExtractDomain returns the lowercased host without a leading "www.", or "" for junk.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
