package config

import (
	"fmt"
	"sort"
)

// BoardGroup is one job_boards entry: sites sharing a pagination type and selectors.
type BoardGroup struct {
	Group     string            `yaml:"group"`
	Type      string            `yaml:"type"`
	Enabled   *bool             `yaml:"enabled"`
	Selectors map[string]string `yaml:"selectors"`
	Settings  SiteSettings      `yaml:"settings"`
	Sites     []SiteEntry       `yaml:"sites"`
}

type SiteEntry struct {
	Name      string            `yaml:"name"`
	URL       string            `yaml:"url"`
	Enabled   *bool             `yaml:"enabled"`
	Selectors map[string]string `yaml:"selectors"`
	Settings  SiteSettings      `yaml:"settings"`
}

type SiteSettings struct {
	StartPage             int      `yaml:"start_page" json:"start_page,omitempty"`
	URLPattern            string   `yaml:"url_pattern" json:"url_pattern,omitempty"`
	WaitMin               Duration `yaml:"wait_min" json:"wait_min"`
	WaitMax               Duration `yaml:"wait_max" json:"wait_max"`
	BaseURL               string   `yaml:"base_url" json:"base_url,omitempty"`
	HandleCookies         *bool    `yaml:"handle_cookies" json:"handle_cookies,omitempty"`
	ClickBackAfterJob     *bool    `yaml:"click_back_after_job" json:"click_back_after_job,omitempty"`
	ClickViewAllAfterBack *bool    `yaml:"click_view_all_after_back" json:"click_view_all_after_back,omitempty"`
	JobURLPattern         string   `yaml:"job_url_pattern" json:"job_url_pattern,omitempty"`
	SleepBetweenJobs      Duration `yaml:"sleep_between_jobs" json:"sleep_between_jobs"`
	MaxPages              int      `yaml:"max_pages" json:"max_pages,omitempty"`
	MaxConsecutiveErrors  int      `yaml:"max_consecutive_errors" json:"max_consecutive_errors,omitempty"`
}

// SiteConfig is the flattened, immutable descriptor of one scrape target.
type SiteConfig struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Group     string            `json:"group"`
	Type      string            `json:"type"`
	Selectors map[string]string `json:"selectors"`
	Settings  SiteSettings      `json:"settings"`
	Enabled   bool              `json:"enabled"`
}

// Selector returns the locator for a logical role, or "" when the site does not define it.
func (s SiteConfig) Selector(role string) string {
	return s.Selectors[role]
}

// Sites flattens every group into SiteConfigs, in declaration order, disabled ones included.
func (c *Config) Sites() []SiteConfig {
	var sites []SiteConfig
	for _, g := range c.JobBoards {
		groupEnabled := g.Enabled == nil || *g.Enabled
		for _, s := range g.Sites {
			siteEnabled := s.Enabled == nil || *s.Enabled
			sites = append(sites, SiteConfig{
				Name:      s.Name,
				URL:       s.URL,
				Group:     g.Group,
				Type:      g.Type,
				Selectors: mergeSelectors(g.Selectors, s.Selectors),
				Settings:  mergeSettings(g.Settings, s.Settings).withDefaults(),
				Enabled:   groupEnabled && siteEnabled,
			})
		}
	}
	return sites
}

// SelectSites returns the enabled sites of one group, one named site, or all enabled sites.
func (c *Config) SelectSites(group, site string) ([]SiteConfig, error) {
	if group != "" && site != "" {
		return nil, fmt.Errorf("--group and --site are mutually exclusive")
	}

	var out []SiteConfig
	for _, s := range c.Sites() {
		switch {
		case site != "":
			//an explicitly named site runs even if disabled
			if s.Name == site {
				return []SiteConfig{s}, nil
			}
		case group != "":
			if s.Group == group && s.Enabled {
				out = append(out, s)
			}
		default:
			if s.Enabled {
				out = append(out, s)
			}
		}
	}

	if site != "" {
		return nil, fmt.Errorf("site %q not found", site)
	}
	if group != "" && len(out) == 0 {
		return nil, fmt.Errorf("group %q not found or has no enabled sites", group)
	}
	return out, nil
}

// Groups returns group names sorted alphabetically.
func (c *Config) Groups() []string {
	names := make([]string, 0, len(c.JobBoards))
	for _, g := range c.JobBoards {
		names = append(names, g.Group)
	}
	sort.Strings(names)
	return names
}

func mergeSelectors(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func mergeSettings(base, over SiteSettings) SiteSettings {
	out := base
	if over.StartPage != 0 {
		out.StartPage = over.StartPage
	}
	if over.URLPattern != "" {
		out.URLPattern = over.URLPattern
	}
	if over.WaitMin.Duration != 0 {
		out.WaitMin = over.WaitMin
	}
	if over.WaitMax.Duration != 0 {
		out.WaitMax = over.WaitMax
	}
	if over.BaseURL != "" {
		out.BaseURL = over.BaseURL
	}
	if over.HandleCookies != nil {
		out.HandleCookies = over.HandleCookies
	}
	if over.ClickBackAfterJob != nil {
		out.ClickBackAfterJob = over.ClickBackAfterJob
	}
	if over.ClickViewAllAfterBack != nil {
		out.ClickViewAllAfterBack = over.ClickViewAllAfterBack
	}
	if over.JobURLPattern != "" {
		out.JobURLPattern = over.JobURLPattern
	}
	if over.SleepBetweenJobs.Duration != 0 {
		out.SleepBetweenJobs = over.SleepBetweenJobs
	}
	if over.MaxPages != 0 {
		out.MaxPages = over.MaxPages
	}
	if over.MaxConsecutiveErrors != 0 {
		out.MaxConsecutiveErrors = over.MaxConsecutiveErrors
	}
	return out
}

func (s SiteSettings) withDefaults() SiteSettings {
	if s.StartPage == 0 {
		s.StartPage = 1
	}
	if s.URLPattern == "" {
		s.URLPattern = "{base_url}?page={page_num}"
	}
	if s.WaitMax.Duration < s.WaitMin.Duration {
		s.WaitMax = s.WaitMin
	}
	if s.MaxPages == 0 {
		s.MaxPages = 500
	}
	if s.MaxConsecutiveErrors == 0 {
		s.MaxConsecutiveErrors = 8
	}
	return s
}

// Flag reports a tri-state setting, falling back to def when unset.
func Flag(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
