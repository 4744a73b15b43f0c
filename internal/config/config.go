// Load envs from .env
// Load YAML config
// Provide default values
// Validate config

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Browser    BrowserConfig    `yaml:"browser"`
	Retry      RetryConfig      `yaml:"retry"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Pagination PaginationConfig `yaml:"pagination"`
	Cache      CacheConfig      `yaml:"cache"`
	Workers    WorkersConfig    `yaml:"workers"`
	Report     ReportConfig     `yaml:"report"`
	Server     ServerConfig     `yaml:"server"`
	JobBoards  []BoardGroup     `yaml:"job_boards"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
}

type BrowserConfig struct {
	Engine            string   `yaml:"engine"` // playwright | chromedp
	Headless          *bool    `yaml:"headless"`
	UserAgent         string   `yaml:"user_agent"`
	CookiesPath       string   `yaml:"cookies_path"`
	NavigationTimeout Duration `yaml:"navigation_timeout"`
}

func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

type RetryConfig struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	Delay          Duration `yaml:"delay"`
	Backoff        string   `yaml:"backoff"` // fixed | exponential
	MaxDelay       Duration `yaml:"max_delay"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
}

type RateLimitConfig struct {
	MinDelay   Duration `yaml:"min_delay"`
	Cooldown   Duration `yaml:"cooldown"`
	//nil means 3; an explicit 0 disables cooldown retries
	MaxRetries *int     `yaml:"max_retries"`
	//optional burst budget: at most Requests per Window
	Requests   int      `yaml:"requests"`
	Window     Duration `yaml:"window"`
	Indicators []string `yaml:"indicators"`
}

type PaginationConfig struct {
	EmptyPageRetries *int     `yaml:"empty_page_retries"`
	SettleDelay      Duration `yaml:"settle_delay"`
}

type CacheConfig struct {
	Backend        string   `yaml:"backend"` // file | sqlite | postgres | redis
	Dir            string   `yaml:"dir"`
	DSN            string   `yaml:"dsn"`
	RedisAddr      string   `yaml:"redis_addr"`
	RedisPrefix    string   `yaml:"redis_prefix"`
	ForceRefresh   bool     `yaml:"force_refresh"`
	TrackingParams []string `yaml:"tracking_params"`
}

type WorkersConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type ReportConfig struct {
	Dir             string   `yaml:"dir"`
	BreadcrumbLimit int      `yaml:"breadcrumb_limit"`
	TelegramToken   string   `yaml:"telegram_token"`
	TelegramChatID  int64    `yaml:"telegram_chat_id"`
	KafkaBrokers    []string `yaml:"kafka_brokers"`
	KafkaTopic      string   `yaml:"kafka_topic"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type SearchEngineConfig struct {
	BaseURL         string   `yaml:"base_url"`
	Engine          string   `yaml:"engine"`
	ResultSelectors []string `yaml:"result_selectors"`
	LinkSelector    string   `yaml:"link_selector"`
	SnippetSelector string   `yaml:"snippet_selector"`
}

type DiscoveryConfig struct {
	SearchEngine     SearchEngineConfig `yaml:"search_engine"`
	JobKeywords      []string           `yaml:"job_keywords"`
	IndustryKeywords []string           `yaml:"industry_keywords"`
	LocationKeywords []string           `yaml:"location_keywords"`
	ExcludedDomains  []string           `yaml:"excluded_domains"`
	JobTerms         []string           `yaml:"job_terms"`
	//pointers so an explicit 0 survives defaulting
	URLWeight     *float64        `yaml:"url_weight"`
	ContentWeight *float64        `yaml:"content_weight"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	MaxQueries    int             `yaml:"max_queries"`
	Output        string          `yaml:"output"`
}

// Load reads .env and the YAML file at path, applies env overrides and defaults, then validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load without the file and .env handling.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Report.TelegramToken = token
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		c.Report.TelegramChatID = id
	}

	if dsn := os.Getenv("CACHE_DSN"); dsn != "" {
		c.Cache.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Report.KafkaBrokers = strings.Split(brokers, ",")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Engine == "" {
		c.Browser.Engine = "playwright"
	}
	if c.Browser.CookiesPath == "" {
		c.Browser.CookiesPath = ".cookies"
	}
	if c.Browser.NavigationTimeout.Duration == 0 {
		c.Browser.NavigationTimeout = Seconds(20)
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.Delay.Duration == 0 {
		c.Retry.Delay = Seconds(5)
	}
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = "fixed"
	}
	if c.Retry.MaxDelay.Duration == 0 {
		c.Retry.MaxDelay = Seconds(60)
	}
	if c.Retry.AttemptTimeout.Duration == 0 {
		c.Retry.AttemptTimeout = Seconds(30)
	}

	c.RateLimit.applyDefaults(Seconds(2))
	c.Discovery.RateLimit.applyDefaults(Seconds(3))

	if c.Pagination.EmptyPageRetries == nil {
		c.Pagination.EmptyPageRetries = intPtr(1)
	}
	if c.Pagination.SettleDelay.Duration == 0 {
		c.Pagination.SettleDelay = Seconds(2)
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache"
	}
	if c.Cache.RedisPrefix == "" {
		c.Cache.RedisPrefix = "jobharvest:cache:"
	}

	if c.Workers.Concurrency <= 0 {
		c.Workers.Concurrency = 2
	}

	if c.Report.Dir == "" {
		c.Report.Dir = "logs"
	}
	if c.Report.BreadcrumbLimit <= 0 {
		c.Report.BreadcrumbLimit = 200
	}
	if c.Report.KafkaTopic == "" {
		c.Report.KafkaTopic = "jobharvest.failures"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}

	c.Discovery.applyDefaults()
}

// Retries is max_retries with its default applied, also for configs built in code.
func (r RateLimitConfig) Retries() int {
	if r.MaxRetries == nil {
		return 3
	}
	return *r.MaxRetries
}

func (p PaginationConfig) EmptyRetries() int {
	if p.EmptyPageRetries == nil {
		return 1
	}
	return *p.EmptyPageRetries
}

func intPtr(n int) *int { return &n }

func (r *RateLimitConfig) applyDefaults(minDelay Duration) {
	if r.MinDelay.Duration == 0 {
		r.MinDelay = minDelay
	}
	if r.Cooldown.Duration == 0 {
		r.Cooldown = Seconds(60)
	}
	if r.MaxRetries == nil {
		r.MaxRetries = intPtr(3)
	}
}

var (
	defaultResultSelectors = []string{".result", ".result-default", "article.result", ".search-result", "#urls .result"}
	defaultJobTerms        = []string{"career", "job", "employ", "recruit", "hiring", "work", "opportunity"}
)

func (d *DiscoveryConfig) applyDefaults() {
	if len(d.SearchEngine.ResultSelectors) == 0 {
		d.SearchEngine.ResultSelectors = defaultResultSelectors
	}
	if d.SearchEngine.LinkSelector == "" {
		d.SearchEngine.LinkSelector = "a[href], h3 a, h4 a, .result-link"
	}
	if d.SearchEngine.SnippetSelector == "" {
		d.SearchEngine.SnippetSelector = ".content, .result-content, .result-description, p"
	}
	if len(d.JobTerms) == 0 {
		d.JobTerms = defaultJobTerms
	}
	if d.URLWeight == nil {
		w := 1.0
		d.URLWeight = &w
	}
	if d.ContentWeight == nil {
		w := 0.5
		d.ContentWeight = &w
	}
	if d.MaxQueries == 0 {
		d.MaxQueries = 5
	}
	if d.Output == "" {
		d.Output = "discovered_job_boards.json"
	}
}

// Validate checks structural rules; pagination type tags are checked by the factory.
func (c *Config) Validate() error {
	var errs []error

	switch c.Browser.Engine {
	case "playwright", "chromedp":
	default:
		errs = append(errs, fmt.Errorf("browser.engine %q is not supported", c.Browser.Engine))
	}

	switch c.Retry.Backoff {
	case "fixed", "exponential":
	default:
		errs = append(errs, fmt.Errorf("retry.backoff %q must be fixed or exponential", c.Retry.Backoff))
	}

	switch c.Cache.Backend {
	case "file", "sqlite", "redis":
	case "postgres":
		if c.Cache.DSN == "" {
			errs = append(errs, errors.New("cache.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend))
	}

	seen := make(map[string]string)
	for _, g := range c.JobBoards {
		if g.Group == "" {
			errs = append(errs, errors.New("job_boards entry without group name"))
		}
		if g.Type == "" {
			errs = append(errs, fmt.Errorf("group %q has no type", g.Group))
		}
		for _, s := range g.Sites {
			if s.Name == "" || s.URL == "" {
				errs = append(errs, fmt.Errorf("group %q has a site without name or url", g.Group))
				continue
			}
			if other, dup := seen[s.Name]; dup {
				errs = append(errs, fmt.Errorf("site %q declared in both %q and %q", s.Name, other, g.Group))
				continue
			}
			seen[s.Name] = g.Group
		}
	}

	return errors.Join(errs...)
}
