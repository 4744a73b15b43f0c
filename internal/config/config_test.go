package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
rate_limit:
  min_delay: 5
  cooldown: 90s
job_boards:
  - group: workday
    type: standard
    selectors:
      job_link: "a.job"
      next_page: "button.next"
    settings:
      wait_min: 1s
      wait_max: 3s
    sites:
      - name: acme
        url: https://acme.example/jobs
      - name: globex
        url: https://globex.example/careers
        enabled: false
        selectors:
          job_link: "a.posting"
  - group: paged
    type: url_pagination
    enabled: false
    sites:
      - name: initech
        url: https://initech.example/jobs
`

func TestParse_DefaultsAndOverrides(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.RateLimit.MinDelay.Duration)
	assert.Equal(t, 90*time.Second, cfg.RateLimit.Cooldown.Duration)
	assert.Equal(t, 3, cfg.RateLimit.Retries())
	assert.Equal(t, "playwright", cfg.Browser.Engine)
	assert.True(t, cfg.Browser.IsHeadless())
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1.0, *cfg.Discovery.URLWeight)
	assert.Equal(t, 0.5, *cfg.Discovery.ContentWeight)
	assert.Equal(t, 5, cfg.Discovery.MaxQueries)
}

func TestParse_ExplicitZeroRetriesKept(t *testing.T) {
	cfg, err := Parse([]byte(`
rate_limit:
  max_retries: 0
pagination:
  empty_page_retries: 0
discovery:
  rate_limit:
    max_retries: 0
`))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.RateLimit.Retries())
	assert.Equal(t, 0, cfg.Pagination.EmptyRetries())
	assert.Equal(t, 0, cfg.Discovery.RateLimit.Retries())

	defaults, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 1, defaults.Pagination.EmptyRetries())
	assert.Equal(t, 3, defaults.Discovery.RateLimit.Retries())
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	in := SiteSettings{WaitMin: Seconds(2), WaitMax: Duration{1500 * time.Millisecond}, MaxPages: 7}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"wait_min":"2s"`)

	var out SiteSettings
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: `"5s"`, want: 5 * time.Second},
		{in: `"1m30s"`, want: 90 * time.Second},
		{in: `"2.5"`, want: 2500 * time.Millisecond},
		{in: `3`, want: 3 * time.Second},
		{in: `0.25`, want: 250 * time.Millisecond},
		{in: `null`, want: 0},
		{in: `""`, want: 0},
		{in: `"soon"`, wantErr: true},
		{in: `true`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestSites_FlattenAndMerge(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	sites := cfg.Sites()
	require.Len(t, sites, 3)

	acme := sites[0]
	assert.Equal(t, "acme", acme.Name)
	assert.Equal(t, "standard", acme.Type)
	assert.Equal(t, "a.job", acme.Selector("job_link"))
	assert.Equal(t, 1, acme.Settings.StartPage)
	assert.Equal(t, 500, acme.Settings.MaxPages)
	assert.True(t, acme.Enabled)

	globex := sites[1]
	assert.Equal(t, "a.posting", globex.Selector("job_link"))
	assert.Equal(t, "button.next", globex.Selector("next_page"))
	assert.False(t, globex.Enabled)

	assert.False(t, sites[2].Enabled, "disabled group disables its sites")
}

func TestSelectSites(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	tests := []struct {
		name    string
		group   string
		site    string
		want    []string
		wantErr bool
	}{
		{name: "all enabled", want: []string{"acme"}},
		{name: "by group", group: "workday", want: []string{"acme"}},
		{name: "named site runs even if disabled", site: "globex", want: []string{"globex"}},
		{name: "both flags", group: "workday", site: "acme", wantErr: true},
		{name: "unknown site", site: "nope", wantErr: true},
		{name: "group with nothing enabled", group: "paged", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sites, err := cfg.SelectSites(tt.group, tt.site)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var names []string
			for _, s := range sites {
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestValidate_DuplicateSiteNames(t *testing.T) {
	_, err := Parse([]byte(`
job_boards:
  - group: a
    type: standard
    sites: [{name: dup, url: "https://a.example"}]
  - group: b
    type: standard
    sites: [{name: dup, url: "https://b.example"}]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `site "dup"`)
}

func TestValidate_PostgresNeedsDSN(t *testing.T) {
	t.Setenv("CACHE_DSN", "")
	_, err := Parse([]byte("cache:\n  backend: postgres\n"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))

	t.Setenv("TELEGRAM_BOT_TOKEN", "token-from-env")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "token-from-env", cfg.Report.TelegramToken)
	assert.Equal(t, int64(42), cfg.Report.TelegramChatID)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Report.KafkaBrokers)
}

func TestLoad_InvalidChatID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDuration_Unmarshal(t *testing.T) {
	cfg, err := Parse([]byte("retry:\n  delay: 1500ms\n  max_delay: 2.5\n"))
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.Retry.Delay.Duration)
	assert.Equal(t, 2500*time.Millisecond, cfg.Retry.MaxDelay.Duration)

	_, err = Parse([]byte("retry:\n  delay: soon\n"))
	assert.Error(t, err)
}
