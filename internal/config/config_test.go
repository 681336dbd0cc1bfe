package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, 5, cfg.RateLimitRequests)
	assert.Equal(t, 60*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 50, cfg.RateLimitDailyRequests)
	assert.Equal(t, 24*time.Hour, cfg.RateLimitDailyWindow)
	assert.Equal(t, 100000, cfg.DailyTokenLimit)
	assert.Equal(t, 300, cfg.MaxTokensPerRequest)
	assert.Equal(t, 500, cfg.MaxInputLength)
	assert.Equal(t, []string{"documents/internship", "documents/latex"}, cfg.ReportDirs)
	assert.Equal(t, "groq", cfg.LLMProvider)
	assert.Empty(t, cfg.APIKey())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "3")
	t.Setenv("RATE_LIMIT_WINDOW", "30")
	t.Setenv("RATE_LIMIT_DAILY_WINDOW", "12h")
	t.Setenv("REPORT_DIRS", " a , ,b ")
	t.Setenv("RATE_LIMIT_EXEMPT", "127.0.0.1,10.0.0.0/8")
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RateLimitRequests)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 12*time.Hour, cfg.RateLimitDailyWindow)
	assert.Equal(t, []string{"a", "b"}, cfg.ReportDirs)
	assert.Equal(t, []string{"127.0.0.1", "10.0.0.0/8"}, cfg.RateLimitExempt)
	assert.Equal(t, "g-key", cfg.APIKey())
}

func TestLoad_InvalidCombinations(t *testing.T) {
	cases := map[string]map[string]string{
		"zero minute limit":   {"RATE_LIMIT_REQUESTS": "0"},
		"zero token ceiling":  {"DAILY_TOKEN_LIMIT": "0"},
		"unknown provider":    {"LLM_PROVIDER": "other"},
		"stats without redis": {"RATE_STATS_ENABLED": "true"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile_DoesNotOverrideAndIgnoresMissing(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORTFOLIO_FILE=from-file.json\nLISTEN_ADDR=:9999\n"), 0o600))

	t.Setenv("LISTEN_ADDR", ":7000")
	t.Setenv("PORTFOLIO_FILE", "")
	require.NoError(t, os.Unsetenv("PORTFOLIO_FILE"))

	require.NoError(t, LoadEnvFile(path))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "from-file.json", cfg.PortfolioFile)
}
