// Package config lê a configuração do servidor a partir do ambiente (e de um .env opcional).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config é lida uma vez na inicialização; os limites não mudam em runtime.
type Config struct {
	ListenAddr string

	LogLevel  string
	LogFormat string

	// LLM
	LLMProvider   string
	GroqAPIKey    string
	GroqBaseURL   string
	GeminiAPIKey  string
	LLMModel      string
	LLMTimeout    time.Duration
	LLMMaxRetries int
	LLMRPS        float64
	LLMBurst      int

	PortfolioFile  string
	PortfolioWatch bool
	ReportDirs     []string

	// Gate
	RateLimitRequests      int
	RateLimitWindow        time.Duration
	RateLimitDailyRequests int
	RateLimitDailyWindow   time.Duration
	DailyTokenLimit        int
	MaxTokensPerRequest    int
	MaxInputLength         int
	RateKeyHeader          string
	RateLimitExempt        []string
	JanitorEvery           time.Duration

	ChatConcurrencyMax     int
	ChatConcurrencyTimeout time.Duration

	RateStatsEnabled       bool
	RateStatsRedisAddr     string
	RateStatsRedisPassword string
	RateStatsRedisDB       int
	RateStatsPrefix        string
	RateStatsTTL           time.Duration
	RateStatsBucket        string
	RateStatsTrackKeys     bool

	MetricsEnabled bool
	CORSOrigin     string
}

// LoadEnvFile carrega variáveis de um arquivo .env sem sobrescrever as já definidas.
// Arquivo ausente não é erro.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load lê o ambiente e valida.
func Load() (Config, error) {
	cfg := Config{}
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", ":8000")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "text")

	cfg.LLMProvider = strings.ToLower(getenvDefault("LLM_PROVIDER", "groq"))
	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	cfg.GroqBaseURL = getenvDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.LLMModel = os.Getenv("LLM_MODEL")
	cfg.LLMTimeout = getenvDurationDefault("LLM_TIMEOUT", 30*time.Second)
	cfg.LLMMaxRetries = getenvIntDefault("LLM_MAX_RETRIES", 2)
	cfg.LLMRPS = getenvFloatDefault("LLM_RPS", 0.5)
	cfg.LLMBurst = getenvIntDefault("LLM_BURST", 2)

	cfg.PortfolioFile = getenvDefault("PORTFOLIO_FILE", "info.json")
	cfg.PortfolioWatch = getenvBoolDefault("PORTFOLIO_WATCH", false)
	cfg.ReportDirs = getenvListDefault("REPORT_DIRS", []string{"documents/internship", "documents/latex"})

	cfg.RateLimitRequests = getenvIntDefault("RATE_LIMIT_REQUESTS", 5)
	cfg.RateLimitWindow = getenvDurationDefault("RATE_LIMIT_WINDOW", 60*time.Second)
	cfg.RateLimitDailyRequests = getenvIntDefault("RATE_LIMIT_DAILY_REQUESTS", 50)
	cfg.RateLimitDailyWindow = getenvDurationDefault("RATE_LIMIT_DAILY_WINDOW", 24*time.Hour)
	cfg.DailyTokenLimit = getenvIntDefault("DAILY_TOKEN_LIMIT", 100000)
	cfg.MaxTokensPerRequest = getenvIntDefault("MAX_TOKENS_PER_REQUEST", 300)
	cfg.MaxInputLength = getenvIntDefault("MAX_INPUT_LENGTH", 500)
	cfg.RateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.RateLimitExempt = getenvListDefault("RATE_LIMIT_EXEMPT", nil)
	cfg.JanitorEvery = getenvDurationDefault("RATE_LIMIT_CLEANUP_EVERY", 10*time.Minute)

	cfg.ChatConcurrencyMax = getenvIntDefault("CHAT_CONCURRENCY_MAX", 8)
	cfg.ChatConcurrencyTimeout = getenvDurationDefault("CHAT_CONCURRENCY_TIMEOUT", 2*time.Second)

	cfg.RateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.RateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.RateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.RateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.RateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "portfolio:gate")
	cfg.RateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.RateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.RateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	cfg.MetricsEnabled = getenvBoolDefault("METRICS_ENABLED", true)
	cfg.CORSOrigin = getenvDefault("CORS_ORIGIN", "*")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate confere combinações que deixariam o gate sem sentido.
func (c Config) Validate() error {
	switch {
	case c.RateLimitRequests <= 0:
		return errors.New("RATE_LIMIT_REQUESTS must be > 0")
	case c.RateLimitWindow <= 0:
		return errors.New("RATE_LIMIT_WINDOW must be > 0")
	case c.RateLimitDailyRequests <= 0:
		return errors.New("RATE_LIMIT_DAILY_REQUESTS must be > 0")
	case c.RateLimitDailyWindow <= 0:
		return errors.New("RATE_LIMIT_DAILY_WINDOW must be > 0")
	case c.DailyTokenLimit <= 0:
		return errors.New("DAILY_TOKEN_LIMIT must be > 0")
	case c.MaxTokensPerRequest <= 0:
		return errors.New("MAX_TOKENS_PER_REQUEST must be > 0")
	case c.MaxInputLength <= 0:
		return errors.New("MAX_INPUT_LENGTH must be > 0")
	case c.ChatConcurrencyMax < 0:
		return errors.New("CHAT_CONCURRENCY_MAX must be >= 0")
	case c.LLMRPS < 0:
		return errors.New("LLM_RPS must be >= 0")
	case c.LLMProvider != "groq" && c.LLMProvider != "gemini":
		return fmt.Errorf("LLM_PROVIDER must be groq or gemini, got %q", c.LLMProvider)
	case c.RateStatsEnabled && strings.TrimSpace(c.RateStatsRedisAddr) == "":
		return errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	return nil
}

// APIKey devolve a chave do provedor escolhido; vazia ativa a resposta de demonstração.
func (c Config) APIKey() string {
	if c.LLMProvider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.GroqAPIKey
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getenvDurationDefault aceita "90s", "24h" ou um inteiro em segundos.
func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getenvListDefault(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
