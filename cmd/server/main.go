// Command server sobe o backend do portfólio: /api/portfolio, /api/chat (com o gate de
// admissão), /api/chat/limits e /api/reports/{filename}.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-backend/internal/config"
	"portfolio-backend/internal/llm"
	"portfolio-backend/internal/logging"
	"portfolio-backend/internal/portfolio"
	"portfolio-backend/internal/reports"
	"portfolio-backend/internal/server"
	"portfolio-backend/middleware/ratelimit"
	"portfolio-backend/middleware/ratelimit/application"
	"portfolio-backend/middleware/ratelimit/domain"
	"portfolio-backend/middleware/ratelimit/infra"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// CLI são as flags de linha de comando; o resto vem do ambiente.
type CLI struct {
	EnvFile   string `name:"env-file" help:"Arquivo .env carregado antes do ambiente (não sobrescreve variáveis já definidas)." default:".env"`
	LogLevel  string `name:"log-level" help:"Nível de log (debug, info, warn, error). Padrão: LOG_LEVEL."`
	LogFormat string `name:"log-format" help:"Formato de log (text, json). Padrão: LOG_FORMAT."`
	Addr      string `name:"addr" help:"Endereço de escuta. Padrão: LISTEN_ADDR."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("portfolio-backend"),
		kong.Description("Backend do portfólio com chat limitado por janelas deslizantes e orçamento diário de tokens."),
		kong.UsageOnError(),
	)

	if err := run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cli CLI) error {
	if err := config.LoadEnvFile(cli.EnvFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.LogFormat = cli.LogFormat
	}
	if cli.Addr != "" {
		cfg.ListenAddr = cli.Addr
	}

	logger, err := logging.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gate, windows, cleanup, err := buildGate(ctx, cfg, reg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	provider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}

	estimator, err := llm.NewTokenEstimator("cl100k_base")
	if err != nil {
		logger.Warn("token estimator falling back to character count", "error", err)
	}

	pool := infra.NewChanPool(cfg.ChatConcurrencyMax)

	var metrics *server.Metrics
	if cfg.MetricsEnabled {
		if metrics, err = server.NewMetrics(reg); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		err = server.RegisterBudgetGauge(reg, func() float64 {
			remaining, _ := gate.Budget.Snapshot(time.Now())
			return float64(remaining)
		})
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		err = server.RegisterInFlightGauge(reg, func() float64 { return float64(pool.InUse()) })
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	store := portfolio.NewStore(cfg.PortfolioFile, logger)

	handler := server.New(server.Deps{
		Gate:      gate,
		Provider:  provider,
		Estimator: estimator,
		Portfolio: store,
		Reports:   reports.New(cfg.ReportDirs, logger),
		Logger:    logger,
		KeyHeader: cfg.RateKeyHeader,
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.ChatConcurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.ChatConcurrencyTimeout,
			Pool:           pool,
			OnReject:       metrics.ChatBusy,
		},
		CORSOrigin: cfg.CORSOrigin,
		Metrics:    metrics,
		Gatherer:   reg,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	windows.StartJanitor(gctx)

	g.Go(func() error {
		logger.Info("portfolio backend listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.PortfolioWatch {
		g.Go(func() error { return store.Watch(gctx) })
	}

	logger.Info("gate",
		"minute_limit", cfg.RateLimitRequests,
		"minute_window", cfg.RateLimitWindow,
		"daily_limit", cfg.RateLimitDailyRequests,
		"daily_window", cfg.RateLimitDailyWindow,
		"daily_tokens", cfg.DailyTokenLimit,
		"max_tokens_per_request", cfg.MaxTokensPerRequest,
		"max_input_length", cfg.MaxInputLength,
		"key_header", cfg.RateKeyHeader,
		"exempt", len(cfg.RateLimitExempt),
		"janitor_every", windows.CleanupEvery(),
	)
	logger.Info("chat",
		"provider", cfg.LLMProvider,
		"demo", cfg.APIKey() == "",
		"llm_rps", cfg.LLMRPS,
		"concurrency_max", cfg.ChatConcurrencyMax,
		"concurrency_timeout", cfg.ChatConcurrencyTimeout,
	)

	return g.Wait()
}

func buildGate(ctx context.Context, cfg config.Config, reg prometheus.Registerer, logger *slog.Logger) (*application.Gate, *infra.WindowStore, func(), error) {
	cleanup := func() {}
	clock := domain.SystemClock

	windows := infra.NewWindowStore(
		domain.WindowRule{Limit: cfg.RateLimitRequests, Window: cfg.RateLimitWindow},
		domain.WindowRule{Limit: cfg.RateLimitDailyRequests, Window: cfg.RateLimitDailyWindow},
		infra.WithCleanupEvery(cfg.JanitorEvery),
		infra.WithStoreClock(clock),
	)

	exempt, err := infra.ParseExemptList(cfg.RateLimitExempt)
	if err != nil {
		return nil, nil, cleanup, fmt.Errorf("RATE_LIMIT_EXEMPT: %w", err)
	}

	var stats infra.MultiStatsStore
	if cfg.MetricsEnabled {
		ps, err := infra.NewPrometheusStatsStore(reg)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("gate stats: %w", err)
		}
		stats = append(stats, ps)
	}
	if cfg.RateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateStatsRedisAddr,
			Password: cfg.RateStatsRedisPassword,
			DB:       cfg.RateStatsRedisDB,
		})
		cleanup = func() { _ = rdb.Close() }

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			cleanup()
			return nil, nil, func() {}, fmt.Errorf("redis stats ping: %w", err)
		}

		stats = append(stats, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.RateStatsPrefix),
			infra.WithStatsTTL(cfg.RateStatsTTL),
			infra.WithStatsBucket(cfg.RateStatsBucket),
			infra.WithStatsTrackKeys(cfg.RateStatsTrackKeys),
		))
		logger.Info("gate stats in redis", "addr", cfg.RateStatsRedisAddr, "bucket", cfg.RateStatsBucket, "ttl", cfg.RateStatsTTL)
	}

	gate := &application.Gate{
		Windows: windows,
		Budget:  infra.NewBudget(cfg.DailyTokenLimit, cfg.RateLimitDailyWindow, time.Now()),
		Limits: application.Limits{
			MaxInputLength:      cfg.MaxInputLength,
			MaxTokensPerRequest: cfg.MaxTokensPerRequest,
		},
		Clock:  clock,
		Stats:  stats,
		Exempt: exempt,
		Logger: logger,
	}
	return gate, windows, cleanup, nil
}

func buildProvider(ctx context.Context, cfg config.Config, logger *slog.Logger) (llm.Provider, error) {
	if cfg.APIKey() == "" {
		logger.Warn("no LLM API key configured, chat answers with a demo reply", "provider", cfg.LLMProvider)
		return llm.DemoProvider{}, nil
	}

	var p llm.Provider
	switch cfg.LLMProvider {
	case "gemini":
		gp, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		p = gp
	default:
		p = llm.NewGroqProvider(cfg.GroqAPIKey,
			llm.WithGroqBaseURL(cfg.GroqBaseURL),
			llm.WithGroqModel(cfg.LLMModel),
			llm.WithHTTPClient(&http.Client{Timeout: cfg.LLMTimeout}),
			llm.WithMaxRetries(cfg.LLMMaxRetries),
			llm.WithLogger(logger),
		)
	}
	return llm.NewPaced(p, cfg.LLMRPS, cfg.LLMBurst), nil
}
