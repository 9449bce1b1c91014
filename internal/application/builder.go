package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-covenant/infrastructure/llm"
	"github.com/ahrav/go-covenant/infrastructure/middleware"
	"github.com/ahrav/go-covenant/infrastructure/report"
	"github.com/ahrav/go-covenant/infrastructure/store"
	"github.com/ahrav/go-covenant/internal/analysis"
	"github.com/ahrav/go-covenant/internal/clause"
	"github.com/ahrav/go-covenant/internal/ports"
)

// ServiceName labels spans emitted by the LLM middleware.
const ServiceName = "covenant"

// Deps carries the process-wide collaborators Build does not create.
type Deps struct {
	Logger         *slog.Logger
	Metrics        ports.MetricsCollector
	TracerProvider trace.TracerProvider
	// Progress is forwarded to the pipeline.
	Progress func(done, total int)
}

// Runtime is a fully wired pipeline.
type Runtime struct {
	Config   *Config
	Registry *llm.Registry
	Rotator  *analysis.ModelRotator
	Analyzer *analysis.BatchAnalyzer
	Pipeline *analysis.Pipeline
	Budget   *middleware.BudgetManager
	// Cache is nil unless caching is enabled.
	Cache *llm.LRUCache
}

// Build wires the registry, middleware, rotator, analyzer and pipeline
// described by cfg. No provider is contacted; clients are created on
// first use.
func Build(cfg *Config, deps Deps) (*Runtime, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tp := deps.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	budget, err := middleware.NewBudgetManager(
		middleware.Budget{MaxTokens: cfg.Budget.MaxTokens, MaxCalls: cfg.Budget.MaxCalls},
		middleware.NewOTelBudgetObserverWithProvider(deps.Metrics, tp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create budget manager: %w", err)
	}

	// First entry is outermost: refused budget requests never reach the
	// breaker, and cache hits are neither paced nor counted as failures.
	chain := []llm.Middleware{
		budget.Middleware(),
		llm.TracingMiddlewareWithProvider(ServiceName, tp),
		llm.MetricsMiddleware(deps.Metrics),
	}
	var cache *llm.LRUCache
	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
		cache = llm.NewLRUCache(cfg.Cache.Size, ttl)
		chain = append(chain, llm.CacheMiddleware(cache, ttl))
	}
	chain = append(chain, llm.CircuitBreakerMiddlewareWithMetrics(
		cfg.CircuitBreaker.MaxFailures,
		time.Duration(cfg.CircuitBreaker.CooldownSeconds)*time.Second,
		deps.Metrics,
	))

	providers := providerTable(cfg)
	for name, p := range cfg.Providers {
		if p.RequestsPerSecond <= 0 {
			continue
		}
		burst := p.Burst
		if burst < 1 {
			burst = 1
		}
		pc := providers[name]
		pc.Middleware = append(pc.Middleware, llm.RateLimitMiddleware(rate.Limit(p.RequestsPerSecond), burst))
		providers[name] = pc
	}

	defaultProvider, _, _ := strings.Cut(cfg.Models[0], "/")
	registry, err := llm.NewRegistry(llm.RegistryConfig{
		Providers:         providers,
		DefaultProvider:   defaultProvider,
		DefaultTimeout:    cfg.Analysis.Timeout(),
		DefaultMiddleware: chain,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	rotator, err := analysis.NewModelRotator(cfg.Models)
	if err != nil {
		return nil, err
	}

	regulations := clause.NewRegulationMatcher(cfg.Regulations)
	prompts, err := analysis.NewPromptBuilder(cfg.PromptTemplate, regulations)
	if err != nil {
		return nil, err
	}

	analyzer, err := analysis.NewBatchAnalyzer(registry, rotator,
		analysis.WithMaxRetries(cfg.Analysis.MaxRetries),
		analysis.WithTimeout(cfg.Analysis.Timeout()),
		analysis.WithBackoff(cfg.Analysis.Backoff()),
		analysis.WithMaxTokens(cfg.Analysis.MaxTokens),
		analysis.WithTemperature(cfg.Analysis.Temperature),
		analysis.WithParser(analysis.NewResponseParser(regulations)),
		analysis.WithPromptBuilder(prompts),
		analysis.WithLogger(logger),
		analysis.WithTracerProvider(tp),
		analysis.WithMetrics(deps.Metrics),
	)
	if err != nil {
		return nil, err
	}

	pipeline, err := analysis.NewPipeline(analyzer, analysis.PipelineConfig{
		BatchSize:        cfg.Analysis.BatchSize,
		MaxWorkers:       cfg.Analysis.MaxWorkers,
		ReconcileRetries: cfg.Analysis.Reconcile(),
		Logger:           logger,
		Metrics:          deps.Metrics,
		Progress:         deps.Progress,
	})
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Config:   cfg,
		Registry: registry,
		Rotator:  rotator,
		Analyzer: analyzer,
		Pipeline: pipeline,
		Budget:   budget,
		Cache:    cache,
	}, nil
}

// OpenTabularStore returns the configured sink and a release function.
// Kind "none" yields a nil store.
func OpenTabularStore(ctx context.Context, cfg StoreConfig, runID string, logger *slog.Logger) (ports.TabularStore, func(), error) {
	switch cfg.Kind {
	case StoreCSV:
		return store.NewCSVStore(cfg.Path, logger), func() {}, nil
	case StorePostgres:
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("%s environment variable not set for postgres store", cfg.DSNEnv)
		}
		s, err := store.OpenPostgres(ctx, dsn, cfg.Table, runID, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, func() {}, nil
	}
}

// OpenReportStore returns the report bucket, or nil when reporting is off.
func OpenReportStore(cfg ReportConfig) (ports.ReportStore, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	s, err := report.NewObjectStore(report.ObjectStoreConfig{
		Endpoint:   cfg.Endpoint,
		Region:     cfg.Region,
		AccessKey:  os.Getenv(cfg.AccessKeyEnv),
		SecretKey:  os.Getenv(cfg.SecretKeyEnv),
		Bucket:     cfg.Bucket,
		UseSSL:     cfg.UseSSL,
		LinkExpiry: time.Duration(cfg.LinkExpiryHours) * time.Hour,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenNotifier returns the SMTP notifier, or nil when alerts are off.
func OpenNotifier(cfg NotifyConfig, logger *slog.Logger) (ports.AlertNotifier, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	n, err := report.NewSMTPNotifier(report.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: os.Getenv(cfg.UsernameEnv),
		Password: os.Getenv(cfg.PasswordEnv),
		From:     cfg.From,
		To:       cfg.To,
	}, report.WithNotifierLogger(logger))
	if err != nil {
		return nil, err
	}
	return n, nil
}
