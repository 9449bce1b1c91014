// Command covenant extracts the clauses of a contract, rates each one for
// regulatory risk with a rotating pool of LLMs, and publishes the results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-covenant/infrastructure/chunker"
	"github.com/ahrav/go-covenant/infrastructure/middleware"
	"github.com/ahrav/go-covenant/internal/application"
)

type options struct {
	configPath   string
	input        string
	contractName string
	description  string
	notify       bool
	recipient    string
	artifactDir  string
	metricsAddr  string
	verbose      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration (defaults are used when empty)")
	flag.StringVar(&opts.input, "input", "", "Contract document to analyze (.pdf or plain text)")
	flag.StringVar(&opts.contractName, "contract-name", "", "Contract name shown in the alert")
	flag.StringVar(&opts.description, "description", "", "Short contract description shown in the alert")
	flag.BoolVar(&opts.notify, "notify", false, "Send the compliance alert email")
	flag.StringVar(&opts.recipient, "recipient", "", "Alert recipient, overriding the configured address")
	flag.StringVar(&opts.artifactDir, "artifacts", "artifacts", "Directory for the rewrite digest")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flag.BoolVar(&opts.verbose, "v", false, "Enable debug logging")
	flag.Parse()

	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	if opts.input == "" {
		return errors.New("-input is required")
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(reg)
	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	rt, err := application.Build(cfg, application.Deps{
		Logger:  logger,
		Metrics: metrics,
		Progress: func(done, total int) {
			logger.Debug("progress", "batches_done", done, "batches_total", total)
		},
	})
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	tabular, release, err := application.OpenTabularStore(ctx, cfg.Store, runID, logger)
	if err != nil {
		return err
	}
	defer release()

	reports, err := application.OpenReportStore(cfg.Report)
	if err != nil {
		return err
	}
	notifier, err := application.OpenNotifier(cfg.Notify, logger)
	if err != nil {
		return err
	}

	res, err := rt.Execute(ctx, application.Job{
		RunID:        runID,
		DocumentPath: opts.input,
		ContractName: opts.contractName,
		Description:  opts.description,
		Notify:       opts.notify,
		Recipient:    opts.recipient,
		ArtifactDir:  opts.artifactDir,
	}, application.Sinks{
		Chunker:  chunker.New(chunker.WithLogger(logger)),
		Store:    tabular,
		Reports:  reports,
		Notifier: notifier,
	}, logger)
	if res != nil {
		name := opts.contractName
		if name == "" {
			name = filepath.Base(opts.input)
		}
		fmt.Println(renderSummary(name, runID, res, rt.Budget.Usage()))
	}
	return err
}

func loadConfig(path string) (*application.Config, error) {
	loader, err := application.NewConfigLoader()
	if err != nil {
		return nil, err
	}
	if path == "" {
		cfg := application.DefaultConfig()
		if err := loader.Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return loader.LoadFromFile(path)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
