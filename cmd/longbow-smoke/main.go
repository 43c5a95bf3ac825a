// Command longbow-smoke runs the collection smoke routines against a
// running service, or against an in-process one with -embedded.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/23skdu/longbow-smoke/client"
	"github.com/23skdu/longbow-smoke/internal/logging"
	"github.com/23skdu/longbow-smoke/internal/smoke"
	"github.com/23skdu/longbow-smoke/internal/store"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := LoadConfig(".env")
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitUsage
	}

	fs := flag.NewFlagSet("longbow-smoke", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Address of the Flight collection service")
	fs.BoolVar(&cfg.Embedded, "embedded", cfg.Embedded, "Start an in-process service and test against it")
	fs.IntVar(&cfg.NB, "nb", cfg.NB, "Entities inserted per collection")
	fs.IntVar(&cfg.Dim, "dim", cfg.Dim, "Vector dimension")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Data generator seed (0 picks one from the clock)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Time limit for each routine")
	only := fs.String("only", strings.Join(cfg.Only, ","), "Comma separated routines to run ("+strings.Join(smoke.RoutineNames(), ",")+")")
	fs.StringVar(&cfg.DumpDir, "dump-dir", cfg.DumpDir, "Directory receiving parquet dumps of generated entities")
	fs.StringVar(&cfg.DataFrameFile, "dataframe-file", cfg.DataFrameFile, "Parquet file used by the dataframe routine")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or console")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	cfg.Only = splitList(*only)

	if err := ValidateConfig(&cfg); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return exitUsage
	}

	logger, err := logging.NewLogger(logging.Config{
		Format: cfg.LogFormat,
		Level:  cfg.LogLevel,
		Output: stdout,
	})
	if err != nil {
		fmt.Fprintf(stderr, "create logger: %v\n", err)
		return exitUsage
	}

	report, err := runSmoke(ctx, &cfg, logger)
	if report != nil {
		logReport(logger, report)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Smoke run failed")
		return exitFailed
	}
	return exitOK
}

func runSmoke(ctx context.Context, cfg *Config, logger zerolog.Logger) (*smoke.Report, error) {
	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, logger)
		defer stopMetrics()
	}

	addr := cfg.Addr
	if cfg.Embedded {
		srv, err := store.StartEmbedded("127.0.0.1:0", memory.NewGoAllocator(), logger, cfg.BuildGRPCServerOptions()...)
		if err != nil {
			return nil, fmt.Errorf("start embedded service: %w", err)
		}
		defer srv.Stop()
		addr = srv.Addr()
		logger.Info().Str("addr", addr).Msg("Embedded Flight service started")
	}

	registry := client.NewRegistry()
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close connections")
		}
	}()
	c, err := registry.Connect(ctx, client.DefaultAlias, addr, client.WithDialOptions(cfg.BuildGRPCDialOptions()...))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}

	suite, err := smoke.NewSuite(c, cfg.SmokeConfig(), logger)
	if err != nil {
		return nil, err
	}
	return suite.Run(ctx)
}

// serveMetrics exposes /metrics in the background and returns its shutdown.
func serveMetrics(addr string, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("address", addr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func logReport(logger zerolog.Logger, report *smoke.Report) {
	for _, r := range report.Results {
		ev := logger.Info()
		status := "passed"
		if r.Err != nil {
			ev = logger.Warn()
			status = "failed"
		}
		ev.Str("run_id", report.RunID).
			Str("routine", r.Routine).
			Str("status", status).
			Dur("elapsed", r.Duration).
			Msg("Routine result")
	}
	logger.Info().
		Str("run_id", report.RunID).
		Int("routines", len(report.Results)).
		Bool("passed", report.Passed()).
		Dur("elapsed", time.Since(report.Started)).
		Msg("Smoke run finished")
}
