// Command qstail subscribes to a change feed and prints every notification
// as a JSON line. It exists as the smallest end-to-end consumer of the
// driver: configuration file, worker-pool dispatch, session teardown, and an
// optional metrics endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c360/querystream/config"
	"github.com/c360/querystream/driver"
	"github.com/c360/querystream/metric"
	"github.com/c360/querystream/pkg/executor"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config file")
		addr        = flag.String("addr", "", "engine address (overrides config)")
		queryJSON   = flag.String("query", "", "query body as JSON (required)")
		stream      = flag.String("stream", "main", "stream name used in output")
		metricsAddr = flag.String("metrics", "", "address to serve Prometheus metrics on")
		logLevel    = flag.String("log-level", "info", "debug, info, warn, or error")
	)
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	if *queryJSON == "" {
		fmt.Fprintln(os.Stderr, "qstail: -query is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(logger, *configPath, *addr, *queryJSON, *stream, *metricsAddr); err != nil {
		logger.Error("qstail failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

func run(logger *slog.Logger, configPath, addr, queryJSON, stream, metricsAddr string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if addr != "" {
		cfg.Address = addr
	}

	var query any
	if err := json.Unmarshal([]byte(queryJSON), &query); err != nil {
		return fmt.Errorf("parse query: %w", err)
	}

	registry := metric.NewMetricsRegistry()
	if metricsAddr != "" {
		go func() {
			server := &http.Server{
				Addr:              metricsAddr,
				Handler:           metric.Handler(registry),
				ReadHeaderTimeout: 5 * time.Second,
			}
			logger.Info("serving metrics", "addr", metricsAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	conn, err := driver.ConnectWithConfig(cfg, driver.WithLogger(logger), driver.WithMetrics(registry))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := executor.NewPool(cfg.Pool.Workers, cfg.Pool.QueueSize)
	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = pool.Stop(5 * time.Second) }()

	session, err := driver.NewSession(conn, driver.NewPoolDispatcher(pool, logger), nil, 0)
	if err != nil {
		return err
	}
	defer session.Close()

	if _, err := session.Subscribe(stream, query, nil); err != nil {
		return err
	}
	logger.Info("subscribed", "stream", stream)

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case ev := <-session.Events():
			out := map[string]any{"stream": ev.Stream}
			if ev.Old != nil {
				out["old"] = ev.Old
			}
			if ev.New != nil {
				out["new"] = ev.New
			}
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("write event: %w", err)
			}
		}
	}
}
