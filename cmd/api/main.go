// Package main implements the FinGraph API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/FinGraphAI/fingraph-mvp/engine/graph"
	"github.com/FinGraphAI/fingraph-mvp/pkg/fn"
	"github.com/FinGraphAI/fingraph-mvp/pkg/metrics"
	"github.com/FinGraphAI/fingraph-mvp/pkg/mid"
	"github.com/FinGraphAI/fingraph-mvp/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	NATSURL     string
	CORSOrigin  string
	MetricsPort int
	ExportBatch int
	RateLimit   float64
	SeedData    bool
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		Neo4jURL:    envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:   envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:   envOr("NEO4J_PASS", "password"),
		NATSURL:     os.Getenv("NATS_URL"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		MetricsPort: envIntOr("METRICS_PORT", 0),
		ExportBatch: envIntOr("EXPORT_BATCH_SIZE", graph.DefaultExportBatchSize),
		RateLimit:   float64(envIntOr("RATE_LIMIT_RPS", 0)),
		SeedData:    strings.EqualFold(envOr("SEED_DATA", "false"), "true"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	// The store usually comes up alongside this process; give it a moment.
	res := fn.Retry(ctx, fn.RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Second,
		MaxWait:     10 * time.Second,
		Jitter:      true,
	}, func(ctx context.Context) fn.Result[struct{}] {
		if err := driver.VerifyConnectivity(ctx); err != nil {
			return fn.Err[struct{}](err)
		}
		return fn.Ok(struct{}{})
	})
	if _, err := res.Unwrap(); err != nil {
		return fmt.Errorf("neo4j connect: %w", err)
	}

	store := graph.New(driver)

	if cfg.SeedData {
		if err := graph.Seed(ctx, store); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.Info("sample data seeded")
	}

	// --- Connect to NATS (optional) ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn("nats connect failed, events disabled", "err", err)
		} else {
			defer nc.Close()
		}
	}

	// --- Metrics ---
	reg := metrics.New()
	if cfg.MetricsPort > 0 {
		reg.ServeAsync(cfg.MetricsPort)
	}

	srv := newServer(store, logger, reg, nc, cfg.ExportBatch)

	mws := []mid.Middleware{
		mid.Recover(logger),
		mid.Logger(logger),
		mid.Metrics(reg),
		mid.OTel("fingraph-api"),
		mid.CORS(cfg.CORSOrigin),
	}
	if cfg.RateLimit > 0 {
		mws = append(mws, mid.RateLimit(resilience.NewLimiter(resilience.LimiterOpts{
			Rate:  cfg.RateLimit,
			Burst: int(cfg.RateLimit),
		})))
	}
	handler := mid.Chain(srv.routes(), mws...)

	httpSrv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Bulk CSV exports stream for a while on large graphs.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
