// Command seed loads the sample fraud graph into Neo4j: a handful of users
// with overlapping identities and transactions sharing devices. Intended for
// demos and local development.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/FinGraphAI/fingraph-mvp/engine/graph"
)

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := envOr("NEO4J_URL", "neo4j://localhost:7687")
	user := envOr("NEO4J_USER", "neo4j")
	pass := envOr("NEO4J_PASS", "password")

	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return err
	}
	defer driver.Close(ctx)

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return err
	}

	store := graph.New(driver)
	if err := graph.Seed(ctx, store); err != nil {
		return err
	}
	logger.Info("sample data seeded", "url", url)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
