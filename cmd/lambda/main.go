package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"sales-assistant/handler"
	"sales-assistant/internal/app"
	"sales-assistant/internal/config"
	"sales-assistant/pkg/logging"
)

// sessionIdleTimeout bounds the live sessions a warm container keeps; dropped
// sessions are resumed from the state table on their next turn.
const sessionIdleTimeout = 30 * time.Minute

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg := config.Load()
	cfg.StateTable = mustEnv("STATE_TABLE")
	logger := logging.New(cfg.LogLevel)

	// ---- AWS SDK config ----
	awsCfg, err := app.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Service ----
	a, err := app.Build(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build service", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	// ---- Handler ----
	h, err := handler.NewHandler(a.Manager,
		handler.WithLogger(logger),
		handler.WithSessionIdle(sessionIdleTimeout),
	)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		logging.Default().Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
