// Command twofactord serves the CampusMind two-factor API.
//
// Configuration comes from the environment (and a .env file when present):
// APP_ENV, APP_NAME, TWOFACTOR_* engine settings, TWOFACTOR_STORE selecting
// memory, redis, postgres, mongo or bolt, plus the HTTP_*, REDIS_*, PG_*,
// MONGODB_* and BOLT_* settings of the selected backend.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("twofactord stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
