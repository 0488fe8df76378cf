package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fitline/server/pkg/api"
	"github.com/fitline/server/pkg/bootstrap"
	"github.com/fitline/server/pkg/infrastructure/sentry"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.NewService(ctx, "server")
	if err != nil {
		slog.Error("Service init failed", "error", err)
		os.Exit(1)
	}
	defer svc.Close()
	defer sentry.RecoverAndCapture(svc.Logger)

	if svc.Config.APIToken == "" {
		svc.Logger.Warn("UI_API_TOKEN not set - API token gate disabled")
	}

	handler := api.NewServer(api.Deps{
		Tokens:      svc.Tokens,
		Metrics:     svc.Aggregator,
		Persistence: svc.Persistence,
		Profiles:    svc.DB,
		Weight:      svc.Weight,
		Meals:       svc.Persistence,
		Images:      svc.Images,
		Coaching:    svc.Coaching,
	}, svc.Config.APIToken, svc.Config.DefaultUserID, svc.Logger.With("component", "api")).Routes()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		svc.Logger.Info("Listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			svc.Logger.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		svc.Logger.Warn("Graceful shutdown failed", "error", err)
	}
}
