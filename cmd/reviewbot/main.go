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

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/reviewbot/internal/adapter/driven/github"
	"github.com/ericfisherdev/reviewbot/internal/adapter/driven/langflow"
	"github.com/ericfisherdev/reviewbot/internal/adapter/driving/webhook"
	"github.com/ericfisherdev/reviewbot/internal/application"
	"github.com/ericfisherdev/reviewbot/internal/config"
	"github.com/ericfisherdev/reviewbot/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"auth_mode", cfg.GitHubAuthMode,
		"langflow_protocol", cfg.LangflowProtocol,
		"langflow_configured", cfg.LangflowEndpoint != "" && cfg.LangflowAPIKey != "",
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Select the credential strategy.
	var clients driven.GitHubClientSource
	switch cfg.GitHubAuthMode {
	case config.AuthModeToken:
		clients = githubadapter.NewTokenSource(cfg.GitHubToken)
	default:
		auth, err := githubadapter.NewAppAuth(cfg.GitHubAppID, cfg.GitHubPrivateKey, cfg.GitHubInstallationID)
		if err != nil {
			return err
		}
		clients = githubadapter.NewAppSource(auth)
	}

	// 4. Wire the analysis client and workflow services.
	analysis := langflow.NewClient(
		cfg.LangflowEndpoint,
		cfg.LangflowAPIKey,
		langflow.Protocol(cfg.LangflowProtocol),
		slog.Default(),
	)
	reviewSvc := application.NewReviewService(clients, analysis, cfg.ReviewFlowID, slog.Default())
	mergeSvc := application.NewMergeService(clients, analysis, cfg.MergeFlowID, slog.Default())

	// 5. Wire the inbound webhook server.
	server := webhook.NewServer(cfg.WebhookSecret, reviewSvc, mergeSvc, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("reviewbot started", "listen_addr", cfg.ListenAddr)

	// 6. Wait for shutdown signal; drain in-flight requests. Dispatched
	// workflows are detached and finish on their own.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
