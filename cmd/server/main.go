// Command server starts the AegisID API key risk assessment service.
//
// Usage:
//
//	go run ./cmd/server [flags]
//
// Flags:
//
//	-seed  Path to an api_keys JSON document to score on startup (default: data/keys.json)
//
// Configuration comes from the environment (a .env file is honoured); see
// internal/config. Without WORKFLOW_API_KEY and WORKFLOW_ID the service runs
// in degraded mode: the remote scoring path is blocked and every record is
// scored by the local rule.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"aegis/risk-api/internal/api"
	"aegis/risk-api/internal/assess"
	"aegis/risk-api/internal/config"
	"aegis/risk-api/internal/domain"
	"aegis/risk-api/internal/remote"
	"aegis/risk-api/internal/scoring"
	"aegis/risk-api/internal/store"
	"aegis/risk-api/internal/webhook"
)

func main() {
	seedFile := flag.String("seed", "data/keys.json", "path to an api_keys JSON document to score on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})))

	// ── Wire dependencies ─────────────────────────────────────────────────────
	rules := scoring.DefaultRuleSet()
	rules.Base = cfg.ScoreBase

	var rc *remote.Client
	if cfg.RemoteEnabled() {
		rc = remote.NewClient(cfg.WorkflowBaseURL, cfg.WorkflowAPIKey, cfg.WorkflowID, cfg.RemoteTimeout)
	} else {
		slog.Warn("remote workflow credentials not configured, running in degraded local-only mode")
	}

	s := store.New()
	scorer := assess.New(rules, rc, s)
	notifier := webhook.New(s)
	handler := api.NewHandler(s, scorer, notifier, cfg.RemoteEnabled())
	router := api.NewRouter(handler)

	// ── Score seed document ───────────────────────────────────────────────────
	if err := loadSeedRun(s, scorer, *seedFile); err != nil {
		// Non-fatal: the API works fine without an initial run.
		slog.Warn("seed document not loaded", "file", *seedFile, "reason", err.Error())
	}

	// ── Start HTTP server ─────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "port", cfg.Port, "remote_enabled", cfg.RemoteEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

// loadSeedRun reads an api_keys JSON document, scores it, and stores the
// resulting run so the API starts with something to show.
func loadSeedRun(s *store.Store, scorer *assess.Scorer, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	var file domain.KeyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	if len(file.APIKeys) == 0 {
		return fmt.Errorf("document has no api_keys")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	assessments, mode := scorer.ScoreBatch(ctx, file.APIKeys)
	run := &domain.AssessmentRun{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Mode:        mode,
		Assessments: assessments,
		Summary:     domain.Summarize(assessments),
	}
	if err := s.SaveRun(run); err != nil {
		return err
	}

	slog.Info("seed run scored", "file", filePath, "run_id", run.ID, "keys", len(assessments), "mode", mode)
	return nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
