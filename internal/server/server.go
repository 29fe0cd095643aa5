package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sobersavings/sobersavings/internal/auth"
	"github.com/sobersavings/sobersavings/internal/logging"
	"github.com/sobersavings/sobersavings/internal/metrics"
	"github.com/sobersavings/sobersavings/internal/store"
)

// Run starts the API server with graceful shutdown.
func Run(ctx context.Context, version string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "api",
	})

	log.Info().Str("version", version).Msg("Starting Sober Savings API")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.Open(cfg.StoreDir())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sessions, err := auth.NewSessionStore(cfg.SessionsDir())
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer sessions.Close()

	mux := http.NewServeMux()
	deps := &Deps{
		Config:   cfg,
		Store:    st,
		Sessions: sessions,
		Version:  version,
	}
	RegisterRoutes(mux, deps)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           securityHeaders(requestID(mux)),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go runUserPlanMetrics(ctx, st)

	go func() {
		log.Info().Str("addr", addr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down...")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	cancel()
	log.Info().Msg("API stopped")
	return nil
}

// runUserPlanMetrics keeps the per-plan user gauge current.
func runUserPlanMetrics(ctx context.Context, st *store.Store) {
	const interval = 60 * time.Second

	update := func() {
		counts, err := st.CountByPlan()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to count users by plan for metrics")
			return
		}
		for _, plan := range []store.Plan{store.PlanFree, store.PlanPro} {
			metrics.UsersByPlan.WithLabelValues(string(plan)).Set(float64(counts[plan]))
		}
	}

	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
