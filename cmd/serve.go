package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/config"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/database"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/handler"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/ledger"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/notify"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/service"
	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/tracing"
)

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := a.cfg

	// ── 1. Tracing ────────────────────────────────────────────────────────
	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn(log.CatConfig, "tracer shutdown", "error", err)
		}
	}()

	// ── 2. Store ──────────────────────────────────────────────────────────
	store, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Warn(log.CatDB, "store close", "error", err)
		}
	}()

	// ── 3. Notifications ──────────────────────────────────────────────────
	publisher := newPublisher(cfg.AMQP)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn(log.CatNotify, "publisher close", "error", err)
		}
	}()

	// ── 4. Wire up layers ─────────────────────────────────────────────────
	l := ledger.New(store, cfg.Ledger)
	opts := []service.Option{
		service.WithPublisher(publisher),
		service.WithTracer(tp.Tracer()),
	}
	router := handler.NewRouter(handler.Deps{
		Registrations:  service.NewRegistrationService(store, l, opts...),
		Events:         service.NewEventService(store, l, opts...),
		Store:          store,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		IdempotencyTTL: cfg.Idempotency.TTL,
	})

	// ── 5. Start server with graceful shutdown ────────────────────────────
	ln, err := net.Listen("tcp", ":"+cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(log.CatHTTP, "server listening", "addr", ln.Addr().String(),
			"store", store.Name(), "read_only", store.ReadOnly(), "tracing", tp.Enabled())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info(log.CatHTTP, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info(log.CatHTTP, "server stopped")
	return nil
}

// newPublisher connects to RabbitMQ when a URL is configured. An
// unreachable broker only disables notifications.
func newPublisher(cfg config.AMQPConfig) notify.Publisher {
	if cfg.URL == "" {
		return notify.Noop{}
	}
	p, err := notify.DialAMQP(cfg.URL, cfg.Exchange)
	if err != nil {
		log.ErrorErr(log.CatNotify, "lifecycle notifications disabled", err)
		return notify.Noop{}
	}
	log.Info(log.CatNotify, "publishing lifecycle messages", "exchange", cfg.Exchange)
	return p
}
