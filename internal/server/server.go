// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: the store handle arrives from main, and
// New wires it through the service into the handlers.
//
//	main.go:    config.Load → store (sqlite | postgres | mongo) → server.New
//	server.New: store → SubscriptionService → SubscriptionHandler, DeliveryHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/menu-subscriptions/internal/auth"
	"github.com/sakif/menu-subscriptions/internal/config"
	"github.com/sakif/menu-subscriptions/internal/handler"
	"github.com/sakif/menu-subscriptions/internal/middleware"
	"github.com/sakif/menu-subscriptions/internal/repository"
	"github.com/sakif/menu-subscriptions/internal/service"
)

// requestTimeout bounds every request, store calls included. A store that
// does not answer in time surfaces as store_unavailable.
const requestTimeout = 10 * time.Second

// Server owns the router and the store handle. The store is closed when
// Start returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	repo   repository.SubscriberRepository
}

// New wires the store into the service and handlers and registers routes.
// It does not close repo on error; the caller still owns it until Start.
func New(cfg *config.Config, logger *slog.Logger, repo repository.SubscriberRepository) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		repo:   repo,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /subscribe                   → subscribe an email (form or JSON)
// GET    /unsubscribe?token=          → confirmation step (or commit when confirm is off)
// POST   /unsubscribe                 → commit; RFC 8058 one-click target
// GET    /healthz                     → liveness
// GET    /api/delivery/subscribers    → recipient list, bearer JWT only
//
// MIDDLEWARE ORDER:
// 1. RequestID, so the logger can print it
// 2. RealIP, so the logger prints the client and not the proxy
// 3. Recoverer, turns panics into 500s
// 4. Logger
// 5. Timeout, cancels the request context after requestTimeout
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Timeout(requestTimeout))

	subscriptions := service.NewSubscriptionService(s.repo, s.logger)
	subsHandler := handler.NewSubscriptionHandler(subscriptions, s.config.UnsubscribeConfirm, s.logger)

	s.router.Get("/healthz", subsHandler.HandleHealth)
	s.router.Post("/subscribe", subsHandler.HandleSubscribe)
	s.router.Get("/unsubscribe", subsHandler.HandleUnsubscribePage)
	s.router.Post("/unsubscribe", subsHandler.HandleUnsubscribe)

	// === Delivery API ===
	// Only registered when a signing secret is configured. Without it the
	// route does not exist at all, rather than answering 401.
	if !s.config.DeliveryEnabled() {
		s.logger.Warn("DELIVERY_JWT_SECRET not set, delivery API is disabled")
		return nil
	}

	tokens, err := auth.NewTokenService(s.config.DeliveryJWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	delivery, err := handler.NewDeliveryHandler(subscriptions, s.config.BaseURL, s.logger)
	if err != nil {
		return fmt.Errorf("creating delivery handler: %w", err)
	}

	s.router.Route("/api/delivery", func(r chi.Router) {
		r.Use(auth.RequireDeliveryToken(tokens))
		r.Get("/subscribers", delivery.HandleListActive)
	})
	return nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT/SIGTERM or a listener error, then shuts down
// gracefully and closes the store.
//
// Shutdown order:
// 1. Stop accepting new connections
// 2. Wait up to 30s for in-flight requests
// 3. Close the store (flushes the SQLite WAL, drains the pool)
func (s *Server) Start() error {
	defer func() {
		if err := s.repo.Close(); err != nil {
			s.logger.Error("failed to close store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("base_url", s.config.BaseURL),
			slog.String("store", s.config.StoreDriver),
			slog.Bool("unsubscribe_confirm", s.config.UnsubscribeConfirm),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
