// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hilvik/vivum-demo-v1/internal/config"
	"github.com/hilvik/vivum-demo-v1/internal/engine"
	"github.com/hilvik/vivum-demo-v1/internal/handler"
	natsclient "github.com/hilvik/vivum-demo-v1/internal/nats"
	"github.com/hilvik/vivum-demo-v1/internal/resolver"
	"github.com/hilvik/vivum-demo-v1/internal/reveal"
	"github.com/hilvik/vivum-demo-v1/internal/service"
	"github.com/hilvik/vivum-demo-v1/pkg/logger"
	"github.com/hilvik/vivum-demo-v1/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting API server", zap.String("resolver", cfg.Resolver))

	// Initialize tracing if enabled
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "vivum-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	res, err := resolver.FromConfig(cfg)
	if err != nil {
		log.Fatal("failed to create resolver", zap.Error(err))
	}

	newEngine := func(sessionID string) *engine.Engine {
		return engine.New(res,
			engine.WithID(sessionID),
			engine.WithLogger(log),
			engine.WithScheduler(reveal.NewScheduler(reveal.WithInterval(cfg.RevealInterval))),
			engine.WithResolveTimeout(cfg.ResolveTimeout),
		)
	}

	sessionOpts := []service.Option{
		service.WithIdleTimeout(cfg.SessionIdleTimeout),
		service.WithMaxSessions(cfg.MaxSessions),
	}

	// NATS is optional; without it events only reach SSE subscribers.
	var natsChecker handler.ConnectionChecker
	var publisher *natsclient.Publisher
	if cfg.NATSURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		natsClient, err := natsclient.Connect(connectCtx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		cancel()
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		natsChecker = natsClient
		publisher = natsclient.NewPublisher(natsClient, log)
		sessionOpts = append(sessionOpts, service.WithEventSink(publisher))
	}

	sessions := service.NewSessionService(newEngine, log, sessionOpts...)
	go sessions.Run(ctx)

	router := handler.NewRouter(handler.RouterConfig{
		Sessions:          sessions,
		Logger:            log,
		NATS:              natsChecker,
		InviteCode:        cfg.InviteCode,
		JWTSecret:         cfg.JWTSecret,
		TokenTTL:          cfg.JWTExpiration,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Closing the sessions ends every engine subscription, which lets the
	// publisher drain.
	sessions.Close()
	if publisher != nil {
		publisher.Wait()
	}

	log.Info("server stopped")
}
