package main

import (
	"context"
	"errors"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/abbakary/okpos/internal/config"
	"github.com/abbakary/okpos/internal/httpapi"
	"github.com/abbakary/okpos/internal/hub"
	"github.com/abbakary/okpos/internal/natsutil"
	"github.com/abbakary/okpos/internal/store/postgres"
	"github.com/abbakary/okpos/internal/telemetry"
	"github.com/abbakary/okpos/internal/worker"
	"github.com/abbakary/okpos/internal/workflow"
)

const serviceName = "garage-service"

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup(serviceName)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool, postgres.Options{})
	engine := workflow.NewEngine(workflow.Options{StrictAmounts: cfg.StrictAmountParsing})
	sessions := httpapi.NewIntakeSessions(cfg.IntakeSessionTTL, nil)
	realtime := hub.New()

	sinks := []worker.Sink{
		worker.NewNotificationSink(store, worker.NotificationConfig{
			SMS:   worker.ChannelConfig{Provider: cfg.SMSProvider, WebhookURL: cfg.SMSWebhookURL, WebhookToken: cfg.SMSWebhookToken},
			Email: worker.ChannelConfig{Provider: cfg.EmailProvider, WebhookURL: cfg.EmailWebhookURL, WebhookToken: cfg.EmailWebhookToken},
		}),
		worker.NewHubSink(realtime),
	}
	nc, err := natsutil.Connect(cfg.NATSURL, serviceName)
	if err != nil {
		log.Fatalf("nats connect: %v", err)
	}
	if nc != nil {
		defer nc.Drain()
		sinks = append(sinks, worker.NewNATSSink(nc))
	}
	relay := worker.NewRelay(store, worker.RelayConfig{Consumer: serviceName, BatchSize: cfg.OutboxBatchSize}, sinks...)

	handler := httpapi.NewHandler(store, engine, sessions, httpapi.Options{
		IntakeRequireContact: cfg.IntakeRequireContact,
		SessionTTL:           cfg.SessionTTL,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:      cfg.RateLimitPerMinute,
		IPBurst:          cfg.RateLimitBurst,
		SessionPerMinute: cfg.SessionRateLimitPerMinute,
		SessionBurst:     cfg.SessionRateLimitBurst,
		TrustProxy:       cfg.TrustProxy,
	})

	mux := handler.Routes()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/realtime/", httpapi.RealtimeHandler(store, realtime))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(httpapi.AuthMiddleware(store, mux))), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("%s listening on %s", serviceName, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		worker.Start(gctx, cfg.OutboxPollInterval, relay)
		return nil
	})
	g.Go(func() error {
		sessions.StartSweeper(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Prune(30 * time.Minute)
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
