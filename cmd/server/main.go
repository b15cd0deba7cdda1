// Command server wires the chefmate backend: the payment webhook pipeline,
// the chat ingress, user documents, and the audit publisher. Business logic
// lives in the internal packages; main only builds and connects them.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"chefmate/internal/audit"
	"chefmate/internal/billing"
	billinghandler "chefmate/internal/billing/handler"
	billingmetrics "chefmate/internal/billing/metrics"
	"chefmate/internal/billing/stripeapi"
	"chefmate/internal/chat"
	"chefmate/internal/chat/assistant"
	chathandler "chefmate/internal/chat/handler"
	chatmetrics "chefmate/internal/chat/metrics"
	"chefmate/internal/docs"
	docshandler "chefmate/internal/docs/handler"
	"chefmate/internal/notify"
	"chefmate/internal/platform/config"
	"chefmate/internal/platform/httpserver"
	"chefmate/internal/platform/logger"
	"chefmate/internal/platform/middleware"
	"chefmate/internal/platform/postgres"
	platformredis "chefmate/internal/platform/redis"
	"chefmate/internal/ratelimit"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Error("schema bootstrap failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit trail: outbox in Postgres, drained to Kafka when brokers are
	// configured.
	auditStore := audit.NewPostgresStore(db)
	recorder := audit.NewRecorder(auditStore, log)
	var publisher *audit.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = audit.NewPublisher(ctx, auditStore, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
	} else {
		log.Warn("kafka brokers not configured, audit entries stay in the outbox")
	}

	// Messaging platform side effects.
	botClient := notify.NewClient(cfg.Messaging.APIBaseURL, cfg.Messaging.ChannelToken, log)
	var menus billing.MenuSwitcher = notify.NoopSwitcher{}
	if cfg.Messaging.ChannelToken != "" {
		menus = notify.NewSwitcher(botClient, cfg.Messaging.PremiumMenuID, cfg.Messaging.RegularMenuID, log)
	}

	// Billing pipeline.
	entitlementStore := billing.NewPostgresEntitlementStore(db)
	ledgerStore := billing.NewPostgresLedgerStore(db)
	payments := stripeapi.New(cfg.Stripe.APIKey)
	var fetcher billing.SubscriptionFetcher
	if payments != nil {
		fetcher = payments
	} else {
		log.Warn("stripe api key not configured, subscription lookups disabled")
	}
	billingService := billing.NewService(
		entitlementStore, ledgerStore, fetcher, menus, recorder, log, billingmetrics.New())
	billingHandler := billinghandler.New(billingService, log,
		billing.Channel{Name: "live", Secret: cfg.Stripe.WebhookSecret},
		billing.Channel{Name: "test", Secret: cfg.Stripe.TestWebhookSecret},
	)

	// Documents.
	docStore := docs.NewPostgresStore(db)
	docService := docs.NewService(docStore, log)
	docHandler := docshandler.New(docService, log)

	// Chat ingress.
	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, "chefmate:ratelimit:",
			ratelimit.Limit{Limit: 20, Window: time.Minute})
	} else {
		limiter = ratelimit.NewMemoryLimiter(ratelimit.Limit{Limit: 20, Window: time.Minute})
	}
	chatService := chat.NewService(
		assistant.NewClient(cfg.Assistant.BaseURL, cfg.Assistant.APIKey),
		botClient,
		billingService,
		docStore,
		limiter,
		chat.Models{Regular: cfg.Assistant.Model, Premium: cfg.Assistant.PremiumModel},
		log,
		chatmetrics.New(),
	)
	chatHandler := chathandler.New(chatService, log, cfg.Messaging.ChannelSecret)

	router := chi.NewRouter()
	router.Use(middleware.RequestMeta)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Webhook ingress authenticates by signature, not by user token.
	billingHandler.Register(router)
	chatHandler.Register(router)

	// User-facing document API behind JWT auth.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(middleware.NewHS256Validator(cfg.Auth.JWTSigningKey), log))
		docHandler.Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting chefmate server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if publisher != nil {
		g.Go(func() error {
			err := publisher.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
