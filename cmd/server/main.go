package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"contacts/internal/audit"
	auditkafka "contacts/internal/audit/kafka"
	"contacts/internal/contact"
	"contacts/internal/contact/handler"
	contactmetrics "contacts/internal/contact/metrics"
	"contacts/internal/contact/service"
	"contacts/internal/contact/store"
	httpapi "contacts/internal/http"
	"contacts/internal/idempotency"
	"contacts/internal/platform/config"
	"contacts/internal/platform/httpserver"
	"contacts/internal/platform/logger"
	"contacts/internal/platform/metrics"
	"contacts/internal/platform/postgres"
	"contacts/internal/platform/redis"
	"contacts/internal/platform/sqlite"
	"contacts/internal/ratelimit"
)

// auditBuffer bounds the events waiting for the audit sink.
const auditBuffer = 1024

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	contacts, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	if cfg.Store.Driver == config.StoreMemory {
		log.Warn("using in-memory contact store; contacts are lost on restart")
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sink, closeSink := auditSink(ctx, cfg.Kafka, log)
	defer closeSink()
	publisher := audit.NewPublisher(sink,
		audit.WithAsyncBuffer(auditBuffer),
		audit.WithLogger(log),
	)

	svc := contact.NewService(contacts,
		service.WithLogger(log),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(contactmetrics.New()),
		service.WithPageLimits(cfg.Pagination.DefaultLimit, cfg.Pagination.MaxLimit),
	)

	var idemStore idempotency.Store = idempotency.NewInMemoryStore()
	var limitStore ratelimit.Store = ratelimit.NewInMemoryStore()
	readiness := []httpapi.ReadinessCheck{{Name: "store", Check: contacts.Ping}}
	if redisClient != nil {
		idemStore = idempotency.NewRedisStore(redisClient.Client)
		limitStore = ratelimit.NewRedisStore(redisClient.Client)
		readiness = append(readiness, httpapi.ReadinessCheck{Name: "redis", Check: redisClient.Health})
	}
	idem := idempotency.New(idemStore, log, idempotency.WithTTL(cfg.Idempotency.TTL))

	var apiMiddleware []func(http.Handler) http.Handler
	if cfg.RateLimit.Requests > 0 {
		limiter := ratelimit.New(limitStore, log, cfg.RateLimit.Requests, cfg.RateLimit.Window,
			ratelimit.WithMetrics(ratelimit.NewMetrics()),
		)
		apiMiddleware = append(apiMiddleware, limiter.Handler)
	}

	contactHandler := contact.NewHandler(svc, log, metrics.New(),
		handler.WithRequestTimeout(cfg.RequestTimeout),
		handler.WithMutationMiddleware(idem.Handler),
	)
	router := httpapi.NewRouter(httpapi.Config{
		Logger:         log,
		AllowedOrigins: cfg.AllowedOrigins,
		APIPrefix:      cfg.APIPrefix,
		Contacts:       contactHandler,
		APIMiddleware:  apiMiddleware,
		Readiness:      readiness,
	})
	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return publisher.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting contacts API",
			"addr", cfg.Addr,
			"store", cfg.Store.Driver,
			"api_prefix", cfg.APIPrefix,
			"redis", redisClient != nil,
			"rate_limit", cfg.RateLimit.Requests,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		publisher.Close()
		if dropped := publisher.Dropped(); dropped > 0 {
			log.Warn("audit events dropped", "count", dropped)
		}
		return err
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.StoreConfig) (service.Store, func(), error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewSQLite(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, func() { _ = db.Close() }, nil
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDriver, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewPostgres(db)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return s, func() { _ = db.Close() }, nil
	default:
		return store.NewInMemory(), func() {}, nil
	}
}

// auditSink publishes to Kafka when brokers are configured and falls back to
// the log sink otherwise, or when the brokers cannot be reached at startup.
func auditSink(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (audit.Sink, func()) {
	logSink := audit.NewLogSink(log)
	if len(cfg.Brokers) == 0 {
		return logSink, func() {}
	}
	sink, err := auditkafka.Dial(ctx, cfg.Brokers, cfg.Topic,
		auditkafka.WithFallback(logSink),
		auditkafka.WithLogger(log),
	)
	if err != nil {
		log.Warn("kafka audit sink unavailable, logging audit events instead", "error", err)
		return logSink, func() {}
	}
	return sink, sink.Close
}
