package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"

	celebrationhandler "celebrate/internal/celebration/handler"
	"celebrate/internal/celebration/locker"
	celebrationmetrics "celebrate/internal/celebration/metrics"
	"celebrate/internal/celebration/ports"
	celebrationsvc "celebrate/internal/celebration/service"
	celebrationmem "celebrate/internal/celebration/store/memory"
	celebrationpg "celebrate/internal/celebration/store/postgres"
	"celebrate/internal/compliance/cycle"
	compliancehandler "celebrate/internal/compliance/handler"
	compliancemetrics "celebrate/internal/compliance/metrics"
	compliancesvc "celebrate/internal/compliance/service"
	"celebrate/internal/payments"
	"celebrate/internal/platform/config"
	"celebrate/internal/platform/httpserver"
	"celebrate/internal/platform/logger"
	"celebrate/internal/platform/metrics"
	"celebrate/internal/platform/middleware"
	platformredis "celebrate/internal/platform/redis"
	"celebrate/pkg/platform/audit"
	compliancepub "celebrate/pkg/platform/audit/publishers/compliance"
	opspub "celebrate/pkg/platform/audit/publishers/ops"
	auditrouter "celebrate/pkg/platform/audit/publishers/router"
	auditmem "celebrate/pkg/platform/audit/store/memory"
	auditpg "celebrate/pkg/platform/audit/store/postgres"
	auditworker "celebrate/pkg/platform/audit/worker"
)

// main wires dependencies and runs the HTTP server. Business logic lives in
// the internal service packages; everything here is assembly.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Storage. Postgres when DATABASE_URL is set, in-memory otherwise so a
	// dev instance runs with zero infrastructure.
	var (
		celebrationStore ports.CelebrationStore
		auditStore       audit.Store
		outboxDB         *sql.DB
		pool             *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		celebrationStore = celebrationpg.New(pool)

		outboxDB, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer outboxDB.Close()
		auditStore = auditpg.New(outboxDB)
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
		celebrationStore = celebrationmem.New()
		auditStore = auditmem.NewInMemoryStore()
	}

	// Audit publishers. Regulatory events persist fail-closed; operational
	// events are buffered and droppable. The router picks per event so each
	// service emits through one publisher.
	compliancePublisher := compliancepub.New(auditStore, compliancepub.WithLogger(log))
	opsPublisher := opspub.New(auditStore, opspub.WithLogger(log))
	defer opsPublisher.Close()
	auditPublisher := auditrouter.New(compliancePublisher, opsPublisher)

	// Compliance engine.
	complianceOpts := []compliancesvc.Option{
		compliancesvc.WithLogger(log),
		compliancesvc.WithMetrics(compliancemetrics.New()),
		compliancesvc.WithAuditPublisher(auditPublisher),
		compliancesvc.WithResolverTimeout(cfg.ResolverTimeout),
		compliancesvc.WithLegacyCycleCutoff(cfg.LegacyCycleCutoff),
	}
	if cfg.ElectionAPIURL != "" {
		resolverOpts := []cycle.HTTPOption{cycle.WithTimeout(cfg.ResolverTimeout)}
		if redisClient != nil {
			resolverOpts = append(resolverOpts, cycle.WithCache(redisClient.Client, cfg.CycleCacheTTL))
		}
		resolver, err := cycle.NewHTTP(cfg.ElectionAPIURL, resolverOpts...)
		if err != nil {
			return err
		}
		complianceOpts = append(complianceOpts, compliancesvc.WithResolver(resolver))
	} else {
		log.Warn("ELECTION_API_URL not set; per-election validation runs in legacy mode only")
	}
	complianceService := compliancesvc.New(complianceOpts...)

	// Celebration lifecycle. The locker must span processes whenever storage
	// does, so replicas sharing Postgres fall back to advisory locks when
	// Redis is absent; in-memory locking is only safe alongside in-memory
	// storage.
	var celebrationLocker ports.Locker
	switch {
	case redisClient != nil:
		celebrationLocker = locker.NewRedis(redisClient.Client)
	case pool != nil:
		celebrationLocker = locker.NewPostgres(pool)
	default:
		celebrationLocker = locker.NewMemory()
	}

	celebrationOpts := []celebrationsvc.Option{
		celebrationsvc.WithLogger(log),
		celebrationsvc.WithMetrics(celebrationmetrics.New()),
		celebrationsvc.WithAuditPublisher(auditPublisher),
	}
	if cfg.PaymentAPIURL != "" {
		capturer, err := payments.NewHTTPCapturer(cfg.PaymentAPIURL, cfg.PaymentAPIKey)
		if err != nil {
			return err
		}
		celebrationOpts = append(celebrationOpts, celebrationsvc.WithPaymentCapturer(capturer))
	}
	celebrationService, err := celebrationsvc.New(celebrationStore, celebrationLocker, complianceService, celebrationOpts...)
	if err != nil {
		return err
	}

	// Audit outbox relay. Only meaningful with Postgres and Kafka both up.
	if len(cfg.KafkaBrokers) > 0 && outboxDB != nil {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.KafkaBrokers...),
			kgo.DefaultProduceTopic(cfg.AuditTopic),
		)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()

		relay := auditworker.NewRelay(outboxDB, kafkaClient, cfg.AuditTopic, auditworker.WithLogger(log))
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit relay stopped", "error", err)
			}
		}()
	}

	// HTTP surface.
	jwtValidator := middleware.NewHMACValidator(cfg.JWTSigningKey)
	httpMetrics := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(httpMetrics.Middleware("api"))

	compliancehandler.New(complianceService, celebrationService, log).Register(router)
	celebrationhandler.New(celebrationService, log, jwtValidator).Register(router)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting celebrate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
