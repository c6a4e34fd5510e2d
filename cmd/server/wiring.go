package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	consentHandler "consentd/internal/consent/handler"
	"consentd/internal/consent/identity"
	consentMetrics "consentd/internal/consent/metrics"
	consentPorts "consentd/internal/consent/ports"
	consentService "consentd/internal/consent/service"
	"consentd/internal/consent/store/preference"
	"consentd/internal/consent/store/record"
	httpapi "consentd/internal/http"
	"consentd/internal/platform/config"
	"consentd/internal/platform/metrics"
	"consentd/internal/platform/postgres"
	platformRedis "consentd/internal/platform/redis"
	quotaMetrics "consentd/internal/quota/metrics"
	quotaModels "consentd/internal/quota/models"
	quotaPorts "consentd/internal/quota/ports"
	quotaService "consentd/internal/quota/service"
	quotaStore "consentd/internal/quota/store"
	rateLimitMetrics "consentd/internal/ratelimit/metrics"
	rateLimitMW "consentd/internal/ratelimit/middleware"
	rateLimitPorts "consentd/internal/ratelimit/ports"
	"consentd/internal/ratelimit/service/requestlimit"
	"consentd/internal/ratelimit/store/bucket"
	widgetModels "consentd/internal/widget/models"
	widgetStore "consentd/internal/widget/store"
	"consentd/pkg/platform/audit"
	"consentd/pkg/platform/audit/publisher"
	"consentd/pkg/platform/audit/publishers/kafka"
	auditMemory "consentd/pkg/platform/audit/store/memory"
)

const auditBufferSize = 1024

// recordStore is what both the engine and the quota usage counter need.
type recordStore interface {
	consentPorts.RecordStore
	quotaPorts.UsageCounter
}

// widgetSeeder is implemented by both widget stores.
type widgetSeeder interface {
	consentPorts.WidgetStore
	Save(ctx context.Context, w *widgetModels.Widget) error
}

type entitlementSeeder interface {
	quotaPorts.EntitlementStore
	Save(ctx context.Context, ent *quotaModels.Entitlement) error
}

type stores struct {
	widgets      widgetSeeder
	records      recordStore
	preferences  consentPorts.PreferenceStore
	entitlements entitlementSeeder
}

// app owns every long-lived resource the server opened.
type app struct {
	router http.Handler

	storage        string
	auditSink      string
	rateLimitStore string

	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (a *app) close(log *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("close resource failed", "error", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	health := map[string]httpapi.HealthCheck{}

	st, err := a.openStores(ctx, cfg, log, health)
	if err != nil {
		a.close(log)
		return nil, err
	}

	auditPublisher, err := a.openAudit(ctx, cfg, log)
	if err != nil {
		a.close(log)
		return nil, err
	}

	buckets, err := a.openBuckets(ctx, cfg, health)
	if err != nil {
		a.close(log)
		return nil, err
	}

	if cfg.UsesDevEmailHashKey() {
		log.Warn("EMAIL_HASH_KEY is the built-in development key; email hashes are not private")
	}
	hasher, err := identity.NewHasher(cfg.Identity.EmailHashKey)
	if err != nil {
		a.close(log)
		return nil, err
	}
	verifier := identity.NewProofVerifier(cfg.Identity.EmailProofSecret, cfg.Identity.RequireEmailProof)

	var (
		httpMetrics *metrics.Metrics
		consentM    *consentMetrics.Metrics
		quotaM      *quotaMetrics.Metrics
		rateLimitM  *rateLimitMetrics.Metrics
	)
	if cfg.MetricsEnabled {
		httpMetrics = metrics.New()
		consentM = consentMetrics.New()
		quotaM = quotaMetrics.New()
		rateLimitM = rateLimitMetrics.New()
	}

	quotas, err := quotaService.New(st.entitlements, st.records,
		quotaService.WithLogger(log),
		quotaService.WithAuditPublisher(auditPublisher),
		quotaService.WithMetrics(quotaM),
	)
	if err != nil {
		a.close(log)
		return nil, err
	}

	engine, err := consentService.New(st.widgets, st.records, st.preferences, quotas, hasher,
		consentService.WithLogger(log),
		consentService.WithAuditPublisher(auditPublisher),
		consentService.WithMetrics(consentM),
		consentService.WithEmailVerifier(verifier),
		consentService.WithDefaultConsentDays(cfg.Consent.DefaultConsentDays),
	)
	if err != nil {
		a.close(log)
		return nil, err
	}

	limiter, err := requestlimit.New(buckets,
		requestlimit.WithLogger(log),
		requestlimit.WithAuditPublisher(auditPublisher),
		requestlimit.WithMetrics(rateLimitM),
		requestlimit.WithLimit(cfg.RateLimit.PerMinute, time.Minute),
	)
	if err != nil {
		a.close(log)
		return nil, err
	}

	if cfg.DemoSeed {
		if err := seedDemo(ctx, st.widgets, st.entitlements); err != nil {
			a.close(log)
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		log.Info("demo widget seeded", "widget_id", demoWidgetID, "tenant_id", demoTenantID)
	}

	a.router = httpapi.NewRouter(httpapi.Deps{
		Logger:        log,
		Consent:       consentHandler.New(engine, log),
		RateLimit:     rateLimitMW.New(limiter, log, rateLimitMW.WithDisabled(cfg.RateLimit.Disabled)),
		Metrics:       httpMetrics,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		Health:        health,
		ExposeMetrics: cfg.MetricsEnabled,
	})
	return a, nil
}

// openStores picks Postgres when DATABASE_URL is set and the in-memory stores
// otherwise.
func (a *app) openStores(ctx context.Context, cfg *config.Config, log *slog.Logger, health map[string]httpapi.HealthCheck) (*stores, error) {
	if cfg.Database.URL == "" {
		a.storage = "memory"
		return &stores{
			widgets:      widgetStore.NewInMemory(),
			records:      record.NewInMemoryStore(),
			preferences:  preference.NewInMemoryStore(),
			entitlements: quotaStore.NewInMemory(),
		}, nil
	}

	a.storage = "postgres"
	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.onClose(func() error { pool.Close(); return nil })

	if err := postgres.Migrate(ctx, pool); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database migrations applied")

	db, err := postgres.OpenDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.onClose(db.Close)

	health["postgres"] = pingPostgres(pool, db)
	return &stores{
		widgets:      widgetStore.NewPostgres(pool),
		records:      record.NewPostgres(pool),
		preferences:  preference.NewPostgres(db),
		entitlements: quotaStore.NewPostgres(pool),
	}, nil
}

func pingPostgres(pool *pgxpool.Pool, db *sql.DB) httpapi.HealthCheck {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
		return db.PingContext(ctx)
	}
}

// openAudit fronts either the Kafka sink or an in-memory store with the
// async publisher. Every event is also logged by audit.LogAudit.
func (a *app) openAudit(ctx context.Context, cfg *config.Config, log *slog.Logger) (audit.Publisher, error) {
	var store audit.Store
	if len(cfg.Kafka.Brokers) == 0 {
		a.auditSink = "memory"
		store = auditMemory.NewInMemoryStore()
	} else {
		a.auditSink = "kafka"
		sink, err := kafka.Dial(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic,
			kafka.WithLogger(log),
			kafka.WithMetrics(kafkaMetrics(cfg)),
		)
		if err != nil {
			return nil, err
		}
		a.onClose(func() error { sink.Close(); return nil })

		if client := sink.Client(); client != nil {
			topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := kafka.EnsureTopic(topicCtx, client, cfg.Kafka.AuditTopic, 3, 1)
			cancel()
			if err != nil {
				log.Warn("audit topic bootstrap failed", "topic", cfg.Kafka.AuditTopic, "error", err)
			}
		}
		store = sink
	}

	pub := publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)
	a.onClose(pub.Close)
	return pub, nil
}

func kafkaMetrics(cfg *config.Config) *kafka.Metrics {
	if !cfg.MetricsEnabled {
		return nil
	}
	return kafka.NewMetrics()
}

// openBuckets shares rate-limit windows through Redis when REDIS_URL is set.
func (a *app) openBuckets(ctx context.Context, cfg *config.Config, health map[string]httpapi.HealthCheck) (rateLimitPorts.BucketStore, error) {
	client, err := platformRedis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		a.rateLimitStore = "memory"
		return bucket.NewInMemoryBucketStore(), nil
	}

	a.rateLimitStore = "redis"
	a.onClose(client.Close)
	health["redis"] = client.Health
	return bucket.NewRedisBucketStore(client.Client), nil
}
