package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	jwttoken "frost/internal/jwt_token"
	"frost/internal/ledger"
	"frost/internal/ledger/cache"
	ledgermemory "frost/internal/ledger/memory"
	ledgermetrics "frost/internal/ledger/metrics"
	"frost/internal/ledger/node"
	"frost/internal/platform/config"
	"frost/internal/platform/kafka"
	"frost/internal/platform/metrics"
	"frost/internal/platform/postgres"
	"frost/internal/platform/redis"
	"frost/internal/policy/events"
	"frost/internal/policy/fingerprint"
	"frost/internal/policy/handler"
	policymetrics "frost/internal/policy/metrics"
	"frost/internal/policy/reconcile"
	"frost/internal/policy/service"
	"frost/internal/policy/store"
	"frost/internal/ratelimit"
	rlmetrics "frost/internal/ratelimit/metrics"
	rlmiddleware "frost/internal/ratelimit/middleware"
	"frost/internal/ratelimit/store/bucket"
	"frost/pkg/platform/httputil"
	"frost/pkg/platform/middleware/admin"
	"frost/pkg/platform/middleware/auth"
	"frost/pkg/platform/middleware/metadata"
	"frost/pkg/platform/middleware/request"
	"frost/pkg/platform/middleware/requesttime"
)

type app struct {
	service *service.Service
	limiter *ratelimit.Limiter
	router  http.Handler
	workers []func(context.Context) error
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// adoptRedis hands the pool's lifetime to a before anything can fail.
func (a *app) adoptRedis(rc *redis.Client, reg prometheus.Registerer) error {
	a.closers = append(a.closers, func() { rc.Close() })
	if err := rc.RegisterPoolMetrics(reg); err != nil {
		return fmt.Errorf("register redis pool metrics: %w", err)
	}
	return nil
}

type indexStores struct {
	index   service.PolicyIndex
	orphans interface {
		service.OrphanRecorder
		reconcile.OrphanStore
	}
	db *sql.DB
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	reg := metrics.NewRegistry()
	ledgerMetrics := ledgermetrics.New(reg)
	policyMetrics := policymetrics.New(reg)

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		if err := a.adoptRedis(rc, reg); err != nil {
			a.close()
			return nil, err
		}
	}

	memLedger, gateway := buildLedger(cfg, log, ledgerMetrics)
	if rc != nil {
		gateway = cache.New(gateway, rc.Client,
			cache.WithTTL(cfg.Redis.BundleTTL),
			cache.WithMetrics(ledgerMetrics),
			cache.WithLogger(log),
		)
	}

	stores, err := buildStores(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	if stores.db != nil {
		a.closers = append(a.closers, func() { stores.db.Close() })
	}

	publisher, err := buildPublisher(ctx, cfg, log, a)
	if err != nil {
		a.close()
		return nil, err
	}

	foldMode, err := fingerprint.ParseFoldMode(cfg.Policy.FoldMode)
	if err != nil {
		a.close()
		return nil, err
	}
	svc, err := service.New(stores.index, gateway, cfg.Seed,
		service.WithLogger(log),
		service.WithMetrics(policyMetrics),
		service.WithFoldMode(foldMode),
		service.WithOrphanRecorder(stores.orphans),
		service.WithEventPublisher(publisher),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.service = svc

	worker := reconcile.NewWorker(stores.orphans, stores.index, gateway,
		reconcile.WithInterval(cfg.Policy.ReconcileInterval),
		reconcile.WithLogger(log),
		reconcile.WithMetrics(policyMetrics),
	)
	a.workers = append(a.workers, worker.Run)

	if cfg.RateLimit.Requests > 0 {
		var counters ratelimit.Store = bucket.NewInMemoryBucketStore()
		if rc != nil {
			counters = bucket.NewRedisBucketStore(rc.Client)
		}
		a.limiter, err = ratelimit.New(counters, cfg.RateLimit.Requests, cfg.RateLimit.Window,
			ratelimit.WithMetrics(rlmetrics.New(reg)),
		)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	a.router = buildRouter(cfg, log, reg, a, memLedger, rc, stores.db)
	return a, nil
}

// buildLedger returns the gateway the service talks to. The in-memory ledger
// is returned separately so it can also be served as a node.
func buildLedger(cfg *config.Config, log *slog.Logger, m *ledgermetrics.Metrics) (*ledgermemory.Ledger, ledger.Gateway) {
	if cfg.Ledger.Backend == config.LedgerNode {
		client := node.NewClient(cfg.Node.URL(),
			node.WithHTTPClient(&http.Client{Timeout: cfg.Node.Timeout}),
			node.WithAPIToken(cfg.Node.Token),
			node.WithMetrics(m),
			node.WithLogger(log),
		)
		return nil, client
	}
	mem := ledgermemory.New(ledgermemory.WithPaddingRecords(cfg.Ledger.PaddingRecords))
	return mem, mem
}

func buildStores(ctx context.Context, cfg *config.Config) (*indexStores, error) {
	if cfg.Database.URL == "" {
		return &indexStores{index: store.NewInMemory(), orphans: store.NewInMemoryOrphans()}, nil
	}
	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate policy index: %w", err)
	}
	return &indexStores{
		index:   store.NewPostgres(db),
		orphans: store.NewPostgresOrphans(db),
		db:      db,
	}, nil
}

func buildPublisher(ctx context.Context, cfg *config.Config, log *slog.Logger, a *app) (events.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewLogPublisher(log), nil
	}
	client, err := kafka.New(ctx, cfg.Kafka.Brokers, log, kgo.DefaultProduceTopic(cfg.Kafka.Topic))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic); err != nil {
		return nil, err
	}

	async := events.NewAsyncPublisher(events.NewKafkaPublisher(client, cfg.Kafka.Topic),
		events.WithAsyncLogger(log),
	)
	a.workers = append(a.workers, async.Run)
	return async, nil
}

func buildRouter(
	cfg *config.Config,
	log *slog.Logger,
	reg *prometheus.Registry,
	a *app,
	memLedger *ledgermemory.Ledger,
	rc *redis.Client,
	db *sql.DB,
) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata(cfg.Server.HTTP.TrustProxyHeaders))
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(log))
	r.Use(request.Recovery(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := map[string]string{}
		status := http.StatusOK
		if db != nil {
			checks["postgres"] = healthOf(ctx, log, "postgres", db.PingContext(ctx))
		}
		if rc != nil {
			checks["redis"] = healthOf(ctx, log, "redis", rc.Health(ctx))
		}
		for _, v := range checks {
			if v != "ok" {
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, checks)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(reg))

	var opts []handler.Option
	if cfg.Server.Auth.JWTSigningKey != "" {
		tokens := jwttoken.New(cfg.Server.Auth)
		var revocations auth.TokenRevocationChecker
		if rc != nil {
			revocations = jwttoken.NewRedisRevocations(rc.Client)
		}
		opts = append(opts, handler.WithAuth(auth.RequireAuth(tokens, revocations, log)))
	}
	r.Group(func(r chi.Router) {
		if a.limiter != nil {
			r.Use(rlmiddleware.RateLimit(a.limiter, log))
		}
		handler.New(a.service, log, opts...).Register(r)
	})

	if memLedger != nil && cfg.Ledger.ServeNode {
		r.Route("/ledger", func(r chi.Router) {
			r.Use(admin.RequireToken(log, node.APITokenHeader, cfg.Node.Token))
			node.NewHandler(memLedger, log).Register(r)
		})
	}
	return r
}

// healthOf reports a dependency as "ok" or "unavailable"; the cause is only
// logged.
func healthOf(ctx context.Context, log *slog.Logger, name string, err error) string {
	if err != nil {
		log.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
		return "unavailable"
	}
	return "ok"
}
