package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"

	"zimmet/internal/custody/adapters"
	custodyHandler "zimmet/internal/custody/handler"
	custodyMetrics "zimmet/internal/custody/metrics"
	custodyService "zimmet/internal/custody/service"
	custodyStore "zimmet/internal/custody/store"
	identityHandler "zimmet/internal/identity/handler"
	identityService "zimmet/internal/identity/service"
	identityStore "zimmet/internal/identity/store"
	"zimmet/internal/identity/token"
	"zimmet/internal/notification"
	"zimmet/internal/platform/config"
	"zimmet/internal/platform/kafka"
	"zimmet/internal/platform/metrics"
	"zimmet/internal/platform/postgres"
	"zimmet/internal/platform/redis"
	httptransport "zimmet/internal/transport/http"
	"zimmet/pkg/platform/audit"
	kafkapub "zimmet/pkg/platform/audit/publishers/kafka"
	auditmemory "zimmet/pkg/platform/audit/store/memory"
	auditpostgres "zimmet/pkg/platform/audit/store/postgres"
	"zimmet/pkg/platform/audit/worker"
)

// eventLog is written by services inside their unit of work and drained by
// the outbox worker.
type eventLog interface {
	audit.Store
	audit.Outbox
}

type components struct {
	router     http.Handler
	websocket  *notification.WebSocketHandler
	outbox     *worker.Worker
	subscriber *notification.Subscriber
	storage    string
	closers    []func()
}

func (a *components) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *components, err error) {
	a := &components{storage: "memory"}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checks := map[string]httptransport.HealthCheck{}

	var (
		users    identityService.UserStore
		ledger   custodyService.Store
		ledgerTx custodyService.LedgerTx
		events   eventLog
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		users = identityStore.NewPostgres(db)
		ledger = custodyStore.NewPostgres(db)
		ledgerTx = custodyStore.NewPostgresLedgerTx(db, cfg.Ledger.TxTimeout)
		events = auditpostgres.New(db)
		checks["postgres"] = pingDB(db)
		a.storage = "postgres"
	} else {
		mem := custodyStore.NewInMemory()
		users = identityStore.NewInMemory()
		ledger = mem
		ledgerTx = custodyService.NewMemoryTx(mem, cfg.Ledger.TxTimeout)
		events = auditmemory.NewInMemoryStore()
	}

	identity := identityService.New(users,
		identityService.WithLogger(log),
		identityService.WithEvents(events),
	)
	jwt := token.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	if cfg.BootstrapAdminEmail != "" {
		if err := bootstrapAdmin(ctx, cfg, log, identity, jwt); err != nil {
			return nil, err
		}
	}

	hub := notification.NewHub()
	relayOpts := []notification.RelayOption{notification.WithLogger(log)}
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, func() { _ = rc.Close() })
		relayOpts = append(relayOpts, notification.WithRedis(rc.Client))
		a.subscriber = notification.NewSubscriber(rc.Client, hub, log)
		checks["redis"] = rc.Health
	}
	relay := notification.NewRelay(hub, relayOpts...)

	if cfg.Kafka.Enabled() {
		kc, err := kafka.NewClient(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kc.Close)
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.Topic, 3, 1); err != nil {
			return nil, err
		}
		a.outbox = worker.NewWorker(events, kafkapub.New(kc, cfg.Kafka.Topic),
			worker.WithInterval(cfg.Outbox.PollInterval),
			worker.WithBatchSize(cfg.Outbox.BatchSize),
			worker.WithLogger(log),
			worker.WithMetrics(worker.NewMetrics(reg)),
		)
		checks["kafka"] = pingKafka(kc)
	}

	custody := custodyService.New(ledger, ledgerTx, adapters.NewUserDirectoryAdapter(identity),
		custodyService.WithLogger(log),
		custodyService.WithMetrics(custodyMetrics.New(reg)),
		custodyService.WithNotifier(relay),
		custodyService.WithEvents(events),
		custodyService.WithOverdueThreshold(cfg.Ledger.OverdueThreshold),
	)

	a.websocket = notification.NewWebSocketHandler(hub, log, cfg.AllowedOrigins())
	a.router = httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		Tokens:         token.NewAdapter(jwt),
		Principals:     identity,
		AllowedOrigins: cfg.AllowedOrigins(),
		HealthChecks:   checks,
		WebSocket:      a.websocket,
		Modules: []httptransport.Registrar{
			identityHandler.New(identity, log),
			custodyHandler.New(custody, log),
		},
	})
	return a, nil
}

// bootstrapAdmin guarantees an administrator exists. Outside production it
// also logs a token for that account so the API can be exercised locally.
func bootstrapAdmin(ctx context.Context, cfg config.Server, log *slog.Logger, identity *identityService.Service, jwt *token.JWTService) error {
	admin, err := identity.EnsureAdmin(ctx, cfg.BootstrapAdminEmail)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	log.InfoContext(ctx, "bootstrap admin ready", "user_id", admin.ID.String())
	if cfg.IsProduction() {
		return nil
	}
	tok, err := jwt.GenerateAccessToken(admin.ID, admin.Email, admin.FullName, cfg.JWT.TTL)
	if err != nil {
		return fmt.Errorf("mint dev token: %w", err)
	}
	log.InfoContext(ctx, "development admin token", "token", tok)
	return nil
}

func pingDB(db *sql.DB) httptransport.HealthCheck {
	return db.PingContext
}

func pingKafka(kc *kgo.Client) httptransport.HealthCheck {
	return kc.Ping
}
