package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/surrealdb/surrealdb.go"

	"tradegate/internal/audit"
	"tradegate/internal/auth/session"
	"tradegate/internal/auth/session/persistence"
	"tradegate/internal/auth/store/profile"
	"tradegate/internal/docstore"
	"tradegate/internal/platform/config"
	"tradegate/internal/platform/postgres"
	platformredis "tradegate/internal/platform/redis"
	platformsurreal "tradegate/internal/platform/surreal"
	httptransport "tradegate/internal/transport/http"
	"tradegate/internal/wallet"
	"tradegate/internal/wallet/bridge"
)

// infra holds the connections opened for the configured backends so they can
// be closed together on shutdown.
type infra struct {
	redis   *platformredis.Client
	pg      *sqlx.DB
	surreal *surrealdb.DB
	bridge  *bridge.Client
	kafka   *audit.KafkaStore
	log     *slog.Logger
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{log: log}
	needs := func(backend string) bool {
		return cfg.Session.Backend == backend || cfg.Profiles.Backend == backend
	}

	if needs(config.BackendRedis) {
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if client == nil {
			return nil, errors.New("redis backend selected but redis.url is empty")
		}
		in.redis = client
	}
	if needs(config.BackendPostgres) {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		in.pg = db
	}
	if needs(config.BackendSurreal) {
		db, err := platformsurreal.Connect(ctx, cfg.Surreal)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("connect surrealdb: %w", err)
		}
		in.surreal = db
	}
	return in, nil
}

func (in *infra) Close() {
	if in.bridge != nil {
		if err := in.bridge.Close(); err != nil {
			in.log.Warn("failed to close wallet bridge", "error", err)
		}
	}
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.surreal != nil {
		if err := in.surreal.Close(context.Background()); err != nil {
			in.log.Warn("failed to close surrealdb", "error", err)
		}
	}
	if in.pg != nil {
		if err := in.pg.Close(); err != nil {
			in.log.Warn("failed to close postgres", "error", err)
		}
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.log.Warn("failed to close redis", "error", err)
		}
	}
}

// healthChecks reports the connections that stay open while serving.
func (in *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := make(map[string]httptransport.HealthCheck)
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	if in.pg != nil {
		checks["postgres"] = in.pg.PingContext
	}
	if in.bridge != nil {
		b := in.bridge
		checks["wallet_bridge"] = func(context.Context) error {
			select {
			case <-b.Done():
				return wallet.ErrProviderUnavailable
			default:
				return nil
			}
		}
	}
	return checks
}

func newPersistence(cfg config.Config, in *infra) (session.Persistence, error) {
	switch cfg.Session.Backend {
	case config.BackendMemory:
		return persistence.NewInMemory(), nil
	case config.BackendFile:
		f, err := persistence.NewFile(cfg.Session.Dir)
		if err != nil {
			return nil, fmt.Errorf("open session dir: %w", err)
		}
		return f, nil
	case config.BackendRedis:
		return persistence.NewRedis(in.redis.Client, cfg.Session.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
	}
}

func newDocumentStore(ctx context.Context, cfg config.Config, in *infra) (docstore.Store, error) {
	switch cfg.Profiles.Backend {
	case config.BackendMemory:
		return docstore.NewInMemory(), nil
	case config.BackendRedis:
		return docstore.NewRedis(in.redis.Client), nil
	case config.BackendPostgres:
		if err := docstore.Migrate(in.pg.DB); err != nil {
			return nil, fmt.Errorf("migrate document store: %w", err)
		}
		return docstore.NewPostgres(in.pg), nil
	case config.BackendSurreal:
		store := docstore.NewSurreal(in.surreal)
		if err := store.EnsureCollections(ctx, profile.Collection); err != nil {
			return nil, fmt.Errorf("prepare surrealdb collections: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported profiles backend %q", cfg.Profiles.Backend)
	}
}

// dialWallet returns nil when no bridge is configured; connects then report
// that no wallet is installed.
func dialWallet(ctx context.Context, cfg config.Config, log *slog.Logger, in *infra) (wallet.Provider, error) {
	if cfg.Wallet.BridgeURL == "" {
		log.Warn("no wallet bridge configured, connects will report provider unavailable")
		return nil, nil
	}
	client, err := bridge.Dial(ctx, cfg.Wallet.BridgeURL,
		bridge.WithLogger(log),
		bridge.WithPingInterval(cfg.Wallet.PingInterval.Duration),
	)
	if err != nil {
		return nil, fmt.Errorf("dial wallet bridge: %w", err)
	}
	in.bridge = client
	return client, nil
}

// newAuditPublisher returns the publisher handed to the orchestrator and the
// loop that delivers its events.
func newAuditPublisher(ctx context.Context, cfg config.Config, log *slog.Logger, in *infra) (*audit.Publisher, func(context.Context) error, error) {
	if len(cfg.Audit.Brokers) == 0 {
		return audit.NewPublisher(audit.NewInMemoryStore()), func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}, nil
	}
	kafka, err := audit.NewKafkaStore(ctx, cfg.Audit.Brokers, cfg.Audit.Topic)
	if err != nil {
		return nil, nil, fmt.Errorf("connect audit brokers: %w", err)
	}
	in.kafka = kafka
	worker := audit.NewWorker(kafka,
		audit.WithWorkerLogger(log),
		audit.WithQueueSize(cfg.Audit.QueueSize),
	)
	return audit.NewPublisher(worker), worker.Run, nil
}
