package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campusmind/twofactor/pkg/audit"
	"github.com/campusmind/twofactor/pkg/bolt"
	"github.com/campusmind/twofactor/pkg/config"
	"github.com/campusmind/twofactor/pkg/httpserver"
	"github.com/campusmind/twofactor/pkg/logger"
	"github.com/campusmind/twofactor/pkg/mongo"
	"github.com/campusmind/twofactor/pkg/pg"
	"github.com/campusmind/twofactor/pkg/ratelimiter"
	"github.com/campusmind/twofactor/pkg/redis"
	"github.com/campusmind/twofactor/pkg/twofactor"
)

const (
	storeMemory   = "memory"
	storeRedis    = "redis"
	storePostgres = "postgres"
	storeMongo    = "mongo"
	storeBolt     = "bolt"
)

// backend bundles the secret store, the attempt counter store and the
// readiness checks of one TWOFACTOR_STORE choice.
type backend struct {
	secrets  twofactor.Store
	attempts ratelimiter.Store
	checks   map[string]httpserver.Check
	closers  []func()

	// auditTable is set by backends that can persist audit events.
	auditTable audit.BatchWriter
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, kind string, codec *twofactor.Codec, log *slog.Logger) (*backend, error) {
	attempts := ratelimiter.NewMemoryStore()
	b := &backend{
		attempts: attempts,
		checks:   map[string]httpserver.Check{},
		closers:  []func(){attempts.Close},
	}

	var err error
	switch kind {
	case storeMemory:
		b.secrets = twofactor.NewMemoryStore()
	case storeRedis:
		err = b.openRedis(ctx, codec)
	case storePostgres:
		err = b.openPostgres(ctx, codec, log)
	case storeMongo:
		err = b.openMongo(ctx, codec)
	case storeBolt:
		err = b.openBolt(codec)
	default:
		err = fmt.Errorf("%w: unknown TWOFACTOR_STORE %q", twofactor.ErrInvalidConfig, kind)
	}
	if err != nil {
		b.close()
		return nil, err
	}

	log.InfoContext(ctx, "secret store ready", logger.Store(kind))
	return b, nil
}

// openRedis keeps attempt counters in redis too, so throttling holds across replicas.
func (b *backend) openRedis(ctx context.Context, codec *twofactor.Codec) error {
	var cfg redis.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	client, err := redis.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func() { _ = client.Close() })

	b.secrets = redis.NewSecretStore(client, codec, cfg)
	b.attempts = redis.NewAttemptStore(client, cfg)
	b.checks[storeRedis] = redis.Healthcheck(client)
	return nil
}

func (b *backend) openPostgres(ctx context.Context, codec *twofactor.Codec, log *slog.Logger) error {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, pool.Close)

	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
			return err
		}
	}

	b.secrets = pg.NewSecretStore(pool, codec)
	b.auditTable = pg.NewAuditWriter(pool)
	b.checks[storePostgres] = pg.Healthcheck(pool)
	return nil
}

func (b *backend) openMongo(ctx context.Context, codec *twofactor.Codec) error {
	var cfg mongo.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	client, err := mongo.New(ctx, cfg)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func() { _ = client.Disconnect(context.Background()) })

	b.secrets = mongo.NewSecretStore(mongo.Collection(client, cfg), codec, cfg)
	b.checks[storeMongo] = mongo.Healthcheck(client)
	return nil
}

func (b *backend) openBolt(codec *twofactor.Codec) error {
	var cfg bolt.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	store, err := bolt.Open(cfg, codec)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, func() { _ = store.Close() })

	b.secrets = store
	b.checks[storeBolt] = store.Healthcheck
	return nil
}

const (
	auditOff   = "off"
	auditLog   = "log"
	auditStore = "store"
)

// openAudit picks the audit sink. "store" writes to the secret store's
// database and is only available for postgres.
func (b *backend) openAudit(sink string, log *slog.Logger) (audit.Writer, error) {
	var next audit.BatchWriter
	switch sink {
	case auditOff:
		return nil, nil
	case auditLog:
		next = audit.NewSlogWriter(log)
	case auditStore:
		if b.auditTable == nil {
			return nil, fmt.Errorf("%w: AUDIT_SINK=store needs TWOFACTOR_STORE=postgres", twofactor.ErrInvalidConfig)
		}
		next = b.auditTable
	default:
		return nil, fmt.Errorf("%w: unknown AUDIT_SINK %q", twofactor.ErrInvalidConfig, sink)
	}

	w := audit.NewAsyncWriter(next, audit.AsyncOptions{}, log)
	b.closers = append(b.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.Close(ctx); err != nil {
			log.Error("audit events lost on shutdown", logger.Error(err))
		}
	})
	return w, nil
}
