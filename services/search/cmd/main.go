package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"shenanigigs/common/cache"
	"shenanigigs/common/cache/memory"
	"shenanigigs/common/cache/redis"
	"shenanigigs/common/cache/tiered"
	"shenanigigs/common/database"
	"shenanigigs/common/database/schema"
	"shenanigigs/common/database/schema/migrations"
	"shenanigigs/common/telemetry"
	"shenanigigs/services/search/internal/alerts"
	"shenanigigs/services/search/internal/config"
	"shenanigigs/services/search/internal/events"
	"shenanigigs/services/search/internal/ingest"
	"shenanigigs/services/search/internal/parser"
	"shenanigigs/services/search/internal/query"
	"shenanigigs/services/search/internal/searchcache"
	"shenanigigs/services/search/internal/store/sqlstore"
	"shenanigigs/services/search/internal/taxonomy"
)

const (
	serviceName    = "shenanigigs/search"
	serviceVersion = "0.1.0"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.LogDevelopment {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newTracer(lc fx.Lifecycle, cfg *config.Config) (trace.Tracer, error) {
	shutdown, err := telemetry.InitTracer(context.Background(), serviceName, serviceVersion, cfg.OTelCollectorURL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: shutdown})
	return telemetry.GetTracer(serviceName), nil
}

func newNATSConnection(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Timeout(cfg.NATSConnTimeout),
		nats.Name("search-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	}
	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		return nc.Drain()
	}})
	return nc, nil
}

func newDatabase(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*database.Database, error) {
	opts := database.Options{
		Driver:          database.Driver(cfg.StoreDriver),
		DSN:             cfg.ClickHouseDSN,
		MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
		MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
		Username:        cfg.ClickHouseUsername,
		Password:        cfg.ClickHousePassword,
		Database:        cfg.ClickHouseDatabase,
	}
	switch opts.Driver {
	case database.DriverPostgres:
		opts.DSN = cfg.PostgresDSN
	case database.DriverSQLite:
		opts.DSN = cfg.SQLitePath
	}

	ctx := context.Background()
	db, err := database.New(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	migrator := schema.NewMigrator(db.DB(), db.Driver(), logger)
	if err := migrator.Migrate(ctx, migrations.For(db.Driver())); err != nil {
		_ = db.Close()
		return nil, err
	}

	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		return db.Close()
	}})
	return db, nil
}

func newStore(db *database.Database, logger *zap.Logger) (*sqlstore.Store, error) {
	return sqlstore.New(db.DB(), db.Driver(), logger)
}

func newTaxonomy(cfg *config.Config) (*taxonomy.Taxonomy, error) {
	return taxonomy.LoadFile(cfg.TaxonomyPath)
}

func newEngine(store *sqlstore.Store, builder *query.Builder, logger *zap.Logger, tracer trace.Tracer) *query.Engine {
	return query.NewEngine(store, builder, logger, tracer)
}

func newCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) cache.Cache {
	opts := cache.Options{
		DefaultTTL:      cfg.SearchCacheTTL,
		CleanupInterval: cfg.CacheCleanupInterval,
		RedisURL:        cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		RedisDB:         cfg.RedisDB,
		OpTimeout:       cfg.CacheOpTimeout,
		FailureCooldown: cfg.CacheFailureCooldown,
	}
	c := tiered.New(redis.New(opts), memory.New(opts), opts, logger)
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		return c.Close()
	}})
	return c
}

func newSearchCache(engine *query.Engine, store *sqlstore.Store, c cache.Cache, cfg *config.Config, logger *zap.Logger, tracer trace.Tracer) *searchcache.Service {
	return searchcache.New(engine, store, c, searchcache.TTLs{
		Search:    cfg.SearchCacheTTL,
		Count:     cfg.CountCacheTTL,
		Reference: cfg.ReferenceCacheTTL,
		Trending:  cfg.TrendingCacheTTL,
	}, logger, tracer)
}

func newMatcher(cfg *config.Config, builder *query.Builder, logger *zap.Logger) (*alerts.Matcher, error) {
	searches, err := alerts.LoadSavedSearches(cfg.SavedSearchesPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded saved searches", zap.Int("count", len(searches)))
	return alerts.NewMatcher(builder, searches), nil
}

func newNotifier(nc *nats.Conn, cfg *config.Config, logger *zap.Logger, tracer trace.Tracer) *alerts.Notifier {
	return alerts.NewNotifier(nc, cfg.AlertSubject, cfg.AlertRate, cfg.AlertBurst, logger, tracer)
}

func newProcessor(
	p *parser.Parser,
	store *sqlstore.Store,
	sc *searchcache.Service,
	matcher *alerts.Matcher,
	notifier *alerts.Notifier,
	logger *zap.Logger,
	tracer trace.Tracer,
) *ingest.Processor {
	return ingest.NewProcessor(p, store, sc, matcher, notifier, logger, tracer)
}

func newResponder(logger *zap.Logger, nc *nats.Conn, tracer trace.Tracer, cfg *config.Config, sc *searchcache.Service) *events.Responder {
	return events.NewResponder(logger, nc, tracer, cfg, sc)
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			newLogger,
			newTracer,
			newNATSConnection,
			newDatabase,
			newStore,
			newTaxonomy,
			query.NewBuilder,
			newEngine,
			newCache,
			newSearchCache,
			newMatcher,
			newNotifier,
			parser.New,
			newProcessor,
			events.NewHandler,
			newResponder,
		),
		fx.Invoke(
			func(handler *events.Handler, responder *events.Responder, lc fx.Lifecycle) error {
				if err := handler.RegisterSubscriptions(lc); err != nil {
					return err
				}
				return responder.RegisterSubscriptions(lc)
			},
		),
	)

	startCtx := context.Background()
	if err := app.Start(startCtx); err != nil {
		log.Fatal(err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	stopCtx := context.Background()
	if err := app.Stop(stopCtx); err != nil {
		log.Fatal(err)
	}
}
