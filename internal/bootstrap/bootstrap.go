// Package bootstrap wires configuration into storage, locking and the
// engine's handlers. Both the worker and adaptivectl build on it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/adaptive-engine/config"
	"github.com/alem-hub/adaptive-engine/internal/application/command"
	"github.com/alem-hub/adaptive-engine/internal/application/query"
	"github.com/alem-hub/adaptive-engine/internal/domain/feedback"
	"github.com/alem-hub/adaptive-engine/internal/domain/insight"
	"github.com/alem-hub/adaptive-engine/internal/domain/lifecycle"
	"github.com/alem-hub/adaptive-engine/internal/domain/profile"
	"github.com/alem-hub/adaptive-engine/internal/domain/recommendation"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/lock"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/adaptive-engine/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/adaptive-engine/pkg/circuitbreaker"
	"github.com/alem-hub/adaptive-engine/pkg/logger"
	"github.com/alem-hub/adaptive-engine/pkg/retry"
	"github.com/alem-hub/adaptive-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// NewLogger builds the process logger from observability settings.
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Development = cfg.Observability.LogFormat == "console"
	log, err := logger.New(opts)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log.With(
		logger.String("app", cfg.App.Name),
		logger.String("version", cfg.App.Version),
		logger.String("env", string(cfg.App.Environment)),
	), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// Storage bundles the repositories and collaborator sources of one backend.
type Storage struct {
	Profiles        profile.Repository
	Insights        insight.Repository
	Recommendations recommendation.Repository
	Feedback        feedback.Repository

	Catalog      recommendation.ContentCatalog
	Interactions recommendation.InteractionSource
	Needs        recommendation.NeedSource
	Behavior     insight.BehaviorSource

	// DB is set for the postgres backend.
	DB *postgres.Connection

	// Memory is set for the memory backend.
	Memory *memory.Store
}

// NewMemoryStorage exposes an in-memory store as Storage.
func NewMemoryStorage(store *memory.Store) *Storage {
	src := store.Sources()
	return &Storage{
		Profiles:        store.Profiles(),
		Insights:        store.Insights(),
		Recommendations: store.Recommendations(),
		Feedback:        store.Feedback(),
		Catalog:         src,
		Interactions:    src,
		Needs:           src,
		Behavior:        src,
		Memory:          store,
	}
}

// NewPostgresStorage exposes a database connection as Storage.
func NewPostgresStorage(conn *postgres.Connection) *Storage {
	src := postgres.NewSources(conn)
	return &Storage{
		Profiles:        postgres.NewProfileRepository(conn),
		Insights:        postgres.NewInsightRepository(conn),
		Recommendations: postgres.NewRecommendationRepository(conn),
		Feedback:        postgres.NewFeedbackRepository(conn),
		Catalog:         src,
		Interactions:    src,
		Needs:           src,
		Behavior:        src,
		DB:              conn,
	}
}

// Close releases the backend's connections.
func (s *Storage) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}

// OpenStorage opens the backend selected by app.storage. The database
// connection is retried while the server comes up.
func OpenStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Storage, error) {
	if cfg.App.Storage == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on exit")
		return NewMemoryStorage(memory.NewStore()), nil
	}

	pgCfg := PostgresConfig(cfg.Database)
	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pgCfg)
	},
		retry.WithMaxAttempts(cfg.Database.ConnectAttempts),
		retry.WithInitialDelay(500*time.Millisecond),
		retry.WithMaxDelay(10*time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database not ready, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return NewPostgresStorage(conn), nil
}

// Migrate applies pending schema migrations. Memory storage needs none.
func Migrate(ctx context.Context, st *Storage, log *logger.Logger) error {
	if st.DB == nil {
		return nil
	}
	applied, err := postgres.NewMigrator(st.DB).Migrate(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database schema is up to date", logger.Int("applied", applied))
	return nil
}

// PostgresConfig maps database settings onto the adapter's config.
func PostgresConfig(c config.DatabaseConfig) postgres.Config {
	out := postgres.DefaultConfig()
	out.URL = c.URL
	if c.Host != "" {
		out.Host = c.Host
	}
	if c.Port > 0 {
		out.Port = c.Port
	}
	if c.Name != "" {
		out.Database = c.Name
	}
	if c.User != "" {
		out.User = c.User
	}
	out.Password = c.Password
	if c.SSLMode != "" {
		out.SSLMode = c.SSLMode
	}
	if c.MaxConns > 0 {
		out.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		out.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		out.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		out.MaxConnIdleTime = c.MaxConnIdleTime
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCKING
// ══════════════════════════════════════════════════════════════════════════════

// RedisConfig maps redis settings onto the adapter's config.
func RedisConfig(c config.RedisConfig) redis.Config {
	out := redis.DefaultConfig()
	if c.Host != "" {
		out.Host = c.Host
	}
	if c.Port > 0 {
		out.Port = c.Port
	}
	out.Password = c.Password
	out.DB = c.DB
	if c.PoolSize > 0 {
		out.PoolSize = c.PoolSize
	}
	if c.DialTimeout > 0 {
		out.DialTimeout = c.DialTimeout
	}
	return out
}

// OpenLocker returns the per-user lock. With redis enabled the lock is
// shared across processes and the client is returned for health checks;
// otherwise an in-process mutex is used and the client is nil.
func OpenLocker(ctx context.Context, cfg *config.Config, log *logger.Logger) (command.UserLocker, *redis.Client, error) {
	if !cfg.Redis.Enabled {
		log.Info("redis disabled, using in-process user lock")
		return lock.NewKeyedMutex(), nil, nil
	}

	client, err := redis.NewClient(ctx, RedisConfig(cfg.Redis))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	lockCfg := redis.DefaultUserLockConfig()
	if cfg.Redis.LockLease > 0 {
		lockCfg.Lease = cfg.Redis.LockLease
	}
	lockCfg.Breaker = circuitbreaker.New("redis-lock",
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	)
	log.Info("using redis user lock", logger.Duration("lease", lockCfg.Lease))
	return redis.NewUserLock(client, lockCfg), client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine holds every handler built from one Storage.
type Engine struct {
	UpsertProfile        *command.UpsertProfileHandler
	Generate             *command.GenerateInsightsHandler
	GenerateFromBehavior *command.GenerateFromBehaviorHandler
	Score                *command.ScoreRecommendationsHandler
	Lifecycle            *command.LifecycleHandler
	Cleanup              *command.CleanupHandler
	Similar              *query.FindSimilarHandler
	Feedback             *query.FeedbackHandler
}

// NewEngine builds the handlers. A nil clock uses the system clock and a
// nil recorder discards metrics.
func NewEngine(
	st *Storage,
	locker command.UserLocker,
	clock timeutil.Clock,
	recorder command.Recorder,
	cfg config.EngineConfig,
	log *logger.Logger,
) (*Engine, error) {
	dims, err := profile.ParseTraits(cfg.Similarity.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("engine.similarity.dimensions: %w", err)
	}

	similar := query.NewFindSimilarHandler(st.Profiles, query.FindSimilarConfig{
		MaxDistance:  cfg.Similarity.MaxDistance,
		Dimensions:   dims,
		DefaultLimit: cfg.DefaultLimit,
		MaxLimit:     cfg.MaxLimit,
	})

	generate := command.NewGenerateInsightsHandler(
		st.Profiles, st.Insights, locker, clock, recorder, log,
		command.GenerateInsightsConfig{
			ConfidenceFloor: cfg.InsightConfidenceFloor,
			DedupWindow:     timeutil.Days(cfg.DedupWindowDays),
		},
	)

	score := command.NewScoreRecommendationsHandler(
		st.Profiles, st.Recommendations, st.Catalog, st.Interactions, st.Needs,
		locker, clock, recorder, log,
		command.ScoreRecommendationsConfig{
			ConfidenceFloor: cfg.RecommendationConfidenceFloor,
			TTL:             timeutil.Days(cfg.RecommendationTTLDays),
			Weights: recommendation.Weights{
				Compatibility: cfg.Weights.Compatibility,
				Interaction:   cfg.Weights.Interaction,
				Recency:       cfg.Weights.Recency,
			},
			AlgorithmVersion: cfg.AlgorithmVersion,
			Decay:            recommendation.HalfLifeDecay(timeutil.Days(cfg.RecencyHalfLifeDays)),
		},
	)

	cleanup := command.NewCleanupHandler(
		st.Insights, st.Recommendations, clock, recorder, log,
		command.CleanupConfig{
			Policy: lifecycle.CleanupPolicy{
				IgnoreThreshold:  timeutil.Days(cfg.IgnoreThresholdDays),
				CleanupThreshold: timeutil.Days(cfg.CleanupThresholdDays),
			},
			BatchSize: cfg.CleanupBatchSize,
		},
	)

	return &Engine{
		UpsertProfile:        command.NewUpsertProfileHandler(st.Profiles, clock, log),
		Generate:             generate,
		GenerateFromBehavior: command.NewGenerateFromBehaviorHandler(st.Behavior, similar, insight.NewProducer(insight.DefaultRules()), generate),
		Score:                score,
		Lifecycle:            command.NewLifecycleHandler(st.Insights, st.Recommendations, clock, recorder, log),
		Cleanup:              cleanup,
		Similar:              similar,
		Feedback:             query.NewFeedbackHandler(st.Feedback),
	}, nil
}
