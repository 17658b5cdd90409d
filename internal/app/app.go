// Package app wires the event store, projections, scoring stage and use
// cases from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	accountapp "fraud-ledger/internal/application/account"
	fraudapp "fraud-ledger/internal/application/fraud"
	"fraud-ledger/internal/application/pipeline"
	txapp "fraud-ledger/internal/application/transaction"
	"fraud-ledger/internal/domain/fraud"
	"fraud-ledger/internal/domain/profile"
	"fraud-ledger/internal/domain/projection"
	"fraud-ledger/internal/domain/transaction"
	"fraud-ledger/internal/infrastructure/cache/redis"
	"fraud-ledger/internal/infrastructure/database/store"
	"fraud-ledger/internal/infrastructure/http/router"
	"fraud-ledger/internal/infrastructure/messaging/kafka"
	"fraud-ledger/internal/infrastructure/ml"
	"fraud-ledger/internal/infrastructure/rules"
	"fraud-ledger/internal/interfaces/http/handler"
	"fraud-ledger/internal/pkg/config"
	"fraud-ledger/internal/pkg/lock"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// App holds every wired component
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *store.Client
	Redis *redis.Client // nil unless redis.enabled

	Events      *store.EventStore
	ReadModels  *store.ReadModelRepository
	Checkpoints *store.ProjectionStore
	Scores      *store.ScoreRepository
	Models      *store.ModelRepository

	Registry *ml.Registry
	Trainer  *ml.Trainer
	Engine   *projection.Engine
	Scoring  *fraud.Service
	Pipeline *pipeline.Pipeline

	Accounts     *accountapp.UseCase
	Submit       *txapp.SubmitTransactionUseCase
	Transactions *txapp.QueryUseCase
	Train        *fraudapp.TrainModelUseCase
	Rescore      *fraudapp.RescoreUseCase

	closers []func() error
}

type options struct {
	publisher projection.AlertPublisher
	locker    lock.Locker
}

// Option overrides a component built from configuration
type Option func(*options)

// WithAlertPublisher registers the fraud alert projection over publisher
// regardless of kafka.enabled
func WithAlertPublisher(p projection.AlertPublisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithLocker replaces the configured projection lock
func WithLocker(l lock.Locker) Option {
	return func(o *options) { o.locker = l }
}

// New connects to the configured stores and wires the application
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger}
	wired := false
	defer func() {
		if !wired {
			_ = a.Close()
		}
	}()

	var err error
	a.DB, err = store.NewClient(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.DB.Close)

	if cfg.Database.AutoMigrate {
		if err := a.DB.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	locker := o.locker
	if locker == nil {
		locker, err = a.buildLocker(cfg.Redis)
		if err != nil {
			return nil, err
		}
	}

	publisher := o.publisher
	if publisher == nil && cfg.Kafka.Enabled {
		alerts := kafka.NewAlertPublisher(cfg.Kafka, logger)
		a.closers = append(a.closers, alerts.Close)
		publisher = alerts
	}

	loc, err := cfg.Fraud.Location()
	if err != nil {
		return nil, fmt.Errorf("fraud timezone: %w", err)
	}
	builder := profile.NewBuilder(loc)

	a.Events = store.NewEventStore(a.DB)
	a.ReadModels = store.NewReadModelRepository(a.DB)
	a.Checkpoints = store.NewProjectionStore(a.DB)
	a.Scores = store.NewScoreRepository(a.DB)
	a.Models = store.NewModelRepository(a.DB)

	a.Engine = projection.NewEngine(a.Events, a.Checkpoints, locker, logger,
		projection.WithBatchSize(cfg.Projection.BatchSize),
		projection.WithLockTimeout(cfg.Projection.LockTimeout),
		projection.WithGapTimeout(cfg.Projection.GapTimeout),
	)
	if err := a.Engine.Register(
		projection.NewAccountProjection(),
		projection.NewTransactionProjection(),
		projection.NewDeviceProjection(),
		projection.NewLocationProjection(),
		projection.NewProfileProjection(builder),
	); err != nil {
		return nil, err
	}
	if publisher != nil {
		if err := a.Engine.Register(projection.NewFraudAlertProjection(publisher)); err != nil {
			return nil, err
		}
	}

	extractor := ml.NewFeatureExtractor(a.ReadModels, builder, cfg.Fraud)
	a.Registry = ml.NewRegistry(a.Models, cfg.ML.Enabled, logger)
	a.Trainer = ml.NewTrainer(a.ReadModels, extractor, a.Scores, a.Models, a.Registry, cfg.ML, logger)

	a.Scoring = fraud.NewService(fraud.Dependencies{
		Events:             a.Events,
		ReadModels:         a.ReadModels,
		Extractor:          extractor,
		Models:             a.Registry,
		Rules:              rules.NewEngine(cfg.Fraud),
		Scores:             a.Scores,
		Checkpoints:        a.Checkpoints,
		Locker:             locker,
		Logger:             logger,
		RescoreConcurrency: cfg.Fraud.RescoreConcurrency,
		LockTimeout:        cfg.Projection.LockTimeout,
	})
	a.Pipeline = pipeline.New(a.Engine, a.Scoring, logger)

	a.Accounts = accountapp.NewUseCase(a.Events, a.ReadModels, a.Pipeline, logger)
	a.Submit = txapp.NewSubmitTransactionUseCase(a.Events, a.ReadModels, a.Scores, a.Pipeline,
		transaction.NewPolicy(cfg.Fraud.GetMaxTransactionAmount()), logger)
	a.Transactions = txapp.NewQueryUseCase(a.ReadModels, a.Scores)
	a.Train = fraudapp.NewTrainModelUseCase(a.Trainer, a.Pipeline, logger)
	a.Rescore = fraudapp.NewRescoreUseCase(a.Scoring, a.Pipeline, logger)

	logger.Info("application wired",
		zap.String("database", a.DB.Driver()),
		zap.Bool("redis_lock", a.Redis != nil),
		zap.Bool("alerts", publisher != nil),
		zap.Strings("projections", a.Engine.Names()),
	)
	wired = true
	return a, nil
}

func (a *App) buildLocker(cfg config.RedisConfig) (lock.Locker, error) {
	if !cfg.Enabled {
		return lock.NewLocal(), nil
	}
	client, err := redis.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	a.Redis = client
	a.closers = append(a.closers, client.Close)
	return redis.NewLocker(client, cfg.LockPrefix, cfg.LockTTL, a.Logger), nil
}

// Router builds the HTTP API
func (a *App) Router() http.Handler {
	checks := []handler.HealthCheck{{Name: "database", Checker: a.DB}}
	if a.Redis != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Checker: a.Redis})
	}

	metricsPath := ""
	if a.Config.Metrics.Enabled {
		metricsPath = a.Config.Metrics.Path
	}

	return router.NewRouter(router.Handlers{
		Ledger:      handler.NewLedgerHandler(a.Accounts, a.Submit, a.Transactions),
		Operations:  handler.NewOperationsHandler(a.Engine, a.Train, a.Rescore),
		Health:      handler.NewHealthHandler(Version, checks...),
		MetricsPath: metricsPath,
	}, a.Logger)
}

// Close releases connections in reverse order of acquisition
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
