// Package app wires configuration, storage and delivery into the pieces the
// API server and the worker share.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"masterclass-pods/internal/config"
	"masterclass-pods/internal/delivery"
	"masterclass-pods/internal/logger"
	"masterclass-pods/internal/pod"
	"masterclass-pods/internal/queue"
	"masterclass-pods/internal/scripts"
	"masterclass-pods/internal/sequence"
	"masterclass-pods/internal/telemetry"
	"masterclass-pods/models"
)

type App struct {
	Config     *config.Config
	Mongo      *mongo.Client
	DB         *mongo.Database
	Redis      *redis.Client
	Asynq      *asynq.Client
	Store      *pod.MongoStore
	Manager    *pod.Manager
	Poller     *delivery.Poller
	Dispatcher delivery.Dispatcher
	Metrics    *telemetry.Metrics
	Blueprints []models.Blueprint

	closers []func()
}

// New connects to MongoDB and Redis, loads the scripts and blueprints, and
// builds the pod manager and the delivery poller.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if cfg.TracingEnable {
		shutdown, err := telemetry.InitTracer(ctx, "masterclass-pods", cfg.OTLPEndpoint, 1.0)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			a.closers = append(a.closers, shutdown)
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}
	a.Metrics = metrics

	nicheScripts, err := scripts.LoadDir(cfg.ScriptsDir)
	if err != nil {
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	if _, ok := nicheScripts[cfg.DefaultNiche]; !ok {
		return nil, fmt.Errorf("load scripts: no script for default niche %q", cfg.DefaultNiche)
	}

	a.Blueprints, err = sequence.LoadBlueprintDir(cfg.BlueprintsDir)
	if err != nil {
		return nil, fmt.Errorf("load blueprints: %w", err)
	}

	a.Mongo, err = config.ConnectMongoDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Mongo.Disconnect(ctx)
	})
	a.DB = a.Mongo.Database(cfg.DBName)
	if err := config.CreateIndexes(ctx, a.DB); err != nil {
		a.Close()
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	a.Redis, err = config.NewRedisClient(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.Redis.Close() })

	a.Store = pod.NewMongoStore(a.DB)
	a.Manager = pod.NewManager(a.Store, nicheScripts,
		pod.Options{
			InstructorName:    cfg.InstructorName,
			FirstNameFallback: cfg.FirstNameFallback,
			DefaultNiche:      cfg.DefaultNiche,
		},
		pod.WithRand(rand.New(rand.NewSource(time.Now().UnixNano()))),
		pod.WithMetrics(metrics),
	)

	if cfg.UseAsyncDelivery {
		redisOpt, err := config.AsynqRedisOpt(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Asynq = asynq.NewClient(redisOpt)
		a.closers = append(a.closers, func() { _ = a.Asynq.Close() })
		a.Dispatcher = queue.NewDispatcher(a.Asynq, queue.DispatcherOptions{
			QueueName:  cfg.DeliveryQueue,
			RatePerSec: cfg.DeliveryRatePerSec,
		}, metrics)
	} else {
		a.Dispatcher = delivery.NewDirectDispatcher(a.Store, metrics)
	}
	a.Poller = delivery.NewPoller(a.Store, a.Dispatcher, cfg.DeliveryBatchSize, metrics)

	logger.Info("Application initialized",
		"niches", len(nicheScripts),
		"blueprints", len(a.Blueprints),
		"delivery_mode", a.Dispatcher.Mode(),
	)
	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
