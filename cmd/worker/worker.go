package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"masterclass-pods/internal/app"
	"masterclass-pods/internal/config"
	"masterclass-pods/internal/delivery"
	"masterclass-pods/internal/logger"
	"masterclass-pods/internal/queue"

	"github.com/hibiken/asynq"
)

// The worker runs the delivery poll and the day advance on a schedule and,
// in async mode, consumes the delivery tasks the poll enqueues.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatal("Failed to initialize:", err)
	}
	defer a.Close()

	scheduler := delivery.NewScheduler()
	if err := delivery.RegisterDefaults(scheduler, a.Poller, cfg.PollInterval(), cfg.AdvanceCron, a.Manager.AdvanceDays); err != nil {
		log.Fatal("Failed to register schedules:", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("Scheduler started", "poll_interval", cfg.PollInterval().String(), "advance_cron", cfg.AdvanceCron)

	var server *asynq.Server
	if cfg.UseAsyncDelivery {
		redisOpt, err := config.AsynqRedisOpt(cfg)
		if err != nil {
			log.Fatal("Invalid Redis config:", err)
		}
		server = asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				cfg.DeliveryQueue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		})

		mux := asynq.NewServeMux()
		queue.NewTaskProcessor(a.Store, a.Metrics).Register(mux)

		if err := server.Start(mux); err != nil {
			log.Fatal("Failed to start worker:", err)
		}
		logger.Info("Asynq worker started", "queue", cfg.DeliveryQueue, "concurrency", 20)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker")

	if server != nil {
		server.Shutdown()
	}
}
