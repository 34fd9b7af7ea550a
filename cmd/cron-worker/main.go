package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/grocer-backend/internal/cron"
	"github.com/angelmondragon/grocer-backend/internal/delivery"
	"github.com/angelmondragon/grocer-backend/internal/notifications"
	"github.com/angelmondragon/grocer-backend/internal/orders"
	product "github.com/angelmondragon/grocer-backend/internal/products"
	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/db"
	"github.com/angelmondragon/grocer-backend/pkg/instance"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/metrics"
	"github.com/angelmondragon/grocer-backend/pkg/migrate"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "instance": instance.GetID()})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer redisClient.Close()

	gormDB := dbClient.DB()
	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)
	outboxStore := outbox.NewStore(gormDB)
	events := outbox.NewWriter(outboxStore, logg)
	orderRepo := orders.NewRepository(gormDB)

	dispatcher, err := notifications.NewDispatcher(dbClient, events, logg, checkoutMetrics, cfg.Notification.DispatchBuffer)
	if err != nil {
		return err
	}
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatcher.Start(dispatchCtx)
	defer func() {
		stopDispatch()
		dispatcher.Wait()
	}()

	ordersService, err := orders.NewService(orderRepo, dbClient, events, product.NewRepository(gormDB), logg, dispatcher, checkoutMetrics)
	if err != nil {
		return err
	}
	assigner, err := delivery.NewAssigner(cfg.Delivery.PartnerIDs, redisClient)
	if err != nil {
		return err
	}

	confirm, err := cron.NewOrderConfirmationJob(cron.OrderConfirmationJobParams{
		Logger:    logg,
		Orders:    orderRepo,
		Assigner:  assigner,
		Confirmer: ordersService,
		MinAge:    cfg.Cron.PendingConfirmationAge,
		BatchSize: cfg.Cron.PendingConfirmationSize,
	})
	if err != nil {
		return err
	}
	jobs := []cron.Job{confirm}
	for _, p := range []cron.RetentionJobParams{
		{
			Name:      cron.OutboxRetentionJobName,
			Purge:     cron.OutboxPurge(outboxStore, cfg.Outbox.MaxAttempts),
			Retention: cfg.Cron.OutboxRetention,
		},
		{
			Name:      cron.NotificationRetentionJobName,
			Purge:     cron.NotificationPurge(notifications.NewStore(gormDB)),
			Retention: cfg.Cron.NotificationRetention,
		},
	} {
		p.Logger, p.DB = logg, dbClient
		job, err := cron.NewRetentionJob(p)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		return err
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName+":"+env), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}

	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	if addr := cfg.Cron.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer); err != nil {
				logg.Error(ctx, "cron metrics listener stopped", err)
			}
		}()
	}

	logg.Info(logg.WithField(ctx, "metrics_addr", cfg.Cron.MetricsAddr), "starting cron worker")
	return scheduler.Run(ctx)
}
