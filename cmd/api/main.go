package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/grocer-backend/api/routes"
	"github.com/angelmondragon/grocer-backend/internal/cart"
	"github.com/angelmondragon/grocer-backend/internal/checkout"
	"github.com/angelmondragon/grocer-backend/internal/delivery"
	"github.com/angelmondragon/grocer-backend/internal/notifications"
	"github.com/angelmondragon/grocer-backend/internal/offers"
	"github.com/angelmondragon/grocer-backend/internal/orders"
	product "github.com/angelmondragon/grocer-backend/internal/products"
	"github.com/angelmondragon/grocer-backend/pkg/auth"
	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/db"
	"github.com/angelmondragon/grocer-backend/pkg/instance"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/metrics"
	"github.com/angelmondragon/grocer-backend/pkg/migrate"
	"github.com/angelmondragon/grocer-backend/pkg/outbox"
	"github.com/angelmondragon/grocer-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	tokens, err := auth.NewCodec(cfg.JWT)
	if err != nil {
		logg.Error(ctx, "invalid jwt config", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)

	productRepo := product.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	notificationRepo := notifications.NewStore(gormDB)
	outboxWriter := outbox.NewWriter(outbox.NewStore(gormDB), logg)

	dispatcher, err := notifications.NewDispatcher(dbClient, outboxWriter, logg, checkoutMetrics, cfg.Notification.DispatchBuffer)
	if err != nil {
		logg.Error(ctx, "failed to create notification dispatcher", err)
		os.Exit(1)
	}
	// The dispatcher outlives the signal context so requests made by
	// in-flight handlers during server shutdown are still flushed.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	dispatcher.Start(dispatchCtx)

	assigner, err := delivery.NewAssigner(cfg.Delivery.PartnerIDs, redisClient)
	if err != nil {
		logg.Error(ctx, "failed to create delivery assigner", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, dbClient, productRepo, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orderRepo, dbClient, outboxWriter, productRepo, logg, dispatcher, checkoutMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.Deps{
		Tx:        dbClient,
		Carts:     cartRepo,
		Products:  productRepo,
		Offers:    offers.NewEngine(offers.NewRepository(gormDB), logg, checkoutMetrics),
		Orders:    orderRepo,
		Confirmer: ordersService,
		Assigner:  assigner,
		Outbox:    outboxWriter,
		Notifier:  dispatcher,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	}, cfg.Checkout)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationRepo)
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			tokens,
			prometheus.DefaultGatherer,
			cartService,
			checkoutService,
			ordersService,
			notificationsService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			stopDispatch()
			dispatcher.Wait()
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
	}

	stopDispatch()
	dispatcher.Wait()
}
