package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/grocer-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/grocer-backend/api/controllers/cart"
	"github.com/angelmondragon/grocer-backend/api/controllers/inbox"
	ordercontrollers "github.com/angelmondragon/grocer-backend/api/controllers/orders"
	"github.com/angelmondragon/grocer-backend/api/middleware"
	"github.com/angelmondragon/grocer-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/grocer-backend/internal/checkout"
	"github.com/angelmondragon/grocer-backend/internal/notifications"
	"github.com/angelmondragon/grocer-backend/internal/orders"
	"github.com/angelmondragon/grocer-backend/pkg/config"
	"github.com/angelmondragon/grocer-backend/pkg/db"
	"github.com/angelmondragon/grocer-backend/pkg/enums"
	"github.com/angelmondragon/grocer-backend/pkg/logger"
	"github.com/angelmondragon/grocer-backend/pkg/metrics"
)

// redisStore is the slice of the redis client the HTTP layer relies on.
type redisStore interface {
	middleware.ReplayStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	tokens middleware.TokenVerifier,
	gatherer prometheus.Gatherer,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.AccessLog(logg),
		middleware.Recoverer(logg),
		middleware.CORS(),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		middleware.RateLimitByUser,
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutLimit,
	)
	trackPolicy := middleware.NewRateLimitPolicy(
		"track",
		middleware.RateLimitByIP,
		cfg.RateLimit.TrackWindow,
		cfg.RateLimit.TrackIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	authenticated := func(r chi.Router) {
		r.Use(middleware.Auth(tokens, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			authenticated(r)
			r.Get("/", cartcontrollers.Fetch(cartService, logg))
			r.Post("/add", cartcontrollers.AddItem(cartService, logg))
			r.Put("/item/{productId}", cartcontrollers.UpdateItem(cartService, logg))
			r.Delete("/item/{productId}", cartcontrollers.RemoveItem(cartService, logg))
			r.Delete("/clear", cartcontrollers.Clear(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RateLimit(trackPolicy, redisClient, logg)).
				Get("/track", ordercontrollers.Track(ordersService, logg))

			r.Group(func(r chi.Router) {
				authenticated(r)
				r.With(middleware.RateLimit(checkoutPolicy, redisClient, logg)).
					Post("/checkout", ordercontrollers.Checkout(checkoutService, logg))
				r.Get("/", ordercontrollers.List(ordersService, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
				r.Put("/{orderId}/cancel", ordercontrollers.Cancel(ordersService, logg))
				r.With(middleware.RequireRole(enums.UserRoleAdmin, logg)).
					Patch("/{orderId}/status", ordercontrollers.UpdateStatus(ordersService, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			authenticated(r)
			r.Get("/", inbox.List(notificationsService, logg))
			r.Post("/read-all", inbox.MarkAllRead(notificationsService, logg))
			r.Post("/{notificationId}/read", inbox.MarkRead(notificationsService, logg))
		})
	})

	return r
}
