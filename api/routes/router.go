package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sandaruwanb/lankamart-backend/api/controllers"
	"github.com/sandaruwanb/lankamart-backend/api/middleware"
	cartsvc "github.com/sandaruwanb/lankamart-backend/internal/cart"
	checkoutsvc "github.com/sandaruwanb/lankamart-backend/internal/checkout"
	ordersvc "github.com/sandaruwanb/lankamart-backend/internal/orders"
	prsvc "github.com/sandaruwanb/lankamart-backend/internal/purchaserequests"
	"github.com/sandaruwanb/lankamart-backend/pkg/config"
	"github.com/sandaruwanb/lankamart-backend/pkg/db"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
	"github.com/sandaruwanb/lankamart-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               db.Pinger
	Redis            *redis.Client
	Registry         *prometheus.Registry
	CartService      cartsvc.Service
	CheckoutService  checkoutsvc.Service
	OrderService     ordersvc.Service
	PurchaseRequests prsvc.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger(deps.Redis)))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore(deps.Redis), logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.CartService, logg))
			r.Post("/items", controllers.CartAddItem(deps.CartService, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.CartService, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.CartService, logg))
			r.Delete("/", controllers.CartClear(deps.CartService, logg))
		})

		r.Post("/checkout", controllers.Checkout(deps.CheckoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(deps.OrderService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.OrderService, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(deps.OrderService, logg))
			r.With(middleware.RequireStaff(logg)).
				Post("/{orderId}/status", controllers.OrderAdvance(deps.OrderService, logg))
		})

		r.Route("/purchase-requests", func(r chi.Router) {
			r.Get("/", controllers.PurchaseRequestList(deps.PurchaseRequests, logg))
			r.Get("/{requestId}", controllers.PurchaseRequestDetail(deps.PurchaseRequests, logg))
			r.With(middleware.RequireStaff(logg)).
				Post("/", controllers.PurchaseRequestCreate(deps.PurchaseRequests, logg))
			r.With(middleware.RequireStaff(logg)).
				Patch("/{requestId}", controllers.PurchaseRequestEdit(deps.PurchaseRequests, logg))
			r.Post("/{requestId}/approve", controllers.PurchaseRequestApprove(deps.PurchaseRequests, logg))
			r.Post("/{requestId}/reject", controllers.PurchaseRequestReject(deps.PurchaseRequests, logg))
			r.Post("/{requestId}/cancel", controllers.PurchaseRequestCancel(deps.PurchaseRequests, logg))
		})
	})

	return r
}

// idempotencyStore keeps a typed nil from leaking into the interface.
func idempotencyStore(client *redis.Client) redis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}

func redisPinger(client *redis.Client) redis.Pinger {
	if client == nil {
		return nil
	}
	return client
}
