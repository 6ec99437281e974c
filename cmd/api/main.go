package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/sandaruwanb/lankamart-backend/api/routes"
	cartsvc "github.com/sandaruwanb/lankamart-backend/internal/cart"
	checkoutsvc "github.com/sandaruwanb/lankamart-backend/internal/checkout"
	ordersvc "github.com/sandaruwanb/lankamart-backend/internal/orders"
	prsvc "github.com/sandaruwanb/lankamart-backend/internal/purchaserequests"
	"github.com/sandaruwanb/lankamart-backend/internal/stock"
	"github.com/sandaruwanb/lankamart-backend/pkg/config"
	"github.com/sandaruwanb/lankamart-backend/pkg/db"
	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
	"github.com/sandaruwanb/lankamart-backend/pkg/metrics"
	"github.com/sandaruwanb/lankamart-backend/pkg/migrate"
	"github.com/sandaruwanb/lankamart-backend/pkg/notifier"
	"github.com/sandaruwanb/lankamart-backend/pkg/payments"
	"github.com/sandaruwanb/lankamart-backend/pkg/redis"
	"github.com/sandaruwanb/lankamart-backend/pkg/shipping"
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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	notify := notifier.NewLogNotifier(logg)

	ledger, err := stock.NewService(stock.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create stock ledger", err)
		os.Exit(1)
	}

	cartService, err := cartsvc.NewService(cartsvc.NewRepository(dbClient.DB()), dbClient, ledger)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	defaultCost, err := decimal.NewFromString(cfg.Shipping.DefaultCost)
	if err != nil {
		logg.Error(context.Background(), "invalid default shipping cost", err)
		os.Exit(1)
	}
	costs, err := shipping.NewStaticTable(defaultCost, shipping.DefaultCityTable())
	if err != nil {
		logg.Error(context.Background(), "failed to build shipping table", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(
		dbClient,
		checkoutsvc.NewRepository(dbClient.DB()),
		cartsvc.NewRepository(dbClient.DB()),
		ledger,
		costs,
		payments.NewInProcessGateway(),
		notify,
		metrics.NewCheckoutMetrics(registry),
		logg,
		cfg.Checkout.Timeout,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	orderService, err := ordersvc.NewService(
		ordersvc.NewRepository(dbClient.DB()),
		dbClient,
		ledger,
		payments.NewInProcessGateway(),
		notify,
		metrics.NewOrderMetrics(registry),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	requestService, err := prsvc.NewService(
		prsvc.NewRepository(dbClient.DB()),
		dbClient,
		ledger,
		notify,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase-request service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:           cfg,
			Logger:           logg,
			DB:               dbClient,
			Redis:            redisClient,
			Registry:         registry,
			CartService:      cartService,
			CheckoutService:  checkoutService,
			OrderService:     orderService,
			PurchaseRequests: requestService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
