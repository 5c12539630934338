package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veloshop/storefront-backend/api/routes"
	"github.com/veloshop/storefront-backend/internal/address"
	"github.com/veloshop/storefront-backend/internal/auth"
	"github.com/veloshop/storefront-backend/internal/cart"
	"github.com/veloshop/storefront-backend/internal/catalog"
	"github.com/veloshop/storefront-backend/internal/checkout"
	"github.com/veloshop/storefront-backend/internal/coupons"
	"github.com/veloshop/storefront-backend/internal/favorites"
	"github.com/veloshop/storefront-backend/internal/orders"
	"github.com/veloshop/storefront-backend/internal/payments"
	"github.com/veloshop/storefront-backend/internal/settings"
	"github.com/veloshop/storefront-backend/internal/stock"
	"github.com/veloshop/storefront-backend/internal/users"
	"github.com/veloshop/storefront-backend/pkg/auth/session"
	"github.com/veloshop/storefront-backend/pkg/config"
	"github.com/veloshop/storefront-backend/pkg/db"
	"github.com/veloshop/storefront-backend/pkg/logger"
	"github.com/veloshop/storefront-backend/pkg/metrics"
	"github.com/veloshop/storefront-backend/pkg/migrate"
	"github.com/veloshop/storefront-backend/pkg/redis"
	"github.com/veloshop/storefront-backend/pkg/square"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	squareClient, err := square.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}

	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)
	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	userRepo := users.NewRepository(dbClient.DB())
	addressRepo := address.NewRepository(dbClient.DB())
	catalogRepo := catalog.NewRepository(dbClient.DB())
	favoriteRepo := favorites.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())
	stockRepo := stock.NewRepository(dbClient.DB())
	couponRepo := coupons.NewRepository(dbClient.DB())
	settingsRepo := settings.NewRepository(dbClient.DB())

	svcs, err := buildServices(serviceDeps{
		cfg:             cfg,
		logg:            logg,
		dbClient:        dbClient,
		redisClient:     redisClient,
		sessionManager:  sessionManager,
		squareClient:    squareClient,
		checkoutMetrics: checkoutMetrics,
		userRepo:        userRepo,
		addressRepo:     addressRepo,
		catalogRepo:     catalogRepo,
		favoriteRepo:    favoriteRepo,
		cartRepo:        cartRepo,
		orderRepo:       orderRepo,
		stockRepo:       stockRepo,
		couponRepo:      couponRepo,
		settingsRepo:    settingsRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
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
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, httpMetrics, svcs),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

type serviceDeps struct {
	cfg             *config.Config
	logg            *logger.Logger
	dbClient        *db.Client
	redisClient     *redis.Client
	sessionManager  *session.Manager
	squareClient    *square.Client
	checkoutMetrics *metrics.CheckoutMetrics
	userRepo        *users.Repository
	addressRepo     address.Repository
	catalogRepo     *catalog.Repository
	favoriteRepo    *favorites.Repository
	cartRepo        cart.Repository
	orderRepo       orders.Repository
	stockRepo       stock.Repository
	couponRepo      coupons.Repository
	settingsRepo    *settings.Repository
}

func buildServices(deps serviceDeps) (routes.Services, error) {
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       deps.userRepo,
		SessionManager: deps.sessionManager,
		JWTConfig:      deps.cfg.JWT,
	})
	if err != nil {
		return routes.Services{}, err
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             deps.dbClient,
		PasswordConfig: deps.cfg.Password,
	})
	if err != nil {
		return routes.Services{}, err
	}

	userService, err := users.NewService(users.ServiceParams{
		Repo:           deps.userRepo,
		PasswordConfig: deps.cfg.Password,
	})
	if err != nil {
		return routes.Services{}, err
	}

	addressService, err := address.NewService(address.ServiceParams{
		Repo:              deps.addressRepo,
		TransactionRunner: deps.dbClient,
	})
	if err != nil {
		return routes.Services{}, err
	}

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Repo:     deps.catalogRepo,
		Cache:    deps.redisClient,
		CacheTTL: deps.cfg.Catalog.CacheTTL,
		Logger:   deps.logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	catalogAdmin, err := catalog.NewAdminService(catalog.AdminServiceParams{
		Repo:   deps.catalogRepo,
		Cache:  deps.redisClient,
		Logger: deps.logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	favoriteService, err := favorites.NewService(favorites.ServiceParams{
		Repo:     deps.favoriteRepo,
		Products: deps.catalogRepo,
	})
	if err != nil {
		return routes.Services{}, err
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		DB:      deps.dbClient,
		Repo:    deps.cartRepo,
		Catalog: deps.catalogRepo,
	})
	if err != nil {
		return routes.Services{}, err
	}

	settingsService, err := settings.NewService(settings.ServiceParams{
		Repo:     deps.settingsRepo,
		Defaults: deps.cfg.Shipping,
	})
	if err != nil {
		return routes.Services{}, err
	}

	checkoutService, err := checkout.NewService(
		deps.dbClient,
		deps.cartRepo,
		deps.orderRepo,
		deps.stockRepo,
		deps.couponRepo,
		deps.catalogRepo,
		deps.addressRepo,
		settingsService,
		deps.redisClient,
		deps.checkoutMetrics,
	)
	if err != nil {
		return routes.Services{}, err
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		DB:      deps.dbClient,
		Repo:    deps.orderRepo,
		Stock:   deps.stockRepo,
		Coupons: deps.couponRepo,
		Logger:  deps.logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	orderAdmin, err := orders.NewAdminService(orders.ServiceParams{
		DB:      deps.dbClient,
		Repo:    deps.orderRepo,
		Stock:   deps.stockRepo,
		Coupons: deps.couponRepo,
		Logger:  deps.logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:    deps.orderRepo,
		Gateway: deps.squareClient,
		Logger:  deps.logg,
		Metrics: deps.checkoutMetrics,
	})
	if err != nil {
		return routes.Services{}, err
	}

	couponAdmin, err := coupons.NewAdminService(deps.couponRepo)
	if err != nil {
		return routes.Services{}, err
	}

	stockAdmin, err := stock.NewAdminService(stock.AdminServiceParams{
		DB:       deps.dbClient,
		Repo:     deps.stockRepo,
		Products: deps.catalogRepo,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:         authService,
		Register:     registerService,
		Users:        userService,
		Addresses:    addressService,
		Favorites:    favoriteService,
		Catalog:      catalogService,
		CatalogAdmin: catalogAdmin,
		Cart:         cartService,
		Checkout:     checkoutService,
		Orders:       orderService,
		OrdersAdmin:  orderAdmin,
		Payments:     paymentService,
		Coupons:      couponAdmin,
		Stock:        stockAdmin,
		Settings:     settingsService,
	}, nil
}
