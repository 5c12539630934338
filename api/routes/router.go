package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veloshop/storefront-backend/api/controllers"
	"github.com/veloshop/storefront-backend/api/middleware"
	"github.com/veloshop/storefront-backend/internal/address"
	"github.com/veloshop/storefront-backend/internal/auth"
	"github.com/veloshop/storefront-backend/internal/cart"
	"github.com/veloshop/storefront-backend/internal/catalog"
	checkoutsvc "github.com/veloshop/storefront-backend/internal/checkout"
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
	"github.com/veloshop/storefront-backend/pkg/enums"
	"github.com/veloshop/storefront-backend/pkg/logger"
	"github.com/veloshop/storefront-backend/pkg/metrics"
	"github.com/veloshop/storefront-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Services groups everything the router wires into handlers.
type Services struct {
	Auth         auth.Service
	Register     auth.RegisterService
	Users        users.Service
	Addresses    address.Service
	Favorites    favorites.Service
	Catalog      catalog.Service
	CatalogAdmin catalog.AdminService
	Cart         cart.Service
	Checkout     checkoutsvc.Service
	Orders       orders.Service
	OrdersAdmin  orders.AdminService
	Payments     payments.Service
	Coupons      coupons.AdminService
	Stock        stock.AdminService
	Settings     settings.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions sessionManager,
	httpMetrics *metrics.HTTPMetrics,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	staffRoles := []string{string(enums.UserRoleStaff), string(enums.UserRoleAdmin)}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(svcs.Register, svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(svcs.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/staff/login", controllers.StaffLogin(svcs.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessions, cfg.JWT, logg))
		r.Post("/logout", controllers.AuthLogout(sessions, cfg.JWT, logg))
	})

	// Public storefront catalog.
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/categories", controllers.CategoryList(svcs.Catalog, logg))
		r.Get("/products", controllers.ProductList(svcs.Catalog, logg))
		r.Get("/products/{slug}", controllers.ProductDetail(svcs.Catalog, logg))
	})

	// Cart works for both anonymous sessions and authenticated users.
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, sessions, logg))
		r.Use(middleware.SessionID(logg))
		r.Get("/", controllers.CartFetch(svcs.Cart, logg))
		r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
		r.Patch("/items/{itemId}", controllers.CartUpdateItem(svcs.Cart, logg))
		r.Delete("/items/{itemId}", controllers.CartRemoveItem(svcs.Cart, logg))
		r.Delete("/", controllers.CartClear(svcs.Cart, logg))
	})

	r.Post("/api/v1/webhooks/square", controllers.SquareWebhook(svcs.Payments, logg))

	// Authenticated customer surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", controllers.ProfileGet(svcs.Users, logg))
			r.Patch("/", controllers.ProfileUpdate(svcs.Users, logg))
			r.Post("/password", controllers.PasswordChange(svcs.Users, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(svcs.Addresses, logg))
			r.Post("/", controllers.AddressCreate(svcs.Addresses, logg))
			r.Put("/{addressId}", controllers.AddressUpdate(svcs.Addresses, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(svcs.Addresses, logg))
			r.Post("/{addressId}/default", controllers.AddressSetDefault(svcs.Addresses, logg))
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", controllers.FavoriteList(svcs.Favorites, logg))
			r.Post("/{productId}", controllers.FavoriteAdd(svcs.Favorites, logg))
			r.Delete("/{productId}", controllers.FavoriteRemove(svcs.Favorites, logg))
		})

		r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(svcs.Orders, logg))
		})

		r.Post("/payments", controllers.PaymentInitiate(svcs.Payments, logg))
	})

	// Staff and admin surface.
	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(logg, staffRoles...))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.AdminCategoryList(svcs.CatalogAdmin, logg))
			r.Post("/", controllers.AdminCategoryCreate(svcs.CatalogAdmin, logg))
			r.Put("/{categoryId}", controllers.AdminCategoryUpdate(svcs.CatalogAdmin, logg))
			r.Delete("/{categoryId}", controllers.AdminCategoryDelete(svcs.CatalogAdmin, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminProductList(svcs.CatalogAdmin, logg))
			r.Post("/", controllers.AdminProductCreate(svcs.CatalogAdmin, logg))
			r.Get("/{productId}", controllers.AdminProductGet(svcs.CatalogAdmin, logg))
			r.Patch("/{productId}", controllers.AdminProductUpdate(svcs.CatalogAdmin, logg))
			r.Delete("/{productId}", controllers.AdminProductRemove(svcs.CatalogAdmin, logg))
			r.Post("/{productId}/variants", controllers.AdminVariantCreate(svcs.CatalogAdmin, logg))
			r.Put("/{productId}/variants/{variantId}", controllers.AdminVariantUpdate(svcs.CatalogAdmin, logg))
			r.Delete("/{productId}/variants/{variantId}", controllers.AdminVariantDelete(svcs.CatalogAdmin, logg))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", controllers.AdminCouponList(svcs.Coupons, logg))
			r.Post("/", controllers.AdminCouponCreate(svcs.Coupons, logg))
			r.Get("/{couponId}", controllers.AdminCouponGet(svcs.Coupons, logg))
			r.Put("/{couponId}", controllers.AdminCouponUpdate(svcs.Coupons, logg))
			r.Delete("/{couponId}", controllers.AdminCouponDelete(svcs.Coupons, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(svcs.OrdersAdmin, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(svcs.OrdersAdmin, logg))
			r.Get("/{orderId}/history", controllers.AdminOrderHistory(svcs.OrdersAdmin, logg))
			r.Post("/{orderId}/status", controllers.AdminOrderTransition(svcs.OrdersAdmin, logg))
			r.Post("/{orderId}/refund", controllers.PaymentRefund(svcs.Payments, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/logs", controllers.AdminStockLogs(svcs.Stock, logg))
			r.Post("/adjustments", controllers.AdminStockAdjust(svcs.Stock, logg))
			r.Post("/adjustments/{logId}/approve", controllers.AdminStockApprove(svcs.Stock, logg))
			r.Post("/adjustments/{logId}/reject", controllers.AdminStockReject(svcs.Stock, logg))
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", controllers.AdminSettingList(svcs.Settings, logg))
			r.Put("/", controllers.AdminSettingSet(svcs.Settings, logg))
		})
	})

	return r
}
