package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sofra-app/api/internal/config"
	"github.com/sofra-app/api/internal/database"
	"github.com/sofra-app/api/internal/enum"
	"github.com/sofra-app/api/internal/handler"
	mw "github.com/sofra-app/api/internal/middleware"
	"github.com/sofra-app/api/internal/notify"
	"github.com/sofra-app/api/internal/payment"
	"github.com/sofra-app/api/internal/service"
	"github.com/sofra-app/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, restaurant scoping, and role-based middleware
// as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, rdb *redis.Client, hub *ws.Hub, gateway payment.Client, sender notify.Sender) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	// Services share the pool for transactions and queries for plain reads.
	settings := config.NewSettings(queries)
	notifier := service.NewNotifier(queries, sender, hub)

	cartService := service.NewCartService(pool, queries,
		func(db database.DBTX) service.CartStore { return database.New(db) })
	orderService := service.NewOrderService(pool, queries,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		settings, gateway, notifier, cfg.Currency)
	statusService := service.NewStatusService(pool, queries,
		func(db database.DBTX) service.StatusStore { return database.New(db) },
		settings, notifier)
	reconcileService := service.NewReconcileService(pool,
		func(db database.DBTX) service.ReconcileStore { return database.New(db) },
		rdb, notifier)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Menu browsing (public)
	menuHandler := handler.NewMenuHandler(queries)
	menuHandler.RegisterRoutes(r)

	// Gateway callbacks (public; authenticated by idempotent reconciliation)
	webhookHandler := handler.NewWebhookHandler(reconcileService)
	webhookHandler.RegisterRoutes(r)

	// WebSocket routes (handle auth internally via query param)
	r.Get("/ws/restaurants/{rid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/deliveries", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeCourierWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Account
		authHandler.RegisterProtectedRoutes(r)

		orderHandler := handler.NewOrderHandler(orderService, statusService, queries)

		// Customer routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleCustomer))

			addressHandler := handler.NewAddressHandler(queries)
			r.Route("/addresses", addressHandler.RegisterRoutes)

			cartHandler := handler.NewCartHandler(cartService, orderService)
			r.Route("/carts", cartHandler.RegisterRoutes)
		})

		// Orders: reads shared across roles, actions checked per actor
		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterCustomerRoutes(r)

			paymentHandler := handler.NewPaymentHandler(orderService)
			paymentHandler.RegisterRoutes(r)
		})

		// Restaurant-scoped routes
		r.Route("/restaurants/{rid}/orders", func(r chi.Router) {
			r.Use(mw.RequireRestaurant)
			orderHandler.RegisterRestaurantRoutes(r)
		})

		// Courier routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleCourier))
			deliveryHandler := handler.NewDeliveryHandler(statusService)
			r.Route("/deliveries", deliveryHandler.RegisterRoutes)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleAdmin))
			r.Route("/admin/orders", orderHandler.RegisterAdminRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
