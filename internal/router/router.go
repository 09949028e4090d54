package router

import (
	"log"
	"net/http"

	"github.com/comanda-pos/api/internal/config"
	"github.com/comanda-pos/api/internal/handler"
	mw "github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps are the services and stores behind the HTTP surface. The stores are
// *database.Queries in production and *memory.Queries in memory mode.
type Deps struct {
	Staff    handler.AuthStore
	Catalog  handler.CatalogStore
	Engine   *service.TabEngine
	Tables   *service.TableRegistry
	Orders   *service.OrderLedger
	Payments *service.PaymentProcessor
	Credits  *service.CreditLedger
	Hub      *ws.Hub
}

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(d.Staff, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	tableHandler := handler.NewTableHandler(d.Tables, d.Engine)
	r.Route("/public/tables", tableHandler.RegisterPublicRoutes)

	// WebSocket routes (floor auth via query param, table rooms via QR token)
	r.Get("/ws/floor", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeFloor(d.Hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/tables/{token}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeTable(d.Hub, d.Tables, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/tables", tableHandler.RegisterRoutes)
		r.Route("/tabs", handler.NewTabHandler(d.Engine).RegisterRoutes)

		handler.NewOrderHandler(d.Orders).RegisterRoutes(r)
		handler.NewPaymentHandler(d.Payments).RegisterRoutes(r)
		handler.NewCreditHandler(d.Credits).RegisterRoutes(r)
		handler.NewCatalogHandler(d.Catalog).RegisterRoutes(r)
	})

	log.Println("Router initialized with all handlers")
	return r
}
