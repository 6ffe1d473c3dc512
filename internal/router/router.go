package router

import (
	"net/http"

	"github.com/bartab-pos/api/internal/blob"
	"github.com/bartab-pos/api/internal/cache"
	"github.com/bartab-pos/api/internal/config"
	"github.com/bartab-pos/api/internal/database"
	"github.com/bartab-pos/api/internal/enum"
	"github.com/bartab-pos/api/internal/handler"
	mw "github.com/bartab-pos/api/internal/middleware"
	"github.com/bartab-pos/api/internal/service"
	"github.com/bartab-pos/api/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, rdb *redis.Client, blobs blob.Store) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	catalogService := service.NewCatalogService(queries, blobs)
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, queries, newOrderStore)
	binder := session.NewBinder(rdb)
	reportCache := cache.New(rdb, "reports")

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Admin-only staff management
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			staffHandler := handler.NewStaffHandler(queries)
			r.Route("/staff", staffHandler.RegisterRoutes)
		})

		sectionHandler := handler.NewSectionHandler(queries)
		r.Route("/sections", sectionHandler.RegisterRoutes)

		tableHandler := handler.NewTableHandler(queries)
		r.Route("/tables", tableHandler.RegisterRoutes)

		productHandler := handler.NewProductHandler(queries, catalogService)
		r.Route("/products", productHandler.RegisterRoutes)

		categoryHandler := handler.NewCategoryHandler(queries, catalogService)
		r.Route("/categories", categoryHandler.RegisterRoutes)

		menuHandler := handler.NewMenuHandler(queries, catalogService)
		r.Route("/menu", menuHandler.RegisterRoutes)

		orderHandler := handler.NewOrderHandler(orderService, queries, binder)
		r.Route("/orders", orderHandler.RegisterRoutes)

		reportHandler := handler.NewReportHandler(queries, reportCache)
		r.Route("/reports", reportHandler.RegisterRoutes)
	})

	return r
}
