package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/greenscreen-pictures/kiosk/internal/admin"
	"github.com/greenscreen-pictures/kiosk/internal/config"
	"github.com/greenscreen-pictures/kiosk/internal/handler"
	"github.com/greenscreen-pictures/kiosk/internal/history"
	mw "github.com/greenscreen-pictures/kiosk/internal/middleware"
	"github.com/greenscreen-pictures/kiosk/internal/ordernum"
	"github.com/greenscreen-pictures/kiosk/internal/photomatch"
	"github.com/greenscreen-pictures/kiosk/internal/session"
	"github.com/greenscreen-pictures/kiosk/internal/ws"
)

// Deps holds the long-lived services the routes are built from.
type Deps struct {
	Machine  *session.Machine
	History  *history.Store
	Counter  *ordernum.Service
	Matcher  *photomatch.Matcher
	Gate     *admin.Gate
	Sessions *handler.SessionHandler
	Hub      *ws.Hub
}

// New creates a Chi router with all application routes wired up.
// Kiosk routes are public; admin routes require a token from /admin/unlock.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Kiosk screen
	r.Route("/session", d.Sessions.RegisterRoutes)
	r.Get("/ws/kiosk", ws.Handler(d.Hub, ws.TopicKiosk))

	// Admin WebSocket (token via query param)
	r.With(mw.Authenticate(cfg.JWTSecret)).Get("/ws/admin", ws.Handler(d.Hub, ws.TopicAdmin))

	r.Route("/admin", func(r chi.Router) {
		// Admin gate (public)
		authHandler := handler.NewAuthHandler(d.Gate, cfg.JWTSecret, cfg.AdminTokenTTL)
		authHandler.RegisterRoutes(r)

		// Protected routes (require an unlocked admin session)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))

			settingsHandler := handler.NewSettingsHandler(d.Machine, d.Counter, d.Hub)
			settingsHandler.RegisterRoutes(r)

			orderHandler := handler.NewOrderHandler(d.History)
			orderHandler.RegisterRoutes(r)

			photoHandler := handler.NewPhotoHandler(d.Matcher)
			photoHandler.RegisterRoutes(r)

			reportsHandler := handler.NewReportsHandler(d.History, nil)
			reportsHandler.RegisterRoutes(r)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
