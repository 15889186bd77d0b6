package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/obbylee/chatify/internal/api/middleware"
	"github.com/obbylee/chatify/internal/email"
	"github.com/obbylee/chatify/internal/handlers"
	"github.com/obbylee/chatify/internal/realtime"
	"github.com/obbylee/chatify/internal/store"
	"github.com/obbylee/chatify/internal/token"
	"github.com/obbylee/chatify/internal/upload"
)

// Deps bundles everything the router needs.
type Deps struct {
	Logger    zerolog.Logger
	Store     store.DataStore
	Redis     *store.RedisStore // optional
	Tokens    *token.Service
	Hub       *realtime.Hub
	Uploads   *upload.LocalStore
	Mailer    email.Sender
	ClientURL string
	DevMode   bool
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Image payloads travel as data URLs inside JSON bodies
	r.Use(middleware.MaxBodySize(5 * 1024 * 1024))

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	// Rate limiting on credential endpoints (pass-through without Redis)
	limiter := middleware.NewRateLimiter(d.Redis, d.Logger)
	r.Use(limiter.Middleware)

	// CORS - the browser client sends the session cookie
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{d.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(d.Store, d.Redis, d.Tokens, d.Hub, d.Uploads, d.Mailer, d.Logger, d.DevMode)
	session := middleware.NewSessionMiddleware(d.Tokens, d.Store, d.Logger)
	ws := realtime.NewWSHandler(d.Hub, d.Tokens, d.Store, d.ClientURL, d.Logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", h.Health)

	// Realtime channel, authenticated by the same session cookie
	r.Get("/ws", ws.ServeHTTP)

	// Uploaded images
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.Uploads.Dir()))))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(session.RequireSession)
			r.Put("/update-profile", h.UpdateProfile)
			r.Get("/check", h.Check)
		})
	})

	r.Route("/api/message", func(r chi.Router) {
		r.Use(session.RequireSession)

		r.Get("/contacts", h.GetContacts)
		r.Get("/chats", h.GetChatPartners)
		r.Get("/{id}", h.GetConversation)
		r.Post("/send/{id}", h.SendMessage)
	})

	return r
}
