package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zemini/internal/actions"
	"zemini/internal/auth"
	"zemini/internal/config"
)

const defaultRequestTimeout = 30 * time.Second

// NewRouter wires application routes and middleware using chi. google may be
// nil when federated sign-in is not configured.
func NewRouter(cfg config.Config, acts *actions.Actions, tokens *auth.TokenIssuer, google googleAuthenticator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(newMetricsMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSlogMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	if strings.TrimSpace(cfg.CloudinaryURL) == "" && cfg.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", mediaHandler(cfg.MediaDir)))
	}

	sessionHandler := NewSessionHandler(acts, cfg.Environment, logger)
	profileHandler := NewProfileHandler(acts, logger)
	imageHandler := NewImageHandler(acts, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(newIdentityMiddleware(tokens))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultRequestTimeout))

			r.Post("/register", sessionHandler.Register)
			r.Post("/password/forgot", sessionHandler.ForgotPassword)
			r.Route("/session", func(r chi.Router) {
				r.Post("/", sessionHandler.Login)
				r.Get("/", sessionHandler.Status)
				r.Delete("/", sessionHandler.Logout)
			})

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", profileHandler.Get)
				r.Put("/", profileHandler.Update)
				r.Put("/password", profileHandler.UpdatePassword)
			})

			r.Get("/images", imageHandler.List)
			r.Delete("/images", imageHandler.Delete)
			r.Get("/images/export", imageHandler.Export)
			r.Delete("/images/{id}", imageHandler.DeleteByID)

			if google != nil {
				oauthHandler := NewOAuthHandler(google, acts, cfg.FrontendURL, cfg.Environment, logger)
				r.Get("/auth/google", oauthHandler.InitiateGoogle)
				r.Get("/auth/google/callback", oauthHandler.CallbackGoogle)
			}
		})

		// Generation waits on the provider and the upload in sequence.
		r.With(middleware.Timeout(GenerationRequestTimeout(cfg))).Post("/images/generate", imageHandler.Generate)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return r
}

// GenerationRequestTimeout bounds a whole generate request.
func GenerationRequestTimeout(cfg config.Config) time.Duration {
	return cfg.ProviderTimeout + cfg.StorageTimeout + 15*time.Second
}

// mediaHandler serves locally stored uploads without directory listings.
func mediaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
