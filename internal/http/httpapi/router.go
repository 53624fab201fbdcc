package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"storygen/internal/http/handlers"
	"storygen/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.CORSAllowedOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	// Stored assets (development file store)
	if app.Config.StoragePath != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(app.Config.StoragePath))))
	}

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.AuthJWT(app.Config.JWTSecret),
			middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
		)

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.JobsCreate)
			r.Get("/", app.JobsList)
			r.Get("/{job_id}", app.JobsGet)
			r.Post("/{job_id}/cancel", app.JobsCancel)
		})

		r.Route("/v1/stories/{story_id}", func(r chi.Router) {
			r.Get("/jobs", app.StoryJobsList)
			r.Get("/archive", app.StoryArchive)
		})

		r.Post("/v1/images/generate", app.ImagesGenerate)
	})

	return r
}
