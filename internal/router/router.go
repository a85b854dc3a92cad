// Package router sets up all HTTP routes and middleware chains for the
// mockup service. It organizes routes into operator, upload and customer
// groups with their own middleware stacks.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mockupstudio/internal/handlers"
	"mockupstudio/internal/middleware"
)

// Options carries the guards shared by the route groups.
type Options struct {
	Operator      *middleware.OperatorAuth
	UploadLimiter *middleware.RateLimiter
	RenderLimiter *middleware.RateLimiter
	SecureCookies bool

	// Health replaces the static health check, typically with one that
	// pings the database.
	Health http.HandlerFunc
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(opts Options, templates *handlers.Templates, ed *handlers.Editor, media *handlers.Media, uploads *handlers.Uploads, customer *handlers.Customer) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)

	health := opts.Health
	if health == nil {
		health = healthHandler
	}
	r.Get("/health", health)

	r.Route("/api", func(r chi.Router) {
		// Operator API: templates and editing sessions.
		r.Group(func(r chi.Router) {
			r.Use(opts.Operator.Require)

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", templates.List)
				r.Post("/", templates.Create)
				r.Get("/{id}", templates.Get)
				r.Patch("/{id}", templates.Update)
				r.Delete("/{id}", templates.Delete)
				r.Get("/{id}/slots", templates.Slots)
				r.Get("/{id}/revisions", templates.Revisions)
				r.Get("/{id}/revisions/{version}", templates.Revision)
			})

			r.Route("/editor/sessions", func(r chi.Router) {
				r.Post("/", ed.Open)
				r.Get("/{sid}", ed.Get)
				r.Post("/{sid}/ops", ed.Ops)
				r.Post("/{sid}/undo", ed.Undo)
				r.Post("/{sid}/redo", ed.Redo)
				r.Post("/{sid}/select", ed.Select)
				r.Post("/{sid}/save", ed.Save)
				r.Get("/{sid}/preview", ed.Preview)
				r.Delete("/{sid}", ed.Close)
			})

			r.Get("/media", media.List)
			r.Delete("/media/{id}", media.Delete)
		})

		// Uploads serve both the editor and customers.
		r.With(limit(opts.UploadLimiter)).Post("/uploads", uploads.Upload)

		r.Route("/customer", func(r chi.Router) {
			r.Use(middleware.Customer(opts.SecureCookies))

			r.Get("/templates/{id}", customer.Template)
			r.With(limit(opts.RenderLimiter)).Post("/templates/{id}/render", customer.Render)

			r.Get("/drafts", customer.Usage)
			r.Get("/drafts/{templateID}", customer.GetDraft)
			r.Put("/drafts/{templateID}", customer.PutDraft)
			r.Delete("/drafts/{templateID}", customer.DeleteDraft)
		})
	})

	return r
}

// limit returns the limiter's middleware, or a pass-through when rl is nil.
func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
