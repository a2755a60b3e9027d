package router

import (
	"net/http"
	"strings"

	"medtech-planner/internal/http-server/handler/form"
	"medtech-planner/internal/http-server/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	FormHandler *form.FormHandler
}

func SetupRouter(h *Handler, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/static/") || strings.HasPrefix(r.URL.Path, "/results/") {
				next.ServeHTTP(w, r)
				return
			}
			middleware.LoggingMiddleware(next).ServeHTTP(w, r)
		})
	})

	if staticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	r.Get("/", h.FormHandler.Index)
	r.Post("/file", h.FormHandler.SelectFile)
	r.Post("/phase", h.FormHandler.SelectPhase)
	r.Post("/submit", h.FormHandler.Submit)
	r.Get("/results/{key}", h.FormHandler.Result)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.FormHandler.State)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
	})

	return r
}
