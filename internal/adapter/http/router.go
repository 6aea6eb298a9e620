package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/plastinin/identtracker/internal/adapter/http/handler"
	httpmiddleware "github.com/plastinin/identtracker/internal/adapter/http/middleware"
	"go.uber.org/zap"
)

// NewRouter создаёт HTTP роутер сервиса отслеживания задач
func NewRouter(
	taskHandler *handler.TaskHandler,
	preferenceHandler *handler.PreferenceHandler,
	healthHandler *handler.HealthHandler,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", healthHandler.Check)

	// Тело запроса принимаем только в JSON
	jsonBody := middleware.AllowContentType("application/json")

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.With(jsonBody).Post("/", taskHandler.Create)
			r.Get("/", taskHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetByID)
				r.Delete("/", taskHandler.Delete)
				r.Post("/cancel", taskHandler.Cancel)
				r.Get("/result", taskHandler.Result)
				r.Get("/export", taskHandler.Export)
			})
		})

		r.Route("/preferences/{profile}", func(r chi.Router) {
			r.Get("/", preferenceHandler.Get)
			r.With(jsonBody).Put("/", preferenceHandler.Update)
		})
	})

	return r
}
