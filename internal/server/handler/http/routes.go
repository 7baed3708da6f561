package http

import (
	"net/http"

	"github.com/atinyakov/moviecatalog/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP handler serving the catalog API.
//
// Routes:
//
//	GET    /healthz
//	GET    /{collection}        list, query parameters filter by field
//	POST   /{collection}        create
//	GET    /{collection}/{id}   read
//	PUT    /{collection}/{id}   full replace
//	DELETE /{collection}/{id}   delete
//
// Middleware chain: CORS, request logging, JSON content-type enforcement
// for requests with a body.
func NewRouter(resourceHandler *ResourceHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.AllowContentType("application/json"))

	r.Get("/healthz", Health)

	r.Route("/{collection}", func(r chi.Router) {
		r.Get("/", resourceHandler.List)
		r.Post("/", resourceHandler.Create)
		r.Get("/{id}", resourceHandler.Get)
		r.Put("/{id}", resourceHandler.Replace)
		r.Delete("/{id}", resourceHandler.Delete)
	})

	return r
}
