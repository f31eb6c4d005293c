package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vfxpublish/internal/auth"
)

// RouterDeps are the handlers mounted by NewRouter. Layers is nil when no S3
// mirror is configured.
type RouterDeps struct {
	Publish  *PublishHandler
	Folders  *FolderHandler
	Query    *QueryHandler
	Layers   *LayerHandler
	Verifier *auth.Verifier
	Logger   *zap.Logger
}

// NewRouter mounts the HTTP API. /healthz and /metrics are not
// authenticated.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(requestLogger(deps.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if deps.Verifier != nil {
			r.Use(deps.Verifier.Middleware)
		}

		r.Post("/publish", deps.Publish.Publish)

		r.Route("/projects/{project}", func(r chi.Router) {
			r.Get("/folders", deps.Folders.GetFolderContent)
			r.Post("/folders", deps.Folders.CreateFolder)
			r.Get("/products", deps.Query.ListProducts)
			r.Get("/products/{productID}/versions", deps.Query.ListVersions)
			r.Get("/versions/{versionID}/representations", deps.Query.ListRepresentations)
			if deps.Layers != nil {
				r.Get("/layers/*", deps.Layers.GetLayer)
			}
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("Handled request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
