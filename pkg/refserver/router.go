package refserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nimbusfs/nimbusfs/internal/logger"
)

// NewRouter builds the chi router serving the reference remote store
// rooted at root.
//
// Routes:
//   - GET    /api/info/*
//   - GET    /api/list/*
//   - GET    /api/data/*
//   - PUT    /api/data/*
//   - POST   /api/create/*
//   - POST   /api/rename
//   - DELETE /api/delete/*
func NewRouter(root string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h := &handler{root: root}

	r.Get("/api/info/*", h.info)
	r.Get("/api/list/*", h.list)
	r.Get("/api/data/*", h.getData)
	r.Put("/api/data/*", h.putData)
	r.Post("/api/create/*", h.create)
	r.Post("/api/rename", h.rename)
	r.Delete("/api/delete/*", h.delete)

	return r
}

// requestLogger logs each request's method, path, status, and duration,
// the way the teacher's own control-plane API server logs requests.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("refserver request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
