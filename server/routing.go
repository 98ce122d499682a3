package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nutsq/nutsdash/internal/httpclient"
	"github.com/nutsq/nutsdash/logger"
)

// routes builds the chi router
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.HandleHealth)
	r.Get("/version", s.HandleVersion)
	r.Get("/ws", s.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/views", s.HandleViews)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.HandleListJobs)
			r.Post("/", s.HandleEnqueueJob)
			r.Get("/{name}", s.HandleGetJob)
			r.Post("/{name}/cancel", s.HandleCancelJob)
			r.Post("/{name}/schedule", s.HandleScheduleJob)
		})

		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.HandleListWorkflows)
			r.Get("/{name}", s.HandleGetWorkflow)
			r.Post("/{name}/trigger", s.HandleTriggerWorkflow)
			r.Delete("/{name}/scheduled", s.HandleCancelScheduledWorkflow)
			r.Post("/{name}/reschedule", s.HandleRescheduleWorkflow)
		})
	})

	return r
}

// requestID tags the request context with the incoming X-Request-ID or a new
// one, so backend calls made on its behalf carry the same id
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(httpclient.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(httpclient.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// requestLogger logs every request with its status and duration
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := append(logger.FieldsFromContext(r.Context()),
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatusCode, status,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
		if status >= http.StatusInternalServerError {
			s.logger.Warnw("HTTP request failed", fields...)
			return
		}
		s.logger.Debugw("HTTP request", fields...)
	})
}

// corsMiddleware sets CORS headers for allowed origins and answers preflights
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+httpclient.RequestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed matches origin against the allow-list by prefix, so any port
// of an allowed host passes
func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range *s.allowedOrigins.Load() {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

// checkOrigin is the WebSocket upgrader's origin check. Clients without an
// Origin header (CLI tools, tests) are allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return s.originAllowed(origin)
}
