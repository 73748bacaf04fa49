package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"buildflow/internal/api/handlers"
	"buildflow/internal/api/middleware"
	"buildflow/internal/config"
	"buildflow/internal/logger"
	"buildflow/internal/storage"
)

// Router represents the API router
type Router struct {
	mux            *http.ServeMux
	allowedOrigins []string
	maxBodySize    int64
}

// NewRouter creates a new Router instance
func NewRouter(
	cfg config.Config,
	buildClient handlers.BuildClient,
) *Router {
	mux := http.NewServeMux()

	// Create handlers
	triggerHandler := handlers.NewTriggerHandler(buildClient)
	recordsHandler := handlers.NewRecordsHandler()

	// Create middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.API)

	// Public routes
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "buildflow API",
			"version": "1.0.0",
			"endpoints": []string{
				"/health - Health check",
				"/api/v1/trigger - Trigger a build (optionally waiting for it to start)",
				"/api/v1/poll - Resume waiting on a queued build",
				"/api/v1/builds - List build history for a job",
				"/api/v1/records - Get trigger records",
			},
		}); err != nil {
			logger.Error("Failed to encode response", "error", err)
		}
	})

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := storage.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if encodeErr := json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"error":  "database connection failed",
			}); encodeErr != nil {
				logger.Error("Failed to encode health check error", "error", encodeErr)
			}
			return
		}

		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "healthy",
		}); err != nil {
			logger.Error("Failed to encode health check response", "error", err)
		}
	})

	// Protected routes
	mux.Handle("/api/v1/trigger", authMiddleware.Middleware(http.HandlerFunc(triggerHandler.TriggerBuild)))
	mux.Handle("/api/v1/poll", authMiddleware.Middleware(http.HandlerFunc(triggerHandler.PollBuild)))
	mux.Handle("/api/v1/builds", authMiddleware.Middleware(http.HandlerFunc(triggerHandler.BuildHistory)))
	mux.Handle("/api/v1/records", authMiddleware.Middleware(http.HandlerFunc(recordsHandler.GetTriggerRecords)))

	return &Router{
		mux:            mux,
		allowedOrigins: cfg.Server.AllowedOrigins,
		maxBodySize:    cfg.Server.MaxBodySize,
	}
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Chain middleware: RequestID -> BodySizeLimit -> CORS -> Mux
	handler := chainMiddleware(
		http.HandlerFunc(r.mux.ServeHTTP),
		middleware.RequestIDMiddleware,
		middleware.LimitBodySize(r.maxBodySize),
		r.corsMiddleware,
	)
	handler.ServeHTTP(w, req)
}

// chainMiddleware chains multiple middleware functions together
func chainMiddleware(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// corsMiddleware handles CORS headers and preflight requests
func (r *Router) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		origin := req.Header.Get("Origin")

		if len(r.allowedOrigins) == 0 {
			// Empty allowed origins means allow all
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			if !r.isValidOrigin(origin) {
				logger.Warn("Invalid origin format", "origin", origin, "request_id", middleware.GetRequestID(req))
			} else if r.isOriginAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				// Origin not in allowed list; no CORS headers, but
				// same-origin requests still proceed
				logger.Warn("Origin not allowed", "origin", origin, "request_id", middleware.GetRequestID(req))
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle OPTIONS requests for CORS preflight
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, req)
	})
}

// isValidOrigin validates the origin format (must be http:// or https://)
func (r *Router) isValidOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://")
}

// isOriginAllowed checks if the given origin is in the allowed list
func (r *Router) isOriginAllowed(origin string) bool {
	for _, allowed := range r.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}
