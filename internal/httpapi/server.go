package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/notify"
	"github.com/umarkhanovv/roadwatch/internal/uploads"
)

type Server struct {
	reports        ReportService
	uploads        *uploads.Store
	hub            *notify.Hub
	allowedOrigins []string
	logger         *logging.Logger
	server         *http.Server
}

func New(reports ReportService, uploadStore *uploads.Store, hub *notify.Hub, allowedOrigins []string, logger *logging.Logger) *Server {
	return &Server{
		reports:        reports,
		uploads:        uploadStore,
		hub:            hub,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Report routes
	reportAPI := NewReportAPI(s.reports, s.uploads, s.logger)
	reportAPI.RegisterRoutes(mux, s.corsMiddleware)

	// Uploaded media
	mediaAPI := NewMediaAPI(s.uploads, s.logger)
	mediaAPI.RegisterRoutes(mux, s.corsMiddleware)

	// Live report stream
	if s.hub != nil {
		streamAPI := NewStreamAPI(s.hub, s.logger)
		streamAPI.RegisterRoutes(mux)
	}

	// Health check and metrics
	mux.HandleFunc("/health", s.corsMiddleware(s.handleHealth))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func (s *Server) Start(addr string) error {
	// No WriteTimeout: /ws connections are long lived.
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or ""
// when it is not allowed.
func (s *Server) allowOrigin(origin string) string {
	if len(s.allowedOrigins) == 0 {
		return "*"
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
