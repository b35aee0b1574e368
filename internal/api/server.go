// Package api provides the HTTP server for rejectly. Callers are
// authenticated upstream; the caller's identity arrives in X-User-ID.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rejectly/rejectly/internal/app/credit"
	"github.com/rejectly/rejectly/internal/app/engagement"
	"github.com/rejectly/rejectly/internal/domain"
	"github.com/rejectly/rejectly/internal/health"
	"github.com/rejectly/rejectly/internal/infra/metrics"
	"github.com/rejectly/rejectly/internal/infra/scheduler"
)

// UserHeader carries the authenticated caller's id.
const UserHeader = "X-User-ID"

// Services are the components the API exposes. Nil components leave
// their routes unmounted.
type Services struct {
	Tracker     *engagement.Tracker
	Challenges  *engagement.ChallengeScheduler
	Badges      *engagement.BadgeClassifier
	Suggestions *engagement.SuggestionQueue
	Dispatcher  *engagement.Dispatcher
	Ledger      *credit.Service
	Runner      *scheduler.Runner
	Health      *health.Checker
}

// Server is the rejectly HTTP API server.
type Server struct {
	svc            Services
	metricsEnabled bool
	version        string
	now            func() time.Time
}

// NewServer creates a new API server.
func NewServer(svc Services, version string) *Server {
	return &Server{svc: svc, version: version, now: time.Now}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)
	r.Use(countRequests)

	r.Get("/health", s.handleHealth)
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if s.svc.Tracker != nil {
			r.Post("/quests", s.handleCreateQuest)
			r.Post("/quests/{questID}/start", s.handleStartQuest)
			r.Get("/instances", s.handleListInstances)
			r.Post("/instances/{id}/actions", s.handleRecordAction)
			r.Get("/me", s.handleProfile)
		}
		if s.svc.Badges != nil {
			r.Get("/instances/{id}/badges", s.handleBadges)
			r.Post("/badges", s.handleBadgeBatch)
		}
		if s.svc.Challenges != nil {
			r.Post("/challenges", s.handleEnroll)
			r.Get("/challenges/{id}", s.handleChallenge)
		}
		if s.svc.Suggestions != nil {
			r.Post("/live/{sessionID}/suggestions", s.handleSuggest)
			r.Get("/live/{sessionID}/suggestions", s.handleListSuggestions)
			r.Post("/suggestions/{id}/respond", s.handleRespond)
		}
		if s.svc.Dispatcher != nil {
			r.Get("/notifications", s.handleNotifications)
			r.Put("/notifications/preferences", s.handlePreference)
			r.Post("/devices", s.handleRegisterDevice)
		}
		if s.svc.Ledger != nil {
			r.Get("/credits", s.handleCredits)
		}
		if s.svc.Runner != nil {
			r.Get("/scheduler", s.handleSchedulerStatus)
			r.Post("/scheduler/{job}/run", s.handleRunJob)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.svc.Health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.svc.Health.Statuses(),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// callerID returns the authenticated caller, or "" when absent.
func callerID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

// decode reads a JSON body into v.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeTypedError(w, status, msg, "error")
}

func writeTypedError(w http.ResponseWriter, status int, msg, typ string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    typ,
		},
	})
}

// writeDomainError maps err onto an HTTP status through the error taxonomy.
func writeDomainError(w http.ResponseWriter, err error) {
	class := domain.Classify(err)
	writeTypedError(w, statusFor(err, class), err.Error(), string(class))
}

func statusFor(err error, class domain.ErrorClass) int {
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return http.StatusPaymentRequired
	}
	switch class {
	case domain.ClassValidation:
		return http.StatusBadRequest
	case domain.ClassNotFound:
		return http.StatusNotFound
	case domain.ClassForbidden:
		return http.StatusForbidden
	case domain.ClassCapacity:
		return http.StatusConflict
	case domain.ClassCollaborator:
		return http.StatusBadGateway
	case domain.ClassUnprovisioned:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// countRequests records a request counter per route pattern and status.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
