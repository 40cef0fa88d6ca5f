// Package health exposes a lightweight HTTP health endpoint for container probes.
// Mongo is only checked when the user registry is enabled.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"echo_bot/internal/logging"
)

const (
	mongoPingTimeout   = 2 * time.Second
	readHeaderTimeout  = 2 * time.Second
	healthListenPrefix = ":"

	// activeWindow bounds the active_users count.
	activeWindow = 24 * time.Hour
)

// MongoChecker defines the subset of MongoDB client behavior required for health.
type MongoChecker interface {
	Ping(ctx context.Context) error
}

// UserCounter reports the size of the user registry.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
	CountActiveUsers(ctx context.Context, since time.Time) (int64, error)
}

// ModeCounter reports how many users have an explicitly chosen mode.
type ModeCounter interface {
	Len() int
}

// Server hosts the health endpoint and owns the underlying HTTP server.
type Server struct {
	server       *http.Server
	logger       *logrus.Entry
	mongoChecker MongoChecker
	users        UserCounter
	modes        ModeCounter
	now          func() time.Time
}

type response struct {
	Status string `json:"status"`
	Mongo  string `json:"mongo,omitempty"`
	Modes  *int   `json:"modes,omitempty"`
	Users  *int64 `json:"users,omitempty"`
	Active *int64 `json:"active_users,omitempty"`
}

// Option wires optional collaborators into the health server.
type Option func(*Server)

// WithMongo enables the Mongo ping and, when users is non-nil, the registry size.
func WithMongo(checker MongoChecker, users UserCounter) Option {
	return func(s *Server) {
		s.mongoChecker = checker
		s.users = users
	}
}

// WithModes reports the mode store size.
func WithModes(modes ModeCounter) Option {
	return func(s *Server) {
		s.modes = modes
	}
}

// NewServer constructs a health server that exposes GET /healthz on the provided port.
func NewServer(port int, logger *logrus.Entry, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(srv)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", healthListenPrefix, port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the health server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "health_stopped").Info("health server stopped")
			return nil
		}

		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the health server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok"}

	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if s.modes != nil {
		n := s.modes.Len()
		resp.Modes = &n
	}

	if s.mongoChecker != nil {
		pingCtx, cancel := context.WithTimeout(ctx, mongoPingTimeout)
		err := s.mongoChecker.Ping(pingCtx)
		cancel()

		if err != nil {
			resp.Status = "degraded"
			resp.Mongo = "error"
			s.logger.WithFields(logging.Fields{
				"event": "health_mongo_error",
			}).WithError(err).Warn("mongo ping failed during health check")
		} else if s.users != nil {
			s.countUsers(ctx, &resp)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}

func (s *Server) countUsers(ctx context.Context, resp *response) {
	countCtx, cancel := context.WithTimeout(ctx, mongoPingTimeout)
	defer cancel()

	total, err := s.users.CountUsers(countCtx)
	if err != nil {
		s.logger.WithField("event", "health_count_error").WithError(err).Warn("user count failed during health check")
		return
	}
	resp.Users = &total

	active, err := s.users.CountActiveUsers(countCtx, s.now().Add(-activeWindow))
	if err != nil {
		s.logger.WithField("event", "health_count_error").WithError(err).Warn("active user count failed during health check")
		return
	}
	resp.Active = &active
}
