package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/mavrin/vpncore/pkg/config"
	"github.com/mavrin/vpncore/pkg/ledger"
	"github.com/mavrin/vpncore/pkg/lifecycle"
	"github.com/mavrin/vpncore/pkg/model"
	"github.com/mavrin/vpncore/pkg/store"
)

// Lifecycle is the slice of the orchestrator the HTTP layer calls.
type Lifecycle interface {
	EnsureActiveCredential(ctx context.Context, userID, nodeID, idempotencyKey string) (*model.Credential, error)
	RevokeCredential(ctx context.Context, credentialID, reason string) error
	ReconcileNode(ctx context.Context, nodeID string) (*lifecycle.ReconcileReport, error)
}

// Ledger is the slice of the subscription ledger the HTTP layer calls.
type Ledger interface {
	RecordPayment(ctx context.Context, p ledger.Payment) (*model.Subscription, bool, error)
	GetActive(ctx context.Context, userID string) (*model.Subscription, error)
	History(ctx context.Context, userID string) ([]model.Subscription, error)
}

// Server holds the API router and the collaborators endpoints need.
type Server struct {
	Config    *config.Config
	Router    *mux.Router
	Lifecycle Lifecycle
	Ledger    Ledger
	Creds     store.CredentialsStore
	Nodes     store.NodesStore
	DBHealth  store.HealthStore
	Logger    zerolog.Logger

	srv    *http.Server
	health *http.Server
}

func NewServer(
	cfg *config.Config,
	lc Lifecycle,
	lg Ledger,
	creds store.CredentialsStore,
	nodes store.NodesStore,
	dbHealth store.HealthStore,
	logger zerolog.Logger,
) *Server {
	router := mux.NewRouter().UseEncodedPath()
	srv := &http.Server{
		Handler: handlers.LoggingHandler(os.Stdout, router),
		Addr:    cfg.ListenAddr(),
		// Provisions block on the node for up to the node timeout, so
		// the write deadline must sit beyond it.
		WriteTimeout: cfg.NodeTimeout() + 15*time.Second,
		ReadTimeout:  15 * time.Second,
	}

	healthRouter := mux.NewRouter()
	health := &http.Server{
		Handler:      healthRouter,
		Addr:         cfg.HealthAddr(),
		WriteTimeout: 5 * time.Second,
		ReadTimeout:  5 * time.Second,
	}

	s := &Server{
		Config:    cfg,
		Router:    router,
		Lifecycle: lc,
		Ledger:    lg,
		Creds:     creds,
		Nodes:     nodes,
		DBHealth:  dbHealth,
		Logger:    logger.With().Str("component", "server").Logger(),
		srv:       srv,
		health:    health,
	}
	healthRouter.HandleFunc("/health", s.handleHealth).Methods("GET")
	return s
}

// Start serves the API. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// StartHealth serves the liveness endpoint on its own port so load
// balancers can probe without a token.
func (s *Server) StartHealth() error {
	return s.health.ListenAndServe()
}

// Shutdown drains both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	healthErr := s.health.Shutdown(ctx)
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	return healthErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.DBHealth != nil {
		if err := s.DBHealth.Ping(r.Context()); err != nil {
			s.Logger.Warn().Err(err).Msg("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
