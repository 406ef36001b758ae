// Package httpapi implements the five user-facing HTTP operations (spec
// §4.2, §6): create_project, get, buy, sell, claim_dev_lock. It is the
// thinnest layer in the system — it decodes requests, calls the Keypair
// Pool, off-chain uploader, Project Store, and Transaction Builder in the
// order the propagation rule requires, and maps errors to status codes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/moonzip/launchd/internal/curve"
	"github.com/moonzip/launchd/internal/ipfs"
	"github.com/moonzip/launchd/internal/keypair"
	"github.com/moonzip/launchd/internal/logging"
	"github.com/moonzip/launchd/internal/metrics"
	"github.com/moonzip/launchd/internal/middleware"
	"github.com/moonzip/launchd/internal/store"
	"github.com/moonzip/launchd/internal/txbuilder"
)

// CurveStateReader resolves the mutable reserve snapshot a buy/sell quote
// needs. The store-backed implementation reads observed chain state;
// tests substitute a fixed curve.
type CurveStateReader interface {
	CurveState(ctx context.Context, poolKey string) (curve.State, error)
}

// Server wires the API routes to the components that implement them.
type Server struct {
	Store     *store.Store
	Keypairs  *keypair.Pool
	Uploader  ipfs.Uploader
	Builder   *txbuilder.Builder
	Curves    CurveStateReader
	Logger    *logging.Logger
	ClusterTime func() time.Time
}

// NewRouter builds the mux.Router serving the platform's public API,
// health, and metrics endpoints, wrapped in the shared middleware chain.
func NewRouter(s *Server, redisClient *redis.Client, corsOrigins []string, rateRPS, rateBurst int) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/project/create", s.handleCreateProject).Methods(http.MethodPost)
	r.HandleFunc("/api/project/get", s.handleGetProject).Methods(http.MethodGet)
	r.HandleFunc("/api/project/buy", s.handleBuy).Methods(http.MethodPost)
	r.HandleFunc("/api/project/sell", s.handleSell).Methods(http.MethodPost)
	r.HandleFunc("/api/project/claim_dev_lock", s.handleClaimDevLock).Methods(http.MethodPost)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)

	cors := middleware.NewCORSMiddleware(corsOrigins)
	limiter := middleware.NewRateLimiter(redisClient, rateRPS, rateBurst, s.Logger)
	limiter.StartCleanup(10 * time.Minute)

	r.Use(cors.Handler)
	r.Use(limiter.Handler)
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.LoggingMiddleware(s.Logger))

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// storeCurveReader is the production CurveStateReader, reconstructing
// curve.State from the persisted curve configuration and the syncer's
// observed reserve snapshot.
type storeCurveReader struct {
	store *store.Store
	cfg   curve.Config
}

// NewStoreCurveReader builds a CurveStateReader backed by the Project
// Store's observed chain state, seeded from a fixed curve configuration
// shared by every internal pool.
func NewStoreCurveReader(s *store.Store, cfg curve.Config) CurveStateReader {
	return &storeCurveReader{store: s, cfg: cfg}
}

func (r *storeCurveReader) CurveState(ctx context.Context, poolKey string) (curve.State, error) {
	observed, err := r.store.GetCurvePoolState(ctx, poolKey)
	if err != nil {
		return curve.State{}, err
	}
	state := curve.FromConfig(r.cfg)
	if observed.VirtualSolReserves != 0 || observed.VirtualTokenReserves != 0 {
		state.VirtualSolReserves = observed.VirtualSolReserves
		state.VirtualTokenReserves = observed.VirtualTokenReserves
	}
	return state, nil
}
