// Package config loads the runtime profile selected by APP_RUN_MODE.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// RunMode selects which deployment profile to load.
type RunMode string

const (
	// RunModeTest is the profile used by integration tests and local dev.
	RunModeTest RunMode = "test"
	// RunModeProd is the profile used in production deployments.
	RunModeProd RunMode = "prod"
)

// Profile holds everything the API server, migrator, and syncer need.
type Profile struct {
	RunMode RunMode `env:"APP_RUN_MODE,default=test"`

	DatabaseURL string `env:"DATABASE_URL,default=postgres://localhost:5432/moonzip?sslmode=disable"`

	RPCURL             string `env:"SOLANA_RPC_URL,default=http://localhost:8899"`
	WSRPCURL           string `env:"SOLANA_WS_URL,default=ws://localhost:8900"`
	BundleSubmitterURL string `env:"BUNDLE_SUBMITTER_URL,default=http://localhost:8899"`

	IPFSEndpoint string `env:"IPFS_ENDPOINT,default=https://api.pinata.cloud"`
	IPFSAPIKey   string `env:"IPFS_API_KEY"`
	IPFSGateway  string `env:"IPFS_GATEWAY"`

	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`

	ProgramIDBase58   string `env:"PROGRAM_ID"`
	FeeAccountBase58  string `env:"FEE_ACCOUNT"`
	AuthorityKeyBase58 string `env:"AUTHORITY_PRIVATE_KEY"`

	FeeBPS uint16 `env:"FEE_BPS,default=100"`

	CORSAllowedOriginsRaw string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitRPS          int    `env:"RATE_LIMIT_RPS,default=10"`
	RateLimitBurst        int    `env:"RATE_LIMIT_BURST,default=20"`

	KeypairPoolMinDepth int           `env:"KEYPAIR_POOL_MIN_DEPTH,default=64"`
	SyncerRefreshEvery  time.Duration `env:"SYNCER_REFRESH_INTERVAL,default=30s"`

	MigratorPollEvery time.Duration `env:"MIGRATOR_POLL_INTERVAL,default=2s"`
	ShutdownGrace     time.Duration `env:"MIGRATOR_SHUTDOWN_GRACE,default=10s"`

	HTTPRequestBudget time.Duration `env:"HTTP_REQUEST_BUDGET,default=2s"`
	HTTPAddr          string        `env:"HTTP_ADDR,default=:8080"`
}

// CORSAllowedOrigins splits the comma-separated CORS_ALLOWED_ORIGINS value.
func (p *Profile) CORSAllowedOrigins() []string {
	return strings.Split(p.CORSAllowedOriginsRaw, ",")
}

// Load reads .env (if present) and decodes the process environment into a
// Profile.
func Load() (*Profile, error) {
	_ = godotenv.Load()

	var p Profile
	if err := envdecode.Decode(&p); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("config: decode environment: %w", err)
	}

	switch p.RunMode {
	case RunModeTest, RunModeProd:
	default:
		return nil, fmt.Errorf("config: unknown APP_RUN_MODE %q", p.RunMode)
	}

	return &p, nil
}

// MustLoad is Load but exits the process on failure, used by cmd/ mains.
func MustLoad() *Profile {
	p, err := Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return p
}
