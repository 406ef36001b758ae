// Command apiserver serves the platform's public HTTP API: project
// creation, lookup, buy, sell, and dev-lock claim (spec §4.2, §6).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/gagliardetto/solana-go"

	"github.com/moonzip/launchd/internal/chain"
	"github.com/moonzip/launchd/internal/config"
	"github.com/moonzip/launchd/internal/curve"
	"github.com/moonzip/launchd/internal/fee"
	"github.com/moonzip/launchd/internal/httpapi"
	"github.com/moonzip/launchd/internal/ipfs"
	"github.com/moonzip/launchd/internal/keypair"
	"github.com/moonzip/launchd/internal/logging"
	"github.com/moonzip/launchd/internal/store"
	"github.com/moonzip/launchd/internal/txbuilder"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("apiserver: %v", err)
	}
}

func run(ctx context.Context) error {
	profile := config.MustLoad()
	logger := logging.New(string(profile.RunMode))

	db, err := sql.Open("postgres", profile.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rpcClient, err := chain.NewClient(chain.Config{URL: profile.RPCURL})
	if err != nil {
		return fmt.Errorf("create rpc client: %w", err)
	}

	authority, err := solana.PrivateKeyFromBase58(profile.AuthorityKeyBase58)
	if err != nil {
		return fmt.Errorf("parse authority private key: %w", err)
	}

	builder := txbuilder.New(txbuilder.Config{
		ProgramID:                solana.MustPublicKeyFromBase58(profile.ProgramIDBase58),
		TokenProgramID:           solana.TokenProgramID,
		AssociatedTokenProgramID: solana.SPLAssociatedTokenAccountProgramID,
		SystemProgramID:          solana.SystemProgramID,
		FeeAccount:               solana.MustPublicKeyFromBase58(profile.FeeAccountBase58),
		Authority:                authority,
		FeeBPS:                   fee.BasisPoints(profile.FeeBPS),
	}, rpcClient)

	st := store.New(db)

	var redisClient *redis.Client
	if profile.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: profile.RedisAddr})
	}

	server := &httpapi.Server{
		Store:       st,
		Keypairs:    keypair.New(db),
		Uploader:    ipfs.New(ipfs.Config{BaseURL: profile.IPFSEndpoint, APIKey: profile.IPFSAPIKey, Gateway: profile.IPFSGateway}),
		Builder:     builder,
		Curves:      httpapi.NewStoreCurveReader(st, curve.DefaultConfig()),
		Logger:      logger,
		ClusterTime: time.Now,
	}

	router := httpapi.NewRouter(server, redisClient, profile.CORSAllowedOrigins(), profile.RateLimitRPS, profile.RateLimitBurst)

	httpServer := &http.Server{
		Addr:         profile.HTTPAddr,
		Handler:      router,
		ReadTimeout:  profile.HTTPRequestBudget,
		WriteTimeout: profile.HTTPRequestBudget,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("apiserver: listening on %s", profile.HTTPAddr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), profile.ShutdownGrace)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
