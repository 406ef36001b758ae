// Command migrator drives authority-signed lifecycle transitions: curve
// pool creation, static-pool graduation, curve-pool closure, and (where
// implemented) AMM graduation (spec §4.5).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/gagliardetto/solana-go"

	"github.com/moonzip/launchd/internal/chain"
	"github.com/moonzip/launchd/internal/config"
	"github.com/moonzip/launchd/internal/fee"
	"github.com/moonzip/launchd/internal/logging"
	"github.com/moonzip/launchd/internal/migrator"
	"github.com/moonzip/launchd/internal/store"
	"github.com/moonzip/launchd/internal/txbuilder"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("migrator: %v", err)
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
	bundleClient, err := chain.NewClient(chain.Config{URL: profile.BundleSubmitterURL})
	if err != nil {
		return fmt.Errorf("create bundle submitter client: %w", err)
	}
	submitter := chain.NewBundleSubmitter(bundleClient)

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

	worker := migrator.New(migrator.Config{
		PollInterval: profile.MigratorPollEvery,
		SubmitOpts: chain.SendOpts{
			SkipPreflight: false,
			MaxRetries:    0,
		},
		ClusterTime: time.Now,
	}, store.New(db), builder, submitter, rpcClient, logger)

	log.Printf("migrator: polling every %s", profile.MigratorPollEvery)
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
