// Command syncer drives the Chain Syncer: it watches every
// on-chain-observable project's accounts over a websocket RPC
// subscription and folds updates into the Project Store's observed-state
// tables (spec §4.6). The watch list is rebuilt on a fixed interval so
// projects created since the last connection get subscribed.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/gagliardetto/solana-go"

	"github.com/moonzip/launchd/internal/config"
	"github.com/moonzip/launchd/internal/logging"
	"github.com/moonzip/launchd/internal/project"
	"github.com/moonzip/launchd/internal/store"
	"github.com/moonzip/launchd/internal/syncer"
)

var curvePoolSeed = []byte("curve_pool")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("syncer: %v", err)
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

	st := store.New(db)
	consumer := syncer.New(db, logger)

	for {
		if ctx.Err() != nil {
			return nil
		}

		roundCtx, cancel := context.WithTimeout(ctx, profile.SyncerRefreshEvery)
		source, err := buildSource(roundCtx, profile.WSRPCURL, profile.ProgramIDBase58, st)
		if err != nil {
			logger.WithContext(ctx).WithError(err).Warn("syncer: failed to build watch list, retrying")
			cancel()
			continue
		}

		log.Printf("syncer: connecting to %s", profile.WSRPCURL)
		if err := consumer.Run(roundCtx, source); err != nil && roundCtx.Err() == nil {
			logger.WithContext(ctx).WithError(err).Warn("syncer: connection dropped, reconnecting")
		}
		cancel()
	}
}

func buildSource(ctx context.Context, wsURL, programIDBase58 string, st *store.Store) (*syncer.WSSource, error) {
	projects, err := st.ListWatchable(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncer: list watchable projects: %w", err)
	}

	programID := solana.MustPublicKeyFromBase58(programIDBase58)

	source := syncer.NewWSSource(wsURL)
	for _, p := range projects {
		if p.Stage == project.StageCreated {
			source.WatchProjectAccount(p.Owner.String(), p.ID)
		}
		if p.StaticPoolPubkey != nil {
			source.WatchStaticPool(p.StaticPoolPubkey.String(), p.ID, syncer.DecodeStaticPoolVault)
		}
		if p.CurvePoolKeypair != nil {
			mint := *p.CurvePoolKeypair
			poolAddress, _, err := solana.FindProgramAddress([][]byte{curvePoolSeed, mint.Bytes()}, programID)
			if err != nil {
				return nil, fmt.Errorf("syncer: derive curve pool address for %s: %w", mint, err)
			}
			source.WatchCurvePool(poolAddress.String(), mint.String(), syncer.DecodeCurvePoolAccount)
		}
	}
	return source, nil
}
