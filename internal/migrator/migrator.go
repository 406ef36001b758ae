// Package migrator implements the Migrator Worker: a poll loop that finds
// projects eligible for an authority-only chain transition, builds and
// submits the corresponding transaction, and advances the stage only after
// on-chain confirmation (spec §4.5).
package migrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/chain"
	"github.com/moonzip/launchd/internal/logging"
	"github.com/moonzip/launchd/internal/metrics"
	"github.com/moonzip/launchd/internal/project"
	"github.com/moonzip/launchd/internal/store"
	"github.com/moonzip/launchd/internal/txbuilder"
)

// Precheck reports whether a migration's on-chain effect has already
// landed, independent of whether the worker's own submission is known to
// have succeeded. The migrator calls this before giving up on an ambiguous
// outcome so a crash between submit and confirm never double-migrates
// (spec S6).
type Precheck interface {
	AlreadyDone(ctx context.Context, p project.Project) (bool, error)
}

// PrecheckFunc adapts a function to the Precheck interface.
type PrecheckFunc func(ctx context.Context, p project.Project) (bool, error)

// AlreadyDone calls f.
func (f PrecheckFunc) AlreadyDone(ctx context.Context, p project.Project) (bool, error) { return f(ctx, p) }

// Config configures one Worker loop.
type Config struct {
	PollInterval time.Duration
	SubmitOpts   chain.SendOpts
	// ClusterTime returns the time used to evaluate timer-based eligibility
	// predicates; overridable in tests.
	ClusterTime func() time.Time
}

func (c Config) withDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.ClusterTime == nil {
		c.ClusterTime = time.Now
	}
	return c
}

// Worker drives every authority-signed lifecycle transition.
type Worker struct {
	cfg       Config
	store     *store.Store
	builder   *txbuilder.Builder
	submitter *chain.BundleSubmitter
	client    *chain.Client
	logger    *logging.Logger
	precheck  map[txbuilder.MigrationKind]Precheck
}

// New builds a Worker.
func New(cfg Config, st *store.Store, builder *txbuilder.Builder, submitter *chain.BundleSubmitter, client *chain.Client, logger *logging.Logger) *Worker {
	return &Worker{
		cfg:       cfg.withDefaults(),
		store:     st,
		builder:   builder,
		submitter: submitter,
		client:    client,
		logger:    logger,
		precheck:  defaultPrechecks(client, st),
	}
}

// WithPrecheck overrides the idempotency check for one migration kind,
// mainly so tests can substitute a fake without a live RPC client.
func (w *Worker) WithPrecheck(kind txbuilder.MigrationKind, p Precheck) {
	w.precheck[kind] = p
}

// Run polls forever until ctx is cancelled, running one tick and then
// waiting for the next cfg.PollInterval ticker beat, whether or not the
// tick found eligible work.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := w.Tick(ctx); err != nil {
			w.logger.WithContext(ctx).WithError(err).Warn("migrator: tick failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type candidate struct {
	project project.Project
	kind    txbuilder.MigrationKind
	from    project.Stage
	to      project.Stage
}

// Tick runs one pass over every stage that can feed a migration and drives
// whatever is eligible. It returns an error only when finding candidates
// fails; a failed migration is logged and counted, and the remaining
// candidates found in the same pass are still driven.
func (w *Worker) Tick(ctx context.Context) error {
	candidates, err := w.findCandidates(ctx)
	if err != nil {
		return fmt.Errorf("migrator: find candidates: %w", err)
	}
	for _, c := range candidates {
		metrics.MigratorInFlight.Inc()
		err := w.drive(ctx, c)
		metrics.MigratorInFlight.Dec()
		outcome := "success"
		if err != nil {
			outcome = "failure"
			w.logger.WithContext(ctx).WithError(err).WithField("project_id", c.project.ID).
				WithField("migration", c.kind.String()).Warn("migrator: migration failed")
		}
		metrics.MigratorIterations.WithLabelValues(c.kind.String(), outcome).Inc()
	}
	return nil
}

func (w *Worker) findCandidates(ctx context.Context) ([]candidate, error) {
	var out []candidate
	now := w.cfg.ClusterTime()

	confirmed, err := w.store.ListPending(ctx, project.StageConfirmed, now)
	if err != nil {
		return nil, err
	}
	for _, p := range confirmed {
		switch {
		case p.Schema.StaticPool != nil:
			// No on-chain migration exists for this edge (spec §4.4's
			// diagram labels it with no "migration:" annotation) — the
			// static pool account was already created alongside the
			// project, so this is pure bookkeeping once its address is
			// on record.
			if err := w.activateStaticPool(ctx, p); err != nil {
				return nil, err
			}
		case p.Schema.CurvePool == project.CurveInternal:
			// "Confirmed → OnCurvePool (via migration: create curve)".
			// MigrationCreateCurvePool's precheck already treats an
			// existing mint account as done, so this is a no-op when the
			// curve was created in the initial transaction and a real
			// migration only when it wasn't yet.
			out = append(out, candidate{p, txbuilder.MigrationCreateCurvePool, p.Stage, project.StageOnCurvePool})
		default:
			// External curve, no pre-sale: the curve already lives
			// outside this program with nothing here left to create.
			if err := w.store.AdvanceStage(ctx, p.ID, project.StageConfirmed, project.StageOnCurvePool); err != nil {
				return nil, err
			}
		}
	}

	staticActive, err := w.store.ListPending(ctx, project.StageOnStaticPool, now)
	if err != nil {
		return nil, err
	}
	for _, p := range staticActive {
		observed, err := w.observedState(ctx, p)
		if err != nil {
			return nil, err
		}
		if project.NeedsStaticClose(p, observed, w.cfg.ClusterTime) {
			out = append(out, candidate{p, txbuilder.MigrationStaticPoolClose, p.Stage, project.StageStaticPoolClosed})
		}
	}

	closedStatic, err := w.store.ListPending(ctx, project.StageStaticPoolClosed, now)
	if err != nil {
		return nil, err
	}
	for _, p := range closedStatic {
		if project.NeedsStaticGraduate(p) {
			out = append(out, candidate{p, txbuilder.MigrationStaticPoolGraduate, p.Stage, project.StageOnCurvePool})
		}
	}

	onCurve, err := w.store.ListPending(ctx, project.StageOnCurvePool, now)
	if err != nil {
		return nil, err
	}
	for _, p := range onCurve {
		observed, err := w.observedState(ctx, p)
		if err != nil {
			return nil, err
		}
		if project.NeedsCurveClose(p, observed) {
			out = append(out, candidate{p, txbuilder.MigrationCurvePoolClose, p.Stage, project.StageCurvePoolClosed})
		}
	}

	closedCurve, err := w.store.ListPending(ctx, project.StageCurvePoolClosed, now)
	if err != nil {
		return nil, err
	}
	for _, p := range closedCurve {
		if project.NeedsAMMGraduate(p) {
			out = append(out, candidate{p, txbuilder.MigrationAMMGraduate, p.Stage, project.StageGraduated})
		}
	}

	return out, nil
}

// activateStaticPool records the pre-sale pool's address (invariant I1)
// and advances the project into it. It touches no chain state: the
// create_static_pool instruction already ran as part of the initial
// create_project transaction, so this is a store-only transition.
func (w *Worker) activateStaticPool(ctx context.Context, p project.Project) error {
	addr, err := w.builder.StaticPoolAddress(p.ID)
	if err != nil {
		return err
	}
	if err := w.store.SetStaticPoolPubkey(ctx, p.ID, addr); err != nil {
		return err
	}
	return w.store.AdvanceStage(ctx, p.ID, project.StageConfirmed, project.StageOnStaticPool)
}

func (w *Worker) observedState(ctx context.Context, p project.Project) (project.ObservedState, error) {
	var obs project.ObservedState
	if p.StaticPoolPubkey != nil {
		st, err := w.store.GetStaticPoolState(ctx, p.ID)
		if err != nil {
			return obs, err
		}
		obs.CollectedLamports = st.CollectedLamports
	}
	if p.CurvePoolKeypair != nil {
		st, err := w.store.GetCurvePoolState(ctx, p.CurvePoolKeypair.String())
		if err != nil {
			return obs, err
		}
		obs.CurveComplete = st.Complete
	}
	return obs, nil
}

// drive runs the full lock -> build -> submit -> confirm -> advance
// sequence for one candidate, releasing the lock on every exit path.
func (w *Worker) drive(ctx context.Context, c candidate) error {
	if err := w.store.EnsureMigrationLockRow(ctx, c.project.ID); err != nil {
		return fmt.Errorf("ensure lock row: %w", err)
	}
	tx, err := w.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin lock tx: %w", err)
	}
	acquired, err := w.store.LockMigration(ctx, tx, c.project.ID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("lock migration: %w", err)
	}
	if !acquired {
		tx.Rollback()
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lock tx: %w", err)
	}
	defer func() {
		if err := w.store.UnlockMigration(ctx, c.project.ID); err != nil {
			w.logger.WithContext(ctx).WithError(err).Warn("migrator: failed to release lock")
		}
	}()

	if check, ok := w.precheck[c.kind]; ok {
		done, err := check.AlreadyDone(ctx, c.project)
		if err != nil {
			w.logger.WithContext(ctx).WithError(err).Warn("migrator: precheck failed, proceeding to submit anyway")
		} else if done {
			return w.store.AdvanceStage(ctx, c.project.ID, c.from, c.to)
		}
	}

	unsigned, err := w.builder.BuildMigration(ctx, c.project, c.kind)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Kind == apperrors.KindNotImplemented {
			return nil
		}
		return fmt.Errorf("build migration: %w", err)
	}

	sig, err := w.submitWithRetry(ctx, unsigned)
	if err != nil {
		// The submission outcome is ambiguous: the transaction may have
		// landed despite the RPC error. Re-check via Precheck rather than
		// assuming failure, so a retry on the next tick cannot double-submit.
		if check, ok := w.precheck[c.kind]; ok {
			if done, checkErr := check.AlreadyDone(ctx, c.project); checkErr == nil && done {
				return w.store.AdvanceStage(ctx, c.project.ID, c.from, c.to)
			}
		}
		return fmt.Errorf("submit migration: %w", err)
	}

	if err := w.awaitConfirmation(ctx, sig); err != nil {
		return fmt.Errorf("await confirmation: %w", err)
	}

	return w.store.AdvanceStage(ctx, c.project.ID, c.from, c.to)
}

func (w *Worker) submitWithRetry(ctx context.Context, unsigned txbuilder.UnsignedTx) (string, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	var sig string
	err := backoff.Retry(func() error {
		s, err := w.submitter.SendTransaction(ctx, unsigned.Base64(), w.cfg.SubmitOpts)
		if err != nil {
			return err
		}
		sig = s
		return nil
	}, policy)
	return sig, err
}

func (w *Worker) awaitConfirmation(ctx context.Context, signature string) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 30), ctx)
	return backoff.Retry(func() error {
		status, err := w.client.GetSignatureStatus(ctx, signature)
		if err != nil {
			return err
		}
		if status == chain.CommitmentConfirmed || status == chain.CommitmentFinalized {
			return nil
		}
		return errNotYetConfirmed
	}, policy)
}

var errNotYetConfirmed = errors.New("migrator: signature not yet confirmed")

func defaultPrechecks(client *chain.Client, st *store.Store) map[txbuilder.MigrationKind]Precheck {
	return map[txbuilder.MigrationKind]Precheck{
		txbuilder.MigrationCreateCurvePool: PrecheckFunc(func(ctx context.Context, p project.Project) (bool, error) {
			if p.CurvePoolKeypair == nil {
				return false, nil
			}
			info, err := client.GetAccountInfo(ctx, p.CurvePoolKeypair.String(), chain.CommitmentConfirmed)
			if err != nil {
				return false, err
			}
			return info.Exists, nil
		}),
		txbuilder.MigrationStaticPoolClose: PrecheckFunc(func(ctx context.Context, p project.Project) (bool, error) {
			state, err := st.GetStaticPoolState(ctx, p.ID)
			if err != nil {
				return false, err
			}
			return state.Closed, nil
		}),
		txbuilder.MigrationStaticPoolGraduate: PrecheckFunc(func(ctx context.Context, p project.Project) (bool, error) {
			return false, nil
		}),
		txbuilder.MigrationCurvePoolClose: PrecheckFunc(func(ctx context.Context, p project.Project) (bool, error) {
			if p.CurvePoolKeypair == nil {
				return false, nil
			}
			info, err := client.GetAccountInfo(ctx, p.CurvePoolKeypair.String(), chain.CommitmentConfirmed)
			if err != nil {
				return false, err
			}
			return !info.Exists, nil
		}),
	}
}
