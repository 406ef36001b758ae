// Package syncer implements the Chain Syncer consumer interface: a
// lazy, slot-ordered sequence of typed account-update events that drives
// Created→Confirmed and the observed-state tables the Lifecycle Engine
// reads (spec §4.6). Externalized as variants per spec §9 rather than
// inspecting raw account bytes at the lifecycle layer.
package syncer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/moonzip/launchd/internal/logging"
	"github.com/moonzip/launchd/internal/metrics"
	"github.com/moonzip/launchd/internal/project"
)

// Event is the sum type of everything the syncer can deliver. Exactly one
// field is meaningful per event; callers switch on Kind.
type Event struct {
	Kind EventKind

	ProjectAccountObserved *ProjectAccountObserved
	StaticPoolState        *StaticPoolState
	CurvePoolState         *CurvePoolState
}

// EventKind tags which variant of Event is populated.
type EventKind int

const (
	EventProjectAccountObserved EventKind = iota
	EventStaticPoolState
	EventCurvePoolState
)

// ProjectAccountObserved reports that a project's on-chain account now
// exists, upgrading it from Created to Confirmed.
type ProjectAccountObserved struct {
	ProjectID uuid.UUID
	Slot      uint64
}

// StaticPoolState reports the static pool's observed balance and close
// flag.
type StaticPoolState struct {
	ProjectID         uuid.UUID
	Slot              uint64
	CollectedLamports uint64
	Closed            bool
}

// CurvePoolState reports a curve pool's observed reserves and completion
// flag, keyed by mint rather than project id since external curves are
// indexed by mint.
type CurvePoolState struct {
	Mint                 string
	Slot                 uint64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	Complete             bool
}

// Source is anything that can produce a slot-ordered event stream — the
// real implementation wraps a websocket or gRPC indexer feed; tests can
// substitute a channel-backed fake.
type Source interface {
	Events(ctx context.Context) (<-chan Event, <-chan error)
}

// Consumer applies events to the Project Store, enforcing idempotent
// last-writer-wins-by-slot semantics on every write (spec §4.6).
type Consumer struct {
	db     *sql.DB
	logger *logging.Logger
}

// New builds a Consumer against the given database handle.
func New(db *sql.DB, logger *logging.Logger) *Consumer {
	return &Consumer{db: db, logger: logger}
}

// Run drains a Source until ctx is cancelled or the source errors.
func (c *Consumer) Run(ctx context.Context, source Source) error {
	events, errs := source.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return fmt.Errorf("syncer: source error: %w", err)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := c.apply(ctx, ev); err != nil {
				c.logger.WithContext(ctx).WithError(err).Warn("syncer: failed to apply event")
			}
		}
	}
}

func (c *Consumer) apply(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventProjectAccountObserved:
		return c.applyProjectObserved(ctx, *ev.ProjectAccountObserved)
	case EventStaticPoolState:
		return c.applyStaticPoolState(ctx, *ev.StaticPoolState)
	case EventCurvePoolState:
		return c.applyCurvePoolState(ctx, *ev.CurvePoolState)
	default:
		return fmt.Errorf("syncer: unknown event kind %d", ev.Kind)
	}
}

func (c *Consumer) applyProjectObserved(ctx context.Context, ev ProjectAccountObserved) error {
	result, err := c.db.ExecContext(ctx, `
		UPDATE projects SET stage = $2
		WHERE id = $1 AND stage = $3
	`, ev.ProjectID, int32(project.StageConfirmed), int32(project.StageCreated))
	if err != nil {
		return fmt.Errorf("syncer: confirm project: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		metrics.ProjectsByStage.WithLabelValues(project.StageConfirmed.String()).Inc()
	}
	return nil
}

func (c *Consumer) applyStaticPoolState(ctx context.Context, ev StaticPoolState) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO static_pool_chain_state (project_id, slot, collected_lamports, closed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id) DO UPDATE SET
			collected_lamports = EXCLUDED.collected_lamports,
			closed = static_pool_chain_state.closed OR EXCLUDED.closed,
			slot = EXCLUDED.slot
		WHERE EXCLUDED.slot > static_pool_chain_state.slot
	`, ev.ProjectID, ev.Slot, ev.CollectedLamports, ev.Closed)
	if err != nil {
		return fmt.Errorf("syncer: upsert static pool state: %w", err)
	}
	return nil
}

func (c *Consumer) applyCurvePoolState(ctx context.Context, ev CurvePoolState) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO pumpfun_chain_state (mint, slot, virtual_sol_reserves, virtual_token_reserves, complete)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mint) DO UPDATE SET
			virtual_sol_reserves = EXCLUDED.virtual_sol_reserves,
			virtual_token_reserves = EXCLUDED.virtual_token_reserves,
			complete = pumpfun_chain_state.complete OR EXCLUDED.complete,
			slot = EXCLUDED.slot
		WHERE EXCLUDED.slot > pumpfun_chain_state.slot
	`, ev.Mint, ev.Slot, ev.VirtualSolReserves, ev.VirtualTokenReserves, ev.Complete)
	if err != nil {
		return fmt.Errorf("syncer: upsert curve pool state: %w", err)
	}
	return nil
}
