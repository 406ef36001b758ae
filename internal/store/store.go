// Package store implements the Project Store: durable persistence with
// strict-serializable semantics for stage transitions and keypair
// assignment.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/project"
)

// Store persists projects and their observed chain state in Postgres.
type Store struct {
	db *sql.DB
}

// New wraps a database handle as a Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type deploySchemaRow struct {
	StaticPool *struct {
		LaunchTS    time.Time `json:"launch_ts"`
		CapLamports uint64    `json:"cap_lamports"`
	} `json:"static_pool,omitempty"`
	CurvePool   string `json:"curve_pool"`
	DevPurchase *struct {
		Amount       uint64 `json:"amount"`
		Lock         string `json:"lock"`
		LockInterval int64  `json:"lock_interval_seconds,omitempty"`
	} `json:"dev_purchase,omitempty"`
}

func marshalSchema(s project.DeploySchema) ([]byte, error) {
	row := deploySchemaRow{CurvePool: string(s.CurvePool)}
	if s.StaticPool != nil {
		row.StaticPool = &struct {
			LaunchTS    time.Time `json:"launch_ts"`
			CapLamports uint64    `json:"cap_lamports"`
		}{LaunchTS: s.StaticPool.LaunchTS, CapLamports: s.StaticPool.CapLamports}
	}
	if s.DevPurchase != nil {
		row.DevPurchase = &struct {
			Amount       uint64 `json:"amount"`
			Lock         string `json:"lock"`
			LockInterval int64  `json:"lock_interval_seconds,omitempty"`
		}{Amount: s.DevPurchase.Amount, Lock: string(s.DevPurchase.Lock), LockInterval: int64(s.DevPurchase.LockInterval / time.Second)}
	}
	return json.Marshal(row)
}

func unmarshalSchema(raw []byte) (project.DeploySchema, error) {
	var row deploySchemaRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return project.DeploySchema{}, err
	}
	schema := project.DeploySchema{CurvePool: project.CurveVariant(row.CurvePool)}
	if row.StaticPool != nil {
		schema.StaticPool = &project.StaticPoolSchema{LaunchTS: row.StaticPool.LaunchTS, CapLamports: row.StaticPool.CapLamports}
	}
	if row.DevPurchase != nil {
		schema.DevPurchase = &project.DevPurchase{
			Amount:       row.DevPurchase.Amount,
			Lock:         project.LockKind(row.DevPurchase.Lock),
			LockInterval: time.Duration(row.DevPurchase.LockInterval) * time.Second,
		}
	}
	return schema, nil
}

func nullablePubkey(p *solana.PublicKey) []byte {
	if p == nil {
		return nil
	}
	return p.Bytes()
}

func pubkeyFromNullable(raw []byte) *solana.PublicKey {
	if len(raw) == 0 {
		return nil
	}
	pk := solana.PublicKeyFromBytes(raw)
	return &pk
}

// CreateProject inserts a new project row in StageCreated. The caller is
// responsible for assigning any keypair before calling this, so the
// record that lands is always immediately consistent with invariant I2/I3.
func (s *Store) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	schemaJSON, err := marshalSchema(p.Schema)
	if err != nil {
		return project.Project{}, fmt.Errorf("store: marshal schema: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, owner, deploy_schema, stage, static_pool_pubkey, curve_pool_keypair, dev_lock_keypair, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Owner.Bytes(), schemaJSON, int32(p.Stage),
		nullablePubkey(p.StaticPoolPubkey), nullablePubkey(p.CurvePoolKeypair), nullablePubkey(p.DevLockKeypair),
		p.CreatedAt)
	if err != nil {
		return project.Project{}, fmt.Errorf("store: insert project: %w", err)
	}
	return p, nil
}

// GetProject returns a project by id.
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (project.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, deploy_schema, stage, static_pool_pubkey, curve_pool_keypair, dev_lock_keypair, created_at
		FROM projects WHERE id = $1
	`, id)
	return scanProject(row)
}

func scanProject(row *sql.Row) (project.Project, error) {
	var (
		p               project.Project
		ownerRaw        []byte
		schemaRaw       []byte
		stage           int32
		staticPoolRaw   []byte
		curveKeypairRaw []byte
		devLockRaw      []byte
	)
	if err := row.Scan(&p.ID, &ownerRaw, &schemaRaw, &stage, &staticPoolRaw, &curveKeypairRaw, &devLockRaw, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return project.Project{}, apperrors.Validation("project not found", err)
		}
		return project.Project{}, fmt.Errorf("store: scan project: %w", err)
	}

	p.Owner = solana.PublicKeyFromBytes(ownerRaw)
	p.Stage = project.Stage(stage)
	p.StaticPoolPubkey = pubkeyFromNullable(staticPoolRaw)
	p.CurvePoolKeypair = pubkeyFromNullable(curveKeypairRaw)
	p.DevLockKeypair = pubkeyFromNullable(devLockRaw)

	schema, err := unmarshalSchema(schemaRaw)
	if err != nil {
		return project.Project{}, fmt.Errorf("store: unmarshal schema: %w", err)
	}
	p.Schema = schema

	return p, nil
}

// ListPending returns projects at a given stage created at or before a
// cluster-time bound, used by the migrator to bound candidate selection.
func (s *Store) ListPending(ctx context.Context, stage project.Stage, beforeTS time.Time) ([]project.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, deploy_schema, stage, static_pool_pubkey, curve_pool_keypair, dev_lock_keypair, created_at
		FROM projects
		WHERE stage = $1 AND created_at <= $2
		ORDER BY created_at
	`, int32(stage), beforeTS)
	if err != nil {
		return nil, fmt.Errorf("store: list pending: %w", err)
	}
	defer rows.Close()

	var result []project.Project
	for rows.Next() {
		var (
			p               project.Project
			ownerRaw        []byte
			schemaRaw       []byte
			stageVal        int32
			staticPoolRaw   []byte
			curveKeypairRaw []byte
			devLockRaw      []byte
		)
		if err := rows.Scan(&p.ID, &ownerRaw, &schemaRaw, &stageVal, &staticPoolRaw, &curveKeypairRaw, &devLockRaw, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan pending row: %w", err)
		}
		p.Owner = solana.PublicKeyFromBytes(ownerRaw)
		p.Stage = project.Stage(stageVal)
		p.StaticPoolPubkey = pubkeyFromNullable(staticPoolRaw)
		p.CurvePoolKeypair = pubkeyFromNullable(curveKeypairRaw)
		p.DevLockKeypair = pubkeyFromNullable(devLockRaw)
		schema, err := unmarshalSchema(schemaRaw)
		if err != nil {
			return nil, fmt.Errorf("store: unmarshal pending schema: %w", err)
		}
		p.Schema = schema
		result = append(result, p)
	}
	return result, rows.Err()
}

// ListWatchable returns every project still in an on-chain-observable
// stage (account created through curve pool closed), for the syncer to
// register websocket watches against at startup and on its refresh tick.
func (s *Store) ListWatchable(ctx context.Context) ([]project.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, deploy_schema, stage, static_pool_pubkey, curve_pool_keypair, dev_lock_keypair, created_at
		FROM projects
		WHERE stage BETWEEN $1 AND $2
		ORDER BY created_at
	`, int32(project.StageCreated), int32(project.StageCurvePoolClosed))
	if err != nil {
		return nil, fmt.Errorf("store: list watchable: %w", err)
	}
	defer rows.Close()

	var result []project.Project
	for rows.Next() {
		var (
			p               project.Project
			ownerRaw        []byte
			schemaRaw       []byte
			stageVal        int32
			staticPoolRaw   []byte
			curveKeypairRaw []byte
			devLockRaw      []byte
		)
		if err := rows.Scan(&p.ID, &ownerRaw, &schemaRaw, &stageVal, &staticPoolRaw, &curveKeypairRaw, &devLockRaw, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan watchable row: %w", err)
		}
		p.Owner = solana.PublicKeyFromBytes(ownerRaw)
		p.Stage = project.Stage(stageVal)
		p.StaticPoolPubkey = pubkeyFromNullable(staticPoolRaw)
		p.CurvePoolKeypair = pubkeyFromNullable(curveKeypairRaw)
		p.DevLockKeypair = pubkeyFromNullable(devLockRaw)
		schema, err := unmarshalSchema(schemaRaw)
		if err != nil {
			return nil, fmt.Errorf("store: unmarshal watchable schema: %w", err)
		}
		p.Schema = schema
		result = append(result, p)
	}
	return result, rows.Err()
}

// AdvanceStage performs the compare-and-set described in spec §4.3:
// stage only moves from -> to if the row's current stage is still from.
func (s *Store) AdvanceStage(ctx context.Context, id uuid.UUID, from, to project.Stage) error {
	if !project.CanTransition(from, to) {
		return project.NewTransitionError(from, to)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET stage = $3 WHERE id = $1 AND stage = $2
	`, id, int32(from), int32(to))
	if err != nil {
		return fmt.Errorf("store: advance stage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: advance stage rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.StaleStage(id.String(), from.String(), to.String())
	}
	return nil
}

// SetStaticPoolPubkey records the static pool address once derived, only
// ever written once per invariant I1.
func (s *Store) SetStaticPoolPubkey(ctx context.Context, id uuid.UUID, pubkey solana.PublicKey) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects SET static_pool_pubkey = $2 WHERE id = $1 AND static_pool_pubkey IS NULL
	`, id, pubkey.Bytes())
	if err != nil {
		return fmt.Errorf("store: set static pool pubkey: %w", err)
	}
	return nil
}

// LockMigration acquires the mutual-exclusion token for an in-flight
// authority operation on a project, backed by SELECT ... FOR UPDATE SKIP
// LOCKED so concurrent migrator workers never race on the same transition.
func (s *Store) LockMigration(ctx context.Context, tx *sql.Tx, id uuid.UUID) (bool, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT project_id FROM project_migration_lock
		WHERE project_id = $1
		FOR UPDATE SKIP LOCKED
	`, id)
	var got uuid.UUID
	if err := row.Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("store: lock migration: %w", err)
	}
	return true, nil
}

// UnlockMigration releases a previously acquired migration lock row.
func (s *Store) UnlockMigration(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM project_migration_lock WHERE project_id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("store: unlock migration: %w", err)
	}
	return nil
}

// EnsureMigrationLockRow creates the lock row for a project if absent, so
// LockMigration always has something to SELECT FOR UPDATE against.
func (s *Store) EnsureMigrationLockRow(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_migration_lock (project_id) VALUES ($1)
		ON CONFLICT (project_id) DO NOTHING
	`, id)
	if err != nil {
		return fmt.Errorf("store: ensure migration lock row: %w", err)
	}
	return nil
}

// BeginTx exposes a raw transaction for callers (the migrator) that need
// to compose LockMigration with other statements atomically.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// StaticPoolObserved is the chain-synced state of one project's static pool.
type StaticPoolObserved struct {
	CollectedLamports uint64
	Closed            bool
}

// GetStaticPoolState returns the last-synced static pool state for a
// project, or the zero value if the syncer has not yet observed it.
func (s *Store) GetStaticPoolState(ctx context.Context, id uuid.UUID) (StaticPoolObserved, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collected_lamports, closed FROM static_pool_chain_state WHERE project_id = $1
	`, id)
	var out StaticPoolObserved
	if err := row.Scan(&out.CollectedLamports, &out.Closed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StaticPoolObserved{}, nil
		}
		return StaticPoolObserved{}, fmt.Errorf("store: get static pool state: %w", err)
	}
	return out, nil
}

// CurvePoolObserved is the chain-synced state of one bonding curve pool,
// keyed by its pool address (the project's curve pool keypair).
type CurvePoolObserved struct {
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	Complete             bool
}

// GetCurvePoolState returns the last-synced curve pool state for a pool
// address, or the zero value if the syncer has not yet observed it.
func (s *Store) GetCurvePoolState(ctx context.Context, poolKey string) (CurvePoolObserved, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT virtual_sol_reserves, virtual_token_reserves, complete FROM pumpfun_chain_state WHERE mint = $1
	`, poolKey)
	var out CurvePoolObserved
	if err := row.Scan(&out.VirtualSolReserves, &out.VirtualTokenReserves, &out.Complete); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CurvePoolObserved{}, nil
		}
		return CurvePoolObserved{}, fmt.Errorf("store: get curve pool state: %w", err)
	}
	return out, nil
}

// CreateTokenMetadata inserts the child metadata row created alongside a
// project; URI starts empty and is filled in by SetTokenMetadataURI once
// the off-chain upload succeeds.
func (s *Store) CreateTokenMetadata(ctx context.Context, m project.TokenMetadata) error {
	socials, err := json.Marshal(m.SocialURLs)
	if err != nil {
		return fmt.Errorf("store: marshal social urls: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO token_metadata (project_id, name, symbol, description, social_urls, uri)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ProjectID, m.Name, m.Symbol, m.Description, socials, m.URI)
	if err != nil {
		return fmt.Errorf("store: insert token metadata: %w", err)
	}
	return nil
}

// SetTokenMetadataURI records the deployed metadata URI once the uploader
// succeeds.
func (s *Store) SetTokenMetadataURI(ctx context.Context, projectID uuid.UUID, uri string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE token_metadata SET uri = $2 WHERE project_id = $1
	`, projectID, uri)
	if err != nil {
		return fmt.Errorf("store: set token metadata uri: %w", err)
	}
	return nil
}

// GetTokenMetadata returns a project's token metadata row.
func (s *Store) GetTokenMetadata(ctx context.Context, projectID uuid.UUID) (project.TokenMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, name, symbol, description, social_urls, uri FROM token_metadata WHERE project_id = $1
	`, projectID)
	var m project.TokenMetadata
	var socials []byte
	if err := row.Scan(&m.ProjectID, &m.Name, &m.Symbol, &m.Description, &socials, &m.URI); err != nil {
		return project.TokenMetadata{}, fmt.Errorf("store: scan token metadata: %w", err)
	}
	if len(socials) > 0 {
		if err := json.Unmarshal(socials, &m.SocialURLs); err != nil {
			return project.TokenMetadata{}, fmt.Errorf("store: unmarshal social urls: %w", err)
		}
	}
	return m, nil
}

// CreateTokenImage stores the raw image payload written once at project
// creation, consumed by the off-chain metadata uploader.
func (s *Store) CreateTokenImage(ctx context.Context, img project.TokenImage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_images (project_id, mime_type, bytes) VALUES ($1, $2, $3)
	`, img.ProjectID, img.MimeType, img.Bytes)
	if err != nil {
		return fmt.Errorf("store: insert token image: %w", err)
	}
	return nil
}
