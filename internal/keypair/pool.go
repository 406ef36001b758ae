package keypair

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrPoolEmpty is returned when no spare keypair is available. The caller
// (project creation) maps this to a resource-exhausted error and the
// operator's replenishment job is expected to keep the pool ahead of
// demand, not this call path.
var ErrPoolEmpty = errors.New("keypair: pool empty")

// Pool hands out pre-generated keypairs to projects one at a time,
// backed by a Postgres table so a row can only ever be assigned once.
type Pool struct {
	db *sql.DB
}

// New wraps a database handle as a keypair pool.
func New(db *sql.DB) *Pool {
	return &Pool{db: db}
}

// Assign pops one unassigned keypair and marks it owned by projectID in
// one transaction, so two concurrent callers can never be handed the same
// row: the DELETE...RETURNING removes the row from the free pool and the
// following INSERTs record the assignment and move the key to the vault.
func (p *Pool) Assign(ctx context.Context, projectID string) (Keypair, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Keypair{}, fmt.Errorf("keypair: begin assign: %w", err)
	}
	defer tx.Rollback()

	var pubkey, privkey []byte
	row := tx.QueryRowContext(ctx, `
		DELETE FROM keypair_pool
		WHERE id = (SELECT id FROM keypair_pool ORDER BY id LIMIT 1 FOR UPDATE SKIP LOCKED)
		RETURNING public_key, private_key
	`)
	if err := row.Scan(&pubkey, &privkey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Keypair{}, ErrPoolEmpty
		}
		return Keypair{}, fmt.Errorf("keypair: pop free row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO keypair_assignments (project_id, public_key, assigned_at)
		VALUES ($1, $2, now())
	`, projectID, pubkey); err != nil {
		return Keypair{}, fmt.Errorf("keypair: record assignment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO keypair_vault (public_key, private_key) VALUES ($1, $2)
	`, pubkey, privkey); err != nil {
		return Keypair{}, fmt.Errorf("keypair: move to vault: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Keypair{}, fmt.Errorf("keypair: commit assign: %w", err)
	}

	return Keypair{
		PublicKey:  solana.PublicKeyFromBytes(pubkey),
		PrivateKey: solana.PrivateKey(privkey),
	}, nil
}

// PrivateKeyFor looks up the vaulted private half of a known public key.
// Callers that already hold the public key from a project record (the
// curve pool keypair, the dev lock keypair) use this instead of
// AssignedTo, since a project can hold more than one assignment and the
// project id alone can't disambiguate which one is wanted.
func (p *Pool) PrivateKeyFor(ctx context.Context, pubkey solana.PublicKey) (solana.PrivateKey, error) {
	var privkey []byte
	row := p.db.QueryRowContext(ctx, `
		SELECT private_key FROM keypair_vault WHERE public_key = $1
	`, pubkey.Bytes())
	if err := row.Scan(&privkey); err != nil {
		return nil, fmt.Errorf("keypair: lookup private key: %w", err)
	}
	return solana.PrivateKey(privkey), nil
}

// AssignedTo returns a keypair previously assigned to a project. When the
// project holds more than one assignment, which of them is returned is not
// defined.
func (p *Pool) AssignedTo(ctx context.Context, projectID string) (Keypair, error) {
	var pubkey []byte
	row := p.db.QueryRowContext(ctx, `
		SELECT public_key FROM keypair_assignments WHERE project_id = $1
	`, projectID)
	if err := row.Scan(&pubkey); err != nil {
		return Keypair{}, fmt.Errorf("keypair: lookup assignment: %w", err)
	}

	var privkey []byte
	row = p.db.QueryRowContext(ctx, `
		SELECT private_key FROM keypair_vault WHERE public_key = $1
	`, pubkey)
	if err := row.Scan(&privkey); err != nil {
		return Keypair{}, fmt.Errorf("keypair: lookup private key: %w", err)
	}

	return Keypair{
		PublicKey:  solana.PublicKeyFromBytes(pubkey),
		PrivateKey: solana.PrivateKey(privkey),
	}, nil
}

// Seed inserts n freshly generated keypairs into the free pool, run by the
// provisioning job to keep depth ahead of demand.
func (p *Pool) Seed(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		kp, err := Generate()
		if err != nil {
			return fmt.Errorf("keypair: generate: %w", err)
		}
		if _, err := p.db.ExecContext(ctx, `
			INSERT INTO keypair_pool (public_key, private_key) VALUES ($1, $2)
		`, kp.PublicKey.Bytes(), []byte(kp.PrivateKey)); err != nil {
			return fmt.Errorf("keypair: insert free row: %w", err)
		}
	}
	return nil
}

// Depth reports how many unassigned keypairs remain, exported as the
// moonzip_keypair_pool_depth gauge.
func (p *Pool) Depth(ctx context.Context) (int, error) {
	var depth int
	row := p.db.QueryRowContext(ctx, `SELECT count(*) FROM keypair_pool`)
	if err := row.Scan(&depth); err != nil {
		return 0, fmt.Errorf("keypair: count free pool: %w", err)
	}
	return depth, nil
}
