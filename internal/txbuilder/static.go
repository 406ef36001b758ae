package txbuilder

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/project"
)

var staticPoolSeed = []byte("static-pool")

// StaticPoolAddress derives the program-owned account backing one
// project's pre-sale pool. The original program keys this PDA off a
// dedicated pool mint (static_pool.rs::static_pool_address); this port
// has no separate static-pool mint, so the project id stands in as the
// seed instead — the pool only ever tracks collected lamports, never
// mints tokens of its own (see DESIGN.md).
func (b *Builder) StaticPoolAddress(projectID uuid.UUID) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{staticPoolSeed, projectID[:]}, b.cfg.ProgramID)
	if err != nil {
		return solana.PublicKey{}, apperrors.Fatal("txbuilder: derive static pool address", err)
	}
	return addr, nil
}

// StaticBuyRequest is the builder-level request for a pre-sale purchase.
type StaticBuyRequest struct {
	ProjectID uuid.UUID
	User      solana.PublicKey
	Sols      uint64
}

// BuildStaticBuy assembles a buy instruction against a project's pre-sale
// pool. The static pool prices 1:1 against collected lamports rather than
// a bonding curve, so there is no quote/slippage check here, unlike
// BuildBuy's curve path.
func (b *Builder) BuildStaticBuy(ctx context.Context, p project.Project, req StaticBuyRequest) (UnsignedTx, error) {
	if p.Stage != project.StageOnStaticPool {
		return UnsignedTx{}, apperrors.StateConflict("static pool is not active for this project", nil)
	}
	if p.StaticPoolPubkey == nil {
		return UnsignedTx{}, apperrors.Fatal("txbuilder: static pool has no assigned address", nil)
	}
	if req.Sols == 0 {
		return UnsignedTx{}, apperrors.Validation("buy amount must be positive", nil)
	}

	data := anchorDiscriminator("buy_from_static_pool")
	data = append(data, req.ProjectID[:]...)
	data = putUint64(data, req.Sols)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(b.cfg.Authority.PublicKey(), false, true),
		solana.NewAccountMeta(b.cfg.FeeAccount, true, false),
		solana.NewAccountMeta(req.User, true, true),
		solana.NewAccountMeta(*p.StaticPoolPubkey, true, false),
		solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
	}

	ix := solana.NewInstruction(b.cfg.ProgramID, accounts, data)
	return b.buildAndSign(ctx, []solana.Instruction{ix}, req.User, []solana.PrivateKey{b.cfg.Authority})
}
