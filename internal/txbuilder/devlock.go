package txbuilder

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/project"
)

// ClaimDevLockRequest is the builder-level view of a claim_dev_lock call.
type ClaimDevLockRequest struct {
	Owner         solana.PublicKey
	EscrowKeypair solana.PrivateKey
}

// BuildClaimDevLock assembles the escrow-release instruction. Per the
// resolved open question (spec §9), a claim attempted before the lock
// interval elapses fails early with StateConflict rather than returning a
// transaction that would fail on submission — the caller learns the
// outcome without paying network fees for a doomed transaction.
func (b *Builder) BuildClaimDevLock(ctx context.Context, p project.Project, req ClaimDevLockRequest, clusterTime func() time.Time) (UnsignedTx, error) {
	if p.Schema.DevPurchase == nil || p.Schema.DevPurchase.Lock != project.LockInterval {
		return UnsignedTx{}, apperrors.StateConflict("no dev lock configured for this project", nil)
	}
	if p.Stage < project.StageOnCurvePool {
		return UnsignedTx{}, apperrors.StateConflict("dev lock cannot be claimed before the curve pool is active", nil)
	}
	if p.DevLockKeypair == nil {
		return UnsignedTx{}, apperrors.Fatal("txbuilder: dev lock keypair missing on a project with an interval lock", nil)
	}

	unlockAt := p.CreatedAt.Add(p.Schema.DevPurchase.LockInterval)
	if clusterTime().Before(unlockAt) {
		return UnsignedTx{}, apperrors.StateConflict("dev lock has not yet reached its unlock time", nil)
	}

	data := anchorDiscriminator("claim_dev_lock")

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(req.Owner, true, true),
		solana.NewAccountMeta(req.EscrowKeypair.PublicKey(), true, true),
		solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
		solana.NewAccountMeta(b.cfg.TokenProgramID, false, false),
	}

	ix := solana.NewInstruction(b.cfg.ProgramID, accounts, data)
	return b.buildAndSign(ctx, []solana.Instruction{ix}, req.Owner, []solana.PrivateKey{req.EscrowKeypair})
}
