package txbuilder

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/project"
)

// CreateRequest is the builder-level view of a create_project API call,
// already validated and with any assigned keypairs resolved.
type CreateRequest struct {
	ProjectID    uuid.UUID
	Owner        solana.PublicKey
	Mint         solana.PublicKey
	Schema       project.DeploySchema
	CurveKeypair *solana.PrivateKey // set iff Schema.CurvePool == internal
	DevLockKey   *solana.PrivateKey // set iff Schema.DevPurchase.Lock == interval
}

// BuildCreateProject assembles the on-chain create_project instruction
// plus any optional create_static_pool / create_curve_pool / dev-buy
// instructions the schema calls for, all in one transaction so the
// project either lands fully formed or not at all.
func (b *Builder) BuildCreateProject(ctx context.Context, req CreateRequest) (UnsignedTx, error) {
	var instructions []solana.Instruction
	var signers []solana.PrivateKey

	createData := anchorDiscriminator("create_project")
	createData = append(createData, req.ProjectID[:]...)
	instructions = append(instructions, solana.NewInstruction(
		b.cfg.ProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(b.cfg.Authority.PublicKey(), true, true),
			solana.NewAccountMeta(req.Owner, false, true),
			solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
		},
		createData,
	))
	signers = append(signers, b.cfg.Authority)

	hasStaticPool := req.Schema.StaticPool != nil
	if sp := req.Schema.StaticPool; sp != nil {
		staticAddr, err := b.StaticPoolAddress(req.ProjectID)
		if err != nil {
			return UnsignedTx{}, err
		}
		data := anchorDiscriminator("create_static_pool")
		data = append(data, req.ProjectID[:]...)
		var launchTS uint64
		if !sp.LaunchTS.IsZero() {
			launchTS = uint64(sp.LaunchTS.Unix())
		}
		data = putUint64(data, launchTS)
		data = putUint64(data, sp.CapLamports)
		instructions = append(instructions, solana.NewInstruction(
			b.cfg.ProgramID,
			solana.AccountMetaSlice{
				solana.NewAccountMeta(b.cfg.Authority.PublicKey(), true, true),
				solana.NewAccountMeta(staticAddr, true, false),
				solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
			},
			data,
		))
	}

	// The curve only gets created immediately when there's no pre-sale
	// ahead of it. When a static pool is configured, the curve is created
	// later via the create-curve migration, once the static pool
	// graduates (spec §4.4) — otherwise it would be tradeable before the
	// project even leaves Confirmed.
	if req.Schema.CurvePool == project.CurveInternal && !hasStaticPool {
		if req.CurveKeypair == nil {
			return UnsignedTx{}, apperrors.Fatal("txbuilder: internal curve requires an assigned keypair", nil)
		}
		data := anchorDiscriminator("create_curved_pool")
		data = append(data, req.ProjectID[:]...)
		instructions = append(instructions, solana.NewInstruction(
			b.cfg.ProgramID,
			solana.AccountMetaSlice{
				solana.NewAccountMeta(b.cfg.Authority.PublicKey(), true, true),
				solana.NewAccountMeta(req.Mint, true, true),
				solana.NewAccountMeta(b.cfg.TokenProgramID, false, false),
				solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
			},
			data,
		))
		signers = append(signers, *req.CurveKeypair)
	}

	if dp := req.Schema.DevPurchase; dp != nil && dp.Amount > 0 {
		switch {
		case hasStaticPool:
			// The curve doesn't exist yet; the dev purchase buys into the
			// pre-sale pool instead, same as any other buyer (spec §4.2).
			staticAddr, err := b.StaticPoolAddress(req.ProjectID)
			if err != nil {
				return UnsignedTx{}, err
			}
			data := anchorDiscriminator("buy_from_static_pool")
			data = append(data, req.ProjectID[:]...)
			data = putUint64(data, dp.Amount)
			devBuyAccounts := solana.AccountMetaSlice{
				solana.NewAccountMeta(b.cfg.Authority.PublicKey(), false, true),
				solana.NewAccountMeta(b.cfg.FeeAccount, true, false),
				solana.NewAccountMeta(req.Owner, true, true),
				solana.NewAccountMeta(staticAddr, true, false),
				solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
			}
			if dp.Lock == project.LockInterval {
				if req.DevLockKey == nil {
					return UnsignedTx{}, apperrors.Fatal("txbuilder: dev lock requires an assigned keypair", nil)
				}
				devBuyAccounts = append(devBuyAccounts, solana.NewAccountMeta(req.DevLockKey.PublicKey(), true, true))
				signers = append(signers, *req.DevLockKey)
			}
			instructions = append(instructions, solana.NewInstruction(b.cfg.ProgramID, devBuyAccounts, data))
		case req.Schema.CurvePool == project.CurveInternal:
			data := anchorDiscriminator("buy_from_curved_pool")
			data = putUint64(data, dp.Amount)
			data = putUint64(data, 0)
			devBuyAccounts := solana.AccountMetaSlice{
				solana.NewAccountMeta(b.cfg.Authority.PublicKey(), false, true),
				solana.NewAccountMeta(b.cfg.FeeAccount, true, false),
				solana.NewAccountMeta(req.Owner, true, true),
				solana.NewAccountMeta(req.Mint, true, false),
				solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
				solana.NewAccountMeta(b.cfg.TokenProgramID, false, false),
			}
			if dp.Lock == project.LockInterval {
				if req.DevLockKey == nil {
					return UnsignedTx{}, apperrors.Fatal("txbuilder: dev lock requires an assigned keypair", nil)
				}
				devBuyAccounts = append(devBuyAccounts, solana.NewAccountMeta(req.DevLockKey.PublicKey(), true, true))
				signers = append(signers, *req.DevLockKey)
			}
			instructions = append(instructions, solana.NewInstruction(b.cfg.ProgramID, devBuyAccounts, data))
		default:
			// External curve, no static pool: there is no program account
			// yet to buy into (the curve lives outside this program), so
			// the dev purchase is left for the owner to place once the
			// external curve is live.
		}
	}

	return b.buildAndSign(ctx, instructions, req.Owner, signers)
}
