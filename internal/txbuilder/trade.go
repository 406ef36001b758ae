package txbuilder

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/curve"
	"github.com/moonzip/launchd/internal/project"
)

// BuyRequest is the builder-level request for a pool purchase.
type BuyRequest struct {
	ProjectID      uuid.UUID
	User           solana.PublicKey
	Mint           solana.PublicKey
	UserTokenAcct  solana.PublicKey
	PoolTokenAcct  solana.PublicKey
	PoolAddress    solana.PublicKey
	Sols           uint64
	MinTokenOutput uint64
}

// QuoteBuy applies the fee-inside-spend rule and the constant-product
// curve to compute tokens out, without building a transaction — used both
// by BuildBuy and by handlers that want a dry-run quote.
func (b *Builder) QuoteBuy(curveState curve.State, sols uint64) (afterFee, tokensOut uint64) {
	feeAmount := b.cfg.FeeBPS.PartOf(sols)
	afterFee = sols - feeAmount
	tokensOut = curve.NewBuyCalculator(curveState).FixedSols(afterFee)
	return afterFee, tokensOut
}

// BuildBuy assembles a buy instruction against the active curve pool. Fees
// are computed the same way the on-chain program does: subtracted from
// sols before the curve ever sees the amount (curved_pool/mod.rs::buy).
// A buy while the pre-sale pool is active goes through BuildStaticBuy
// instead, since the curve doesn't exist yet at that stage.
func (b *Builder) BuildBuy(ctx context.Context, p project.Project, curveState curve.State, req BuyRequest) (UnsignedTx, uint64, error) {
	if p.Stage != project.StageOnCurvePool {
		return UnsignedTx{}, 0, apperrors.StateConflict("curve pool is not active for this project", nil)
	}

	_, tokensOut := b.QuoteBuy(curveState, req.Sols)
	if tokensOut < req.MinTokenOutput {
		return UnsignedTx{}, 0, apperrors.SlippageBreach("computed token output below requested minimum")
	}

	data := anchorDiscriminator("buy_from_curved_pool")
	data = putUint64(data, req.Sols)
	data = putUint64(data, req.MinTokenOutput)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(b.cfg.Authority.PublicKey(), false, true),
		solana.NewAccountMeta(b.cfg.FeeAccount, true, false),
		solana.NewAccountMeta(req.User, true, true),
		solana.NewAccountMeta(req.Mint, true, false),
		solana.NewAccountMeta(req.UserTokenAcct, true, false),
		solana.NewAccountMeta(req.PoolTokenAcct, true, false),
		solana.NewAccountMeta(req.PoolAddress, true, false),
		solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
		solana.NewAccountMeta(b.cfg.TokenProgramID, false, false),
		solana.NewAccountMeta(b.cfg.AssociatedTokenProgramID, false, false),
	}

	ix := solana.NewInstruction(b.cfg.ProgramID, accounts, data)
	tx, err := b.buildAndSign(ctx, []solana.Instruction{ix}, req.User, []solana.PrivateKey{b.cfg.Authority})
	if err != nil {
		return UnsignedTx{}, 0, err
	}
	return tx, tokensOut, nil
}

// SellRequest is the builder-level request for a pool sale.
type SellRequest struct {
	ProjectID     uuid.UUID
	User          solana.PublicKey
	Mint          solana.PublicKey
	UserTokenAcct solana.PublicKey
	PoolTokenAcct solana.PublicKey
	PoolAddress   solana.PublicKey
	Tokens        uint64
	MinSolOutput  uint64
}

// QuoteSell computes gross proceeds from the curve, then applies the
// fee-inside-proceeds rule (curved_pool/mod.rs::sell computes gross first).
func (b *Builder) QuoteSell(curveState curve.State, tokens uint64) (afterFee uint64) {
	gross := curve.NewSellCalculator(curveState).FixedTokens(tokens)
	feeAmount := b.cfg.FeeBPS.PartOf(gross)
	return gross - feeAmount
}

// BuildSell assembles a sell instruction against the active curve pool.
// Static pools are buy-only per spec §4.2, so sell requires OnCurvePool.
func (b *Builder) BuildSell(ctx context.Context, p project.Project, curveState curve.State, req SellRequest) (UnsignedTx, uint64, error) {
	if p.Stage != project.StageOnCurvePool {
		return UnsignedTx{}, 0, apperrors.StateConflict("sell requires an active curve pool", nil)
	}

	solsOut := b.QuoteSell(curveState, req.Tokens)
	if solsOut < req.MinSolOutput {
		return UnsignedTx{}, 0, apperrors.SlippageBreach("computed sol output below requested minimum")
	}

	data := anchorDiscriminator("sell_from_curved_pool")
	data = putUint64(data, req.Tokens)
	data = putUint64(data, req.MinSolOutput)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(req.User, true, true),
		solana.NewAccountMeta(b.cfg.FeeAccount, true, false),
		solana.NewAccountMeta(req.Mint, true, false),
		solana.NewAccountMeta(req.UserTokenAcct, true, false),
		solana.NewAccountMeta(req.PoolTokenAcct, true, false),
		solana.NewAccountMeta(req.PoolAddress, true, false),
		solana.NewAccountMeta(b.cfg.TokenProgramID, false, false),
	}

	ix := solana.NewInstruction(b.cfg.ProgramID, accounts, data)
	tx, err := b.buildAndSign(ctx, []solana.Instruction{ix}, req.User, nil)
	if err != nil {
		return UnsignedTx{}, 0, err
	}
	return tx, solsOut, nil
}
