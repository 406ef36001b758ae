package txbuilder

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/project"
)

// MigrationKind identifies which authority-only transition the migrator
// worker is driving (spec §4.4/§4.5).
type MigrationKind int

const (
	MigrationCreateCurvePool MigrationKind = iota
	MigrationStaticPoolGraduate
	MigrationCurvePoolClose
	MigrationAMMGraduate
	MigrationStaticPoolClose
)

func (k MigrationKind) String() string {
	switch k {
	case MigrationCreateCurvePool:
		return "create_curve_pool"
	case MigrationStaticPoolGraduate:
		return "static_pool_graduate"
	case MigrationCurvePoolClose:
		return "curve_pool_close"
	case MigrationAMMGraduate:
		return "amm_graduate"
	case MigrationStaticPoolClose:
		return "static_pool_close"
	default:
		return "unknown"
	}
}

// BuildMigration assembles the authority-signed instruction for one
// migration kind. The transaction is fully signed here since these
// operations require only the platform authority, never a client
// signature.
func (b *Builder) BuildMigration(ctx context.Context, p project.Project, kind MigrationKind) (UnsignedTx, error) {
	switch kind {
	case MigrationCreateCurvePool:
		return b.buildCreateCurvePoolMigration(ctx, p)
	case MigrationStaticPoolGraduate:
		return b.buildStaticPoolGraduateMigration(ctx, p)
	case MigrationCurvePoolClose:
		return b.buildCurvePoolCloseMigration(ctx, p)
	case MigrationStaticPoolClose:
		return b.buildStaticPoolCloseMigration(ctx, p)
	case MigrationAMMGraduate:
		// The precise external-AMM instruction set is out of scope per
		// spec §9's third open question; this stays an explicit,
		// documented gap rather than a silently wrong instruction.
		return UnsignedTx{}, apperrors.NotImplemented("external AMM graduation instruction set is not yet specified")
	default:
		return UnsignedTx{}, apperrors.Fatal("txbuilder: unknown migration kind", nil)
	}
}

func (b *Builder) buildCreateCurvePoolMigration(ctx context.Context, p project.Project) (UnsignedTx, error) {
	if p.CurvePoolKeypair == nil {
		return UnsignedTx{}, apperrors.Fatal("txbuilder: migration requires an assigned curve pool keypair", nil)
	}
	data := anchorDiscriminator("create_curved_pool")
	data = append(data, p.ID[:]...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(b.cfg.Authority.PublicKey(), true, true),
		solana.NewAccountMeta(*p.CurvePoolKeypair, true, false),
		solana.NewAccountMeta(b.cfg.TokenProgramID, false, false),
		solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
	}
	ix := solana.NewInstruction(b.cfg.ProgramID, accounts, data)
	return b.buildAndSign(ctx, []solana.Instruction{ix}, b.cfg.Authority.PublicKey(), []solana.PrivateKey{b.cfg.Authority})
}

// buildStaticPoolGraduateMigration releases the pre-sale pool's collected
// lamports to the authority and, for an internal curve, creates the
// bonding curve in the same transaction — the curve was deliberately not
// created at project creation time when a static pool is configured
// (spec §4.4), so this is the one place it comes into existence.
func (b *Builder) buildStaticPoolGraduateMigration(ctx context.Context, p project.Project) (UnsignedTx, error) {
	if p.StaticPoolPubkey == nil {
		return UnsignedTx{}, apperrors.Fatal("txbuilder: migration requires a static pool address", nil)
	}
	data := anchorDiscriminator("graduate_static_pool")
	data = append(data, p.ID[:]...)

	instructions := []solana.Instruction{
		solana.NewInstruction(b.cfg.ProgramID, solana.AccountMetaSlice{
			solana.NewAccountMeta(b.cfg.Authority.PublicKey(), true, true),
			solana.NewAccountMeta(*p.StaticPoolPubkey, true, false),
			solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
		}, data),
	}

	if p.CurvePoolKeypair != nil {
		curveData := anchorDiscriminator("create_curved_pool")
		curveData = append(curveData, p.ID[:]...)
		instructions = append(instructions, solana.NewInstruction(b.cfg.ProgramID, solana.AccountMetaSlice{
			solana.NewAccountMeta(b.cfg.Authority.PublicKey(), true, true),
			solana.NewAccountMeta(*p.CurvePoolKeypair, true, false),
			solana.NewAccountMeta(b.cfg.TokenProgramID, false, false),
			solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
		}, curveData))
	}

	return b.buildAndSign(ctx, instructions, b.cfg.Authority.PublicKey(), []solana.PrivateKey{b.cfg.Authority})
}

// buildStaticPoolCloseMigration closes the pre-sale pool on chain once
// needs_static_close fires (spec §4.4), stopping further buys without yet
// releasing collected lamports to the authority — that happens on the
// later graduate_static_pool migration.
func (b *Builder) buildStaticPoolCloseMigration(ctx context.Context, p project.Project) (UnsignedTx, error) {
	if p.StaticPoolPubkey == nil {
		return UnsignedTx{}, apperrors.Fatal("txbuilder: migration requires a static pool address", nil)
	}
	data := anchorDiscriminator("close_static_pool")
	data = append(data, p.ID[:]...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(b.cfg.Authority.PublicKey(), true, true),
		solana.NewAccountMeta(*p.StaticPoolPubkey, true, false),
		solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
	}
	ix := solana.NewInstruction(b.cfg.ProgramID, accounts, data)
	return b.buildAndSign(ctx, []solana.Instruction{ix}, b.cfg.Authority.PublicKey(), []solana.PrivateKey{b.cfg.Authority})
}

func (b *Builder) buildCurvePoolCloseMigration(ctx context.Context, p project.Project) (UnsignedTx, error) {
	if p.CurvePoolKeypair == nil {
		return UnsignedTx{}, apperrors.Fatal("txbuilder: migration requires an assigned curve pool keypair", nil)
	}
	data := anchorDiscriminator("graduate_curved_pool")
	data = append(data, p.ID[:]...)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(b.cfg.Authority.PublicKey(), true, true),
		solana.NewAccountMeta(*p.CurvePoolKeypair, true, false),
		solana.NewAccountMeta(b.cfg.FeeAccount, true, false),
		solana.NewAccountMeta(b.cfg.SystemProgramID, false, false),
	}
	ix := solana.NewInstruction(b.cfg.ProgramID, accounts, data)
	return b.buildAndSign(ctx, []solana.Instruction{ix}, b.cfg.Authority.PublicKey(), []solana.PrivateKey{b.cfg.Authority})
}
