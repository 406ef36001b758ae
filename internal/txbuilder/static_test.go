package txbuilder

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonzip/launchd/internal/chain"
	"github.com/moonzip/launchd/internal/project"
)

func testBuilderWithChain(t *testing.T) *Builder {
	t.Helper()
	client, err := chain.NewClient(chain.Config{URL: "http://127.0.0.1:0"})
	require.NoError(t, err)
	authority, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return New(Config{
		ProgramID:       solana.SystemProgramID,
		SystemProgramID: solana.SystemProgramID,
		FeeAccount:      solana.NewWallet().PublicKey(),
		Authority:       authority,
	}, client)
}

func TestStaticPoolAddress_IsDeterministicPerProject(t *testing.T) {
	b := testBuilderWithChain(t)
	id := uuid.New()

	first, err := b.StaticPoolAddress(id)
	require.NoError(t, err)
	second, err := b.StaticPoolAddress(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := b.StaticPoolAddress(uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestBuildStaticBuy_RejectsWrongStage(t *testing.T) {
	b := testBuilderWithChain(t)
	addr := solana.NewWallet().PublicKey()
	p := project.Project{Stage: project.StageOnCurvePool, StaticPoolPubkey: &addr}

	_, err := b.BuildStaticBuy(context.Background(), p, StaticBuyRequest{Sols: 1})
	assert.Error(t, err)
}

func TestBuildStaticBuy_RejectsZeroAmount(t *testing.T) {
	b := testBuilderWithChain(t)
	addr := solana.NewWallet().PublicKey()
	p := project.Project{Stage: project.StageOnStaticPool, StaticPoolPubkey: &addr}

	_, err := b.BuildStaticBuy(context.Background(), p, StaticBuyRequest{Sols: 0})
	assert.Error(t, err)
}
