package httpapi

import (
	"github.com/gagliardetto/solana-go"

	"github.com/moonzip/launchd/internal/apperrors"
)

var (
	tokenProgramID           = solana.TokenProgramID
	associatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
	curvePoolSeed            = []byte("curve_pool")
)

type tradeAccounts struct {
	poolAddress   solana.PublicKey
	userTokenAcct solana.PublicKey
	poolTokenAcct solana.PublicKey
}

// deriveTradeAccounts computes the program-derived pool address and the
// associated token accounts a buy/sell instruction references, following
// the SPL associated-token-account convention (seeds: owner, token
// program, mint) and an Anchor-style PDA for the pool itself.
func deriveTradeAccounts(programID, user, mint solana.PublicKey) (tradeAccounts, error) {
	poolAddress, _, err := solana.FindProgramAddress([][]byte{curvePoolSeed, mint.Bytes()}, programID)
	if err != nil {
		return tradeAccounts{}, apperrors.Fatal("derive pool address", err)
	}

	userATA, _, err := solana.FindProgramAddress(
		[][]byte{user.Bytes(), tokenProgramID.Bytes(), mint.Bytes()},
		associatedTokenProgramID,
	)
	if err != nil {
		return tradeAccounts{}, apperrors.Fatal("derive user token account", err)
	}

	poolATA, _, err := solana.FindProgramAddress(
		[][]byte{poolAddress.Bytes(), tokenProgramID.Bytes(), mint.Bytes()},
		associatedTokenProgramID,
	)
	if err != nil {
		return tradeAccounts{}, apperrors.Fatal("derive pool token account", err)
	}

	return tradeAccounts{poolAddress: poolAddress, userTokenAcct: userATA, poolTokenAcct: poolATA}, nil
}
