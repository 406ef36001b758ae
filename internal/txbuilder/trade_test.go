package txbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moonzip/launchd/internal/curve"
	"github.com/moonzip/launchd/internal/fee"
)

func testBuilder(feeBPS uint16) *Builder {
	return &Builder{cfg: Config{FeeBPS: fee.BasisPoints(feeBPS)}}
}

func TestQuoteBuy_DeductsFeeBeforeCurve(t *testing.T) {
	b := testBuilder(100) // 1%
	state := curve.FromConfig(curve.DefaultConfig())

	afterFee, tokensOut := b.QuoteBuy(state, 1_000_000_000)
	assert.Equal(t, uint64(990_000_000), afterFee)
	assert.Greater(t, tokensOut, uint64(0))

	zeroFeeBuilder := testBuilder(0)
	_, tokensOutNoFee := zeroFeeBuilder.QuoteBuy(state, 1_000_000_000)
	assert.Greater(t, tokensOutNoFee, tokensOut, "a fee-free buy yields more tokens than a fee-bearing one")
}

func TestQuoteSell_ComputesGrossBeforeDeductingFee(t *testing.T) {
	b := testBuilder(500) // 5%
	state := curve.FromConfig(curve.DefaultConfig())
	state.CommitBuy(1_000_000_000, curve.NewBuyCalculator(state).FixedSols(1_000_000_000))

	net := b.QuoteSell(state, 1_000_000_000)
	gross := curve.NewSellCalculator(state).FixedTokens(1_000_000_000)

	assert.Less(t, net, gross)
	assert.Equal(t, gross-fee.BasisPoints(500).PartOf(gross), net)
}

func TestQuoteBuyThenSell_RoundTripLeavesTraderPoorer(t *testing.T) {
	b := testBuilder(1000) // 10%
	state := curve.FromConfig(curve.DefaultConfig())

	afterFee, tokensOut := b.QuoteBuy(state, 10_000_000_000)
	state.CommitBuy(afterFee, tokensOut)

	solsOut := b.QuoteSell(state, tokensOut)

	assert.Less(t, solsOut, uint64(10_000_000_000), "round trip with a nonzero fee leaves the trader strictly poorer in sol")
}
