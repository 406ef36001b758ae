package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func referenceCurve() State {
	return FromConfig(DefaultConfig())
}

func TestBuyCalculator_FixedSols_MovesPriceUp(t *testing.T) {
	c := referenceCurve()
	buy := NewBuyCalculator(c)

	first := buy.FixedSols(1000000000)
	assert.Greater(t, first, uint64(0))
	assert.LessOrEqual(t, first, c.RealTokenReserves)

	c.CommitBuy(1000000000, first)
	second := NewBuyCalculator(c).FixedSols(1000000000)

	assert.Less(t, second, first, "identical sol spend buys fewer tokens as the curve climbs")
}

func TestBuyCalculator_FixedTokens_RoundTripsWithFixedSols(t *testing.T) {
	c := referenceCurve()
	buy := NewBuyCalculator(c)

	tokensOut := buy.FixedSols(5000000000)
	solsNeeded := buy.FixedTokens(tokensOut)

	assert.InDelta(t, float64(5000000000), float64(solsNeeded), float64(5000000000)*0.01)
}

func TestSellCalculator_FixedTokens_NeverExceedsRealSolReserves(t *testing.T) {
	c := referenceCurve()
	c.CommitBuy(10000000000, NewBuyCalculator(c).FixedSols(10000000000))

	sell := NewSellCalculator(c)
	sols := sell.FixedTokens(c.RealTokenReserves)

	assert.LessOrEqual(t, sols, c.RealSolReserves)
}

func TestCurveState_CommitBuyThenSell_ReturnsNearOriginalReserves(t *testing.T) {
	c := referenceCurve()
	origTokens, origSol := c.VirtualTokenReserves, c.VirtualSolReserves

	tokensOut := NewBuyCalculator(c).FixedSols(2000000000)
	c.CommitBuy(2000000000, tokensOut)

	solsOut := NewSellCalculator(c).FixedTokens(tokensOut)
	c.CommitSell(tokensOut, solsOut)

	assert.Equal(t, origTokens, c.VirtualTokenReserves)
	assert.GreaterOrEqual(t, c.VirtualSolReserves, origSol, "a round trip never leaves the pool with less sol than it started with")
}

func TestBuyCalculator_FixedSols_CapsAtRealTokenReserves(t *testing.T) {
	c := referenceCurve()
	buy := NewBuyCalculator(c)

	tokensOut := buy.FixedSols(^uint64(0) >> 16)
	assert.LessOrEqual(t, tokensOut, c.RealTokenReserves)
}
