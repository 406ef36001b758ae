// Package fee implements basis-point fee arithmetic, ported from the
// on-chain program's fee.rs BasisPoints type. Fees are deducted from
// inside a specified amount (PartOf) or added on top of it (OnTopOf) —
// which one applies depends on whether the caller specified an exact
// spend or an exact proceeds amount (spec §5).
package fee

import "math/big"

// BasisPoints is a fee rate in hundredths of a percent, 0-10000.
type BasisPoints uint16

const maxBasisPoints = 10000

// PartOf returns the portion of amount that the fee consumes, i.e. the
// fee owed when amount already includes it.
func (b BasisPoints) PartOf(amount uint64) uint64 {
	product := new(big.Int).Mul(new(big.Int).SetUint64(amount), big.NewInt(int64(b)))
	return new(big.Int).Div(product, big.NewInt(maxBasisPoints)).Uint64()
}

// OnTopOf returns the fee owed when amount is the net amount the fee is
// layered on top of, so amount+fee is what the payer actually sends.
func (b BasisPoints) OnTopOf(amount uint64) uint64 {
	oppositeBps := maxBasisPoints - int64(b)
	if oppositeBps <= 0 {
		return ^uint64(0)
	}
	grossed := new(big.Int).Div(
		new(big.Int).Mul(big.NewInt(int64(amount)), big.NewInt(maxBasisPoints)),
		big.NewInt(oppositeBps),
	)
	fee := new(big.Int).Sub(grossed, big.NewInt(int64(amount)))
	if fee.Sign() < 0 {
		return 0
	}
	return fee.Uint64()
}
