// Package curve implements the constant-product bonding-curve math shared
// by the transaction builder (quoting) and the lifecycle engine's
// needs_curve_close predicate. Ported from the on-chain program's
// curved_pool/curve.rs: virtual reserves keep the price curve continuous
// while real reserves track actual balances, and the u128 intermediate
// product in constant() is reproduced here with math/big since Go has no
// native 128-bit integer type.
package curve

import "math/big"

// Config is the immutable starting point of a bonding curve, chosen once
// at project creation and never mutated afterward.
type Config struct {
	InitialVirtualSolReserves   uint64
	InitialVirtualTokenReserves uint64
	InitialRealTokenReserves    uint64
	TotalTokenSupply            uint64
}

// DefaultConfig mirrors the reference curve shape used at launch.
func DefaultConfig() Config {
	return Config{
		InitialVirtualSolReserves:   30000000000,
		InitialVirtualTokenReserves: 1073000000000000,
		InitialRealTokenReserves:    793100000000000,
		TotalTokenSupply:            1000000000000000,
	}
}

// State is the mutable reserve snapshot tracked per project while its
// curve pool is open.
type State struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TotalTokenSupply     uint64
}

// FromConfig seeds curve state from its configuration.
func FromConfig(cfg Config) State {
	return State{
		VirtualTokenReserves: cfg.InitialVirtualTokenReserves,
		VirtualSolReserves:   cfg.InitialVirtualSolReserves,
		RealTokenReserves:    cfg.InitialRealTokenReserves,
		RealSolReserves:      0,
		TotalTokenSupply:     cfg.TotalTokenSupply,
	}
}

// SolBalance reports the lamports actually held by the pool.
func (s State) SolBalance() uint64 { return s.RealSolReserves }

// TokenBalance reports the tokens actually held by the pool.
func (s State) TokenBalance() uint64 { return s.RealTokenReserves }

// CommitBuy applies a completed buy to reserves: tokens leave the pool,
// sol enters.
func (s *State) CommitBuy(sols, tokens uint64) {
	s.RealTokenReserves -= tokens
	s.VirtualTokenReserves -= tokens
	s.RealSolReserves += sols
	s.VirtualSolReserves += sols
}

// CommitSell applies a completed sell to reserves: tokens return to the
// pool, sol leaves.
func (s *State) CommitSell(tokens, sols uint64) {
	s.RealTokenReserves += tokens
	s.VirtualTokenReserves += tokens
	s.RealSolReserves -= sols
	s.VirtualSolReserves -= sols
}

// constant is the invariant k = virtual_sol * virtual_token, computed at
// 128-bit width to avoid overflowing the product of two uint64s.
func (s State) constant() *big.Int {
	return new(big.Int).Mul(
		new(big.Int).SetUint64(s.VirtualSolReserves),
		new(big.Int).SetUint64(s.VirtualTokenReserves),
	)
}

func satSubUint64(a, b *big.Int) uint64 {
	d := new(big.Int).Sub(a, b)
	if d.Sign() < 0 {
		return 0
	}
	if !d.IsUint64() {
		return ^uint64(0)
	}
	return d.Uint64()
}

var one = big.NewInt(1)

// BuyCalculator quotes token-for-sol and sol-for-token amounts on the buy
// side of the curve, without mutating state.
type BuyCalculator struct {
	curve State
}

// NewBuyCalculator builds a calculator over a snapshot of curve state.
func NewBuyCalculator(curve State) BuyCalculator {
	return BuyCalculator{curve: curve}
}

// FixedSols returns how many tokens a fixed lamport spend buys.
func (b BuyCalculator) FixedSols(sols uint64) uint64 {
	constant := b.curve.constant()
	newSolReserves := new(big.Int).Add(new(big.Int).SetUint64(b.curve.VirtualSolReserves), new(big.Int).SetUint64(sols))
	newTokenReserves := new(big.Int).Add(new(big.Int).Div(constant, newSolReserves), one)

	result := satSubUint64(new(big.Int).SetUint64(b.curve.VirtualTokenReserves), newTokenReserves)
	if result > b.curve.RealTokenReserves {
		return b.curve.RealTokenReserves
	}
	return result
}

// FixedTokens returns how many lamports are needed to buy a fixed token
// amount.
func (b BuyCalculator) FixedTokens(tokens uint64) uint64 {
	if tokens >= b.curve.VirtualTokenReserves {
		return ^uint64(0)
	}
	constant := b.curve.constant()
	newTokenReserves := new(big.Int).Sub(new(big.Int).SetUint64(b.curve.VirtualTokenReserves), new(big.Int).SetUint64(tokens))
	newSolReserves := new(big.Int).Add(new(big.Int).Div(constant, newTokenReserves), one)
	return satSubUint64(newSolReserves, new(big.Int).SetUint64(b.curve.VirtualSolReserves))
}

// SellCalculator quotes sol-for-token and token-for-sol amounts on the
// sell side of the curve.
type SellCalculator struct {
	curve State
}

// NewSellCalculator builds a calculator over a snapshot of curve state.
func NewSellCalculator(curve State) SellCalculator {
	return SellCalculator{curve: curve}
}

// FixedTokens returns how many lamports a fixed token sale returns.
func (s SellCalculator) FixedTokens(tokens uint64) uint64 {
	constant := s.curve.constant()
	newTokenReserves := new(big.Int).Add(new(big.Int).SetUint64(s.curve.VirtualTokenReserves), new(big.Int).SetUint64(tokens))
	newSolReserves := new(big.Int).Add(new(big.Int).Div(constant, newTokenReserves), one)
	return satSubUint64(new(big.Int).SetUint64(s.curve.VirtualSolReserves), newSolReserves)
}

// FixedSols returns how many tokens must be sold to receive a fixed
// lamport amount.
func (s SellCalculator) FixedSols(sols uint64) uint64 {
	constant := s.curve.constant()
	denom := new(big.Int).Sub(new(big.Int).SetUint64(s.curve.VirtualSolReserves), new(big.Int).SetUint64(sols))
	newTokenReserves := new(big.Int).Add(new(big.Int).Div(constant, denom), one)
	result := satSubUint64(newTokenReserves, new(big.Int).SetUint64(s.curve.VirtualTokenReserves))
	return result
}
