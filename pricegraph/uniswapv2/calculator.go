// Package uniswapv2 implements the constant-product pool math used by V2 Edges.
package uniswapv2

import (
	"errors"
	"math/big"
	"sync"
)

// FeeDivisor is the unit in which a V2 pool's fee is expressed: fee/FeeDivisor
// is the fraction of the input taken as a swap fee.
const FeeDivisor = 100_000

var (
	ErrZeroReserve = errors.New("uniswapv2: pool has a zero reserve")

	feeDivisorBig = big.NewInt(FeeDivisor)
)

// Calculator holds reusable big.Int scratch space so a hot-path quote does not
// allocate. Instances are pooled; callers must not retain one across calls.
type Calculator struct {
	feeMult     *big.Int
	amountInFee *big.Int
	numerator   *big.Int
	denominator *big.Int
}

var pool = sync.Pool{
	New: func() any {
		return &Calculator{
			feeMult:     new(big.Int),
			amountInFee: new(big.Int),
			numerator:   new(big.Int),
			denominator: new(big.Int),
		}
	},
}

// AmountOut computes floor((Rout * in * (F-fee)) / (Rin*F + in*(F-fee))).
func AmountOut(feeBps uint16, amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrZeroReserve
	}
	c := pool.Get().(*Calculator)
	defer pool.Put(c)

	c.feeMult.SetInt64(int64(FeeDivisor - int(feeBps)))
	c.amountInFee.Mul(amountIn, c.feeMult)
	c.numerator.Mul(reserveOut, c.amountInFee)
	c.denominator.Mul(reserveIn, feeDivisorBig)
	c.denominator.Add(c.denominator, c.amountInFee)

	out := new(big.Int).Div(c.numerator, c.denominator)
	return out, nil
}

// AmountOutF is the float-scoring variant used by ScoreArray; it trades exactness
// for speed and is never used to mutate state.
func AmountOutF(feeBps uint16, amountIn, reserveIn, reserveOut float64) float64 {
	if reserveIn <= 0 || reserveOut <= 0 {
		return 0
	}
	amountInFee := amountIn * float64(FeeDivisor-int(feeBps))
	return (reserveOut * amountInFee) / (reserveIn*FeeDivisor + amountInFee)
}
