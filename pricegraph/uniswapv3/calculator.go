// Package uniswapv3 implements the single-tick concentrated-liquidity math used
// by V3 Edges. Unlike a full swap router, it never crosses a tick boundary: the
// Engine only sizes positions that stay within one tick's liquidity (spec 4.1).
package uniswapv3

import (
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
)

// Q96 is 2^96, the fixed-point base for sqrt-price values.
var Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

const feeDivisor = 1_000_000

var (
	ErrLiquidityZero = errors.New("uniswapv3: liquidity must be non-zero")
	ErrPriceZero     = errors.New("uniswapv3: sqrtP must be non-zero")
)

// calc holds reusable uint256 scratch space for a single quote computation.
type calc struct {
	amtAfterFee *uint256.Int
	num         *uint256.Int
	den         *uint256.Int
	nextSqrtP   *uint256.Int
	tmp         *uint256.Int
}

var pool = sync.Pool{
	New: func() any {
		return &calc{
			amtAfterFee: new(uint256.Int),
			num:         new(uint256.Int),
			den:         new(uint256.Int),
			nextSqrtP:   new(uint256.Int),
			tmp:         new(uint256.Int),
		}
	},
}

func applyFee(dest, amount *uint256.Int, feePips uint32) {
	dest.Mul(amount, uint256.NewInt(uint64(feeDivisor-feePips)))
	dest.Div(dest, uint256.NewInt(feeDivisor))
}

// AmountOut computes the token delta received for amountIn applied to a V3 edge
// at the given sqrt price / liquidity, per spec.md 4.1's single-tick formulas.
// Returns (amountOut, nextSqrtP).
func AmountOut(amountIn *uint256.Int, sqrtP, liquidity *uint256.Int, feePips uint32, zeroForOne bool) (*uint256.Int, *uint256.Int, error) {
	if sqrtP.IsZero() {
		return nil, nil, ErrPriceZero
	}
	if liquidity.IsZero() {
		return nil, nil, ErrLiquidityZero
	}
	c := pool.Get().(*calc)
	defer pool.Put(c)

	applyFee(c.amtAfterFee, amountIn, feePips)

	out := new(uint256.Int)
	nextSqrtP := new(uint256.Int)

	if zeroForOne {
		// nextSqrtP = (L*Q96*sqrtP) / (L*Q96 + in'*sqrtP), the numerator
		// product held at 512 bits
		c.num.Mul(liquidity, Q96)
		c.den.Mul(liquidity, Q96)
		c.tmp.Mul(c.amtAfterFee, sqrtP)
		c.den.Add(c.den, c.tmp)
		if c.den.IsZero() {
			return nil, nil, ErrPriceZero
		}
		nextSqrtP.MulDivOverflow(c.num, sqrtP, c.den)

		// out = L*(sqrtP - nextSqrtP) / Q96   (token1 delta)
		c.tmp.Sub(sqrtP, nextSqrtP)
		out.MulDivOverflow(liquidity, c.tmp, Q96)
	} else {
		// nextSqrtP = sqrtP + (in'*Q96)/L
		c.num.Mul(c.amtAfterFee, Q96)
		c.num.Div(c.num, liquidity)
		nextSqrtP.Add(sqrtP, c.num)

		// out = (L*Q96*(nextSqrtP-sqrtP)) / (sqrtP*nextSqrtP)   (token0 delta),
		// divided by nextSqrtP then sqrtP with a 512-bit first product
		c.tmp.Sub(nextSqrtP, sqrtP)
		c.num.Mul(liquidity, Q96)
		out.MulDivOverflow(c.num, c.tmp, nextSqrtP)
		out.Div(out, sqrtP)
	}
	return out, nextSqrtP, nil
}

// AmountIn is the dual of AmountOut: given a desired output, computes the
// required input and the resulting next sqrt price, applying the fee on the
// output side as spec.md 4.1 directs.
func AmountIn(amountOut *uint256.Int, sqrtP, liquidity *uint256.Int, feePips uint32, zeroForOne bool) (*uint256.Int, *uint256.Int, error) {
	if sqrtP.IsZero() {
		return nil, nil, ErrPriceZero
	}
	if liquidity.IsZero() {
		return nil, nil, ErrLiquidityZero
	}
	c := pool.Get().(*calc)
	defer pool.Put(c)

	nextSqrtP := new(uint256.Int)
	in := new(uint256.Int)

	if zeroForOne {
		// solving the amountOut formula (token1 delta) for nextSqrtP:
		// nextSqrtP = sqrtP - out*Q96/L
		c.num.Mul(amountOut, Q96)
		c.num.Div(c.num, liquidity)
		if c.num.Cmp(sqrtP) >= 0 {
			return nil, nil, errors.New("uniswapv3: amountOut exceeds available liquidity range")
		}
		nextSqrtP.Sub(sqrtP, c.num)

		// in' = L*Q96*(sqrtP-nextSqrtP) / (sqrtP*nextSqrtP), divided by
		// nextSqrtP then sqrtP with a 512-bit first product
		c.tmp.Sub(sqrtP, nextSqrtP)
		c.num.Mul(liquidity, Q96)
		in.MulDivOverflow(c.num, c.tmp, nextSqrtP)
		in.Div(in, sqrtP)
	} else {
		// token0 delta: out = L*Q96*(nextSqrtP-sqrtP)/(sqrtP*nextSqrtP)
		// solve for nextSqrtP given out:
		// nextSqrtP = (L*Q96*sqrtP) / (L*Q96 - out*sqrtP)
		c.num.Mul(liquidity, Q96)
		c.tmp.Mul(amountOut, sqrtP)
		if c.tmp.Cmp(c.num) >= 0 {
			return nil, nil, errors.New("uniswapv3: amountOut exceeds available liquidity range")
		}
		c.den.Sub(c.num, c.tmp)
		nextSqrtP.MulDivOverflow(c.num, sqrtP, c.den)

		// in' = L*(nextSqrtP-sqrtP)/Q96
		c.tmp.Sub(nextSqrtP, sqrtP)
		in.MulDivOverflow(liquidity, c.tmp, Q96)
	}

	// undo the fee: in = in' * F / (F - feePips)
	in.Mul(in, uint256.NewInt(feeDivisor))
	in.Div(in, uint256.NewInt(uint64(feeDivisor-feePips)))
	return in, nextSqrtP, nil
}

// AmountOutF is the float-scoring variant used by ScoreArray.
func AmountOutF(amountIn float64, sqrtP, liquidity *uint256.Int, feePips uint32, zeroForOne bool) float64 {
	if amountIn <= 0 {
		return 0
	}
	amtBig, _ := new(big.Float).SetFloat64(amountIn).Int(nil)
	amt, overflow := uint256.FromBig(amtBig)
	if overflow {
		return 0
	}
	out, _, err := AmountOut(amt, sqrtP, liquidity, feePips, zeroForOne)
	if err != nil {
		return 0
	}
	f := new(big.Float).SetInt(out.ToBig())
	result, _ := f.Float64()
	return result
}
