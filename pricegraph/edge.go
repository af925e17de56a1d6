package pricegraph

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/fulcrumlabs/sequencer-arb/pricegraph/uniswapv2"
	"github.com/fulcrumlabs/sequencer-arb/pricegraph/uniswapv3"
	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

// EdgeId is a 32-bit identity hash of (token_in, token_out, exchange_id, fee),
// used to key the global edge map. Layout: token_in at bit 0, token_out at
// bit 5, exchange_id at bit 10 (each masked to 6 bits, so the fields are 5
// bits apart), fee in bits 16..31.
type EdgeId = uint32

// HashEdgeId packs (tokenIn, tokenOut, exchangeID, fee) into an EdgeId. Each of
// the first three fields is masked to 6 bits before packing, matching the
// original implementation's `& 63` mask despite only 5 bits being needed for
// the current token/exchange counts.
func HashEdgeId(tokenIn, tokenOut, exchangeID uint8, fee uint16) EdgeId {
	return (uint32(tokenIn&63)) |
		(uint32(tokenOut&63) << 5) |
		(uint32(exchangeID&63) << 10) |
		(uint32(fee) << 16)
}

// EdgeKind discriminates the Edge sum type.
type EdgeKind uint8

const (
	KindV2 EdgeKind = iota
	KindV3
)

// Edge is a tagged variant describing one directed quote from token_in to
// token_out: constant-product (V2) or concentrated-liquidity (V3).
type Edge struct {
	Kind EdgeKind

	// V2 fields.
	ReserveIn  *big.Int
	ReserveOut *big.Int
	FeeV2      uint16
	ExchangeID tokens.ExchangeId

	// V3 fields. All V3 edges trade on the Uniswap exchange id.
	SqrtPX96   *uint256.Int
	Liquidity  *uint256.Int
	FeeV3      uint16
	ZeroForOne bool
}

var ErrMissingEdge = errors.New("pricegraph: edge not found")

// NewV2Edge constructs a constant-product edge.
func NewV2Edge(reserveIn, reserveOut *big.Int, fee uint16, exchangeID tokens.ExchangeId) Edge {
	return Edge{Kind: KindV2, ReserveIn: reserveIn, ReserveOut: reserveOut, FeeV2: fee, ExchangeID: exchangeID}
}

// NewV3Edge constructs a concentrated-liquidity edge.
func NewV3Edge(sqrtPX96, liquidity *uint256.Int, fee uint16, zeroForOne bool) Edge {
	return Edge{Kind: KindV3, SqrtPX96: sqrtPX96, Liquidity: liquidity, FeeV3: fee, ZeroForOne: zeroForOne}
}

// Fee returns the edge's pool fee (0 for most V2 pools, a fee tier for V3).
func (e Edge) Fee() uint16 {
	if e.Kind == KindV3 {
		return e.FeeV3
	}
	return e.FeeV2
}

// ExchangeId returns the edge's venue; V3 edges are always Uniswap.
func (e Edge) ExchangeId() tokens.ExchangeId {
	if e.Kind == KindV3 {
		return tokens.Uniswap
	}
	return e.ExchangeID
}

// ID computes this edge's EdgeId for the given direction.
func (e Edge) ID(tokenIn, tokenOut tokens.Token) EdgeId {
	return HashEdgeId(uint8(tokenIn), uint8(tokenOut), uint8(e.ExchangeId()), e.Fee())
}

// Inverse returns a new Edge modeling the reverse direction: V2 swaps reserves,
// V3 flips zero_for_one. The two share no backing state.
func (e Edge) Inverse() Edge {
	if e.Kind == KindV3 {
		return NewV3Edge(e.SqrtPX96, e.Liquidity, e.FeeV3, !e.ZeroForOne)
	}
	return NewV2Edge(e.ReserveOut, e.ReserveIn, e.FeeV2, e.ExchangeID)
}

// QuoteOut computes amount_out for amount_in without mutating the edge.
func (e Edge) QuoteOut(amountIn *big.Int) (*big.Int, error) {
	if e.Kind == KindV3 {
		in, overflow := uint256.FromBig(amountIn)
		if overflow {
			return nil, errors.New("pricegraph: amount overflows 256 bits")
		}
		out, _, err := uniswapv3.AmountOut(in, e.SqrtPX96, e.Liquidity, uint32(e.FeeV3), e.ZeroForOne)
		if err != nil {
			return nil, err
		}
		return out.ToBig(), nil
	}
	return uniswapv2.AmountOut(e.FeeV2, amountIn, e.ReserveIn, e.ReserveOut)
}

// QuoteOutF is the float-scoring variant, never used to mutate state.
func (e Edge) QuoteOutF(amountIn *big.Int) float64 {
	if e.Kind == KindV3 {
		f, _ := new(big.Float).SetInt(amountIn).Float64()
		return uniswapv3.AmountOutF(f, e.SqrtPX96, e.Liquidity, uint32(e.FeeV3), e.ZeroForOne)
	}
	rin, _ := new(big.Float).SetInt(e.ReserveIn).Float64()
	rout, _ := new(big.Float).SetInt(e.ReserveOut).Float64()
	in, _ := new(big.Float).SetInt(amountIn).Float64()
	return uniswapv2.AmountOutF(e.FeeV2, in, rin, rout)
}

// ApplyIn computes amount_out and mutates the edge's reserves/price in place
// to reflect the trade.
func (e *Edge) ApplyIn(amountIn *big.Int) (*big.Int, error) {
	if e.Kind == KindV3 {
		in, overflow := uint256.FromBig(amountIn)
		if overflow {
			return nil, errors.New("pricegraph: amount overflows 256 bits")
		}
		out, nextSqrtP, err := uniswapv3.AmountOut(in, e.SqrtPX96, e.Liquidity, uint32(e.FeeV3), e.ZeroForOne)
		if err != nil {
			return nil, err
		}
		e.SqrtPX96 = nextSqrtP
		return out.ToBig(), nil
	}
	out, err := uniswapv2.AmountOut(e.FeeV2, amountIn, e.ReserveIn, e.ReserveOut)
	if err != nil {
		return nil, err
	}
	e.ReserveIn = new(big.Int).Add(e.ReserveIn, amountIn)
	e.ReserveOut = new(big.Int).Sub(e.ReserveOut, out)
	return out, nil
}

// ApplyOut computes the amount_in required to extract amount_out and mutates
// the edge accordingly.
//
// For V2, this follows the same forward constant-product formula as ApplyIn
// rather than a true amount-in solve: this reproduces the original
// implementation's calculate_amount_in_updating, which is documented in
// DESIGN.md as an open question the source itself appears to get wrong. The
// V3 branch is the only side of this dual that is semantically a true
// "amount in for desired amount out" solve.
func (e *Edge) ApplyOut(amountOut *big.Int) (*big.Int, error) {
	if e.Kind == KindV3 {
		out, overflow := uint256.FromBig(amountOut)
		if overflow {
			return nil, errors.New("pricegraph: amount overflows 256 bits")
		}
		in, nextSqrtP, err := uniswapv3.AmountIn(out, e.SqrtPX96, e.Liquidity, uint32(e.FeeV3), e.ZeroForOne)
		if err != nil {
			return nil, err
		}
		e.SqrtPX96 = nextSqrtP
		return in.ToBig(), nil
	}
	amountIn, err := uniswapv2.AmountOut(e.FeeV2, amountOut, e.ReserveIn, e.ReserveOut)
	if err != nil {
		return nil, err
	}
	e.ReserveIn = new(big.Int).Add(e.ReserveIn, amountIn)
	e.ReserveOut = new(big.Int).Sub(e.ReserveOut, amountOut)
	return amountIn, nil
}
