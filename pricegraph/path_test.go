package pricegraph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

func TestFindPathsTriangleAndReflexive(t *testing.T) {
	pairs := []tokens.Pair{
		tokens.NewPairRaw(tokens.USDC, tokens.WETH, 500, tokens.Uniswap),
		tokens.NewPairRaw(tokens.USDC, tokens.ARB, 500, tokens.Uniswap),
		tokens.NewPairRaw(tokens.WETH, tokens.ARB, 500, tokens.Uniswap),
	}

	got := FindPaths(tokens.USDC, pairs)

	want := []Path{
		newReflexive(tokens.USDC, tokens.WETH),
		newTriangle(tokens.USDC, tokens.WETH, tokens.ARB),
		newReflexive(tokens.USDC, tokens.ARB),
		newTriangle(tokens.USDC, tokens.ARB, tokens.WETH),
	}
	require.Equal(t, want, got)
}

func TestFindPathsNoTriangle(t *testing.T) {
	pairs := []tokens.Pair{
		tokens.NewPairRaw(tokens.USDC, tokens.WETH, 500, tokens.Uniswap),
		tokens.NewPairRaw(tokens.USDC, tokens.WETH, 3000, tokens.Sushi),
		tokens.NewPairRaw(tokens.USDC, tokens.WETH, 10000, tokens.Camelot),
		tokens.NewPairRaw(tokens.WBTC, tokens.WETH, 500, tokens.Uniswap),
	}

	got := FindPaths(tokens.USDC, pairs)

	want := []Path{newReflexive(tokens.USDC, tokens.WETH)}
	require.Equal(t, want, got)
}

func TestCompositeTradeIntersects(t *testing.T) {
	a := CompositeTrade{Path: [3]Trade{
		{TokenIn: uint8(tokens.USDC), TokenOut: uint8(tokens.WETH)},
		{TokenIn: uint8(tokens.WETH), TokenOut: uint8(tokens.USDC)},
	}}
	b := CompositeTrade{Path: [3]Trade{
		{TokenIn: uint8(tokens.WBTC), TokenOut: uint8(tokens.GMX)},
		{TokenIn: uint8(tokens.GMX), TokenOut: uint8(tokens.WBTC)},
	}}
	require.False(t, a.Intersects(b))

	c := CompositeTrade{Path: [3]Trade{
		{TokenIn: uint8(tokens.ARB), TokenOut: uint8(tokens.WETH)},
		{TokenIn: uint8(tokens.WETH), TokenOut: uint8(tokens.ARB)},
	}}
	require.True(t, a.Intersects(c))
}
