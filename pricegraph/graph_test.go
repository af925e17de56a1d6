package pricegraph

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

func bn(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad bignum literal: " + s)
	}
	return v
}

func TestPriceGraphAddEdgeSetsBest(t *testing.T) {
	g := Empty()
	g.Reset(100)

	edge := NewV2Edge(bn("1000000000000"), bn("500000000000000000000"), 300, tokens.Uniswap)
	g.AddEdge(tokens.USDC, tokens.WETH, edge)

	require.NotNil(t, g.Best(tokens.USDC, tokens.WETH))
	require.NotNil(t, g.Best(tokens.WETH, tokens.USDC))
	require.False(t, g.Touched(), "AddEdge alone does not represent a trade")
}

func TestPriceGraphResetClearsButKeepsEdgeMap(t *testing.T) {
	g := Empty()
	g.Reset(1)

	edge := NewV2Edge(bn("1000000000000"), bn("500000000000000000000"), 300, tokens.Uniswap)
	g.AddEdge(tokens.USDC, tokens.WETH, edge)
	require.NotNil(t, g.Best(tokens.USDC, tokens.WETH))

	g.Reset(2)
	require.Nil(t, g.Best(tokens.USDC, tokens.WETH))
	require.False(t, g.Touched())
	require.Equal(t, uint64(2), g.BlockNumber())
	require.NotEmpty(t, g.all, "known edges survive reset for re-scoring on the next update")
}

func TestPriceGraphUpdateEdgeInMutatesAndRescoresAndTouches(t *testing.T) {
	g := Empty()
	g.Reset(1)

	edge := NewV2Edge(bn("1000000000000"), bn("500000000000000000000"), 300, tokens.Uniswap)
	g.AddEdge(tokens.USDC, tokens.WETH, edge)

	before := g.Best(tokens.USDC, tokens.WETH)
	id := before.ID(tokens.USDC, tokens.WETH)

	out, err := g.UpdateEdgeIn(tokens.USDC, tokens.WETH, id, big.NewInt(1_000_000_000))
	require.NoError(t, err)
	require.True(t, out.Sign() > 0)
	require.True(t, g.Touched())

	after := g.Best(tokens.USDC, tokens.WETH)
	require.NotNil(t, after)
	require.True(t, after.ReserveIn.Cmp(before.ReserveIn) != 0 || after.ReserveOut.Cmp(before.ReserveOut) != 0)
}

func TestPriceGraphUpdateEdgeUnknownIdFails(t *testing.T) {
	g := Empty()
	g.Reset(1)
	_, err := g.UpdateEdgeIn(tokens.USDC, tokens.WETH, 0xdeadbeef, big.NewInt(1))
	require.ErrorIs(t, err, ErrMissingEdge)
}

// TestPriceGraphFindArbTriangle exercises a triangular
// USDC -> WETH -> ARB -> USDC cycle whose three pools are mispriced just
// enough that 1000 USDC in returns more than 1000 USDC out.
func TestPriceGraphFindArbTriangle(t *testing.T) {
	g := Empty()
	g.Reset(1)

	usdcWeth := NewV2Edge(bn("3000000000000"), bn("1000000000000000000000"), 300, tokens.Uniswap)
	wethArb := NewV2Edge(bn("1000000000000000000000"), bn("1200000000000000000000"), 300, tokens.Uniswap)
	arbUsdc := NewV2Edge(bn("1200000000000000000000"), bn("3100000000000"), 300, tokens.Uniswap)

	g.AddEdge(tokens.USDC, tokens.WETH, usdcWeth)
	g.AddEdge(tokens.WETH, tokens.ARB, wethArb)
	g.AddEdge(tokens.ARB, tokens.USDC, arbUsdc)

	pairs := []tokens.Pair{
		tokens.NewPairRaw(tokens.USDC, tokens.WETH, 300, tokens.Uniswap),
		tokens.NewPairRaw(tokens.WETH, tokens.ARB, 300, tokens.Uniswap),
		tokens.NewPairRaw(tokens.ARB, tokens.USDC, 300, tokens.Uniswap),
	}
	paths := FindPaths(tokens.USDC, pairs)

	start := tokens.Position{Amount: big.NewInt(1_000_000_000), Token: tokens.USDC}
	out, trade, found := g.FindArb(start, paths)

	require.True(t, found)
	require.True(t, out.Cmp(start.Amount) > 0)
	require.Equal(t, uint8(tokens.USDC), trade.Path[0].TokenIn)
}

func TestPriceGraphFindArbNoneFound(t *testing.T) {
	g := Empty()
	g.Reset(1)

	usdcWeth := NewV2Edge(bn("3000000000000"), bn("1000000000000000000000"), 300, tokens.Uniswap)
	g.AddEdge(tokens.USDC, tokens.WETH, usdcWeth)

	pairs := []tokens.Pair{tokens.NewPairRaw(tokens.USDC, tokens.WETH, 300, tokens.Uniswap)}
	paths := FindPaths(tokens.USDC, pairs)

	start := tokens.Position{Amount: big.NewInt(1_000_000_000), Token: tokens.USDC}
	_, _, found := g.FindArb(start, paths)
	require.False(t, found, "a round trip through one pool with fees cannot be profitable")
}
