// Package pricegraph implements the in-memory directed multigraph of pool
// quotes described in spec section 4.4: a best-edge matrix, a ranked top-K
// score table per directed pair, the global edge map, and the precomputed
// path search used to find arbitrage.
package pricegraph

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

// PriceGraph is a searchable snapshot of pool prices at one block.
//
// Instances are pooled and reused across batches via Reset; ScoreArrays and
// the best-edge matrix are cleared on reset but the all map is retained,
// since pools persist across blocks.
type PriceGraph struct {
	best   [][]*Edge
	scores [][]ScoreArray
	all    map[EdgeId]Edge

	touched     bool
	blockNumber uint64

	n int
}

// Empty returns a fresh, empty PriceGraph.
func Empty() *PriceGraph {
	n := tokens.NumTokens()
	g := &PriceGraph{
		best: make([][]*Edge, n),
		scores: make([][]ScoreArray, n),
		all:  make(map[EdgeId]Edge, 64),
		n:    n,
	}
	for i := 0; i < n; i++ {
		g.best[i] = make([]*Edge, n)
		g.scores[i] = make([]ScoreArray, n)
	}
	return g
}

// Touched reports whether any edge has been updated since the last Reset.
func (g *PriceGraph) Touched() bool { return g.touched }

// BlockNumber returns the block this snapshot is valid for.
func (g *PriceGraph) BlockNumber() uint64 { return g.blockNumber }

// SetBlockNumber sets the block this snapshot is valid for, without clearing
// any other state.
func (g *PriceGraph) SetBlockNumber(n uint64) { g.blockNumber = n }

// Reset clears the best-edge matrix, the score tables, and the touched flag
// for reuse at blockNumber. The all map of known edges is retained.
func (g *PriceGraph) Reset(blockNumber uint64) {
	for i := 0; i < g.n; i++ {
		for j := 0; j < g.n; j++ {
			g.best[i][j] = nil
			g.scores[i][j] = ScoreArray{}
		}
	}
	g.touched = false
	g.blockNumber = blockNumber
}

// Best returns the current winning edge for the directed pair (a, b), or nil
// if no candidate has been scored yet.
func (g *PriceGraph) Best(a, b tokens.Token) *Edge {
	return g.best[a][b]
}

// AddEdge records edgeAB and its inverse in the global edge map and rescores
// both directions. a is expected to be token0 and b token1 in the V2 sense.
func (g *PriceGraph) AddEdge(a, b tokens.Token, edgeAB Edge) {
	g.scoreEdgeBidirectional(a, b, edgeAB)
}

// UpdateEdgeIn applies a trade adding amountIn of tokenIn through edgeId,
// returning the resulting amountOut. Fails if edgeId is not present in the
// global edge map.
func (g *PriceGraph) UpdateEdgeIn(tokenIn, tokenOut tokens.Token, edgeId EdgeId, amountIn *big.Int) (*big.Int, error) {
	edge, ok := g.all[edgeId]
	if !ok {
		return nil, ErrMissingEdge
	}
	amountOut, err := edge.ApplyIn(amountIn)
	if err != nil {
		return nil, err
	}
	g.touched = true
	g.scoreEdgeBidirectional(tokenIn, tokenOut, edge)
	return amountOut, nil
}

// UpdateEdgeOut is the dual of UpdateEdgeIn: it applies a trade extracting
// amountOut of tokenOut, returning the amountIn this required.
func (g *PriceGraph) UpdateEdgeOut(tokenOut, tokenIn tokens.Token, edgeId EdgeId, amountOut *big.Int) (*big.Int, error) {
	edge, ok := g.all[edgeId]
	if !ok {
		return nil, ErrMissingEdge
	}
	amountIn, err := edge.ApplyOut(amountOut)
	if err != nil {
		return nil, err
	}
	g.touched = true
	g.scoreEdgeBidirectional(tokenIn, tokenOut, edge)
	return amountIn, nil
}

// scoreEdgeBidirectional re-scores both (a,b) and (b,a) after edgeAB has
// changed, per the bidirectional scoring procedure of spec section 4.4.
func (g *PriceGraph) scoreEdgeBidirectional(a, b tokens.Token, edgeAB Edge) {
	heuristicA := a.OneUnit()
	heuristicB := b.OneUnit()

	edgeBA := edgeAB.Inverse()
	newScoreAB := edgeAB.QuoteOutF(heuristicA)
	newScoreBA := edgeBA.QuoteOutF(heuristicB)

	edgeABId := edgeAB.ID(a, b)
	edgeBAId := edgeBA.ID(b, a)
	g.all[edgeABId] = edgeAB
	g.all[edgeBAId] = edgeBA

	g.scoreDirection(int(a), int(b), edgeAB, edgeABId, newScoreAB)
	g.scoreDirection(int(b), int(a), edgeBA, edgeBAId, newScoreBA)
}

func (g *PriceGraph) scoreDirection(ai, bi int, edge Edge, edgeId EdgeId, newScore float64) {
	scores := &g.scores[ai][bi]
	bestScore, bestId := scores.best()

	switch {
	case bestId == edgeId:
		runnerUpScore, runnerUpId := scores.runnerUp()
		if runnerUpScore > newScore {
			if runnerUp, ok := g.all[runnerUpId]; ok {
				g.best[ai][bi] = &runnerUp
			} else {
				g.best[ai][bi] = nil
			}
			scores.demote(newScore)
		} else {
			g.best[ai][bi] = &edge
			scores.updateAt(0, bestId, newScore)
		}
	case newScore >= bestScore:
		g.best[ai][bi] = &edge
		scores.promote(edgeId, newScore)
	default:
		scores.insert(edgeId, newScore)
	}
}

// FindArb searches the precomputed paths for the single best arbitrage
// opportunity starting from start, returning the final output amount and the
// CompositeTrade that achieves it if, and only if, it strictly exceeds every
// other path's output and start.Amount.
//
// First-hop quotes are cached by Path.BaseId and reused across consecutive
// paths sharing it, which is why FindPaths groups its output by base id.
func (g *PriceGraph) FindArb(start tokens.Position, paths []Path) (*big.Int, *CompositeTrade, bool) {
	bestOutput := new(big.Int).Set(start.Amount)
	bestPathIdx := -1

	var cacheAmountOut *big.Int
	var cacheBaseId uint16

	for pathIdx, path := range paths {
		currentOutput := start.Amount
		setCache := path.BaseId != cacheBaseId || cacheAmountOut == nil

		ok := true
		for legIdx, leg := range path.Legs {
			edge := g.best[leg.A][leg.B]
			if edge == nil {
				ok = false
				break
			}
			if legIdx == 0 {
				if setCache {
					out, err := edge.QuoteOut(currentOutput)
					if err != nil {
						ok = false
						break
					}
					cacheAmountOut = out
					cacheBaseId = path.BaseId
				}
				currentOutput = cacheAmountOut
				continue
			}
			out, err := edge.QuoteOut(currentOutput)
			if err != nil {
				ok = false
				break
			}
			currentOutput = out
		}
		if !ok {
			continue
		}
		if currentOutput.Cmp(bestOutput) > 0 {
			bestPathIdx = pathIdx
			bestOutput = currentOutput
		}
	}

	if bestPathIdx < 0 {
		return nil, nil, false
	}

	bestPath := paths[bestPathIdx]
	var trade CompositeTrade
	for idx, leg := range bestPath.Legs {
		edge := g.best[leg.A][leg.B]
		trade.Path[idx] = Trade{
			TokenIn:    uint8(leg.A),
			TokenOut:   uint8(leg.B),
			FeeTier:    edge.Fee(),
			ExchangeID: uint8(edge.ExchangeId()),
		}
	}
	return bestOutput, &trade, true
}

func (g *PriceGraph) String() string {
	var sb strings.Builder
	for row := 0; row < g.n; row++ {
		for col := 0; col < g.n; col++ {
			if g.best[row][col] != nil {
				sb.WriteString("[ x ]")
			} else {
				sb.WriteString("[   ]")
			}
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "edges known: %d, block: %d, touched: %v\n", len(g.all), g.blockNumber, g.touched)
	return sb.String()
}
