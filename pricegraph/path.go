package pricegraph

import (
	"github.com/fulcrumlabs/sequencer-arb/bitset"
	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

// PathKind discriminates a two-hop cycle from a three-hop cycle.
type PathKind uint8

const (
	Reflexive PathKind = iota
	Triangle
)

// Leg is one directed (a, b) hop of a precomputed Path.
type Leg struct {
	A, B tokens.Token
}

// Path is a precomputed, edge-agnostic cycle back to its starting token. The
// exact edges used to walk it are resolved at search time from the
// PriceGraph's best-edge matrix.
type Path struct {
	Kind PathKind
	Legs []Leg // length 2 (Reflexive) or 3 (Triangle)
	// BaseId uniquely identifies the first hop, used to cache its quoted
	// output across consecutive paths that share it.
	BaseId uint16
}

func pairIdentity(a, b tokens.Token) uint16 {
	return uint16(a)<<8 | uint16(b)
}

func newReflexive(a, b tokens.Token) Path {
	return Path{Kind: Reflexive, Legs: []Leg{{a, b}, {b, a}}, BaseId: pairIdentity(a, b)}
}

func newTriangle(a, b, c tokens.Token) Path {
	return Path{Kind: Triangle, Legs: []Leg{{a, b}, {b, c}, {c, a}}, BaseId: pairIdentity(a, b)}
}

// FindPaths builds an adjacency matrix from pairs and enumerates every
// two-hop cycle (Reflexive) and triangle (Triangle) starting and ending at
// start. Emission order: by first neighbor in token-index order, then by
// second neighbor in token-index order, matching the reference
// implementation so that Triangle paths sharing a Reflexive prefix are
// emitted consecutively (required for find_arb's base_id cache to help).
func FindPaths(start tokens.Token, pairs []tokens.Pair) []Path {
	n := tokens.NumTokens()
	paths := make([]Path, 0, 2*len(pairs))

	adjacent := make([]bitset.BitSet, n)
	for i := range adjacent {
		adjacent[i] = bitset.NewBitSet(uint64(n))
	}
	for _, pair := range pairs {
		a, b := int(pair.Token0), int(pair.Token1)
		adjacent[a].Set(uint64(b))
		adjacent[b].Set(uint64(a))
	}

	startIdx := int(start)
	for firstNeighbor := 0; firstNeighbor < n; firstNeighbor++ {
		if !adjacent[startIdx].IsSet(uint64(firstNeighbor)) {
			continue
		}
		for secondNeighbor := 0; secondNeighbor < n; secondNeighbor++ {
			if !adjacent[firstNeighbor].IsSet(uint64(secondNeighbor)) {
				continue
			}
			if secondNeighbor == startIdx {
				paths = append(paths, newReflexive(start, tokens.Token(firstNeighbor)))
			} else if adjacent[secondNeighbor].IsSet(uint64(startIdx)) {
				paths = append(paths, newTriangle(start, tokens.Token(firstNeighbor), tokens.Token(secondNeighbor)))
			}
		}
	}
	return paths
}

// Trade is one leg of a CompositeTrade.
type Trade struct {
	TokenIn    uint8
	TokenOut   uint8
	FeeTier    uint16
	ExchangeID uint8
}

// CompositeTrade is the fixed three-leg output of arbitrage search and the
// compact input to the executor contract. A two-hop path pads its third slot
// with a zero-value Trade (a semantic no-op).
type CompositeTrade struct {
	Path [3]Trade
}

// Intersects returns whether the token sets touched by two composite trades
// overlap, using a packed bitmask over token indices (tokens package asserts
// at init time that the token universe fits in 32 bits).
func (c CompositeTrade) Intersects(other CompositeTrade) bool {
	own := uint32(1)<<c.Path[0].TokenIn | uint32(1)<<c.Path[0].TokenOut | uint32(1)<<c.Path[1].TokenOut
	theirs := uint32(1)<<other.Path[0].TokenIn | uint32(1)<<other.Path[0].TokenOut | uint32(1)<<other.Path[1].TokenOut
	return own&theirs > 0
}
