// Package simulator extracts trade legs from raw sequenced transaction
// calldata and applies them to a price graph, mirroring each supported
// router's actual swap semantics closely enough to keep local prices in
// sync with the chain without needing to re-execute the transaction.
package simulator

import (
	"encoding/binary"
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fulcrumlabs/sequencer-arb/pricegraph"
	"github.com/fulcrumlabs/sequencer-arb/router"
	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Leg is one directed, fully-resolved hop of a decoded trade.
type Leg struct {
	TokenIn  tokens.Token
	TokenOut tokens.Token
	Fee      uint16
}

// UnknownLeg is a hop whose token(s) fall outside the monitored universe.
type UnknownLeg struct {
	TokenIn  common.Address
	TokenOut common.Address
}

// TradeInfo is the router-agnostic shape every decoder normalizes its
// calldata into before it is applied to the graph.
type TradeInfo struct {
	Amount     *big.Int
	ExchangeID tokens.ExchangeId
	Path       []Leg
	Unknown    []UnknownLeg
}

// TradeSimulator applies decoded trades to a PriceGraph in place.
type TradeSimulator struct {
	graph  *pricegraph.PriceGraph
	pools  *router.Pools
	log    Logger
	skip   bool
	warned mapset.Set[common.Address]
}

// NewTradeSimulator returns a simulator that mutates graph in place.
func NewTradeSimulator(graph *pricegraph.PriceGraph, pools *router.Pools, log Logger) *TradeSimulator {
	if log == nil {
		log = noopLogger{}
	}
	return &TradeSimulator{graph: graph, pools: pools, log: log, warned: mapset.NewSet[common.Address]()}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Skipped reports whether any essential trade could not be simulated this
// round, meaning local prices are not trustworthy for this batch.
func (s *TradeSimulator) Skipped() bool { return s.skip }

// applyExactIn walks trade.Path forward, feeding each hop's output into the
// next hop's input.
func (s *TradeSimulator) applyExactIn(trade *TradeInfo) {
	amountIn := trade.Amount
	for _, leg := range trade.Path {
		edgeID := pricegraph.HashEdgeId(uint8(leg.TokenIn), uint8(leg.TokenOut), uint8(trade.ExchangeID), leg.Fee)
		out, err := s.graph.UpdateEdgeIn(leg.TokenIn, leg.TokenOut, edgeID, amountIn)
		if err != nil {
			s.log.Info("missing pool for exact-in leg", "tokenIn", leg.TokenIn, "tokenOut", leg.TokenOut, "fee", leg.Fee)
			return
		}
		amountIn = out
	}
}

// applyExactOut walks trade.Path in the same order as applyExactIn but
// resolves amounts backwards: each leg's edge id and UpdateEdgeOut arguments
// are taken in the reverse direction, which is how the reference
// implementation's own exact-output walk is written.
func (s *TradeSimulator) applyExactOut(trade *TradeInfo) {
	amountOut := trade.Amount
	for _, leg := range trade.Path {
		edgeID := pricegraph.HashEdgeId(uint8(leg.TokenOut), uint8(leg.TokenIn), uint8(trade.ExchangeID), leg.Fee)
		in, err := s.graph.UpdateEdgeOut(leg.TokenIn, leg.TokenOut, edgeID, amountOut)
		if err != nil {
			s.log.Info("missing pool for exact-out leg", "tokenIn", leg.TokenIn, "tokenOut", leg.TokenOut, "fee", leg.Fee)
			return
		}
		amountOut = in
	}
}

// tryRunTrade applies trade if it is fully resolvable. A trade with neither
// path legs nor unknown legs touched no monitored token and is ignored; any
// unknown leg means at least one pool in the route falls outside the
// monitored universe, which marks this round's prices as unreliable.
func (s *TradeSimulator) tryRunTrade(trade *TradeInfo, exactIn bool) {
	if len(trade.Path) == 0 && len(trade.Unknown) == 0 {
		return
	}
	if len(trade.Unknown) > 0 {
		for _, leg := range trade.Unknown {
			if s.warned.Add(leg.TokenIn) {
				s.log.Warn("trade touches unmonitored pool", "tokenIn", leg.TokenIn, "tokenOut", leg.TokenOut)
			}
		}
		s.skip = true
		return
	}
	if exactIn {
		s.applyExactIn(trade)
	} else {
		s.applyExactOut(trade)
	}
}

// feeFromPathBytes decodes a 3-byte big-endian uint24 V3 fee tier, as packed
// into router "path" bytes between each hop's two addresses.
func feeFromPathBytes(b []byte) uint16 {
	var buf [4]byte
	copy(buf[1:], b[:3])
	return uint16(binary.BigEndian.Uint32(buf[:]))
}

// v3PathToTradeInfo decodes a Uniswap V3 router-style packed path
// (address ++ uint24 fee ++ address ++ ...) into a TradeInfo.
func v3PathToTradeInfo(path []byte, amount *big.Int) TradeInfo {
	trade := TradeInfo{Amount: amount, ExchangeID: tokens.Uniswap}
	if len(path)%43 != 0 {
		return trade
	}
	hops := len(path) / 43
	for i := 0; i < hops; i++ {
		offset := i * 43
		var tokenInAddr, tokenOutAddr common.Address
		copy(tokenInAddr[:], path[offset:offset+20])
		fee := feeFromPathBytes(path[offset+20 : offset+23])
		copy(tokenOutAddr[:], path[offset+23:offset+43])

		tokenIn, tokenOut, ok := router.AddressToToken(tokenInAddr, tokenOutAddr)
		if ok {
			trade.Path = append(trade.Path, Leg{TokenIn: tokenIn, TokenOut: tokenOut, Fee: fee})
		} else {
			trade.Unknown = append(trade.Unknown, UnknownLeg{TokenIn: tokenInAddr, TokenOut: tokenOutAddr})
		}
	}
	return trade
}

// v2PathToTradeInfo decodes a Uniswap-V2-style router address[] hop path
// into a TradeInfo, applying a single fixed fee tier to every hop.
func v2PathToTradeInfo(path []common.Address, amount *big.Int, fee uint16, exchangeID tokens.ExchangeId) TradeInfo {
	trade := TradeInfo{Amount: amount, ExchangeID: exchangeID}
	for i := 0; i+1 < len(path); i++ {
		tokenIn, tokenOut, ok := router.AddressToToken(path[i], path[i+1])
		if ok {
			trade.Path = append(trade.Path, Leg{TokenIn: tokenIn, TokenOut: tokenOut, Fee: fee})
		} else {
			trade.Unknown = append(trade.Unknown, UnknownLeg{TokenIn: path[i], TokenOut: path[i+1]})
		}
	}
	return trade
}

func exactSingleToTradeInfo(tokenIn, tokenOut common.Address, amount *big.Int, fee uint16) TradeInfo {
	in, out, ok := router.AddressToToken(tokenIn, tokenOut)
	if !ok {
		return TradeInfo{Amount: amount, ExchangeID: tokens.Uniswap, Unknown: []UnknownLeg{{TokenIn: tokenIn, TokenOut: tokenOut}}}
	}
	return TradeInfo{Amount: amount, ExchangeID: tokens.Uniswap, Path: []Leg{{TokenIn: in, TokenOut: out, Fee: fee}}}
}
