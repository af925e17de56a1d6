package simulator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fulcrumlabs/sequencer-arb/router"
	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

// Deployment nonces TransformERC20 tags each transformation with. Only
// FillQuoteTransformer (the one that actually routes through a DEX) carries
// price information; the rest adjust balances around the swap and are
// no-ops for simulation purposes.
const (
	fillQuoteTransformerNonce19 = 19
	fillQuoteTransformerNonce21 = 21

	wethTransformerNonce                = 4
	affiliateFeeTransformerNonce        = 15
	payTakerTransformerNonce            = 16
	positiveSlippageFeeTransformerNonce = 17
)

// Bridge protocol ids FillQuoteTransformer stamps into the low byte of a
// BridgeOrder's `source` field; every other id is a DEX this engine doesn't
// track.
const (
	bridgeProtocolUniswapV2 = 2
	bridgeProtocolUniswapV3 = 18
)

// highBit marks a BridgeOrder's fill amount as a proportional "percent of
// current balance" fill rather than a literal amount. 0x resolves it against
// the taker's on-chain balance at execution time, which a local simulation
// has no way to reproduce.
var highBit = new(big.Int).Lsh(big.NewInt(1), 255)

// dispatchZeroEx decodes a 0x Protocol TransformERC20 call and applies every
// UniswapV2/V3 bridge order inside its FillQuoteTransformer transformation to
// the graph. Other transformation kinds (fee/WETH-wrapping transformers)
// carry no swap and are skipped without marking the round unreliable.
func (s *TradeSimulator) dispatchZeroEx(sel [4]byte, buf []byte) {
	if sel != zeroExTransformERC20 {
		return
	}

	transformations, err := decodeTransformations(buf)
	if err != nil {
		s.log.Warn("failed to decode 0x TransformERC20", "error", err)
		s.skip = true
		return
	}

	for _, t := range transformations {
		switch t.nonce {
		case fillQuoteTransformerNonce19, fillQuoteTransformerNonce21:
			if !s.applyFillQuoteTransform(t.data) {
				return
			}
		case wethTransformerNonce, affiliateFeeTransformerNonce, payTakerTransformerNonce, positiveSlippageFeeTransformerNonce:
			// No swap; nothing to apply.
		default:
			s.log.Debug("0x TransformERC20: unhandled transformer nonce", "nonce", t.nonce)
		}
	}
}

// transformation is one element of TransformERC20's transformations array:
// a deployment nonce identifying the transformer plus its opaque config.
type transformation struct {
	nonce uint32
	data  []byte
}

// decodeTransformations decodes
// TransformERC20(address,address,uint256,uint256,(uint32,bytes)[]), returning
// its transformations array. buf is the post-selector calldata, decoded
// head-only like every other dispatch function in this package.
func decodeTransformations(buf []byte) ([]transformation, error) {
	raw, err := dynTupleArrayAt(buf, 4)
	if err != nil {
		return nil, err
	}
	out := make([]transformation, 0, len(raw))
	for _, elem := range raw {
		data, err := dynBytesAt(elem, 1)
		if err != nil {
			return nil, err
		}
		out = append(out, transformation{nonce: uint32(headUint(elem, 0).Uint64()), data: data})
	}
	return out, nil
}

// applyFillQuoteTransform decodes a FillQuoteTransformData payload and
// applies every bridge order it carries to the graph. data is itself the
// sole argument of an abi.encode call, so it carries a leading self-offset
// word ahead of the struct's own head section.
//
// It returns false if the whole TransformERC20 should be abandoned: an
// unrecognized bridge protocol, or a proportional fill amount this
// simulation can't resolve without reading on-chain balance.
func (s *TradeSimulator) applyFillQuoteTransform(data []byte) bool {
	bodyOffset := headUint(data, 0).Int64()
	if bodyOffset < 0 || int(bodyOffset) >= len(data) {
		s.skip = true
		return false
	}
	body := data[bodyOffset:]

	orders, err := dynTupleArrayAt(body, 3)
	if err != nil {
		s.skip = true
		return false
	}
	fillAmount := headUint(body, 7)

	for _, order := range orders {
		source := word(order, 0)
		protocolID := source[15]

		orderData, err := dynBytesAt(order, 3)
		if err != nil {
			s.skip = true
			return false
		}

		switch protocolID {
		case bridgeProtocolUniswapV3:
			if new(big.Int).And(fillAmount, highBit).Sign() != 0 {
				s.log.Info("0x bridge order has a proportional fill amount, can't simulate")
				s.skip = true
				return false
			}
			path, err := dynBytesAt(orderData, 1)
			if err != nil {
				s.skip = true
				return false
			}
			trade := v3PathToTradeInfo(path, fillAmount)
			s.tryRunTrade(&trade, true)
		case bridgeProtocolUniswapV2:
			routerAddr := headAddr(orderData, 0)
			exchangeID, ok := zeroExV2Exchange(routerAddr)
			if !ok {
				s.log.Debug("0x bridge order via unrecognized V2 router", "router", routerAddr)
				continue
			}
			path, err := dynAddressArrayAt(orderData, 1)
			if err != nil {
				s.skip = true
				return false
			}
			trade := v2PathToTradeInfo(path, fillAmount, router.FixedFee, exchangeID)
			s.tryRunTrade(&trade, true)
		default:
			s.log.Debug("0x bridge order via unhandled protocol", "protocolId", protocolID)
			s.skip = true
			return false
		}
	}
	return true
}

// zeroExV2Exchange maps a UniswapV2Mixin's router address to the exchange
// this engine tracks it under; 0x also routes some UniswapV2-protocol orders
// through 1inch, whose router address isn't one of ours.
func zeroExV2Exchange(addr common.Address) (tokens.ExchangeId, bool) {
	switch addr {
	case router.SushiRouterV2Address:
		return tokens.Sushi, true
	case router.CamelotRouterV2Address:
		return tokens.Camelot, true
	default:
		return 0, false
	}
}
