package simulator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fulcrumlabs/sequencer-arb/router"
	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

// WrangleTransaction extracts trade information from one decoded transaction
// and applies it to the graph if the router and every pool it touches are
// recognized. Multicall-wrapped router calls recurse through the same
// dispatch with the inner calldata.
func (s *TradeSimulator) WrangleTransaction(to common.Address, input []byte, value *big.Int) {
	if len(input) < 4 {
		return
	}
	routerID, ok := router.Lookup(to)
	if !ok {
		return
	}
	sel, _ := selectorOf(input)
	buf := input[4:]

	switch routerID {
	case router.UniswapV3RouterV1:
		// V1's ExactInput/OutputSingleParams carries a `deadline` field its V2
		// sibling dropped, shifting the trailing amount word by one.
		s.dispatchUniswapV3(to, sel, buf, value, v3Selectors{
			exactInput: uniswapV3V1ExactInput, exactOutput: uniswapV3V1ExactOutput,
			exactInputSingle: uniswapV3V1ExactInputSingle, exactOutputSingle: uniswapV3V1ExactOutputSingle,
			amountWordIdx: 5,
		})
	case router.UniswapV3RouterV2:
		s.dispatchUniswapV3(to, sel, buf, value, v3Selectors{
			exactInput: uniswapV3V2ExactInput, exactOutput: uniswapV3V2ExactOutput,
			exactInputSingle: uniswapV3V2ExactInputSingle, exactOutputSingle: uniswapV3V2ExactOutputSingle,
			amountWordIdx: 4,
		})
	case router.UniswapV3UniversalRouter:
		s.dispatchUniversalRouter(sel, buf)
	case router.OneInch:
		s.dispatchOneInch(sel, buf)
	case router.ZeroEx:
		s.dispatchZeroEx(sel, buf)
	case router.SushiRouterV2:
		s.dispatchUniswapV2Style(sel, buf, value, tokens.Sushi)
	case router.CamelotRouterV2:
		s.dispatchUniswapV2Style(sel, buf, value, tokens.Camelot)
	case router.Odos, router.Gmx, router.ParaswapAugustus:
		// Opaque aggregator bytecode or a router we intentionally don't
		// simulate; surfaced only as a skip signal, not a decode attempt.
		s.skip = true
	}
}

// v3Selectors groups one Uniswap V3 router deployment's selectors together
// with the calldata layout quirk that deployment's version introduces.
type v3Selectors struct {
	exactInput, exactOutput, exactInputSingle, exactOutputSingle [4]byte
	amountWordIdx                                                int
}

func (s *TradeSimulator) dispatchUniswapV3(to common.Address, sel [4]byte, buf []byte, value *big.Int, sels v3Selectors) {
	switch sel {
	case sels.exactInputSingle:
		tokenIn := headAddr(buf, 0)
		tokenOut := headAddr(buf, 1)
		fee := uint16(headUint(buf, 2).Uint64())
		amountIn := headUint(buf, sels.amountWordIdx)
		trade := exactSingleToTradeInfo(tokenIn, tokenOut, amountIn, fee)
		s.tryRunTrade(&trade, true)
	case sels.exactOutputSingle:
		tokenIn := headAddr(buf, 0)
		tokenOut := headAddr(buf, 1)
		fee := uint16(headUint(buf, 2).Uint64())
		amountOut := headUint(buf, sels.amountWordIdx)
		trade := exactSingleToTradeInfo(tokenOut, tokenIn, amountOut, fee)
		s.tryRunTrade(&trade, false)
	case sels.exactInput:
		s.decodeV3PathArg(buf, true)
	case sels.exactOutput:
		s.decodeV3PathArg(buf, false)
	case uniswapV3MultiCall:
		calls, err := dynBytesArrayAt(buf, 0)
		if err != nil {
			return
		}
		for _, call := range calls {
			s.WrangleTransaction(to, call, value)
		}
	case uniswapV3MultiCallDeadline:
		calls, err := dynBytesArrayAt(buf, 1)
		if err != nil {
			return
		}
		for _, call := range calls {
			s.WrangleTransaction(to, call, value)
		}
	}
}

// decodeV3PathArg decodes the sole-struct-argument ExactInputParams /
// ExactOutputParams shape: a leading offset word to the struct body, whose
// first field is itself the offset-indirected `bytes path`.
func (s *TradeSimulator) decodeV3PathArg(buf []byte, exactIn bool) {
	bodyOffset := headUint(buf, 0).Int64()
	if bodyOffset < 0 || int(bodyOffset) > len(buf) {
		return
	}
	body := buf[bodyOffset:]
	path, err := dynBytesAt(body, 0)
	if err != nil {
		return
	}
	amount := headUint(body, 3)
	trade := v3PathToTradeInfo(path, amount)
	s.tryRunTrade(&trade, exactIn)
}

func (s *TradeSimulator) dispatchUniversalRouter(sel [4]byte, buf []byte) {
	if sel != universalRouterExecute && sel != universalRouterExecuteDeadline {
		return
	}
	commands, err := dynBytesAt(buf, 0)
	if err != nil {
		return
	}
	inputs, err := dynBytesArrayAt(buf, 1)
	if err != nil {
		return
	}
	for i, raw := range commands {
		if i >= len(inputs) {
			break
		}
		command := raw & 0x1f
		switch command {
		case commandV3SwapExactIn:
			path, err := dynBytesAt(inputs[i], 3)
			if err != nil {
				continue
			}
			amountIn := headUint(inputs[i], 1)
			trade := v3PathToTradeInfo(path, amountIn)
			s.tryRunTrade(&trade, true)
		case commandV3SwapExactOut:
			path, err := dynBytesAt(inputs[i], 3)
			if err != nil {
				continue
			}
			amountOut := headUint(inputs[i], 1)
			trade := v3PathToTradeInfo(path, amountOut)
			s.tryRunTrade(&trade, false)
		}
	}
}

func (s *TradeSimulator) dispatchOneInch(sel [4]byte, buf []byte) {
	if sel != oneInchUniswapV3Swap {
		return
	}
	amountIn := headUint(buf, 0)
	pools, err := dynUint256ArrayAt(buf, 2)
	if err != nil {
		return
	}
	trade := TradeInfo{Amount: amountIn, ExchangeID: tokens.Uniswap}
	for _, descriptor := range pools {
		b := descriptor.Bytes()
		var padded [32]byte
		copy(padded[32-len(b):], b)
		zeroForOne := padded[0]&0x01 == 0
		var poolAddr common.Address
		copy(poolAddr[:], padded[12:32])

		info, ok := s.pools.Lookup(poolAddr)
		if !ok {
			trade.Unknown = append(trade.Unknown, UnknownLeg{TokenIn: poolAddr, TokenOut: poolAddr})
			continue
		}
		if zeroForOne {
			trade.Path = append(trade.Path, Leg{TokenIn: info.Token0, TokenOut: info.Token1, Fee: info.Fee})
		} else {
			trade.Path = append(trade.Path, Leg{TokenIn: info.Token1, TokenOut: info.Token0, Fee: info.Fee})
		}
	}
	s.tryRunTrade(&trade, true)
}

func (s *TradeSimulator) dispatchUniswapV2Style(sel [4]byte, buf []byte, value *big.Int, exchangeID tokens.ExchangeId) {
	switch sel {
	case sushiSwapExactETHForTokens, sushiSwapExactETHForTokensFOT:
		path, err := dynAddressArrayAt(buf, 1)
		if err != nil {
			return
		}
		trade := v2PathToTradeInfo(path, value, router.FixedFee, exchangeID)
		s.tryRunTrade(&trade, true)
	case sushiSwapExactTokensForETH, sushiSwapExactTokensForETHFOT:
		amountIn := headUint(buf, 0)
		path, err := dynAddressArrayAt(buf, 2)
		if err != nil {
			return
		}
		trade := v2PathToTradeInfo(path, amountIn, router.FixedFee, exchangeID)
		s.tryRunTrade(&trade, true)
	}
}
