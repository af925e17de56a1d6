package simulator

// Function selectors, keccak256(signature)[:4], for every calldata shape the
// simulator recognizes. The UniswapV3RouterV1 and V2 deployments use
// different selectors: V1 carries the extra `deadline` field its sibling V2
// omits, which changes the selector even though the decode shape is
// otherwise identical.
var (
	uniswapV3V1ExactInput        = [4]byte{0xc0, 0x4b, 0x8d, 0x59}
	uniswapV3V1ExactOutput       = [4]byte{0xf2, 0x8c, 0x04, 0x98}
	uniswapV3V1ExactInputSingle  = [4]byte{0x41, 0x4b, 0xf3, 0x89}
	uniswapV3V1ExactOutputSingle = [4]byte{0xdb, 0x3e, 0x21, 0x98}

	uniswapV3V2ExactInput        = [4]byte{0xb8, 0x58, 0x18, 0x3f}
	uniswapV3V2ExactOutput       = [4]byte{0x09, 0xb8, 0x13, 0x46}
	uniswapV3V2ExactInputSingle  = [4]byte{0x04, 0xe4, 0x5a, 0xaf}
	uniswapV3V2ExactOutputSingle = [4]byte{0x50, 0x23, 0xb4, 0xdf}

	uniswapV3MultiCall         = [4]byte{0xac, 0x96, 0x50, 0xd8} // multicall(bytes[])
	uniswapV3MultiCallDeadline = [4]byte{0x5a, 0xe4, 0x01, 0xdc} // multicall(uint256,bytes[])

	universalRouterExecute         = [4]byte{0x24, 0x85, 0x6b, 0xc3} // execute(bytes,bytes[])
	universalRouterExecuteDeadline = [4]byte{0x35, 0x93, 0x56, 0x4c} // execute(bytes,bytes[],uint256)

	oneInchUniswapV3Swap = [4]byte{0xe4, 0x49, 0x02, 0x2e} // uniswapV3Swap(uint256,uint256,uint256[])

	zeroExTransformERC20 = [4]byte{0x41, 0x55, 0x65, 0xb0}

	sushiSwapExactETHForTokens    = [4]byte{0x7f, 0xf3, 0x6a, 0xb5}
	sushiSwapExactETHForTokensFOT = [4]byte{0xb6, 0xf9, 0xde, 0x95}
	sushiSwapExactTokensForETH   = [4]byte{0x18, 0xcb, 0xaf, 0xe5}
	sushiSwapExactTokensForETHFOT = [4]byte{0x79, 0x1a, 0xc9, 0x47}
)

// Universal Router command byte values, masked to the low 5 bits per the
// router's own dispatch convention.
const (
	commandV3SwapExactIn  = 0x00
	commandV3SwapExactOut = 0x01
)

func selectorOf(input []byte) (sel [4]byte, ok bool) {
	if len(input) < 4 {
		return sel, false
	}
	copy(sel[:], input[:4])
	return sel, true
}
