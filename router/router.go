// Package router holds the static, hand-maintained tables that let the trade
// simulator recognize which contract a sequenced transaction is calling and,
// for routers that address pools opaquely (1inch), which pool a given
// address actually is.
package router

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

// Id identifies a known router/aggregator contract by its calldata shape.
type Id uint8

const (
	UniswapV3RouterV1 Id = iota
	UniswapV3RouterV2
	UniswapV3UniversalRouter
	SushiRouterV2
	CamelotRouterV2
	Gmx
	ParaswapAugustus
	OneInch
	ZeroEx
	Odos
)

func (r Id) String() string {
	switch r {
	case UniswapV3RouterV1:
		return "UniswapV3RouterV1"
	case UniswapV3RouterV2:
		return "UniswapV3RouterV2"
	case UniswapV3UniversalRouter:
		return "UniswapV3UniversalRouter"
	case SushiRouterV2:
		return "SushiRouterV2"
	case CamelotRouterV2:
		return "CamelotRouterV2"
	case Gmx:
		return "Gmx"
	case ParaswapAugustus:
		return "ParaswapAugustus"
	case OneInch:
		return "OneInch"
	case ZeroEx:
		return "ZeroEx"
	case Odos:
		return "Odos"
	default:
		return "Unknown"
	}
}

// Arbitrum mainnet router contract addresses.
var (
	UniswapV3RouterV1Address        = common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
	UniswapV3RouterV2Address        = common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")
	UniswapV3UniversalRouterAddress = common.HexToAddress("0x4C60051384bd2d3C01bfc845Cf5F4b44bcbE9de5")
	SushiRouterV2Address            = common.HexToAddress("0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506")
	CamelotRouterV2Address          = common.HexToAddress("0xc873fEcbd354f5A56E00E710B90EF4201db2448d")
	GmxRouterAddress                = common.HexToAddress("0xaBBc5F99639c9B6bCb58544ddf04EFA6802F4064")
	ParaswapAugustusAddress         = common.HexToAddress("0xDEF171Fe48CF0115B1d80b88dc8eAB59176FEe57")
	OneInchRouterV5Address          = common.HexToAddress("0x1111111254EEB25477B68fb85Ed929f73A960582")
	OneInchRouterV4Address          = common.HexToAddress("0x1111111254fb6c44bAC0beD2854e76F90643097d")
	ZeroExRouterAddress             = common.HexToAddress("0xDef1C0ded9bec7F1a1670819833240f027B25EfF")
	OdosRouterAddress               = common.HexToAddress("0xdd94018F54e565dbfc939F7C44a16e163FaAb331")
)

// Routers maps a contract address to the Id used to dispatch its calldata.
var Routers = map[common.Address]Id{
	UniswapV3RouterV1Address:        UniswapV3RouterV1,
	UniswapV3RouterV2Address:        UniswapV3RouterV2,
	UniswapV3UniversalRouterAddress: UniswapV3UniversalRouter,
	SushiRouterV2Address:            SushiRouterV2,
	CamelotRouterV2Address:          CamelotRouterV2,
	GmxRouterAddress:                Gmx,
	ParaswapAugustusAddress:         ParaswapAugustus,
	OneInchRouterV5Address:          OneInch,
	OneInchRouterV4Address:          OneInch,
	ZeroExRouterAddress:             ZeroEx,
	OdosRouterAddress:               Odos,
}

// Lookup resolves a transaction's `to` address to a known router Id.
func Lookup(to common.Address) (Id, bool) {
	id, ok := Routers[to]
	return id, ok
}

// FixedFee is the protocol-wide swap fee, in the same units as tokens.Pair.Fee,
// charged by routers that don't carry a per-pool fee in their calldata (0x's
// UniswapV2 bridge orders, and Sushi/Camelot's own router calls).
const FixedFee = 300

// PoolInfo describes one liquidity pool opaquely addressed by a swap
// aggregator, resolved from its pool contract address alone.
type PoolInfo struct {
	Token0     tokens.Token
	Token1     tokens.Token
	Fee        uint16
	ExchangeID tokens.ExchangeId
}

// Pools is a registry of pool address -> PoolInfo, populated at startup from
// configuration (spec section 6); it backs the 1inch "pools" calldata field,
// which carries only a 32-byte packed pool descriptor, not token/fee data.
type Pools struct {
	byAddress map[common.Address]PoolInfo
}

// NewPools returns an empty pool registry.
func NewPools() *Pools {
	return &Pools{byAddress: make(map[common.Address]PoolInfo)}
}

// Register records pool as reachable at address.
func (p *Pools) Register(address common.Address, pool PoolInfo) {
	p.byAddress[address] = pool
}

// Lookup resolves a pool contract address to its token pair/fee/exchange.
func (p *Pools) Lookup(address common.Address) (PoolInfo, bool) {
	info, ok := p.byAddress[address]
	return info, ok
}

// AddressToToken resolves in/out addresses through the closed token
// enumeration. ok is false for either side not in the monitored universe.
func AddressToToken(tokenIn, tokenOut common.Address) (in, out tokens.Token, ok bool) {
	in, okIn := tokens.FromAddress(tokenIn)
	out, okOut := tokens.FromAddress(tokenOut)
	return in, out, okIn && okOut
}
