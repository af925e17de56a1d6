// Package tokens defines the closed token/exchange enumerations and the
// per-token constants the rest of the engine indexes by. Ordering is load
// bearing: Token indices are used as dense array subscripts throughout
// pricegraph, and the ordering below must match the execution contract's
// own token table.
package tokens

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is a dense index into the fixed token universe. THIS ORDER MUST NOT
// CHANGE arbitrarily; it must track the on-chain execution contract.
type Token uint8

const (
	USDC Token = iota
	WETH
	WBTC
	ARB
	USDT
	DAI
	GMX

	numTokens = int(GMX) + 1
)

func init() {
	if numTokens > 32 {
		// CompositeTrade.intersects packs token membership into a single
		// uint32 word; see the Open Question recorded in DESIGN.md.
		panic(fmt.Sprintf("tokens: %d tokens exceeds the 32-bit intersects bitmask", numTokens))
	}
}

// NumTokens returns the size of the closed token universe.
func NumTokens() int { return numTokens }

func (t Token) String() string {
	switch t {
	case USDC:
		return "USDC"
	case WETH:
		return "WETH"
	case WBTC:
		return "WBTC"
	case ARB:
		return "ARB"
	case USDT:
		return "USDT"
	case DAI:
		return "DAI"
	case GMX:
		return "GMX"
	default:
		return fmt.Sprintf("Token(%d)", uint8(t))
	}
}

// Arbitrum mainnet token addresses.
var addresses = [numTokens]common.Address{
	USDC: common.HexToAddress("0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8"),
	WETH: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
	WBTC: common.HexToAddress("0x2f2a2543B76A4166549F7aaB2e75Bef0aefC5B0f"),
	ARB:  common.HexToAddress("0x912CE59144191C1204E64559FE8253a0e49E6548"),
	USDT: common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9"),
	DAI:  common.HexToAddress("0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1"),
	GMX:  common.HexToAddress("0xfc5A1A6EB076a2C7aD06eD22C90d7E710E35ad0a"),
}

var decimals = [numTokens]uint8{
	USDC: 6,
	WETH: 18,
	WBTC: 8,
	ARB:  18,
	USDT: 6,
	DAI:  18,
	GMX:  18,
}

// oneUnit is a per-token heuristic "one position" amount used for ScoreArray
// scoring: roughly $5k of the token, read from a fixed lookup table. Values
// exceed uint64 range for 18-decimal tokens, so they are big.Int (amounts are
// u128 in the source; Go has no native 128-bit integer).
var oneUnit [numTokens]*big.Int

func init() {
	scale := func(whole int64, decimalExp uint) *big.Int {
		v := big.NewInt(whole)
		return v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimalExp)), nil))
	}
	oneUnit[USDC] = scale(5000, 6)
	oneUnit[USDT] = scale(5000, 6)
	oneUnit[WBTC] = scale(1, 7)
	oneUnit[WETH] = scale(3, 18)
	oneUnit[ARB] = scale(4500, 18)
	oneUnit[DAI] = scale(5000, 18)
	oneUnit[GMX] = scale(1000, 18)
}

// Address returns the token's canonical 20-byte on-chain address.
func (t Token) Address() common.Address { return addresses[t] }

// Decimals returns the token's fixed decimals value.
func (t Token) Decimals() uint8 { return decimals[t] }

// OneUnit returns the heuristic scoring amount for this token (ONE_OF[t]).
// The returned value must not be mutated by callers.
func (t Token) OneUnit() *big.Int { return oneUnit[t] }

var byAddress map[common.Address]Token

func init() {
	byAddress = make(map[common.Address]Token, numTokens)
	for i := 0; i < numTokens; i++ {
		byAddress[addresses[i]] = Token(i)
	}
}

// FromAddress looks up a Token by its on-chain address. ok is false if the
// address is outside the closed enumeration.
func FromAddress(a common.Address) (Token, bool) {
	t, ok := byAddress[a]
	return t, ok
}

// ExchangeId is a finite enumeration of liquidity venues.
type ExchangeId uint8

const (
	Uniswap ExchangeId = 0
	Camelot ExchangeId = 1
	Sushi   ExchangeId = 2
	Chronos ExchangeId = 3
	Zyber   ExchangeId = 4
	// Test is a non-production price source used only in unit tests.
	Test ExchangeId = 255
)

func (e ExchangeId) String() string {
	switch e {
	case Uniswap:
		return "Uniswap"
	case Camelot:
		return "Camelot"
	case Sushi:
		return "Sushi"
	case Chronos:
		return "Chronos"
	case Zyber:
		return "Zyber"
	case Test:
		return "Test"
	default:
		return fmt.Sprintf("ExchangeId(%d)", uint8(e))
	}
}

// Pair is (token0, token1, fee, exchange_id) with tokens ordered by address.
type Pair struct {
	Token0     Token
	Token1     Token
	Fee        uint16
	ExchangeID ExchangeId
}

// NewPair orders a and b by on-chain address, matching the V2 convention.
func NewPair(a, b Token, fee uint16, exchangeID ExchangeId) Pair {
	if bytesLess(a.Address(), b.Address()) {
		return Pair{Token0: a, Token1: b, Fee: fee, ExchangeID: exchangeID}
	}
	return Pair{Token0: b, Token1: a, Fee: fee, ExchangeID: exchangeID}
}

// NewPairRaw creates a pair with the tokens in the given order, unordered.
func NewPairRaw(a, b Token, fee uint16, exchangeID ExchangeId) Pair {
	return Pair{Token0: a, Token1: b, Fee: fee, ExchangeID: exchangeID}
}

func bytesLess(a, b common.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Position is a starting quantity for arbitrage search, typically flash-loaned
// and sized to stay within a single V3 tick's liquidity.
type Position struct {
	Amount *big.Int
	Token  Token
}

// Of returns a Position of size whole tokens.
func Of(size uint64, token Token) Position {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(token.Decimals())), nil)
	amount := new(big.Int).Mul(big.NewInt(int64(size)), scale)
	return Position{Amount: amount, Token: token}
}
