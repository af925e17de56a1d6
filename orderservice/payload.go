package orderservice

import (
	"math/big"

	"github.com/fulcrumlabs/sequencer-arb/pricegraph"
)

// buildPayload packs a CompositeTrade into the u128 layout the execution
// contract expects: exchange and token indices into the contract's own
// lookup tables, packed at fixed bit offsets so the contract can decode it
// without ABI-decoding a struct. A two-hop path pads its third leg with a
// zero-value Trade; the third token slot then maps to 255, an unused index
// the contract's lookup table resolves to the zero address.
func buildPayload(trade pricegraph.CompositeTrade) *big.Int {
	path := trade.Path
	payload := new(big.Int)

	or := func(v uint64, shift uint) {
		payload.Or(payload, new(big.Int).Lsh(big.NewInt(int64(v)), shift))
	}

	or(uint64(path[0].ExchangeID), 0)
	or(uint64(path[1].ExchangeID), 8)
	or(uint64(path[2].ExchangeID), 16)

	or(uint64(path[0].TokenIn), 24)
	or(uint64(path[0].TokenOut), 32)

	thirdToken := uint64(path[1].TokenOut)
	if path[0].TokenIn == path[1].TokenOut {
		thirdToken = 255
	}
	or(thirdToken, 40)

	or(uint64(path[0].FeeTier), 48)
	or(uint64(path[1].FeeTier), 64)
	or(uint64(path[2].FeeTier), 80)

	return payload
}
