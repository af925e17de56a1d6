package orderservice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fulcrumlabs/sequencer-arb/pricegraph"
)

func TestBuildPayloadTwoHopPadsThirdToken(t *testing.T) {
	trade := pricegraph.CompositeTrade{Path: [3]pricegraph.Trade{
		{TokenIn: 1, TokenOut: 2, FeeTier: 500, ExchangeID: 1},
		{TokenIn: 2, TokenOut: 1, FeeTier: 3000, ExchangeID: 1},
		{},
	}}

	got := buildPayload(trade)
	require.Equal(t, "bb801f4ff0201000101", got.Text(16))
}

func TestBuildPayloadTriangle(t *testing.T) {
	trade := pricegraph.CompositeTrade{Path: [3]pricegraph.Trade{
		{TokenIn: 3, TokenOut: 2, FeeTier: 3000, ExchangeID: 0},
		{TokenIn: 2, TokenOut: 1, FeeTier: 500, ExchangeID: 1},
		{TokenIn: 1, TokenOut: 3, FeeTier: 0, ExchangeID: 1},
	}}

	got := buildPayload(trade)
	require.Equal(t, "1f40bb8010203010100", got.Text(16))
}
