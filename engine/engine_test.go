package engine

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fulcrumlabs/sequencer-arb/orderservice"
	"github.com/fulcrumlabs/sequencer-arb/pricegraph"
	"github.com/fulcrumlabs/sequencer-arb/router"
	jsonrpcclient "github.com/fulcrumlabs/sequencer-arb/streams/jsonrpc/client"
	"github.com/fulcrumlabs/sequencer-arb/tokens"
	"github.com/fulcrumlabs/sequencer-arb/txdecoder"
)

func testLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bn(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad bignum literal: " + s)
	}
	return v
}

// triangleGraph reproduces the mispriced USDC -> WETH -> ARB -> USDC cycle
// from pricegraph's own find_arb tests, and marks it touched the way a real
// batch that moved one of its edges would.
func triangleGraph() *pricegraph.PriceGraph {
	g := pricegraph.Empty()
	g.Reset(99)

	usdcWeth := pricegraph.NewV2Edge(bn("3000000000000"), bn("1000000000000000000000"), 300, tokens.Uniswap)
	wethArb := pricegraph.NewV2Edge(bn("1000000000000000000000"), bn("1200000000000000000000"), 300, tokens.Uniswap)
	arbUsdc := pricegraph.NewV2Edge(bn("1200000000000000000000"), bn("3100000000000"), 300, tokens.Uniswap)

	g.AddEdge(tokens.USDC, tokens.WETH, usdcWeth)
	g.AddEdge(tokens.WETH, tokens.ARB, wethArb)
	g.AddEdge(tokens.ARB, tokens.USDC, arbUsdc)

	edgeID := pricegraph.HashEdgeId(uint8(tokens.USDC), uint8(tokens.WETH), uint8(tokens.Uniswap), 300)
	_, err := g.UpdateEdgeIn(tokens.USDC, tokens.WETH, edgeID, big.NewInt(1))
	if err != nil {
		panic(err)
	}
	return g
}

func trianglePairs() []tokens.Pair {
	return []tokens.Pair{
		tokens.NewPairRaw(tokens.USDC, tokens.WETH, 300, tokens.Uniswap),
		tokens.NewPairRaw(tokens.WETH, tokens.ARB, 300, tokens.Uniswap),
		tokens.NewPairRaw(tokens.ARB, tokens.USDC, 300, tokens.Uniswap),
	}
}

func triangleStartSet() []StartPoint {
	pairs := trianglePairs()
	position := tokens.Position{Amount: big.NewInt(1_000_000_000), Token: tokens.USDC}
	return []StartPoint{{Position: position, Paths: pricegraph.FindPaths(tokens.USDC, pairs)}}
}

type fakePriceSyncer struct {
	ch        chan *pricegraph.PriceGraph
	nextGraph func(block uint64) *pricegraph.PriceGraph
	calls     []uint64
}

func newFakePriceSyncer() *fakePriceSyncer {
	return &fakePriceSyncer{ch: make(chan *pricegraph.PriceGraph, 5)}
}

func (f *fakePriceSyncer) RequestSync(ctx context.Context, block uint64) {
	f.calls = append(f.calls, block)
	if f.nextGraph == nil {
		return
	}
	if g := f.nextGraph(block); g != nil {
		f.ch <- g
	}
}

func (f *fakePriceSyncer) Graphs() <-chan *pricegraph.PriceGraph { return f.ch }

func testEngine(prices PriceSyncer, startSet []StartPoint, minProfit float64) (*Engine, chan orderservice.TradeRequest) {
	orderCh := make(chan orderservice.TradeRequest, 1)
	cfg := Config{Pools: router.NewPools(), StartSet: startSet, MinProfit: minProfit}
	e := New(nil, prices, orderCh, cfg, nil, testLogger())
	return e, orderCh
}

func heartbeatFrame() jsonrpcclient.FeedMessage {
	return jsonrpcclient.FeedMessage{SequenceNumber: 0}
}

func frameAtSequence(seq uint64, txs ...txdecoder.TransactionInfo) jsonrpcclient.FeedMessage {
	return jsonrpcclient.FeedMessage{SequenceNumber: seq, Transactions: txs}
}

func TestProcessFrameIgnoresHeartbeat(t *testing.T) {
	prices := newFakePriceSyncer()
	e, _ := testEngine(prices, nil, 0.001)
	e.syncing = false

	e.processFrame(context.Background(), heartbeatFrame())

	require.Empty(t, prices.calls)
	require.False(t, e.syncing)
}

func TestProcessFrameWhileSyncingWaitsForCatchUp(t *testing.T) {
	prices := newFakePriceSyncer()
	e, _ := testEngine(prices, nil, 0.001)
	e.syncing = true
	e.lastPriceBlock = jsonrpcclient.FeedMessage{SequenceNumber: 50}.BlockNumber()

	frame := frameAtSequence(10) // derives to a block well behind lastPriceBlock
	e.processFrame(context.Background(), frame)

	require.True(t, e.syncing, "still catching up, must not leave syncing early")
	require.Empty(t, prices.calls, "must not request a sync for a block we're still behind")
}

func TestProcessFrameWhileSyncingCatchesUpAndRequestsSync(t *testing.T) {
	prices := newFakePriceSyncer()
	e, _ := testEngine(prices, nil, 0.001)
	e.syncing = true

	frame := frameAtSequence(50)
	e.processFrame(context.Background(), frame)

	require.False(t, e.syncing)
	require.Equal(t, []uint64{frame.BlockNumber()}, prices.calls)
}

func TestProcessFramePriceFetchFailureReentersSyncing(t *testing.T) {
	prices := newFakePriceSyncer()
	prices.nextGraph = func(block uint64) *pricegraph.PriceGraph { return nil } // fetch failed
	e, _ := testEngine(prices, nil, 0.001)
	e.syncing = false

	frame := frameAtSequence(50)
	e.processFrame(context.Background(), frame)

	require.True(t, e.syncing)
}

func TestProcessFrameAppliesSimulationAndDispatchesArb(t *testing.T) {
	prices := newFakePriceSyncer()
	prices.nextGraph = func(block uint64) *pricegraph.PriceGraph { return triangleGraph() }
	e, orderCh := testEngine(prices, triangleStartSet(), 0.001)
	e.syncing = false

	frame := frameAtSequence(50)
	e.processFrame(context.Background(), frame)

	require.False(t, e.syncing)
	select {
	case req := <-orderCh:
		require.Equal(t, 0, req.AmountIn.Cmp(big.NewInt(1_000_000_000)))
		require.Equal(t, uint8(tokens.USDC), req.Trade.Path[0].TokenIn)
	default:
		t.Fatal("expected a trade request to be dispatched")
	}
}

func TestProcessFrameNoProfitNoDispatch(t *testing.T) {
	prices := newFakePriceSyncer()
	prices.nextGraph = func(block uint64) *pricegraph.PriceGraph {
		g := pricegraph.Empty()
		g.Reset(block)
		edge := pricegraph.NewV2Edge(bn("3000000000000"), bn("1000000000000000000000"), 300, tokens.Uniswap)
		g.AddEdge(tokens.USDC, tokens.WETH, edge)
		edgeID := pricegraph.HashEdgeId(uint8(tokens.USDC), uint8(tokens.WETH), uint8(tokens.Uniswap), 300)
		g.UpdateEdgeIn(tokens.USDC, tokens.WETH, edgeID, big.NewInt(1))
		return g
	}
	pairs := []tokens.Pair{tokens.NewPairRaw(tokens.USDC, tokens.WETH, 300, tokens.Uniswap)}
	startSet := []StartPoint{{
		Position: tokens.Position{Amount: big.NewInt(1_000_000_000), Token: tokens.USDC},
		Paths:    pricegraph.FindPaths(tokens.USDC, pairs),
	}}
	e, orderCh := testEngine(prices, startSet, 0.001)
	e.syncing = false

	e.processFrame(context.Background(), frameAtSequence(50))

	select {
	case req := <-orderCh:
		t.Fatalf("expected no dispatch for an unprofitable round trip, got %+v", req)
	default:
	}
}

func TestProcessFrameSkippedSimulationReentersSyncing(t *testing.T) {
	prices := newFakePriceSyncer()
	prices.nextGraph = func(block uint64) *pricegraph.PriceGraph { return triangleGraph() }
	e, orderCh := testEngine(prices, triangleStartSet(), 0.001)
	e.syncing = false

	// A 0x transformERC20 call whose transformations offset points past the
	// end of its calldata cannot be decoded, which marks the batch skipped.
	zeroExTransformERC20 := []byte{0x41, 0x55, 0x65, 0xb0}
	args := make([]byte, 5*32)
	args[5*32-1] = 0xff // transformations offset = 255 > len(args)
	tx := txdecoder.TransactionInfo{
		To:    router.ZeroExRouterAddress,
		Value: big.NewInt(0),
		Input: append(zeroExTransformERC20, args...),
	}

	e.processFrame(context.Background(), frameAtSequence(50, tx))

	require.True(t, e.syncing)
	select {
	case req := <-orderCh:
		t.Fatalf("expected no dispatch for a skipped batch, got %+v", req)
	default:
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	feedCh := make(chan jsonrpcclient.FeedMessage)
	errCh := make(chan error)
	e := New(testFeed{messages: feedCh, errs: errCh}, newFakePriceSyncer(), make(chan orderservice.TradeRequest, 1), Config{Pools: router.NewPools()}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

type testFeed struct {
	messages chan jsonrpcclient.FeedMessage
	errs     chan error
}

func (f testFeed) Messages() <-chan jsonrpcclient.FeedMessage { return f.messages }
func (f testFeed) Err() <-chan error                          { return f.errs }
