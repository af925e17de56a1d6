// Package engine drives the per-batch arbitrage pipeline: it consumes
// decoded sequencer feed frames, keeps a TradeSimulator's PriceGraph in sync
// with the price service, searches the configured start-set for the best
// arbitrage cycle, and dispatches profitable trades to the OrderService, per
// spec section 4.9.
package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fulcrumlabs/sequencer-arb/orderservice"
	"github.com/fulcrumlabs/sequencer-arb/pricegraph"
	"github.com/fulcrumlabs/sequencer-arb/router"
	"github.com/fulcrumlabs/sequencer-arb/simulator"
	jsonrpcclient "github.com/fulcrumlabs/sequencer-arb/streams/jsonrpc/client"
	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Feed is the decoded sequencer feed the engine consumes. *jsonrpcclient.Client
// satisfies this.
type Feed interface {
	Messages() <-chan jsonrpcclient.FeedMessage
	Err() <-chan error
}

// PriceSyncer fetches PriceGraph snapshots on demand and delivers them over a
// bounded channel. *priceservice.PriceService satisfies this.
type PriceSyncer interface {
	RequestSync(ctx context.Context, block uint64)
	Graphs() <-chan *pricegraph.PriceGraph
}

// StartPoint is one entry of the configured start-set: a sized position to
// begin a search from, paired with every precomputed cycle back to its token.
type StartPoint struct {
	Position tokens.Position
	Paths    []pricegraph.Path
}

// Config configures an Engine.
type Config struct {
	Pools     *router.Pools
	StartSet  []StartPoint
	MinProfit float64
}

// Engine runs the single-task batch pipeline of spec section 4.9.
type Engine struct {
	feed     Feed
	prices   PriceSyncer
	orderCh  chan<- orderservice.TradeRequest
	pools    *router.Pools
	startSet []StartPoint
	minRatio *big.Float
	log      Logger

	syncing        bool
	lastPriceBlock uint64

	batchLatency   prometheus.Histogram
	skippedBatches prometheus.Counter
	arbsFound      prometheus.Counter
}

// New builds an Engine. orderCh is the channel returned by an
// OrderService's Start; the Engine does not own its lifecycle.
func New(feed Feed, prices PriceSyncer, orderCh chan<- orderservice.TradeRequest, cfg Config, registry prometheus.Registerer, log Logger) *Engine {
	minRatio := new(big.Float).Add(big.NewFloat(1), big.NewFloat(cfg.MinProfit))

	e := &Engine{
		feed:     feed,
		prices:   prices,
		orderCh:  orderCh,
		pools:    cfg.Pools,
		startSet: cfg.StartSet,
		minRatio: minRatio,
		log:      log,
		syncing:  true,

		batchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sequencer_arb_batch_latency_seconds",
			Help:    "Time spent processing one sequencer feed batch.",
			Buckets: prometheus.DefBuckets,
		}),
		skippedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_arb_batches_skipped_total",
			Help: "Batches whose simulated PriceGraph could not be trusted.",
		}),
		arbsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_arb_arbs_found_total",
			Help: "Batches for which a profitable arbitrage trade was dispatched.",
		}),
	}
	if registry != nil {
		registry.MustRegister(e.batchLatency, e.skippedBatches, e.arbsFound)
	}
	return e
}

// Run drives the loop until ctx is canceled or the feed reports a fatal
// error.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-e.feed.Err():
			return err
		case frame, ok := <-e.feed.Messages():
			if !ok {
				return nil
			}
			e.processFrame(ctx, frame)
		}
	}
}

// processFrame runs one iteration of the per-batch algorithm.
func (e *Engine) processFrame(ctx context.Context, frame jsonrpcclient.FeedMessage) {
	start := time.Now()
	defer func() { e.batchLatency.Observe(time.Since(start).Seconds()) }()

	block := frame.BlockNumber()
	if block == 0 {
		return // feed heartbeat
	}

	if e.syncing {
		e.drainQueuedGraphs()
		if block <= e.lastPriceBlock {
			return // still catching up
		}
		e.prices.RequestSync(ctx, block)
		e.syncing = false
		return
	}

	e.prices.RequestSync(ctx, block)

	graph := e.receiveGraph()
	if graph == nil {
		e.log.Error("price sync failed, re-entering syncing state", "block", block)
		e.syncing = true
		return
	}
	e.lastPriceBlock = graph.BlockNumber()

	sim := simulator.NewTradeSimulator(graph, e.pools, e.log)
	for _, tx := range frame.Transactions {
		sim.WrangleTransaction(tx.To, tx.Input, tx.Value)
		if sim.Skipped() {
			break
		}
	}
	if sim.Skipped() {
		e.skippedBatches.Inc()
		e.syncing = true
		return
	}
	if !graph.Touched() {
		return
	}

	amount, trade := e.findBestArb(graph)
	if trade == nil {
		return
	}
	e.arbsFound.Inc()
	select {
	case e.orderCh <- orderservice.TradeRequest{AmountIn: amount, Trade: *trade}:
	case <-ctx.Done():
	}
}

// drainQueuedGraphs empties the price queue without blocking, advancing
// lastPriceBlock to the most recent snapshot seen while catching up.
func (e *Engine) drainQueuedGraphs() {
	for {
		select {
		case graph, ok := <-e.prices.Graphs():
			if !ok || graph == nil {
				return
			}
			e.lastPriceBlock = graph.BlockNumber()
		default:
			return
		}
	}
}

// receiveGraph takes the snapshot RequestSync was just asked to produce.
// RequestSync performs its fetch synchronously and only sends on success, so
// by the time it returns either the graph is already queued or the fetch
// failed and nothing ever will be: a non-blocking receive distinguishes the
// two without risking an indefinite block on a batch that can't be synced.
func (e *Engine) receiveGraph() *pricegraph.PriceGraph {
	select {
	case graph, ok := <-e.prices.Graphs():
		if !ok {
			return nil
		}
		return graph
	default:
		return nil
	}
}

// findBestArb searches every configured start position and retains the
// single best trade whose profit ratio strictly exceeds 1+min_profit,
// returning it with its start position's amount as the trade's input.
func (e *Engine) findBestArb(graph *pricegraph.PriceGraph) (*big.Int, *pricegraph.CompositeTrade) {
	var bestAmount *big.Int
	var bestTrade *pricegraph.CompositeTrade
	var bestRatio *big.Float

	for _, sp := range e.startSet {
		amountOut, trade, ok := graph.FindArb(sp.Position, sp.Paths)
		if !ok {
			continue
		}
		ratio := new(big.Float).Quo(new(big.Float).SetInt(amountOut), new(big.Float).SetInt(sp.Position.Amount))
		if ratio.Cmp(e.minRatio) <= 0 {
			continue
		}
		if bestRatio == nil || ratio.Cmp(bestRatio) > 0 {
			bestAmount, bestTrade, bestRatio = sp.Position.Amount, trade, ratio
		}
	}
	return bestAmount, bestTrade
}
