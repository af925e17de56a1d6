// Package orderservice builds, signs, and races the execution transaction
// for a found arbitrage trade across the sequencer and public RPC endpoints,
// per spec section 4.9.
package orderservice

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fulcrumlabs/sequencer-arb/pricegraph"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

const (
	defaultSequencerURL = "https://arb1-sequencer.arbitrum.io/rpc"
	defaultFullNodeURL  = "https://arb1.arbitrum.io/rpc"

	// httpKeepAlive bounds how long idle submission connections are kept
	// open; warmConnections re-pings slightly before this to avoid paying
	// a fresh TLS handshake on the critical path.
	httpKeepAlive = 10 * time.Second

	defaultBaseFeePerGas = 200_000_000

	// gasLimit is a fixed local estimate (foundry gas report + 100% margin),
	// not fetched per transaction.
	gasLimit = (613_827 + 50_124) * 2

	// staleInflight is how long a submitted-but-unconfirmed order blocks new
	// submissions before it is assumed lost and cleared.
	staleInflight = 2 * time.Second
)

var flashSwapSelector = crypto.Keccak256([]byte("flashSwap(uint128,uint128)"))[:4]

var (
	ErrBusy             = errors.New("orderservice: an order is already inflight")
	ErrTxSigning        = errors.New("orderservice: failed to sign order transaction")
	ErrTxSubmit         = errors.New("orderservice: failed to submit order transaction")
	ErrTxSubmitResponse = errors.New("orderservice: failed to decode submit response")
)

type inflightState uint8

const (
	inflightNone inflightState = iota
	inflightSubmitted
	inflightReceived
)

type inflightGuard struct {
	state       inflightState
	submittedAt time.Time
	txHash      common.Hash
}

// TradeRequest is one arbitrage opportunity queued for execution.
type TradeRequest struct {
	AmountIn *big.Int
	Trade    pricegraph.CompositeTrade
}

// Config configures an OrderService.
type Config struct {
	PrivateKey      *ecdsa.PrivateKey
	ChainID         *big.Int
	ContractAddress common.Address
	// SequencerURL and FullNodeURL default to Arbitrum One's public
	// endpoints; both are raced on every submission.
	SequencerURL string
	FullNodeURL  string
	// DryRun builds and signs orders but never submits them.
	DryRun bool
}

// OrderService builds, signs, and submits flashSwap execution transactions.
type OrderService struct {
	rpcClient  *rpc.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	contract   common.Address
	endpoints  []string
	httpClient *http.Client
	dryRun     bool
	logger     Logger

	maxFeePerGas uint64 // atomic

	mu       sync.Mutex
	inflight inflightGuard
}

// New builds an OrderService over rpcClient, which it does not own.
func New(rpcClient *rpc.Client, cfg Config, logger Logger) *OrderService {
	sequencerURL := cfg.SequencerURL
	if sequencerURL == "" {
		sequencerURL = defaultSequencerURL
	}
	fullNodeURL := cfg.FullNodeURL
	if fullNodeURL == "" {
		fullNodeURL = defaultFullNodeURL
	}

	return &OrderService{
		rpcClient:  rpcClient,
		privateKey: cfg.PrivateKey,
		address:    crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		chainID:    cfg.ChainID,
		contract:   cfg.ContractAddress,
		endpoints:  []string{sequencerURL, fullNodeURL},
		httpClient: &http.Client{
			Transport: &http.Transport{
				IdleConnTimeout:     httpKeepAlive,
				MaxIdleConnsPerHost: 2,
			},
		},
		dryRun:       cfg.DryRun,
		logger:       logger,
		maxFeePerGas: defaultBaseFeePerGas,
	}
}

// MaxFeePerGas returns the gas price most recently synced via SyncBaseFee.
func (s *OrderService) MaxFeePerGas() uint64 {
	return atomic.LoadUint64(&s.maxFeePerGas)
}

// SyncBaseFee refreshes the gas price used for new orders from the latest
// block's base fee, doubled to remain valid for a handful of blocks.
// Arbitrum does not price a separate priority fee, so this is the only gas
// parameter that needs syncing.
func (s *OrderService) SyncBaseFee(ctx context.Context) error {
	t0 := time.Now()
	var block struct {
		BaseFeePerGas *hexutil.Big `json:"baseFeePerGas"`
	}
	if err := s.rpcClient.CallContext(ctx, &block, "eth_getBlockByNumber", "latest", false); err != nil {
		atomic.StoreUint64(&s.maxFeePerGas, defaultBaseFeePerGas)
		return err
	}
	if block.BaseFeePerGas == nil {
		atomic.StoreUint64(&s.maxFeePerGas, defaultBaseFeePerGas)
		return nil
	}
	baseFee := new(big.Int).Mul((*big.Int)(block.BaseFeePerGas), big.NewInt(2))
	atomic.StoreUint64(&s.maxFeePerGas, baseFee.Uint64())
	s.logger.Debug("updated order gas price", "max_fee_per_gas", baseFee.Uint64(), "elapsed", time.Since(t0))
	return nil
}

// Start fetches the current account nonce and returns a channel the caller
// feeds TradeRequests into. Orders are built, signed, and submitted serially
// off the returned goroutine; a periodic tick keeps the submission HTTP
// connections warm between trades.
func (s *OrderService) Start(ctx context.Context) (chan<- TradeRequest, error) {
	nonce, err := s.fetchNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("orderservice: fetch nonce: %w", err)
	}
	s.logger.Info("order service starting", "account", s.address, "nonce", nonce)

	tradeCh := make(chan TradeRequest, 5)
	warmTicker := time.NewTicker(httpKeepAlive - 5*time.Second)

	go func() {
		defer warmTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case req, ok := <-tradeCh:
				if !ok {
					return
				}
				txHash, err := s.flashSwap(ctx, nonce, req.AmountIn, req.Trade)
				switch {
				case err == nil:
					s.logger.Debug("flash swap submitted", "nonce", nonce, "hash", txHash)
					nonce++
				case errors.Is(err, ErrBusy):
					s.logger.Info("order already inflight, dropping trade", "nonce", nonce)
				default:
					// Mirrors the reference engine: the nonce still advances
					// on a submit/signing failure, since the tx may have
					// reached one of the two endpoints regardless of the
					// error returned to this call.
					s.logger.Error("flash swap failed", "nonce", nonce, "error", err)
					nonce++
				}
			case <-warmTicker.C:
				s.warmConnections()
			}
		}
	}()

	return tradeCh, nil
}

func (s *OrderService) fetchNonce(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := s.rpcClient.CallContext(ctx, &result, "eth_getTransactionCount", s.address, "latest"); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

// warmConnections keeps the two submission endpoints' connections alive with
// a cheap eth_chainId request, run off the critical path.
func (s *OrderService) warmConnections() {
	go func() {
		t0 := time.Now()
		var wg sync.WaitGroup
		wg.Add(len(s.endpoints))
		for _, url := range s.endpoints {
			url := url
			go func() {
				defer wg.Done()
				req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(
					`{"id":1,"jsonrpc":"2.0","method":"eth_chainId","params":[]}`))
				if err != nil {
					s.logger.Error("warm conn request build failed", "url", url, "error", err)
					return
				}
				req.Header.Set("Content-Type", "application/json")
				resp, err := s.httpClient.Do(req)
				if err != nil {
					s.logger.Error("warm conn failed", "url", url, "error", err)
					return
				}
				resp.Body.Close()
			}()
		}
		wg.Wait()
		s.logger.Debug("warmed order connections", "elapsed", time.Since(t0))
	}()
}

// buildTx constructs the unsigned flashSwap transaction for nonce.
func (s *OrderService) buildTx(nonce uint64, amountIn *big.Int, trade pricegraph.CompositeTrade) *types.Transaction {
	data := buildCalldata(amountIn, buildPayload(trade))
	contract := s.contract

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: big.NewInt(0),
		GasFeeCap: new(big.Int).SetUint64(s.MaxFeePerGas()),
		Gas:       gasLimit,
		To:        &contract,
		Value:     big.NewInt(0),
		Data:      data,
	})
}

// buildCalldata ABI-encodes flashSwap(uint128 amountIn, uint128 payload): a
// runtime-computed 4-byte selector followed by the two left-padded words.
func buildCalldata(amountIn, payload *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, flashSwapSelector...)
	data = append(data, leftPad32(amountIn)...)
	data = append(data, leftPad32(payload)...)
	return data
}

func leftPad32(v *big.Int) []byte {
	word := make([]byte, 32)
	v.FillBytes(word)
	return word
}

// flashSwap builds, signs, and races the execution transaction for trade,
// refusing to submit while a prior order is inflight and not yet stale.
func (s *OrderService) flashSwap(ctx context.Context, nonce uint64, amountIn *big.Int, trade pricegraph.CompositeTrade) (common.Hash, error) {
	t0 := time.Now()

	s.mu.Lock()
	switch s.inflight.state {
	case inflightSubmitted:
		if t0.Sub(s.inflight.submittedAt) < staleInflight {
			s.mu.Unlock()
			return common.Hash{}, ErrBusy
		}
		s.logger.Debug("removing stale inflight order")
		s.inflight = inflightGuard{}
	case inflightReceived:
		s.mu.Unlock()
		return common.Hash{}, ErrBusy
	}
	s.mu.Unlock()

	tx := s.buildTx(nonce, amountIn, trade)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrTxSigning, err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrTxSigning, err)
	}
	request := buildSendRawTxJSON(raw)

	if s.dryRun {
		s.logger.Info("built order tx", "nonce", nonce, "elapsed", time.Since(t0))
		s.logger.Debug("dry run request", "body", request)
		return common.Hash{}, nil
	}

	s.mu.Lock()
	s.inflight = inflightGuard{state: inflightSubmitted, submittedAt: t0}
	s.mu.Unlock()

	txHash, err := s.submitRace(ctx, request)
	s.logger.Info("sent order tx", "nonce", nonce, "elapsed", time.Since(t0))
	if err != nil {
		return common.Hash{}, err
	}

	s.mu.Lock()
	s.inflight = inflightGuard{state: inflightReceived, txHash: txHash}
	s.mu.Unlock()

	s.logger.Debug("watching order tx", "hash", txHash)
	go s.awaitInclusion(ctx, txHash)
	return txHash, nil
}

// submitRace posts request to every configured endpoint concurrently and
// returns the first success, mirroring the reference engine's select_ok
// behavior over the sequencer and public RPC endpoints.
func (s *OrderService) submitRace(ctx context.Context, request string) (common.Hash, error) {
	type result struct {
		hash common.Hash
		err  error
	}
	resCh := make(chan result, len(s.endpoints))
	for _, url := range s.endpoints {
		url := url
		go func() {
			hash, err := s.postSendRawTx(ctx, url, request)
			resCh <- result{hash, err}
		}()
	}

	var lastErr error
	for range s.endpoints {
		r := <-resCh
		if r.err == nil {
			return r.hash, nil
		}
		lastErr = r.err
	}
	return common.Hash{}, fmt.Errorf("%w: %v", ErrTxSubmit, lastErr)
}

func (s *OrderService) postSendRawTx(ctx context.Context, url, body string) (common.Hash, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return common.Hash{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return common.Hash{}, err
	}
	defer resp.Body.Close()

	var decoded struct {
		Result string `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrTxSubmitResponse, err)
	}
	if decoded.Error != nil {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrTxSubmitResponse, decoded.Error.Message)
	}
	return common.HexToHash(decoded.Result), nil
}

// buildSendRawTxJSON encodes an eth_sendRawTransaction JSON-RPC request body
// for the signed, RLP/typed-encoded transaction bytes in raw.
func buildSendRawTxJSON(raw []byte) string {
	return fmt.Sprintf(`{"id":1337,"jsonrpc":"2.0","method":"eth_sendRawTransaction","params":["0x%s"]}`, hex.EncodeToString(raw))
}

// awaitInclusion polls for the transaction receipt and clears the inflight
// guard once it lands, off the critical submission path.
func (s *OrderService) awaitInclusion(ctx context.Context, txHash common.Hash) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var receipt map[string]any
			if err := s.rpcClient.CallContext(ctx, &receipt, "eth_getTransactionReceipt", txHash); err != nil {
				s.logger.Error("order tx inclusion check failed", "hash", txHash, "error", err)
				continue
			}
			if receipt != nil {
				s.logger.Debug("order tx included", "hash", txHash)
				s.mu.Lock()
				s.inflight = inflightGuard{}
				s.mu.Unlock()
				return
			}
		}
	}
}
