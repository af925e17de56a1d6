// Package priceservice fetches a priced snapshot of the configured pool set
// via a single on-chain view call and delivers it to the engine as a fresh
// PriceGraph over a bounded channel, per spec section 4.7.
package priceservice

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/fulcrumlabs/sequencer-arb/pricegraph"
	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// headerNotAvailable is the JSON-RPC error code a node returns when the
// requested block hasn't been indexed yet; the fetch is worth one retry.
const headerNotAvailable = -32000

const v3PoolRecordLen = 20 + 16 // sqrtPriceX96, liquidity
const v2PoolRecordLen = 16 + 16 // reserve0, reserve1

// Pool is one pool the on-chain getPoolData view call is configured to quote.
// V3 pools always trade on Uniswap; V2 pools carry an explicit ExchangeID
// since several V2-style forks (Sushi, Camelot, ...) share the same ABI.
type Pool struct {
	Address    common.Address
	Token0     tokens.Token
	Token1     tokens.Token
	Fee        uint16
	ExchangeID tokens.ExchangeId
}

var getPoolDataSelector = crypto.Keccak256([]byte("getPoolData(bytes,bytes)"))[:4]

// PriceService builds the getPoolData calldata once from the configured pool
// list and serves fresh PriceGraph snapshots on demand.
type PriceService struct {
	rpcClient  *rpc.Client
	contract   common.Address
	v3Pools    []Pool
	v2Pools    []Pool
	v3Packed   []byte
	v2Packed   []byte
	retryDelay time.Duration
	logger     Logger

	graph   *pricegraph.PriceGraph
	graphCh chan *pricegraph.PriceGraph
}

// Config configures a PriceService.
type Config struct {
	ContractAddress common.Address
	V3Pools         []Pool
	V2Pools         []Pool
	// RetryDelay is how long to wait before retrying a call that failed with
	// "header not yet available"; spec.md §4.7 defaults to 10ms in production.
	RetryDelay time.Duration
}

// New builds a PriceService over rpcClient, which it does not own.
func New(rpcClient *rpc.Client, cfg Config, logger Logger) *PriceService {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 10 * time.Millisecond
	}

	v3Packed := make([]byte, 0, len(cfg.V3Pools)*common.AddressLength)
	for _, p := range cfg.V3Pools {
		v3Packed = append(v3Packed, p.Address.Bytes()...)
	}
	v2Packed := make([]byte, 0, len(cfg.V2Pools)*common.AddressLength)
	for _, p := range cfg.V2Pools {
		v2Packed = append(v2Packed, p.Address.Bytes()...)
	}

	return &PriceService{
		rpcClient:  rpcClient,
		contract:   cfg.ContractAddress,
		v3Pools:    cfg.V3Pools,
		v2Pools:    cfg.V2Pools,
		v3Packed:   v3Packed,
		v2Packed:   v2Packed,
		retryDelay: retryDelay,
		logger:     logger,
		graph:      pricegraph.Empty(),
		graphCh:    make(chan *pricegraph.PriceGraph, 5),
	}
}

// Graphs returns the bounded channel PriceGraph snapshots are delivered on.
func (s *PriceService) Graphs() <-chan *pricegraph.PriceGraph {
	return s.graphCh
}

// RequestSync fetches the pool state as of block and pushes the rebuilt graph
// onto Graphs(). On failure, it logs and does not send, leaving the caller to
// re-enter its syncing state.
func (s *PriceService) RequestSync(ctx context.Context, block uint64) {
	graph, err := s.Fetch(ctx, block)
	if err != nil {
		s.logger.Error("price service fetch failed", "block", block, "error", err)
		return
	}
	s.graphCh <- graph
}

// Fetch performs the eth_call for block, retrying once on "header not yet
// available", and returns a freshly populated PriceGraph.
func (s *PriceService) Fetch(ctx context.Context, block uint64) (*pricegraph.PriceGraph, error) {
	raw, err := s.call(ctx, block)
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == headerNotAvailable {
			time.Sleep(s.retryDelay)
			raw, err = s.call(ctx, block)
		}
		if err != nil {
			return nil, err
		}
	}

	v3Data, v2Data, err := decodeTwoBytesReturn(raw)
	if err != nil {
		return nil, fmt.Errorf("priceservice: malformed getPoolData return: %w", err)
	}
	if len(v3Data) != len(s.v3Pools)*v3PoolRecordLen {
		return nil, fmt.Errorf("priceservice: v3 data length %d, want %d", len(v3Data), len(s.v3Pools)*v3PoolRecordLen)
	}
	if len(v2Data) != len(s.v2Pools)*v2PoolRecordLen {
		return nil, fmt.Errorf("priceservice: v2 data length %d, want %d", len(v2Data), len(s.v2Pools)*v2PoolRecordLen)
	}

	s.graph.Reset(block)
	for i, pool := range s.v3Pools {
		rec := v3Data[i*v3PoolRecordLen : (i+1)*v3PoolRecordLen]
		sqrtP := new(uint256.Int).SetBytes(rec[:20])
		liquidity := new(uint256.Int).SetBytes(rec[20:])
		edge := pricegraph.NewV3Edge(sqrtP, liquidity, pool.Fee, true)
		s.graph.AddEdge(pool.Token0, pool.Token1, edge)
	}
	for i, pool := range s.v2Pools {
		rec := v2Data[i*v2PoolRecordLen : (i+1)*v2PoolRecordLen]
		reserve0 := new(big.Int).SetBytes(rec[:16])
		reserve1 := new(big.Int).SetBytes(rec[16:])
		edge := pricegraph.NewV2Edge(reserve0, reserve1, pool.Fee, pool.ExchangeID)
		s.graph.AddEdge(pool.Token0, pool.Token1, edge)
	}
	return s.graph, nil
}

func (s *PriceService) call(ctx context.Context, block uint64) ([]byte, error) {
	calldata := buildCalldata(s.v3Packed, s.v2Packed)

	callArgs := map[string]any{
		"to":   s.contract,
		"data": "0x" + hex.EncodeToString(calldata),
	}
	blockTag := "0x" + strconvUint64Hex(block)

	var resultHex string
	if err := s.rpcClient.CallContext(ctx, &resultHex, "eth_call", callArgs, blockTag); err != nil {
		return nil, err
	}
	return decodeHexResult(resultHex)
}

// buildCalldata ABI-encodes getPoolData(bytes v3Pools, bytes v2Pools): a
// 4-byte selector followed by a static 2-word offset head and two
// length-prefixed, 32-byte-padded dynamic bodies.
func buildCalldata(v3Packed, v2Packed []byte) []byte {
	var buf []byte
	buf = append(buf, getPoolDataSelector...)

	headOffset1 := uint64(64)
	headOffset2 := headOffset1 + 32 + paddedLen(len(v3Packed))

	buf = append(buf, leftPadUint64(headOffset1)...)
	buf = append(buf, leftPadUint64(headOffset2)...)
	buf = append(buf, encodeDynBytes(v3Packed)...)
	buf = append(buf, encodeDynBytes(v2Packed)...)
	return buf
}

func paddedLen(n int) uint64 {
	if n%32 == 0 {
		return uint64(n)
	}
	return uint64(n + 32 - n%32)
}

func encodeDynBytes(data []byte) []byte {
	out := leftPadUint64(uint64(len(data)))
	out = append(out, data...)
	if pad := paddedLen(len(data)) - uint64(len(data)); pad > 0 {
		out = append(out, make([]byte, pad)...)
	}
	return out
}

func leftPadUint64(v uint64) []byte {
	word := make([]byte, 32)
	big.NewInt(0).SetUint64(v).FillBytes(word)
	return word
}

func strconvUint64Hex(v uint64) string {
	return fmt.Sprintf("%x", v)
}

func decodeHexResult(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

var errShortReturnData = errors.New("priceservice: return data too short")

// decodeTwoBytesReturn decodes the ABI encoding of (bytes, bytes): two head
// offset words followed by length-prefixed, 32-byte-padded bodies.
func decodeTwoBytesReturn(data []byte) (v3Data, v2Data []byte, err error) {
	if len(data) < 64 {
		return nil, nil, errShortReturnData
	}
	off1 := new(big.Int).SetBytes(data[0:32]).Uint64()
	off2 := new(big.Int).SetBytes(data[32:64]).Uint64()

	v3Data, err = readDynBytes(data, off1)
	if err != nil {
		return nil, nil, err
	}
	v2Data, err = readDynBytes(data, off2)
	if err != nil {
		return nil, nil, err
	}
	return v3Data, v2Data, nil
}

func readDynBytes(data []byte, offset uint64) ([]byte, error) {
	if offset+32 > uint64(len(data)) {
		return nil, errShortReturnData
	}
	length := new(big.Int).SetBytes(data[offset : offset+32]).Uint64()
	start := offset + 32
	if start+length > uint64(len(data)) {
		return nil, errShortReturnData
	}
	return data[start : start+length], nil
}
