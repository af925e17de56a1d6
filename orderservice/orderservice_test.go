package orderservice

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/fulcrumlabs/sequencer-arb/pricegraph"
)

func testLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPrivateKey(t *testing.T) *ecdsa.PrivateKey {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	return pk
}

func TestNewAppliesEndpointDefaults(t *testing.T) {
	pk := testPrivateKey(t)
	svc := New(nil, Config{
		PrivateKey:      pk,
		ChainID:         big.NewInt(42161),
		ContractAddress: common.HexToAddress("0xaaaa"),
	}, testLogger())

	require.Equal(t, []string{defaultSequencerURL, defaultFullNodeURL}, svc.endpoints)
	require.Equal(t, uint64(defaultBaseFeePerGas), svc.MaxFeePerGas())
	require.Equal(t, crypto.PubkeyToAddress(pk.PublicKey), svc.address)
}

func TestBuildCalldataEncodesSelectorAndWords(t *testing.T) {
	amountIn := big.NewInt(10_000000)
	payload := big.NewInt(12345)

	data := buildCalldata(amountIn, payload)
	require.Len(t, data, 4+32+32)
	require.Equal(t, flashSwapSelector, data[:4])
	require.Equal(t, amountIn, new(big.Int).SetBytes(data[4:36]))
	require.Equal(t, payload, new(big.Int).SetBytes(data[36:68]))
}

func TestFlashSwapDryRunDoesNotSubmit(t *testing.T) {
	pk := testPrivateKey(t)
	svc := New(nil, Config{
		PrivateKey:      pk,
		ChainID:         big.NewInt(42161),
		ContractAddress: common.HexToAddress("0xaaaa"),
		DryRun:          true,
	}, testLogger())

	trade := pricegraph.CompositeTrade{Path: [3]pricegraph.Trade{
		{TokenIn: 1, TokenOut: 2, FeeTier: 500, ExchangeID: 1},
		{TokenIn: 2, TokenOut: 1, FeeTier: 3000, ExchangeID: 1},
		{},
	}}

	hash, err := svc.flashSwap(context.Background(), 0, big.NewInt(10_000000), trade)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, hash)
	require.Equal(t, inflightNone, svc.inflight.state)
}

type fakeReceiptAPI struct{}

func (fakeReceiptAPI) GetTransactionReceipt(txHash common.Hash) (map[string]any, error) {
	return nil, nil // not yet mined
}

func newReceiptPollingClient(t *testing.T) *rpc.Client {
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", fakeReceiptAPI{}))
	client := rpc.DialInProc(server)
	t.Cleanup(client.Close)
	return client
}

func newSubmitServer(t *testing.T, txHash common.Hash) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"id":1337,"jsonrpc":"2.0","result":"%s"}`, txHash.Hex())
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFlashSwapSubmitsThenReportsBusy(t *testing.T) {
	wantHash := common.HexToHash("0xd5ac65792636f33afecfb829a42497c7062ee846b4e9bb16da7ddd67a8035b4")
	server := newSubmitServer(t, wantHash)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pk := testPrivateKey(t)
	svc := New(newReceiptPollingClient(t), Config{
		PrivateKey:      pk,
		ChainID:         big.NewInt(42161),
		ContractAddress: common.HexToAddress("0xaaaa"),
		SequencerURL:    server.URL,
		FullNodeURL:     server.URL,
	}, testLogger())

	trade := pricegraph.CompositeTrade{}
	hash, err := svc.flashSwap(ctx, 0, big.NewInt(1), trade)
	require.NoError(t, err)
	require.Equal(t, wantHash, hash)
	require.Equal(t, inflightReceived, svc.inflight.state)

	_, err = svc.flashSwap(ctx, 1, big.NewInt(1), trade)
	require.ErrorIs(t, err, ErrBusy)
}

func TestFlashSwapAllowsResubmitAfterStaleness(t *testing.T) {
	wantHash := common.HexToHash("0xd5ac65792636f33afecfb829a42497c7062ee846b4e9bb16da7ddd67a8035b4")
	server := newSubmitServer(t, wantHash)

	pk := testPrivateKey(t)
	svc := New(newReceiptPollingClient(t), Config{
		PrivateKey:      pk,
		ChainID:         big.NewInt(42161),
		ContractAddress: common.HexToAddress("0xaaaa"),
		SequencerURL:    server.URL,
		FullNodeURL:     server.URL,
	}, testLogger())

	svc.inflight = inflightGuard{state: inflightSubmitted, submittedAt: time.Now().Add(-3 * time.Second)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hash, err := svc.flashSwap(ctx, 5, big.NewInt(1), pricegraph.CompositeTrade{})
	require.NoError(t, err)
	require.Equal(t, wantHash, hash)
}

type fakeSyncAPI struct {
	nonce   hexutil.Uint64
	baseFee string
}

func (a fakeSyncAPI) GetTransactionCount(address common.Address, blockTag string) (hexutil.Uint64, error) {
	return a.nonce, nil
}

func (a fakeSyncAPI) GetBlockByNumber(blockTag string, fullTx bool) (map[string]any, error) {
	if a.baseFee == "" {
		return map[string]any{}, nil
	}
	return map[string]any{"baseFeePerGas": a.baseFee}, nil
}

func newSyncClient(t *testing.T, api *fakeSyncAPI) *rpc.Client {
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", api))
	client := rpc.DialInProc(server)
	t.Cleanup(client.Close)
	return client
}

func TestSyncBaseFeeDoublesBlockBaseFee(t *testing.T) {
	client := newSyncClient(t, &fakeSyncAPI{baseFee: "0x3b9aca00"}) // 1_000_000_000

	pk := testPrivateKey(t)
	svc := New(client, Config{
		PrivateKey:      pk,
		ChainID:         big.NewInt(42161),
		ContractAddress: common.HexToAddress("0xaaaa"),
	}, testLogger())

	require.NoError(t, svc.SyncBaseFee(context.Background()))
	require.Equal(t, uint64(2_000_000_000), svc.MaxFeePerGas())
}

func TestSyncBaseFeeFallsBackWhenMissing(t *testing.T) {
	client := newSyncClient(t, &fakeSyncAPI{})

	pk := testPrivateKey(t)
	svc := New(client, Config{
		PrivateKey:      pk,
		ChainID:         big.NewInt(42161),
		ContractAddress: common.HexToAddress("0xaaaa"),
	}, testLogger())

	require.NoError(t, svc.SyncBaseFee(context.Background()))
	require.Equal(t, uint64(defaultBaseFeePerGas), svc.MaxFeePerGas())
}

func TestStartFetchesNonceAndDrainsTrades(t *testing.T) {
	wantHash := common.HexToHash("0xd5ac65792636f33afecfb829a42497c7062ee846b4e9bb16da7ddd67a8035b4")
	submitServer := newSubmitServer(t, wantHash)

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", struct {
		fakeSyncAPI
		fakeReceiptAPI
	}{fakeSyncAPI{nonce: 5}, fakeReceiptAPI{}}))
	client := rpc.DialInProc(server)
	t.Cleanup(client.Close)

	pk := testPrivateKey(t)
	svc := New(client, Config{
		PrivateKey:      pk,
		ChainID:         big.NewInt(42161),
		ContractAddress: common.HexToAddress("0xaaaa"),
		SequencerURL:    submitServer.URL,
		FullNodeURL:     submitServer.URL,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tradeCh, err := svc.Start(ctx)
	require.NoError(t, err)

	tradeCh <- TradeRequest{AmountIn: big.NewInt(1), Trade: pricegraph.CompositeTrade{}}
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return svc.inflight.state == inflightReceived
	}, time.Second, 10*time.Millisecond)
}
