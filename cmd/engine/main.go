// Command engine runs the sequencer-arb engine: it tails the Arbitrum One
// sequencer feed, keeps a priced view of the configured pool universe, and
// dispatches signed flashSwap transactions for any cycle that clears the
// configured minimum profit, per spec section 6.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	engineconfig "github.com/fulcrumlabs/sequencer-arb/cmd/engine/config"
	"github.com/fulcrumlabs/sequencer-arb/engine"
	"github.com/fulcrumlabs/sequencer-arb/orderservice"
	"github.com/fulcrumlabs/sequencer-arb/priceservice"
	jsonrpcclient "github.com/fulcrumlabs/sequencer-arb/streams/jsonrpc/client"
)

// arbitrumOneChainID is the only chain this build's token mapping and signer
// support.
const arbitrumOneChainID = 42161

const feedBufferSize = 16

var (
	wsURL      string
	chainName  string
	configPath string
)

func main() {
	rootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	root := &cobra.Command{
		Use:   "engine",
		Short: "Sequencer-feed arbitrage engine for Arbitrum One",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			chainName = strings.ToLower(chainName)
			if chainName != "arbitrum" {
				return fmt.Errorf("unsupported chain %q (only \"arbitrum\" is supported)", chainName)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&wsURL, "ws", "", "JSON-RPC endpoint (HTTP or WS) for eth_call, nonce, base fee and receipt queries")
	root.PersistentFlags().StringVar(&chainName, "chain", "arbitrum", "token mapping corpus to use")
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the pool/position configuration file")
	root.MarkPersistentFlagRequired("ws")

	root.AddCommand(newPricesCmd(rootLogger))
	root.AddCommand(newRunCmd(rootLogger))

	if err := root.Execute(); err != nil {
		rootLogger.Error("engine exited with error", "error", err)
		os.Exit(1)
	}
}

func newPricesCmd(rootLogger *slog.Logger) *cobra.Command {
	var at uint64

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Fetch and print a priced snapshot of the configured pool universe at a block",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := rootLogger.With("component", "prices")

			cfg, err := engineconfig.Load(configPath)
			if err != nil {
				return err
			}

			rpcClient, err := rpc.DialContext(ctx, wsURL)
			if err != nil {
				return fmt.Errorf("dial %s: %w", wsURL, err)
			}
			defer rpcClient.Close()

			v3Pools, v2Pools, err := cfg.PriceServicePools()
			if err != nil {
				return err
			}
			if !common.IsHexAddress(cfg.ContractAddress) {
				return fmt.Errorf("config: invalid contract_address %q", cfg.ContractAddress)
			}

			svc := priceservice.New(rpcClient, priceservice.Config{
				ContractAddress: common.HexToAddress(cfg.ContractAddress),
				V3Pools:         v3Pools,
				V2Pools:         v2Pools,
			}, logger)

			graph, err := svc.Fetch(ctx, at)
			if err != nil {
				return fmt.Errorf("fetch pool data at block %d: %w", at, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), graph)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&at, "at", 0, "block number to fetch pool state at")
	cmd.MarkFlagRequired("at")
	return cmd
}

func newRunCmd(rootLogger *slog.Logger) *cobra.Command {
	var (
		executorFlag string
		minProfit    float64
		keyFlag      string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine loop against the live sequencer feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if minProfit <= 0 || minProfit > 1.0 {
				return fmt.Errorf("--min-profit must be in (0, 1.0], got %v", minProfit)
			}
			if !common.IsHexAddress(executorFlag) {
				return fmt.Errorf("--executor is not a valid address: %q", executorFlag)
			}
			if keyFlag != "" && dryRun {
				rootLogger.Warn("--key supplied with --dry-run; no transaction will be submitted")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := rootLogger.With("component", "engine")
			prometheusRegistry := prometheus.DefaultRegisterer

			cfg, err := engineconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !common.IsHexAddress(cfg.ContractAddress) {
				return fmt.Errorf("config: invalid contract_address %q", cfg.ContractAddress)
			}

			var privateKey *ecdsa.PrivateKey
			switch {
			case keyFlag != "":
				privateKey, err = parsePrivateKey(keyFlag)
				if err != nil {
					return fmt.Errorf("--key: %w", err)
				}
			case dryRun:
				// No signer configured; a throwaway key lets the OrderService
				// build and log a signed transaction it never submits.
				privateKey, err = crypto.GenerateKey()
				if err != nil {
					return fmt.Errorf("generate dry-run signing key: %w", err)
				}
			default:
				return fmt.Errorf("--key is required unless --dry-run is set")
			}

			rpcClient, err := rpc.DialContext(ctx, wsURL)
			if err != nil {
				return fmt.Errorf("dial %s: %w", wsURL, err)
			}
			defer rpcClient.Close()

			v3Pools, v2Pools, err := cfg.PriceServicePools()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			priceSvc := priceservice.New(rpcClient, priceservice.Config{
				ContractAddress: common.HexToAddress(cfg.ContractAddress),
				V3Pools:         v3Pools,
				V2Pools:         v2Pools,
			}, logger.With("component", "priceservice"))

			pools, err := cfg.RouterPools()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			startSet, err := cfg.StartSet()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			feed, err := jsonrpcclient.NewClient(ctx, jsonrpcclient.Config{
				URL:        jsonrpcclient.ArbitrumOneFeedURL,
				Logger:     logger.With("component", "feed"),
				BufferSize: feedBufferSize,
			})
			if err != nil {
				return fmt.Errorf("connect to sequencer feed: %w", err)
			}

			orderSvc := orderservice.New(rpcClient, orderservice.Config{
				PrivateKey:      privateKey,
				ChainID:         big.NewInt(arbitrumOneChainID),
				ContractAddress: common.HexToAddress(executorFlag),
				DryRun:          dryRun,
			}, logger.With("component", "orderservice"))

			orderCh, err := orderSvc.Start(ctx)
			if err != nil {
				return fmt.Errorf("start order service: %w", err)
			}

			eng := engine.New(feed, priceSvc, orderCh, engine.Config{
				Pools:     pools,
				StartSet:  startSet,
				MinProfit: minProfit,
			}, prometheusRegistry, logger)

			return eng.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&executorFlag, "executor", "", "address of the deployed flashSwap executor contract")
	cmd.Flags().Float64Var(&minProfit, "min-profit", 0.003, "minimum profit ratio required to dispatch a trade, e.g. 0.003 for 0.3%")
	cmd.Flags().StringVar(&keyFlag, "key", "", "hex-encoded signer private key, optional 0x prefix")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build and sign trades without submitting them")
	cmd.MarkFlagRequired("executor")
	return cmd
}

// parsePrivateKey accepts a hex private key with an optional "0x" prefix, in
// either case.
func parsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.ToLower(strings.TrimPrefix(raw, "0x"))
	return crypto.HexToECDSA(raw)
}
