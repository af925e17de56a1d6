// Package config loads the YAML file describing the engine's pool universe,
// start-set, and wire endpoints, and resolves it into the concrete types the
// engine's components expect.
package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/fulcrumlabs/sequencer-arb/engine"
	"github.com/fulcrumlabs/sequencer-arb/pricegraph"
	"github.com/fulcrumlabs/sequencer-arb/priceservice"
	"github.com/fulcrumlabs/sequencer-arb/router"
	"github.com/fulcrumlabs/sequencer-arb/tokens"
)

// Pool is one pool entry as it appears in the YAML file.
type Pool struct {
	Address  string `yaml:"address"`
	Token0   string `yaml:"token0"`
	Token1   string `yaml:"token1"`
	Fee      uint16 `yaml:"fee"`
	Exchange string `yaml:"exchange"`
}

// Position is one start-set entry: a token and a whole-unit size to begin an
// arbitrage search from.
type Position struct {
	Token  string `yaml:"token"`
	Amount uint64 `yaml:"amount"`
}

// Config is the on-disk shape of the engine's configuration file.
type Config struct {
	// RPC names a JSON-RPC endpoint (HTTP or WS). The engine command does not
	// read it; it dials the --ws flag instead.
	RPC string `yaml:"rpc"`
	// Chain names the token mapping corpus this config targets. Only
	// "arbitrum" is currently supported.
	Chain string `yaml:"chain"`
	// ContractAddress is the deployed getPoolData/flashSwap contract.
	ContractAddress string `yaml:"contract_address"`
	// V3Pools and V2Pools are quoted directly via PriceService's getPoolData
	// call.
	V3Pools []Pool `yaml:"v3_pools"`
	V2Pools []Pool `yaml:"v2_pools"`
	// OpaquePools backs router.Pools, resolving 1inch-style pool-address-only
	// calldata to a token pair.
	OpaquePools []Pool `yaml:"opaque_pools"`
	// Positions is the configured start-set: one arbitrage search per entry.
	Positions []Position `yaml:"positions"`
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Chain != "" && cfg.Chain != "arbitrum" {
		return nil, fmt.Errorf("config: unsupported chain %q (only \"arbitrum\" is supported)", cfg.Chain)
	}
	return &cfg, nil
}

func parseToken(name string) (tokens.Token, error) {
	switch name {
	case "USDC":
		return tokens.USDC, nil
	case "WETH":
		return tokens.WETH, nil
	case "WBTC":
		return tokens.WBTC, nil
	case "ARB":
		return tokens.ARB, nil
	case "USDT":
		return tokens.USDT, nil
	case "DAI":
		return tokens.DAI, nil
	case "GMX":
		return tokens.GMX, nil
	default:
		return 0, fmt.Errorf("config: unknown token %q", name)
	}
}

func parseExchange(name string) (tokens.ExchangeId, error) {
	switch name {
	case "Uniswap", "":
		return tokens.Uniswap, nil
	case "Camelot":
		return tokens.Camelot, nil
	case "Sushi":
		return tokens.Sushi, nil
	case "Chronos":
		return tokens.Chronos, nil
	case "Zyber":
		return tokens.Zyber, nil
	default:
		return 0, fmt.Errorf("config: unknown exchange %q", name)
	}
}

func (p Pool) resolve() (token0, token1 tokens.Token, exchangeID tokens.ExchangeId, addr common.Address, err error) {
	token0, err = parseToken(p.Token0)
	if err != nil {
		return
	}
	token1, err = parseToken(p.Token1)
	if err != nil {
		return
	}
	exchangeID, err = parseExchange(p.Exchange)
	if err != nil {
		return
	}
	if !common.IsHexAddress(p.Address) {
		err = fmt.Errorf("config: invalid pool address %q", p.Address)
		return
	}
	addr = common.HexToAddress(p.Address)
	return
}

// PriceServicePools resolves V3Pools and V2Pools into priceservice.Pool slices.
func (c *Config) PriceServicePools() (v3, v2 []priceservice.Pool, err error) {
	v3, err = resolvePools(c.V3Pools)
	if err != nil {
		return nil, nil, fmt.Errorf("config: v3_pools: %w", err)
	}
	v2, err = resolvePools(c.V2Pools)
	if err != nil {
		return nil, nil, fmt.Errorf("config: v2_pools: %w", err)
	}
	return v3, v2, nil
}

func resolvePools(pools []Pool) ([]priceservice.Pool, error) {
	out := make([]priceservice.Pool, 0, len(pools))
	for _, p := range pools {
		token0, token1, exchangeID, addr, err := p.resolve()
		if err != nil {
			return nil, err
		}
		out = append(out, priceservice.Pool{
			Address:    addr,
			Token0:     token0,
			Token1:     token1,
			Fee:        p.Fee,
			ExchangeID: exchangeID,
		})
	}
	return out, nil
}

// RouterPools builds a router.Pools registry from OpaquePools, for routers
// (1inch) whose calldata carries only a pool address.
func (c *Config) RouterPools() (*router.Pools, error) {
	pools := router.NewPools()
	for _, p := range c.OpaquePools {
		token0, token1, exchangeID, addr, err := p.resolve()
		if err != nil {
			return nil, fmt.Errorf("config: opaque_pools: %w", err)
		}
		pools.Register(addr, router.PoolInfo{Token0: token0, Token1: token1, Fee: p.Fee, ExchangeID: exchangeID})
	}
	return pools, nil
}

// pairs returns one tokens.Pair per pool the config quotes (duplicates are
// kept), which is the topology FindPaths searches for arbitrage cycles over.
func (c *Config) pairs() ([]tokens.Pair, error) {
	var pairs []tokens.Pair
	for _, group := range [][]Pool{c.V3Pools, c.V2Pools, c.OpaquePools} {
		for _, p := range group {
			token0, token1, exchangeID, _, err := p.resolve()
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, tokens.NewPairRaw(token0, token1, p.Fee, exchangeID))
		}
	}
	return pairs, nil
}

// StartSet builds the engine's configured start-set: one entry per Positions
// row, each paired with every precomputed arbitrage cycle back to its token
// over the pool topology this config describes.
func (c *Config) StartSet() ([]engine.StartPoint, error) {
	pairs, err := c.pairs()
	if err != nil {
		return nil, fmt.Errorf("config: positions: %w", err)
	}

	startSet := make([]engine.StartPoint, 0, len(c.Positions))
	for _, pos := range c.Positions {
		token, err := parseToken(pos.Token)
		if err != nil {
			return nil, fmt.Errorf("config: positions: %w", err)
		}
		position := tokens.Of(pos.Amount, token)
		paths := pricegraph.FindPaths(token, pairs)
		startSet = append(startSet, engine.StartPoint{Position: position, Paths: paths})
	}
	return startSet, nil
}
