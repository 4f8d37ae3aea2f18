// Package configs is the C2 Config Service: YAML-backed configuration for
// every chain, the confirmation policy table, and the global concurrency
// bound, in the same os.ReadFile + yaml.Unmarshal style blackholedex used
// for its single-chain config.yml.
package configs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	MaxConcurrentOrders int                                `yaml:"maxConcurrentOrders"`
	Chains              map[string]ChainConfig             `yaml:"chains"`
	ConfirmationPolicy  map[string]ConfirmationPolicyEntry `yaml:"confirmationPolicy"`
	FeeToken            TokenConfig                        `yaml:"feeToken"`
	AllowBlockLists     AllowBlockListsConfig              `yaml:"allowBlockLists"`
}

// AllowBlockListsConfig is the operator's allow/block-list pre-filter, in
// YAML-friendly hex-string form; LoadConfig's caller converts entries to
// ftypes.AllowBlockLists with common.HexToAddress.
type AllowBlockListsConfig struct {
	AllowList []AllowBlockListItemConfig `yaml:"allowList"`
	BlockList []AllowBlockListItemConfig `yaml:"blockList"`
}

// AllowBlockListItemConfig is one allow/block-list rule. An empty field is
// a wildcard matching any order.
type AllowBlockListItemConfig struct {
	Sender      string `yaml:"sender"`
	InputToken  string `yaml:"inputToken"`
	OutputToken string `yaml:"outputToken"`
}

// ChainConfig is one source/destination chain's connection and contract
// addresses.
type ChainConfig struct {
	RPCURL               string `yaml:"rpcUrl"`
	IntentGatewayAddress  string `yaml:"intentGatewayAddress"`
	ISMPHostAddress       string `yaml:"ismpHostAddress"`
	BatchExecutorAddress  string `yaml:"batchExecutorAddress"`
	UniversalRouterAddress string `yaml:"universalRouterAddress"`
	UniswapV2Factory      string `yaml:"uniswapV2Factory"`
	UniswapV2Router       string `yaml:"uniswapV2Router"`
	UniswapV3Factory      string `yaml:"uniswapV3Factory"`
	UniswapV3Quoter       string `yaml:"uniswapV3Quoter"`
	UniswapV4Quoter       string `yaml:"uniswapV4Quoter"`
	WrappedNativeAsset    string `yaml:"wrappedNativeAsset"`
	DAIAsset              string `yaml:"daiAsset"`
	USDTAsset             string `yaml:"usdtAsset"`
	USDCAsset             string `yaml:"usdcAsset"`
	NativeDecimals        int32  `yaml:"nativeDecimals"`
}

// ConfirmationPolicyEntry mirrors pkg/types.ConfirmationPolicyEntry in
// YAML-friendly int64 form; cmd/filler converts MinUSD/MaxUSD to *big.Int
// when it builds the orchestrator's policy table.
type ConfirmationPolicyEntry struct {
	MinUSD   int64 `yaml:"minUsd"`
	MaxUSD   int64 `yaml:"maxUsd"`
	MinConfs int   `yaml:"minConfs"`
	MaxConfs int   `yaml:"maxConfs"`
}

// TokenConfig names a token by symbol and decimals, used for the fee
// token and for the relayer-fee conversions in pkg/pricing.
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Decimals int32  `yaml:"decimals"`
}

// LoadConfig reads and parses a YAML config document, mirroring
// blackholedex's LoadConfig(path).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.MaxConcurrentOrders <= 0 {
		cfg.MaxConcurrentOrders = 5
	}

	return &cfg, nil
}
