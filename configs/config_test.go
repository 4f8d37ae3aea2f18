package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	yamlDoc := `
maxConcurrentOrders: 3
chains:
  EVM-97:
    rpcUrl: https://rpc.example/97
    intentGatewayAddress: "0x0000000000000000000000000000000000dEaD"
    daiAsset: "0x0000000000000000000000000000000000bEEF"
confirmationPolicy:
  EVM-97:
    minUsd: 100
    maxUsd: 10000
    minConfs: 1
    maxConfs: 12
feeToken:
  symbol: USDC
  decimals: 6
allowBlockLists:
  blockList:
    - sender: "0x0000000000000000000000000000000000dEaD"
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxConcurrentOrders)
	assert.Equal(t, "https://rpc.example/97", cfg.Chains["EVM-97"].RPCURL)
	assert.Equal(t, int64(100), cfg.ConfirmationPolicy["EVM-97"].MinUSD)
	assert.Equal(t, int32(6), cfg.FeeToken.Decimals)
	require.Len(t, cfg.AllowBlockLists.BlockList, 1)
	assert.Equal(t, "0x0000000000000000000000000000000000dEaD", cfg.AllowBlockLists.BlockList[0].Sender)
}

func TestLoadConfig_DefaultsMaxConcurrentOrders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("chains: {}\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxConcurrentOrders)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yml")
	assert.Error(t, err)
}
