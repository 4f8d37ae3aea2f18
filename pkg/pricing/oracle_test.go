package pricing

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

var (
	usdc = common.HexToAddress("0x05dc")
	dai  = common.HexToAddress("0x0da1")
	weth = common.HexToAddress("0x0e7e")
)

func testOracle() *StaticOracle {
	return NewStaticOracle(map[string]decimal.Decimal{
		"EVM-97/" + usdc.Hex():          decimal.NewFromInt(1),
		"EVM-97/" + dai.Hex():           decimal.NewFromInt(1),
		"EVM-97/" + weth.Hex():          decimal.NewFromInt(2000),
		"EVM-97/" + (common.Address{}).Hex(): decimal.NewFromInt(2000),
	})
}

func TestStaticOracle_PriceUSD_Unconfigured(t *testing.T) {
	o := testOracle()
	_, err := o.PriceUSD(context.Background(), "EVM-10200", usdc)
	assert.Error(t, err)
}

func TestValueOf(t *testing.T) {
	o := testOracle()
	amount := new(big.Int).Mul(big.NewInt(5), big.NewInt(1_000_000)) // 5 USDC, 6 decimals
	v, err := ValueOf(context.Background(), o, "EVM-97", usdc, amount, 6)
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.NewFromInt(5)))
}

func TestOrderValue(t *testing.T) {
	o := testOracle()
	order := ftypes.Order{
		SourceChain: "EVM-97",
		DestChain:   "EVM-97",
		Inputs: []ftypes.Input{
			{Token: ftypes.TokenIDFromAddress(usdc), Amount: big.NewInt(1_000_000)}, // 1 USDC
		},
		Outputs: []ftypes.Output{
			{Token: ftypes.TokenIDFromAddress(dai), Amount: new(big.Int).Mul(big.NewInt(1), big.NewInt(1e18))}, // 1 DAI
		},
	}

	decimalsOf := func(chain string, token common.Address) int32 {
		switch token {
		case usdc:
			return 6
		case dai:
			return 18
		default:
			return 18
		}
	}

	v, err := OrderValue(context.Background(), o, order, decimalsOf)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1e18).String(), v.InputUSD.String())
	assert.Equal(t, big.NewInt(1e18).String(), v.OutputUSD.String())
}

func TestConvertGasToFeeToken(t *testing.T) {
	o := testOracle()
	gasCostWei := new(big.Int).Mul(big.NewInt(1), big.NewInt(1e15)) // 0.001 ETH
	amount, err := ConvertGasToFeeToken(context.Background(), o, "EVM-97", gasCostWei, usdc, 6)
	require.NoError(t, err)
	// 0.001 ETH * $2000 = $2, priced in USDC at 6 decimals => 2_000_000
	assert.Equal(t, big.NewInt(2_000_000).String(), amount.String())
}
