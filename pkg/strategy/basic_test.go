package strategy

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ChoSanghyuk/intentfiller/internal/cache"
	"github.com/ChoSanghyuk/intentfiller/pkg/contractinteraction"
	"github.com/ChoSanghyuk/intentfiller/pkg/pricing"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

func testBasicFiller() *BasicFiller {
	return &BasicFiller{
		Cache:       cache.New(nil),
		SourceChain: "EVM-97",
		DestChain:   "EVM-10200",
		DestHeight:  func(ctx context.Context) (uint64, error) { return 100, nil },
		DecimalsOf: func(chain string, token common.Address) int32 {
			return 18
		},
	}
}

func testOrder() ftypes.Order {
	return ftypes.Order{
		SourceChain: "EVM-97",
		DestChain:   "EVM-10200",
		Deadline:    big.NewInt(1000),
		Inputs: []ftypes.Input{
			{Token: ftypes.TokenIDFromAddress(common.HexToAddress("0xaaaa")), Amount: big.NewInt(100)},
		},
		Outputs: []ftypes.Output{
			{Token: ftypes.TokenIDFromAddress(common.HexToAddress("0xbbbb")), Amount: big.NewInt(100)},
		},
	}
}

func TestBasicFiller_CanFill_RejectsWrongChainPair(t *testing.T) {
	b := testBasicFiller()
	order := testOrder()
	order.DestChain = "EVM-1" // not what b is configured for

	assert.False(t, b.CanFill(context.Background(), order))
}

func TestBasicFiller_CanFill_RejectsExpiredDeadline(t *testing.T) {
	b := testBasicFiller()
	b.DestHeight = func(ctx context.Context) (uint64, error) { return 5000, nil }
	order := testOrder()

	assert.False(t, b.CanFill(context.Background(), order))
}

func TestBasicFiller_CanFill_RejectsAlreadyCached(t *testing.T) {
	b := testBasicFiller()
	order := testOrder()

	// Mark the order's own commitment-derived id as already filled.
	commitment := contractinteraction.Commitment(order)
	orderID := fmt.Sprintf("%x", commitment)
	b.Cache.Record(orderID, order)
	b.Cache.Resolve(orderID, order, func() (ftypes.ExecutionResult, error) {
		return ftypes.ExecutionResult{Success: true}, nil
	})

	assert.False(t, b.CanFill(context.Background(), order))
}

func TestBasicFiller_CanFill_RejectsFilledProbeHit(t *testing.T) {
	b := testBasicFiller()
	b.FilledProbe = func(ctx context.Context, commitment [32]byte) (bool, error) { return true, nil }

	assert.False(t, b.CanFill(context.Background(), testOrder()))
}

func TestBasicFiller_CanFill_AcceptsMatchingPairWithinDeadline(t *testing.T) {
	b := testBasicFiller()
	assert.True(t, b.CanFill(context.Background(), testOrder()))
}

func TestBasicFiller_PairsMatch_RejectsMismatchedLegCount(t *testing.T) {
	b := testBasicFiller()
	order := testOrder()
	order.Outputs = append(order.Outputs, order.Outputs[0])

	assert.False(t, b.pairsMatch(order))
}

func TestBasicFiller_PairsMatch_RejectsUnequalNormalizedAmounts(t *testing.T) {
	b := testBasicFiller()
	order := testOrder()
	order.Outputs[0].Amount = big.NewInt(99)

	assert.False(t, b.pairsMatch(order))
}

// profitabilityFiller builds a BasicFiller whose output is the native
// asset (so hasSufficientBalance never needs a TokenClients lookup) priced
// 1:1 against its fee token, isolating the gas-to-fee-token conversion.
func profitabilityFiller(t *testing.T, feeToken common.Address, gasPrice *big.Int) *BasicFiller {
	t.Helper()
	oracle := pricing.NewStaticOracle(map[string]decimal.Decimal{
		"EVM-10200/" + (common.Address{}).Hex(): decimal.NewFromInt(1),
		"EVM-10200/" + feeToken.Hex():            decimal.NewFromInt(1),
	})
	return &BasicFiller{
		Cache:       cache.New(nil),
		SourceChain: "EVM-97",
		DestChain:   "EVM-10200",
		FeeToken:    feeToken,
		FeeDecimals: 18,
		Oracle:      oracle,
		GasPrice:    gasPrice,
		DestHeight:  func(ctx context.Context) (uint64, error) { return 100, nil },
		DecimalsOf: func(chain string, token common.Address) int32 {
			return 18
		},
	}
}

func nativeOutputOrder(fees *big.Int) ftypes.Order {
	return ftypes.Order{
		SourceChain: "EVM-97",
		DestChain:   "EVM-10200",
		Deadline:    big.NewInt(1000),
		Fees:        fees,
		Outputs: []ftypes.Output{
			{Token: ftypes.TokenID{}, Amount: big.NewInt(1_000_000)},
		},
	}
}

// TestBasicFiller_CalculateProfitability_ConvertsFillGasToFeeToken pins the
// unit-conversion fix: FillGas is priced through GasPrice and the oracle
// before being subtracted, not added to the relayer fee as a raw gas count.
func TestBasicFiller_CalculateProfitability_ConvertsFillGasToFeeToken(t *testing.T) {
	feeToken := common.HexToAddress("0xfee0")
	b := profitabilityFiller(t, feeToken, big.NewInt(1))
	order := nativeOutputOrder(big.NewInt(20_000_000))

	def := ftypes.DefaultGasEstimate()
	wantFillCost := new(big.Int).SetUint64(def.FillGas) // gasPrice=1, native/fee both priced 1:1 at 18 decimals
	wantCosts := new(big.Int).Add(wantFillCost, def.RelayerFeeInFeeToken)
	wantProfit := new(big.Int).Sub(order.Fees, wantCosts)

	got := b.CalculateProfitability(context.Background(), order)
	assert.Equal(t, wantProfit, got)
}

// TestBasicFiller_CalculateProfitability_HigherGasPriceLowersProfit shows
// profit actually moves with GasPrice, which a dead/unused field could not
// produce.
func TestBasicFiller_CalculateProfitability_HigherGasPriceLowersProfit(t *testing.T) {
	feeToken := common.HexToAddress("0xfee0")
	order := nativeOutputOrder(big.NewInt(20_000_000))

	cheap := profitabilityFiller(t, feeToken, big.NewInt(1)).CalculateProfitability(context.Background(), order)
	pricey := profitabilityFiller(t, feeToken, big.NewInt(2)).CalculateProfitability(context.Background(), order)

	assert.True(t, pricey.Cmp(cheap) < 0)
}

func TestBasicFiller_CalculateProfitability_ZeroWhenCostsExceedFees(t *testing.T) {
	feeToken := common.HexToAddress("0xfee0")
	b := profitabilityFiller(t, feeToken, big.NewInt(1))
	order := nativeOutputOrder(big.NewInt(1)) // far below DefaultGasEstimate's relayer fee

	got := b.CalculateProfitability(context.Background(), order)
	assert.Equal(t, big.NewInt(0), got)
}
