package strategy

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ChoSanghyuk/intentfiller/internal/cache"
	"github.com/ChoSanghyuk/intentfiller/pkg/pricing"
	"github.com/ChoSanghyuk/intentfiller/pkg/swapplanner"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

func testStableSwapFiller() *StableSwapFiller {
	return &StableSwapFiller{
		Cache:       cache.New(nil),
		SourceChain: "EVM-97",
		DestChain:   "EVM-10200",
		DestHeight:  func(ctx context.Context) (uint64, error) { return 100, nil },
		Balances: func(ctx context.Context) (ftypes.TokenBalances, error) {
			return ftypes.TokenBalances{USDC: big.NewInt(1000)}, nil
		},
	}
}

func TestStableSwapFiller_CanFill_RejectsWrongChainPair(t *testing.T) {
	s := testStableSwapFiller()
	order := testOrder()
	order.SourceChain = "EVM-1"

	assert.False(t, s.CanFill(context.Background(), order))
}

func TestStableSwapFiller_CanFill_RejectsExpiredDeadline(t *testing.T) {
	s := testStableSwapFiller()
	s.DestHeight = func(ctx context.Context) (uint64, error) { return 5000, nil }

	assert.False(t, s.CanFill(context.Background(), testOrder()))
}

func TestStableSwapFiller_CanFill_RejectsInsufficientBalance(t *testing.T) {
	s := testStableSwapFiller()
	s.Balances = func(ctx context.Context) (ftypes.TokenBalances, error) {
		return ftypes.TokenBalances{USDC: big.NewInt(1)}, nil
	}

	assert.False(t, s.CanFill(context.Background(), testOrder()))
}

func TestStableSwapFiller_CanFill_AcceptsSufficientBalance(t *testing.T) {
	s := testStableSwapFiller()

	assert.True(t, s.CanFill(context.Background(), testOrder()))
}

func TestStableSwapFiller_CanFill_RejectsFilledProbeHit(t *testing.T) {
	s := testStableSwapFiller()
	s.FilledProbe = func(ctx context.Context, commitment [32]byte) (bool, error) { return true, nil }

	assert.False(t, s.CanFill(context.Background(), testOrder()))
}

// stableSwapProfitabilityFiller builds a StableSwapFiller whose balances
// already cover the order's requirement, so plan() never needs a quoter or
// simulator, isolating the gas-to-fee-token conversion.
func stableSwapProfitabilityFiller(t *testing.T, feeToken common.Address, gasPrice *big.Int) *StableSwapFiller {
	t.Helper()
	oracle := pricing.NewStaticOracle(map[string]decimal.Decimal{
		"EVM-10200/" + (common.Address{}).Hex(): decimal.NewFromInt(1),
		"EVM-10200/" + feeToken.Hex():            decimal.NewFromInt(1),
	})
	return &StableSwapFiller{
		Cache:       cache.New(nil),
		SourceChain: "EVM-97",
		DestChain:   "EVM-10200",
		FeeToken:    feeToken,
		FeeDecimals: 18,
		Oracle:      oracle,
		GasPrice:    gasPrice,
		Planner:     &swapplanner.Planner{},
		DestHeight:  func(ctx context.Context) (uint64, error) { return 100, nil },
		Balances: func(ctx context.Context) (ftypes.TokenBalances, error) {
			return ftypes.TokenBalances{USDC: big.NewInt(1000)}, nil
		},
		OutputTokenOf: func(token ftypes.TokenID) (ftypes.StableToken, bool) { return ftypes.USDC, true },
	}
}

// TestStableSwapFiller_CalculateProfitability_ConvertsFillGasToFeeToken
// pins the unit-conversion fix for the stable-swap strategy, mirroring
// BasicFiller's equivalent test.
func TestStableSwapFiller_CalculateProfitability_ConvertsFillGasToFeeToken(t *testing.T) {
	feeToken := common.HexToAddress("0xfee0")
	s := stableSwapProfitabilityFiller(t, feeToken, big.NewInt(1))
	order := testOrder()
	order.Fees = big.NewInt(20_000_000)

	def := ftypes.DefaultGasEstimate()
	wantFillCost := new(big.Int).SetUint64(def.FillGas) // plan adds no swap gas; gasPrice=1, both priced 1:1 at 18 decimals
	wantCosts := new(big.Int).Add(wantFillCost, def.RelayerFeeInFeeToken)
	wantProfit := new(big.Int).Sub(order.Fees, wantCosts)

	got := s.CalculateProfitability(context.Background(), order)
	assert.Equal(t, wantProfit, got)
}

// TestStableSwapFiller_CalculateProfitability_PlanIsMemoizedAcrossCalls
// verifies the Cache-backed plan/estimate memoization (replacing the
// unsynchronized lastPlan map) so a second call for the same order is a
// cache hit rather than a fresh solve.
func TestStableSwapFiller_CalculateProfitability_PlanIsMemoizedAcrossCalls(t *testing.T) {
	feeToken := common.HexToAddress("0xfee0")
	s := stableSwapProfitabilityFiller(t, feeToken, big.NewInt(1))
	order := testOrder()
	order.Fees = big.NewInt(20_000_000)

	first := s.CalculateProfitability(context.Background(), order)
	// A fresh solve would read balances again; make that read fail so only
	// a cached plan can reproduce the first result.
	s.Balances = func(ctx context.Context) (ftypes.TokenBalances, error) {
		return ftypes.TokenBalances{}, errors.New("balances read after the plan was cached")
	}
	second := s.CalculateProfitability(context.Background(), order)

	assert.Equal(t, first, second)
}
