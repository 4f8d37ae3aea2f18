package swapplanner

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

func testPlanner() *Planner {
	return &Planner{
		Tokens: TokenAddresses{
			Decimals: [4]int32{18, 6, 6, 18}, // DAI, USDT, USDC, NATIVE
		},
	}
}

func TestRankDonors_OrdersByNormalizedBalanceDescending(t *testing.T) {
	p := testPlanner()
	remaining := ftypes.TokenBalances{
		DAI:    big.NewInt(0),
		USDT:   new(big.Int).Mul(big.NewInt(50), big.NewInt(1_000_000)),   // 50 USDT
		USDC:   new(big.Int).Mul(big.NewInt(100), big.NewInt(1_000_000)),  // 100 USDC
		Native: big.NewInt(0),
	}

	donors := p.rankDonors(ftypes.DAI, remaining)

	assert.Equal(t, []ftypes.StableToken{ftypes.USDC, ftypes.USDT, ftypes.Native}, donors)
}

func TestRankDonors_TiesBreakByAlphabetOrder(t *testing.T) {
	p := testPlanner()
	remaining := ftypes.TokenBalances{
		DAI:    big.NewInt(0),
		USDT:   big.NewInt(0),
		USDC:   big.NewInt(0),
		Native: big.NewInt(0),
	}

	donors := p.rankDonors(ftypes.DAI, remaining)

	assert.Equal(t, []ftypes.StableToken{ftypes.USDT, ftypes.USDC, ftypes.Native}, donors)
}

func TestRankDonors_ExcludesTarget(t *testing.T) {
	p := testPlanner()
	remaining := ftypes.TokenBalances{
		DAI:    big.NewInt(100),
		USDT:   big.NewInt(100),
		USDC:   big.NewInt(100),
		Native: big.NewInt(100),
	}

	donors := p.rankDonors(ftypes.USDC, remaining)

	assert.Len(t, donors, 3)
	assert.NotContains(t, donors, ftypes.USDC)
}

func TestPlan_NoShortfallReturnsEmptyPlan(t *testing.T) {
	p := testPlanner()
	outputTokenOf := func(token ftypes.TokenID) (ftypes.StableToken, bool) { return ftypes.DAI, true }

	outputs := []ftypes.Output{
		{Token: ftypes.TokenID{}, Amount: big.NewInt(50)},
	}
	balances := ftypes.TokenBalances{DAI: big.NewInt(100)}

	plan, err := p.Plan(nil, outputs, balances, outputTokenOf)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Empty(plan.Calls)
	assert.Equal(uint64(0), plan.TotalGasEstimate)
}
