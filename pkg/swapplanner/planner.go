// Package swapplanner is the C9 Swap Planner: given an order's required
// destination-chain outputs and the filler's current balances over the
// fixed {DAI, USDT, USDC, NATIVE} alphabet, greedily synthesizes the swap
// calls needed to cover any shortfall.
package swapplanner

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/intentfiller/internal/metrics"
	"github.com/ChoSanghyuk/intentfiller/pkg/contractinteraction"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// InsufficientBalance is returned when the shortfall solver exhausts
// every donor without covering a target token's requirement.
type InsufficientBalance struct {
	Token ftypes.StableToken
	Short *big.Int
}

func (e *InsufficientBalance) Error() string {
	return fmt.Sprintf("swap planner: insufficient balance for %s, short %s", e.Token, e.Short)
}

// TokenAddresses resolves a StableToken to its deployed address on the
// destination chain, and its decimals, for normalized-balance comparisons.
type TokenAddresses struct {
	Addr     [4]common.Address // indexed by StableToken
	Decimals [4]int32
}

// Simulator simulates a synthesized call list against the filler's
// current balances and returns the gas it would cost, or an error if the
// simulation reverts: when it does, the candidate swap is skipped.
type Simulator interface {
	Simulate(ctx context.Context, calls []ftypes.Call) (gasUsed uint64, err error)
}

// Planner builds a SwapPlan, consulting an AMM quoter for routes and a
// Simulator to validate each candidate swap before committing to it.
type Planner struct {
	Quoter    *contractinteraction.AMMQuoter
	Simulator Simulator
	Router    common.Address
	WETH      common.Address
	Tokens    TokenAddresses
}

// Plan runs initializeAndGenerate: tallies the shortfall per target token
// from outputs, then greedily covers each shortfall from the other three
// tokens, sorted by decimal-normalized remaining balance descending with
// alphabet order as the tie-break.
func (p *Planner) Plan(ctx context.Context, outputs []ftypes.Output, balances ftypes.TokenBalances, outputTokenOf func(token ftypes.TokenID) (ftypes.StableToken, bool)) (ftypes.SwapPlan, error) {
	requirement := map[ftypes.StableToken]*big.Int{}
	for _, out := range outputs {
		t, ok := outputTokenOf(out.Token)
		if !ok {
			continue // exotic tokens are BasicFiller's concern, not the stable-swap planner's
		}
		if requirement[t] == nil {
			requirement[t] = new(big.Int)
		}
		requirement[t].Add(requirement[t], out.Amount)
	}

	remaining := ftypes.TokenBalances{
		DAI:    new(big.Int).Set(nilToZero(balances.DAI)),
		USDT:   new(big.Int).Set(nilToZero(balances.USDT)),
		USDC:   new(big.Int).Set(nilToZero(balances.USDC)),
		Native: new(big.Int).Set(nilToZero(balances.Native)),
	}

	var calls []ftypes.Call
	var totalGas uint64

	for _, t := range ftypes.AllStableTokens {
		req := requirement[t]
		if req == nil || req.Sign() <= 0 {
			continue
		}

		bal := remaining.Get(t)
		shortfall := new(big.Int).Sub(req, bal)
		if shortfall.Sign() <= 0 {
			remaining.Set(t, new(big.Int).Sub(bal, req))
			continue
		}
		remaining.Set(t, big.NewInt(0))

		donors := p.rankDonors(t, remaining)

		remainingNeeded := shortfall
		for _, d := range donors {
			if remainingNeeded.Sign() <= 0 {
				break
			}

			donorBal := remaining.Get(d)
			if donorBal.Sign() <= 0 {
				continue
			}

			// desiredOut is in target-token units; the donor's balance is in
			// donor-token units, so the shortfall can only be clamped against
			// it after a quote converts one into the other.
			desiredOut := new(big.Int).Set(remainingNeeded)
			best := p.Quoter.FindBestProtocol(ctx, p.Tokens.Addr[d], p.Tokens.Addr[t], desiredOut)
			if best.Protocol == ftypes.ProtocolNone {
				continue
			}

			if best.AmountIn.Cmp(donorBal) > 0 {
				desiredOut = new(big.Int).Div(new(big.Int).Mul(desiredOut, donorBal), best.AmountIn)
				if desiredOut.Sign() <= 0 {
					continue
				}
				best = p.Quoter.FindBestProtocol(ctx, p.Tokens.Addr[d], p.Tokens.Addr[t], desiredOut)
				if best.Protocol == ftypes.ProtocolNone {
					continue
				}
			}

			swapCalls := SynthesizeSwap(best, d, t, p.Tokens, p.Router, p.WETH, desiredOut)

			gasUsed, simErr := p.Simulator.Simulate(ctx, swapCalls)
			if simErr != nil {
				continue
			}

			calls = append(calls, swapCalls...)
			totalGas += gasUsed
			remainingNeeded.Sub(remainingNeeded, desiredOut)
			remaining.Set(d, new(big.Int).Sub(donorBal, best.AmountIn))
		}

		if remainingNeeded.Sign() > 0 {
			metrics.SwapPlannerShortfalls.WithLabelValues(t.String()).Inc()
			return ftypes.SwapPlan{}, &InsufficientBalance{Token: t, Short: remainingNeeded}
		}
	}

	return ftypes.SwapPlan{Calls: calls, TotalGasEstimate: totalGas}, nil
}

// rankDonors lists the three tokens other than target, sorted by
// decimal-normalized remaining balance descending, with alphabet order
// (DAI, USDT, USDC, NATIVE) as the stable tie-break.
func (p *Planner) rankDonors(target ftypes.StableToken, remaining ftypes.TokenBalances) []ftypes.StableToken {
	var donors []ftypes.StableToken
	for _, t := range ftypes.AllStableTokens {
		if t != target {
			donors = append(donors, t)
		}
	}

	normalized := func(t ftypes.StableToken) *big.Float {
		bal := new(big.Float).SetInt(remaining.Get(t))
		scale := new(big.Float).SetFloat64(pow10(p.Tokens.Decimals[t]))
		return new(big.Float).Quo(bal, scale)
	}

	sort.SliceStable(donors, func(i, j int) bool {
		ni, nj := normalized(donors[i]), normalized(donors[j])
		if ni.Cmp(nj) != 0 {
			return ni.Cmp(nj) > 0
		}
		return donors[i] < donors[j]
	})

	return donors
}

func pow10(decimals int32) float64 {
	result := 1.0
	for i := int32(0); i < decimals; i++ {
		result *= 10
	}
	return result
}

func nilToZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
