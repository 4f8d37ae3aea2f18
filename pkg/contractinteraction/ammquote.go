package contractinteraction

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ChoSanghyuk/intentfiller/pkg/contractclient"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// v3FeeTiers is the fixed set of fee tiers probed across v3 and v4.
var v3FeeTiers = []uint32{100, 500, 3000, 10000}

// v4PreferenceBps is the 1% (100 bps) tolerance within which a v4 quote is
// preferred over a cheaper v2/v3 quote: it reduces call count and avoids
// wrapping.
const v4PreferenceBps = 100

// AMMQuoter aggregates quotes across Uniswap v2/v3/v4 for one destination
// chain. Each *contractclient.ContractClient wraps the respective
// factory/router/quoter contract, configured once at startup from the
// chain's configured addresses.
type AMMQuoter struct {
	Eth       *ethclient.Client
	V2Factory contractclient.ContractClient
	V2Router  contractclient.ContractClient
	V3Factory contractclient.ContractClient
	V3Quoter  contractclient.ContractClient
	V3PoolABI abi.ABI
	V4Quoter  contractclient.ContractClient
}

// FindBestProtocol shops tokenIn -> tokenOut across v2/v3/v4 for an exact
// amountOut and returns the protocol minimizing amountIn, preferring v4
// when it's within v4PreferenceBps of the cheapest v2/v3 quote. Returns
// {ProtocolNone, nil} if no route has liquidity.
func (q *AMMQuoter) FindBestProtocol(ctx context.Context, tokenIn, tokenOut common.Address, amountOut *big.Int) ftypes.BestProtocol {
	v2 := q.quoteV2(tokenIn, tokenOut, amountOut)
	v3 := q.quoteV3(tokenIn, tokenOut, amountOut)
	v4 := q.quoteV4(tokenIn, tokenOut, amountOut)

	bestClassic := cheaper(v2, v3)
	if v4.Protocol == ftypes.ProtocolNone {
		return bestClassic
	}
	if bestClassic.Protocol == ftypes.ProtocolNone {
		return v4
	}

	if withinPreference(v4.AmountIn, bestClassic.AmountIn, v4PreferenceBps) {
		return v4
	}
	return cheaper(bestClassic, v4)
}

func cheaper(a, b ftypes.BestProtocol) ftypes.BestProtocol {
	if a.Protocol == ftypes.ProtocolNone {
		return b
	}
	if b.Protocol == ftypes.ProtocolNone {
		return a
	}
	if a.AmountIn.Cmp(b.AmountIn) <= 0 {
		return a
	}
	return b
}

// withinPreference reports whether candidate is within bps of reference
// (candidate may be larger, up to the tolerance, and still preferred).
func withinPreference(candidate, reference *big.Int, bps int64) bool {
	if reference.Sign() == 0 {
		return candidate.Sign() == 0
	}
	diff := new(big.Int).Sub(candidate, reference)
	diff.Abs(diff)
	threshold := new(big.Int).Div(new(big.Int).Mul(reference, big.NewInt(bps)), big.NewInt(10_000))
	return diff.Cmp(threshold) <= 0
}

func (q *AMMQuoter) quoteV2(tokenIn, tokenOut common.Address, amountOut *big.Int) ftypes.BestProtocol {
	none := ftypes.BestProtocol{Protocol: ftypes.ProtocolNone}

	out, err := q.V2Factory.Call(nil, "getPair", tokenIn, tokenOut)
	if err != nil || len(out) == 0 {
		return none
	}
	pair, ok := out[0].(common.Address)
	if !ok || pair == (common.Address{}) {
		return none
	}

	path := []common.Address{tokenIn, tokenOut}
	amounts, err := q.V2Router.Call(nil, "getAmountsIn", amountOut, path)
	if err != nil || len(amounts) == 0 {
		return none
	}
	amountsIn, ok := amounts[0].([]*big.Int)
	if !ok || len(amountsIn) == 0 {
		return none
	}

	return ftypes.BestProtocol{Protocol: ftypes.ProtocolV2, AmountIn: amountsIn[0]}
}

func (q *AMMQuoter) quoteV3(tokenIn, tokenOut common.Address, amountOut *big.Int) ftypes.BestProtocol {
	return q.quoteConcentratedLiquidity(true, q.V3Quoter, tokenIn, tokenOut, amountOut, ftypes.ProtocolV3)
}

func (q *AMMQuoter) quoteV4(tokenIn, tokenOut common.Address, amountOut *big.Int) ftypes.BestProtocol {
	currency0, currency1 := tokenIn, tokenOut
	if bytesLess(currency1.Bytes(), currency0.Bytes()) {
		currency0, currency1 = currency1, currency0
	}
	return q.quoteConcentratedLiquidity(false, q.V4Quoter, currency0, currency1, amountOut, ftypes.ProtocolV4)
}

// quoteConcentratedLiquidity iterates v3FeeTiers, checking pool existence
// and liquidity (v3 only — v4 has no per-pair deployed pool contract to
// probe) before calling the quoter, and keeps the fee tier yielding the
// minimum amountIn.
func (q *AMMQuoter) quoteConcentratedLiquidity(checkPool bool, quoter contractclient.ContractClient, tokenA, tokenB common.Address, amountOut *big.Int, protocol ftypes.Protocol) ftypes.BestProtocol {
	best := ftypes.BestProtocol{Protocol: ftypes.ProtocolNone}

	for _, fee := range v3FeeTiers {
		if checkPool {
			poolOut, err := q.V3Factory.Call(nil, "getPool", tokenA, tokenB, fee)
			if err != nil || len(poolOut) == 0 {
				continue
			}
			pool, ok := poolOut[0].(common.Address)
			if !ok || pool == (common.Address{}) {
				continue
			}

			poolClient := contractclient.NewContractClient(q.Eth, pool, q.V3PoolABI)
			liqOut, err := poolClient.Call(nil, "liquidity")
			if err != nil || len(liqOut) == 0 {
				continue
			}
			liquidity, ok := liqOut[0].(*big.Int)
			if !ok || liquidity.Sign() <= 0 {
				continue
			}
		}

		amountIn, err := q.quoteExactOutputSingle(quoter, "quoteExactOutputSingle", tokenA, tokenB, fee, amountOut)
		if err != nil {
			continue
		}

		if best.Protocol == ftypes.ProtocolNone || amountIn.Cmp(best.AmountIn) < 0 {
			best = ftypes.BestProtocol{Protocol: protocol, AmountIn: amountIn, Fee: fee}
		}
	}

	return best
}

// quoteExactOutputSingle calls the quoter's revert-with-data simulation:
// the underlying quoter contracts intentionally revert carrying the quote
// in the revert data, which Call's CallContract/Unpack path already
// surfaces as a returned value in go-ethereum's simulated-call mode.
func (q *AMMQuoter) quoteExactOutputSingle(quoter contractclient.ContractClient, method string, tokenIn, tokenOut common.Address, fee uint32, amountOut *big.Int) (*big.Int, error) {
	out, err := quoter.Call(nil, method, tokenIn, tokenOut, fee, amountOut, big.NewInt(0))
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("quote %s: empty result", method)
	}
	amountIn, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("quote %s: unexpected result type", method)
	}
	return amountIn, nil
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// TickSpacingForFee maps a v3/v4 fee tier to its tick spacing, default 60
// for unrecognized tiers.
func TickSpacingForFee(fee uint32) int32 {
	switch fee {
	case 100:
		return 1
	case 500:
		return 10
	case 3000:
		return 60
	case 10000:
		return 200
	default:
		return 60
	}
}
