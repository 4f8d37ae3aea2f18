// Package pricing is the C6 Pricing & Value Oracle: converts on-chain token
// amounts into USD and converts gas costs into whatever fee token a filler
// is quoting relayer fees in. blackholedex priced pool reserves inline with
// big.Float in Blackhole.GetAMMState; here the same style of division is
// done with shopspring/decimal so that 18-decimal fixed point never loses a
// bit of precision across a pipeline of multiplications.
package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// Oracle resolves USD prices for tokens identified by chain+address.
type Oracle interface {
	PriceUSD(ctx context.Context, chain string, token common.Address) (decimal.Decimal, error)
}

// StaticOracle serves fixed USD prices from a config-supplied table, the
// simplest oracle that satisfies the interface — useful in tests and for
// stablecoins pinned at 1.00.
type StaticOracle struct {
	prices map[string]decimal.Decimal // key: chain + "/" + checksummed address (common.Address.Hex)
}

func NewStaticOracle(prices map[string]decimal.Decimal) *StaticOracle {
	return &StaticOracle{prices: prices}
}

func (o *StaticOracle) PriceUSD(_ context.Context, chain string, token common.Address) (decimal.Decimal, error) {
	key := chain + "/" + token.Hex()
	price, ok := o.prices[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("pricing: no price configured for %s", key)
	}
	return price, nil
}

// ValueOf converts a raw token amount (in its native smallest unit) to USD,
// given the token's decimals.
func ValueOf(ctx context.Context, oracle Oracle, chain string, token common.Address, amount *big.Int, decimals int32) (decimal.Decimal, error) {
	price, err := oracle.PriceUSD(ctx, chain, token)
	if err != nil {
		return decimal.Zero, err
	}

	scaled := decimal.NewFromBigInt(amount, -decimals)
	return scaled.Mul(price), nil
}

// OrderValue prices every input and output leg of an order and returns the
// totals blackholedex's confirmation/strategy layers would otherwise have
// to recompute independently.
func OrderValue(ctx context.Context, oracle Oracle, order ftypes.Order, decimalsOf func(chain string, token common.Address) int32) (ftypes.OrderValue, error) {
	inputUSD := decimal.Zero
	for _, in := range order.Inputs {
		addr := in.Token.Address()
		v, err := ValueOf(ctx, oracle, order.SourceChain, addr, in.Amount, decimalsOf(order.SourceChain, addr))
		if err != nil {
			return ftypes.OrderValue{}, fmt.Errorf("price input %s: %w", addr.Hex(), err)
		}
		inputUSD = inputUSD.Add(v)
	}

	outputUSD := decimal.Zero
	for _, out := range order.Outputs {
		addr := out.Token.Address()
		v, err := ValueOf(ctx, oracle, order.DestChain, addr, out.Amount, decimalsOf(order.DestChain, addr))
		if err != nil {
			return ftypes.OrderValue{}, fmt.Errorf("price output %s: %w", addr.Hex(), err)
		}
		outputUSD = outputUSD.Add(v)
	}

	return ftypes.OrderValue{
		InputUSD:  inputUSD.Shift(18).BigInt(),
		OutputUSD: outputUSD.Shift(18).BigInt(),
	}, nil
}

// ConvertGasToFeeToken converts a gas cost denominated in wei of the native
// asset into an amount of feeToken, via their respective USD prices — the
// same two-hop conversion a relayer fee estimate needs.
func ConvertGasToFeeToken(ctx context.Context, oracle Oracle, chain string, gasCostWei *big.Int, feeToken common.Address, feeTokenDecimals int32) (*big.Int, error) {
	native := common.Address{}
	nativePrice, err := oracle.PriceUSD(ctx, chain, native)
	if err != nil {
		return nil, fmt.Errorf("price native asset: %w", err)
	}
	feePrice, err := oracle.PriceUSD(ctx, chain, feeToken)
	if err != nil {
		return nil, fmt.Errorf("price fee token: %w", err)
	}
	if feePrice.IsZero() {
		return nil, fmt.Errorf("pricing: fee token %s priced at zero", feeToken.Hex())
	}

	gasCostUSD := decimal.NewFromBigInt(gasCostWei, -18).Mul(nativePrice)
	feeTokenAmount := gasCostUSD.Div(feePrice).Shift(feeTokenDecimals)

	return feeTokenAmount.BigInt(), nil
}
