package contractinteraction

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ChoSanghyuk/intentfiller/pkg/contractclient"
	"github.com/ChoSanghyuk/intentfiller/pkg/pricing"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// deliveryGasMarkupNum/Den apply a 2% markup to the delivery gas estimate
// on the source-side delivery gas estimate.
const (
	deliveryGasMarkupNum = 102
	deliveryGasMarkupDen = 100
)

// maxUint256Half is UINT256_MAX / 2, the balance/allowance value state
// overrides are set to before simulating the fill.
var maxUint256Half = new(big.Int).Div(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)), big.NewInt(2))

// GasEstimator holds everything EstimateFillGas needs: the source-chain
// host contract (for delivery gas estimation) and the destination gateway
// (for the fill call itself), plus an oracle to convert gas into fee-token
// units.
type GasEstimator struct {
	SourceHost       contractclient.ContractClient
	DestGateway      contractclient.ContractClient
	Oracle           pricing.Oracle
	SourceChain      string
	DestChain        string
	FeeToken         common.Address
	FeeTokenDecimals int32
	GasPrice         *big.Int
}

// EstimateFillGas implements the five-step gas estimation for a fill,
// falling back to ftypes.DefaultGasEstimate() on any error so a flaky RPC
// never blocks a fill attempt outright.
func (g *GasEstimator) EstimateFillGas(ctx context.Context, order ftypes.Order, relayerFee *big.Int, outputTokens []common.Address, filler common.Address, ethValue *big.Int) ftypes.GasEstimate {
	estimate, err := g.estimate(ctx, order, relayerFee, outputTokens, filler, ethValue)
	if err != nil {
		return ftypes.DefaultGasEstimate()
	}
	return estimate
}

func (g *GasEstimator) estimate(ctx context.Context, order ftypes.Order, relayerFee *big.Int, outputTokens []common.Address, filler common.Address, ethValue *big.Int) (ftypes.GasEstimate, error) {
	commitment := Commitment(order)
	body := EncodePostBody(commitment, relayerFee)

	postGas, err := g.SourceHost.EstimateGas(&filler, nil, "post", body)
	if err != nil {
		return ftypes.GasEstimate{}, fmt.Errorf("estimate post delivery gas: %w", err)
	}
	postGas = postGas * deliveryGasMarkupNum / deliveryGasMarkupDen

	gasCostWei := new(big.Int).Mul(new(big.Int).SetUint64(postGas), g.GasPrice)
	relayerFeeInFeeToken, err := pricing.ConvertGasToFeeToken(ctx, g.Oracle, g.SourceChain, gasCostWei, g.FeeToken, g.FeeTokenDecimals)
	if err != nil {
		return ftypes.GasEstimate{}, fmt.Errorf("convert delivery gas to fee token: %w", err)
	}

	overrides := g.buildOverrides(filler, outputTokens)

	fillGas64, err := g.estimateFillWithOverrides(filler, order, relayerFee, overrides, ethValue)
	if err != nil {
		return ftypes.GasEstimate{}, fmt.Errorf("estimate fill gas: %w", err)
	}

	return ftypes.GasEstimate{
		FillGas:              fillGas64,
		PostGas:              postGas,
		RelayerFeeInFeeToken: relayerFeeInFeeToken,
	}, nil
}

// buildOverrides sets the filler's balance and the gateway's allowance for
// every output token plus the fee token to maxUint256Half. The overrides
// are applied only to the eth_call that estimateFillWithOverrides issues
// first; the eth_estimateGas call that produces FillGas runs against the
// chain's real state, so a fill the filler cannot yet fund or approve fails
// there and EstimateFillGas falls back to DefaultGasEstimate. Storage slots
// are assumed to follow the common OpenZeppelin
// layout (balance at slot 0, allowance at slot 1 of each ERC-20); gateways
// with a different layout require a slot-probe utility not modeled here.
func (g *GasEstimator) buildOverrides(filler common.Address, outputTokens []common.Address) map[common.Address]map[common.Hash]common.Hash {
	overrides := make(map[common.Address]map[common.Hash]common.Hash)

	tokens := append(append([]common.Address{}, outputTokens...), g.FeeToken)
	for _, token := range tokens {
		slots := overrides[token]
		if slots == nil {
			slots = make(map[common.Hash]common.Hash)
		}

		balanceSlot := balanceOfSlot(filler, 0)
		allowanceSlot := allowanceSlot(filler, g.DestGateway.ContractAddress(), 1)

		var word common.Hash
		maxUint256Half.FillBytes(word[:])

		slots[balanceSlot] = word
		slots[allowanceSlot] = word

		overrides[token] = slots
	}
	return overrides
}

func (g *GasEstimator) estimateFillWithOverrides(from common.Address, order ftypes.Order, relayerFee *big.Int, overrides map[common.Address]map[common.Hash]common.Hash, ethValue *big.Int) (uint64, error) {
	_, err := g.DestGateway.CallWithOverrides(&from, overrides, "fillOrder", order, relayerFee)
	if err != nil {
		return 0, err
	}

	gas, err := g.DestGateway.EstimateGas(&from, ethValue, "fillOrder", order, relayerFee)
	if err != nil {
		return 0, err
	}
	return gas, nil
}

// balanceOfSlot derives the storage slot for `mapping(address => uint256)
// balances` at baseSlot, the standard Solidity keccak256(abi.encode(key,
// baseSlot)) derivation used for ERC-20 balanceOf layouts.
func balanceOfSlot(holder common.Address, baseSlot int64) common.Hash {
	baseWord := make([]byte, 32)
	big.NewInt(baseSlot).FillBytes(baseWord)
	return mappingSlot(common.LeftPadBytes(holder.Bytes(), 32), baseWord)
}

// allowanceSlot derives the slot for `mapping(address => mapping(address
// => uint256)) allowances`: keccak256(spender . keccak256(owner . baseSlot)).
func allowanceSlot(owner, spender common.Address, baseSlot int64) common.Hash {
	baseWord := make([]byte, 32)
	big.NewInt(baseSlot).FillBytes(baseWord)
	inner := mappingSlot(common.LeftPadBytes(owner.Bytes(), 32), baseWord)
	return mappingSlot(common.LeftPadBytes(spender.Bytes(), 32), inner[:])
}

// mappingSlot computes keccak256(keyWord . baseWord), the Solidity
// storage-layout derivation for a single level of mapping nesting.
func mappingSlot(keyWord, baseWord []byte) common.Hash {
	preimage := make([]byte, 0, 64)
	preimage = append(preimage, keyWord...)
	preimage = append(preimage, baseWord...)
	return crypto.Keccak256Hash(preimage)
}
