package strategy

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ChoSanghyuk/intentfiller/internal/cache"
	"github.com/ChoSanghyuk/intentfiller/internal/util"
	"github.com/ChoSanghyuk/intentfiller/pkg/contractclient"
	"github.com/ChoSanghyuk/intentfiller/pkg/contractinteraction"
	"github.com/ChoSanghyuk/intentfiller/pkg/pricing"
	"github.com/ChoSanghyuk/intentfiller/pkg/txlistener"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// fillGasMarkupNum/Den applies a 1.25x submission gas limit markup over the
// simulated fill-gas estimate, headroom against underpriced reverts.
const (
	fillGasMarkupNum = 5
	fillGasMarkupDen = 4
)

// maxUint256 is the allowance this strategy sets when an existing
// allowance is insufficient.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// BasicFiller fills any order whose (input, output) pairs are
// decimal-normalized-equal stablecoin pairs, paying out of its own
// destination balance directly — no swap is involved. It is the
// generalization of blackholedex's single-pool Swap into an N-chain,
// N-token gateway fill.
type BasicFiller struct {
	Gateway      contractclient.ContractClient
	TokenClients map[common.Address]contractclient.ContractClient // ERC-20 clients, keyed by token address
	Oracle       pricing.Oracle
	Cache        *cache.Cache
	TxListener   txlistener.TxListener
	SourceChain  string
	DestChain    string
	FeeToken     common.Address
	FeeDecimals  int32
	Filler       common.Address
	Key          *ecdsa.PrivateKey
	GasPrice     *big.Int
	DecimalsOf   func(chain string, token common.Address) int32
	DestHeight   func(ctx context.Context) (uint64, error)
	Estimator    *contractinteraction.GasEstimator
	// FilledProbe consults the gateway's on-chain `filled` storage mapping
	// catching orders another relayer already filled that
	// this process's own cache never recorded. May be nil in tests.
	FilledProbe func(ctx context.Context, commitment [32]byte) (bool, error)
	// AllowBlockLists is the operator's allow/block-list pre-filter,
	// checked before any other CanFill precondition. Zero value permits
	// everything.
	AllowBlockLists ftypes.AllowBlockLists
}

func (b *BasicFiller) Name() string { return "BasicFiller" }

// CanFill verifies the allow/block-list pre-filter, deadline, fill status,
// and pair-matching preconditions. Any internal failure, including a
// panic, is swallowed to false.
func (b *BasicFiller) CanFill(ctx context.Context, order ftypes.Order) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("BasicFiller: canFill: recovered panic: %v", r)
			ok = false
		}
	}()

	if !b.AllowBlockLists.Permits(order) {
		return false
	}

	if order.SourceChain != b.SourceChain || order.DestChain != b.DestChain {
		return false
	}

	height, err := b.DestHeight(ctx)
	if err != nil {
		log.Printf("BasicFiller: canFill: dest height: %v", err)
		return false
	}
	if order.Deadline != nil && new(big.Int).SetUint64(height).Cmp(order.Deadline) >= 0 {
		return false
	}

	commitment := contractinteraction.Commitment(order)
	orderID := fmt.Sprintf("%x", commitment)
	if b.Cache.Filled(orderID) {
		return false
	}
	if b.FilledProbe != nil {
		filled, err := b.FilledProbe(ctx, commitment)
		if err != nil {
			log.Printf("BasicFiller: canFill: filled probe: %v", err)
			return false
		}
		if filled {
			return false
		}
	}

	if !b.pairsMatch(order) {
		return false
	}

	return true
}

// pairsMatch verifies the order has as many inputs as outputs and that
// every (input_i, output_i) pair passes decimal-normalized amount equality.
// The tokens of the two legs are not compared: a pair is accepted whatever
// token classes its input and output refer to.
func (b *BasicFiller) pairsMatch(order ftypes.Order) bool {
	if len(order.Inputs) != len(order.Outputs) {
		return false
	}
	for i := range order.Inputs {
		in := order.Inputs[i]
		out := order.Outputs[i]

		inDec := b.DecimalsOf(order.SourceChain, in.Token.Address())
		outDec := b.DecimalsOf(order.DestChain, out.Token.Address())

		normIn := new(big.Float).Quo(new(big.Float).SetInt(in.Amount), pow10f(inDec))
		normOut := new(big.Float).Quo(new(big.Float).SetInt(out.Amount), pow10f(outDec))

		if normIn.Cmp(normOut) != 0 {
			return false
		}
	}
	return true
}

// CalculateProfitability implements the generic profit formula plus this
// strategy's own balance precondition, returning zero on any internal
// failure, including a panic.
func (b *BasicFiller) CalculateProfitability(ctx context.Context, order ftypes.Order) (profit *big.Int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("BasicFiller: calculateProfitability: recovered panic: %v", r)
			profit = big.NewInt(0)
		}
	}()

	if !b.hasSufficientBalance(order) {
		return big.NewInt(0)
	}

	gas := b.estimate(ctx, order)

	orderFeesAdjusted, err := b.rescaleFees(order)
	if err != nil {
		log.Printf("BasicFiller: profitability: rescale fees: %v", err)
		return big.NewInt(0)
	}

	fillGasPrice := b.GasPrice
	if fillGasPrice == nil {
		fillGasPrice = big.NewInt(0)
	}
	fillGasCostWei := new(big.Int).Mul(new(big.Int).SetUint64(gas.FillGas), fillGasPrice)
	fillCostInFeeToken, err := pricing.ConvertGasToFeeToken(ctx, b.Oracle, b.DestChain, fillGasCostWei, b.FeeToken, b.FeeDecimals)
	if err != nil {
		log.Printf("BasicFiller: profitability: convert fill gas to fee token: %v", err)
		return big.NewInt(0)
	}

	costs := new(big.Int).Add(fillCostInFeeToken, gas.RelayerFeeInFeeToken)

	result := new(big.Int).Sub(orderFeesAdjusted, costs)
	if result.Sign() <= 0 {
		return big.NewInt(0)
	}
	return result
}

func (b *BasicFiller) hasSufficientBalance(order ftypes.Order) bool {
	var nativeTotal big.Int
	for _, out := range order.Outputs {
		if out.Token.IsNative() {
			nativeTotal.Add(&nativeTotal, out.Amount)
			continue
		}
		client, ok := b.TokenClients[out.Token.Address()]
		if !ok {
			return false
		}
		balOut, err := client.Call(&b.Filler, "balanceOf", b.Filler)
		if err != nil || len(balOut) == 0 {
			return false
		}
		bal, ok := balOut[0].(*big.Int)
		if !ok || bal.Cmp(out.Amount) < 0 {
			return false
		}
	}
	return true
}

func (b *BasicFiller) rescaleFees(order ftypes.Order) (*big.Int, error) {
	if order.Fees == nil {
		return big.NewInt(0), nil
	}
	srcDec := b.DecimalsOf(order.SourceChain, b.FeeToken)
	dstDec := b.FeeDecimals

	if srcDec == dstDec {
		return new(big.Int).Set(order.Fees), nil
	}

	scaled := new(big.Float).SetInt(order.Fees)
	if dstDec > srcDec {
		scaled.Mul(scaled, pow10f(dstDec-srcDec))
	} else {
		scaled.Quo(scaled, pow10f(srcDec-dstDec))
	}
	result, _ := scaled.Int(nil)
	return result, nil
}

// estimate is memoized through Cache by order id: concurrent strategy
// evaluations and a later ExecuteOrder call for the same order reuse one
// EstimateFillGas round trip instead of repeating it.
func (b *BasicFiller) estimate(ctx context.Context, order ftypes.Order) ftypes.GasEstimate {
	orderID := fmt.Sprintf("%x", contractinteraction.Commitment(order))
	if cached, ok := b.Cache.GasEstimate(orderID); ok {
		return cached
	}

	if b.Estimator == nil {
		est := ftypes.DefaultGasEstimate()
		b.Cache.SetGasEstimate(orderID, order, est)
		return est
	}

	var outputTokens []common.Address
	for _, out := range order.Outputs {
		if !out.Token.IsNative() {
			outputTokens = append(outputTokens, out.Token.Address())
		}
	}

	est := b.Estimator.EstimateFillGas(ctx, order, big.NewInt(0), outputTokens, b.Filler, ethValueOf(order))
	b.Cache.SetGasEstimate(orderID, order, est)
	return est
}

// ExecuteOrder approves every distinct output token (and the fee token)
// to UINT256_MAX when allowance is insufficient, then submits fillOrder
// with the required ETH value and a 1.25x-marked-up gas limit. Any
// internal failure, including a panic, is returned as a failed result
// rather than propagated.
func (b *BasicFiller) ExecuteOrder(ctx context.Context, order ftypes.Order) (result ftypes.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("BasicFiller: executeOrder: recovered panic: %v", r)
			result = ftypes.ExecutionResult{Success: false, Error: fmt.Errorf("panic: %v", r), StrategyName: b.Name()}
		}
	}()

	start := time.Now()

	if err := b.ensureApprovals(order); err != nil {
		return ftypes.ExecutionResult{Success: false, Error: err, StrategyName: b.Name()}
	}

	gas := b.estimate(ctx, order)
	gasLimit := gas.FillGas * fillGasMarkupNum / fillGasMarkupDen

	value := ethValueOf(order)

	txHash, err := b.Gateway.Send(ftypes.Standard, &gasLimit, value, &b.Filler, b.Key, "fillOrder", order, gas.RelayerFeeInFeeToken)
	if err != nil {
		return ftypes.ExecutionResult{Success: false, Error: fmt.Errorf("submit fillOrder: %w", err), StrategyName: b.Name()}
	}

	receipt, err := b.TxListener.WaitForTransaction(txHash)
	if err != nil {
		return ftypes.ExecutionResult{Success: false, TxHash: txHash, Error: fmt.Errorf("await receipt: %w", err), StrategyName: b.Name()}
	}

	gasUsed := new(big.Int)
	gasUsed.SetString(receipt.GasUsed, 0)
	gasPrice := new(big.Int)
	gasPrice.SetString(receipt.EffectiveGasPrice, 0)

	blockNumber := new(big.Int)
	blockNumber.SetString(receipt.BlockNumber, 0)

	return ftypes.ExecutionResult{
		Success:      util.ReceiptStatusOK(receipt),
		TxHash:       txHash,
		GasUsed:      gasUsed.Uint64(),
		GasPrice:     gasPrice,
		BlockNumber:  blockNumber.Uint64(),
		WallTimeMs:   time.Since(start).Milliseconds(),
		StrategyName: b.Name(),
	}
}

func (b *BasicFiller) ensureApprovals(order ftypes.Order) error {
	approveTargets := map[common.Address]bool{b.FeeToken: true}
	for _, out := range order.Outputs {
		if !out.Token.IsNative() {
			approveTargets[out.Token.Address()] = true
		}
	}

	for token := range approveTargets {
		client, ok := b.TokenClients[token]
		if !ok {
			continue
		}

		allowanceOut, err := client.Call(&b.Filler, "allowance", b.Filler, b.Gateway.ContractAddress())
		if err != nil || len(allowanceOut) == 0 {
			return fmt.Errorf("read allowance for %s: %w", token.Hex(), err)
		}
		allowance, ok := allowanceOut[0].(*big.Int)
		if !ok || allowance.Cmp(maxUint256) >= 0 {
			continue
		}

		if _, err := client.Send(ftypes.Standard, nil, nil, &b.Filler, b.Key, "approve", b.Gateway.ContractAddress(), maxUint256); err != nil {
			return fmt.Errorf("approve %s: %w", token.Hex(), err)
		}
	}
	return nil
}

func ethValueOf(order ftypes.Order) *big.Int {
	total := big.NewInt(0)
	for _, out := range order.Outputs {
		if out.Token.IsNative() {
			total.Add(total, out.Amount)
		}
	}
	return total
}

func pow10f(decimals int32) *big.Float {
	result := big.NewFloat(1)
	ten := big.NewFloat(10)
	for i := int32(0); i < decimals; i++ {
		result.Mul(result, ten)
	}
	return result
}
