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
	"github.com/ChoSanghyuk/intentfiller/pkg/swapplanner"
	"github.com/ChoSanghyuk/intentfiller/pkg/txlistener"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// StableSwapFiller covers an output-token shortfall by routing through
// Uniswap v2/v3/v4 and submitting the combined swap+fill call list through
// a delegated Batch-Executor contract.
type StableSwapFiller struct {
	Gateway        contractclient.ContractClient
	BatchExecutor  contractclient.ContractClient
	Planner        *swapplanner.Planner
	Oracle         pricing.Oracle
	Cache          *cache.Cache
	TxListener     txlistener.TxListener
	SourceChain    string
	DestChain      string
	FeeToken       common.Address
	FeeDecimals    int32
	Filler         common.Address
	Key            *ecdsa.PrivateKey
	GasPrice       *big.Int
	DestHeight     func(ctx context.Context) (uint64, error)
	Balances       func(ctx context.Context) (ftypes.TokenBalances, error)
	OutputTokenOf  func(token ftypes.TokenID) (ftypes.StableToken, bool)
	Estimator      *contractinteraction.GasEstimator
	// FilledProbe consults the gateway's on-chain `filled` storage mapping
	// catching orders another relayer already filled that
	// this process's own cache never recorded. May be nil in tests.
	FilledProbe func(ctx context.Context, commitment [32]byte) (bool, error)
	// AllowBlockLists is the operator's allow/block-list pre-filter,
	// checked before any other CanFill precondition. Zero value permits
	// everything.
	AllowBlockLists ftypes.AllowBlockLists
}

func (s *StableSwapFiller) Name() string { return "StableSwapFiller" }

// CanFill verifies the allow/block-list pre-filter, deadline, fill status,
// and that the filler's total USD balance on destination covers the
// order's output USD value. Any internal failure, including a panic, is
// swallowed to false.
func (s *StableSwapFiller) CanFill(ctx context.Context, order ftypes.Order) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("StableSwapFiller: canFill: recovered panic: %v", r)
			ok = false
		}
	}()

	if !s.AllowBlockLists.Permits(order) {
		return false
	}

	if order.SourceChain != s.SourceChain || order.DestChain != s.DestChain {
		return false
	}

	height, err := s.DestHeight(ctx)
	if err != nil {
		log.Printf("StableSwapFiller: canFill: dest height: %v", err)
		return false
	}
	if order.Deadline != nil && new(big.Int).SetUint64(height).Cmp(order.Deadline) >= 0 {
		return false
	}

	commitment := contractinteraction.Commitment(order)
	orderID := fmt.Sprintf("%x", commitment)
	if s.Cache.Filled(orderID) {
		return false
	}
	if s.FilledProbe != nil {
		filled, err := s.FilledProbe(ctx, commitment)
		if err != nil {
			log.Printf("StableSwapFiller: canFill: filled probe: %v", err)
			return false
		}
		if filled {
			return false
		}
	}

	balances, err := s.Balances(ctx)
	if err != nil {
		log.Printf("StableSwapFiller: canFill: balances: %v", err)
		return false
	}

	outputUSD := s.totalOutputUSD(order)
	totalBalanceUSD := s.totalBalanceUSD(balances)
	return totalBalanceUSD.Cmp(outputUSD) >= 0
}

func (s *StableSwapFiller) totalOutputUSD(order ftypes.Order) *big.Int {
	total := big.NewInt(0)
	for _, out := range order.Outputs {
		total.Add(total, out.Amount)
	}
	return total
}

func (s *StableSwapFiller) totalBalanceUSD(balances ftypes.TokenBalances) *big.Int {
	total := big.NewInt(0)
	for _, t := range ftypes.AllStableTokens {
		if v := balances.Get(t); v != nil {
			total.Add(total, v)
		}
	}
	return total
}

// CalculateProfitability runs the shortfall solver; if it cannot cover
// the requirement, profitability is zero. Otherwise the generic profit
// formula applies with the planned swap gas folded into costs. Any
// internal failure, including a panic, is swallowed to zero.
func (s *StableSwapFiller) CalculateProfitability(ctx context.Context, order ftypes.Order) (profit *big.Int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("StableSwapFiller: calculateProfitability: recovered panic: %v", r)
			profit = big.NewInt(0)
		}
	}()

	plan, err := s.plan(ctx, order)
	if err != nil {
		return big.NewInt(0)
	}

	gas := s.estimate(ctx, order)

	orderFeesAdjusted, err := rescaleFees(order.Fees, order.SourceChain, s.SourceChain, s.FeeDecimals, s.sourceFeeTokenDecimals())
	if err != nil {
		return big.NewInt(0)
	}

	fillGasPrice := s.GasPrice
	if fillGasPrice == nil {
		fillGasPrice = big.NewInt(0)
	}
	fillGasCostWei := new(big.Int).Mul(new(big.Int).SetUint64(gas.FillGas+plan.TotalGasEstimate), fillGasPrice)
	fillCostInFeeToken, err := pricing.ConvertGasToFeeToken(ctx, s.Oracle, s.DestChain, fillGasCostWei, s.FeeToken, s.FeeDecimals)
	if err != nil {
		log.Printf("StableSwapFiller: profitability: convert fill gas to fee token: %v", err)
		return big.NewInt(0)
	}

	costs := new(big.Int).Add(fillCostInFeeToken, gas.RelayerFeeInFeeToken)

	result := new(big.Int).Sub(orderFeesAdjusted, costs)
	if result.Sign() <= 0 {
		return big.NewInt(0)
	}
	return result
}

func (s *StableSwapFiller) sourceFeeTokenDecimals() int32 {
	return s.FeeDecimals
}

func rescaleFees(fees *big.Int, _, _ string, dstDec, srcDec int32) (*big.Int, error) {
	if fees == nil {
		return big.NewInt(0), nil
	}
	if srcDec == dstDec {
		return new(big.Int).Set(fees), nil
	}
	scaled := new(big.Float).SetInt(fees)
	if dstDec > srcDec {
		scaled.Mul(scaled, pow10f(dstDec-srcDec))
	} else {
		scaled.Quo(scaled, pow10f(srcDec-dstDec))
	}
	result, _ := scaled.Int(nil)
	return result, nil
}

// plan is memoized through Cache by order id, the way estimate memoizes
// gas: CalculateProfitability and a later ExecuteOrder for the same order
// share one shortfall-solver run instead of racing an unsynchronized field
// on the shared *StableSwapFiller every chain pair's orders fan through.
func (s *StableSwapFiller) plan(ctx context.Context, order ftypes.Order) (ftypes.SwapPlan, error) {
	orderID := fmt.Sprintf("%x", contractinteraction.Commitment(order))
	if cached, ok := s.Cache.SwapPlan(orderID); ok {
		return cached, nil
	}

	balances, err := s.Balances(ctx)
	if err != nil {
		return ftypes.SwapPlan{}, fmt.Errorf("read balances: %w", err)
	}
	p, err := s.Planner.Plan(ctx, order.Outputs, balances, s.OutputTokenOf)
	if err != nil {
		return ftypes.SwapPlan{}, err
	}

	s.Cache.SetSwapPlan(orderID, order, p)
	return p, nil
}

// estimate is memoized through Cache by order id, mirroring BasicFiller.
func (s *StableSwapFiller) estimate(ctx context.Context, order ftypes.Order) ftypes.GasEstimate {
	orderID := fmt.Sprintf("%x", contractinteraction.Commitment(order))
	if cached, ok := s.Cache.GasEstimate(orderID); ok {
		return cached
	}

	if s.Estimator == nil {
		est := ftypes.DefaultGasEstimate()
		s.Cache.SetGasEstimate(orderID, order, est)
		return est
	}
	var outputTokens []common.Address
	for _, out := range order.Outputs {
		if !out.Token.IsNative() {
			outputTokens = append(outputTokens, out.Token.Address())
		}
	}
	est := s.Estimator.EstimateFillGas(ctx, order, big.NewInt(0), outputTokens, s.Filler, ethValueOf(order))
	s.Cache.SetGasEstimate(orderID, order, est)
	return est
}

// ExecuteOrder builds the combined [swap-plan ++ fillOrder] call list and
// submits it via batchExecutor.execute(calls), the delegated
// batch-executor pattern. Any internal failure, including a panic, is
// returned as a failed result rather than propagated.
func (s *StableSwapFiller) ExecuteOrder(ctx context.Context, order ftypes.Order) (result ftypes.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("StableSwapFiller: executeOrder: recovered panic: %v", r)
			result = ftypes.ExecutionResult{Success: false, Error: fmt.Errorf("panic: %v", r), StrategyName: s.Name()}
		}
	}()

	start := time.Now()

	plan, err := s.plan(ctx, order)
	if err != nil {
		return ftypes.ExecutionResult{Success: false, Error: fmt.Errorf("plan: %w", err), StrategyName: s.Name()}
	}

	gas := s.estimate(ctx, order)

	fillData, err := s.Gateway.Abi().Pack("fillOrder", order, gas.RelayerFeeInFeeToken)
	if err != nil {
		return ftypes.ExecutionResult{Success: false, Error: fmt.Errorf("pack fillOrder: %w", err), StrategyName: s.Name()}
	}

	fillCall := ftypes.Call{
		To:    s.Gateway.ContractAddress(),
		Data:  fillData,
		Value: ethValueOf(order),
	}
	calls := append(append([]ftypes.Call{}, plan.Calls...), fillCall)

	totalValue := new(big.Int)
	for _, c := range calls {
		if c.Value != nil {
			totalValue.Add(totalValue, c.Value)
		}
	}

	txHash, err := s.BatchExecutor.Send(ftypes.Standard, nil, totalValue, &s.Filler, s.Key, "execute", calls)
	if err != nil {
		return ftypes.ExecutionResult{Success: false, Error: fmt.Errorf("submit batch execute: %w", err), StrategyName: s.Name()}
	}

	receipt, err := s.TxListener.WaitForTransaction(txHash)
	if err != nil {
		return ftypes.ExecutionResult{Success: false, TxHash: txHash, Error: fmt.Errorf("await receipt: %w", err), StrategyName: s.Name()}
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
		StrategyName: s.Name(),
	}
}
