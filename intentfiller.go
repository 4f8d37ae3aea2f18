// Package intentfiller is the intent-filler orchestrator: it owns two
// cooperative task pools — a bounded global pool for per-order analysis,
// and one single-worker FIFO pool per destination chain for on-chain
// submission — and drives every Order the Event Monitor emits through
// confirmation wait, strategy evaluation, and execution. The pool shape is
// blackholedex's RunStrategy1 generalized from one hard-coded loop to N
// concurrent orders across N chains.
package intentfiller

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ChoSanghyuk/intentfiller/internal/cache"
	"github.com/ChoSanghyuk/intentfiller/internal/metrics"
	"github.com/ChoSanghyuk/intentfiller/internal/util"
	"github.com/ChoSanghyuk/intentfiller/pkg/confirmation"
	"github.com/ChoSanghyuk/intentfiller/pkg/contractinteraction"
	"github.com/ChoSanghyuk/intentfiller/pkg/monitor"
	"github.com/ChoSanghyuk/intentfiller/pkg/pricing"
	"github.com/ChoSanghyuk/intentfiller/pkg/strategy"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// confirmationPollInterval is the fixed cadence for polling source-chain
// confirmation counts.
const confirmationPollInterval = 300 * time.Millisecond

// ConfirmationsOf resolves an order's current confirmation count on its
// source chain.
type ConfirmationsOf func(ctx context.Context, chain string, txHash common.Hash) (int, error)

// Filler wires every component into the end-to-end fill pipeline.
type Filler struct {
	Monitor             *monitor.Monitor
	Oracle              pricing.Oracle
	Cache               *cache.Cache
	Strategies          []strategy.Strategy
	ConfirmationPolicy  map[string]ftypes.ConfirmationPolicyEntry
	Confirmations       ConfirmationsOf
	DecimalsOf          func(chain string, token common.Address) int32
	MaxConcurrentOrders int

	mu         sync.Mutex
	chainPools map[string]chan func()
	drainWg    sync.WaitGroup
}

// Run starts the monitor and drains newOrder into the pipeline until ctx
// is cancelled: stop the Event Monitor first, then await drain of all
// pools.
func (f *Filler) Run(ctx context.Context, reportChan chan<- ftypes.Report) error {
	f.chainPools = make(map[string]chan func())

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	go f.Monitor.Run(monitorCtx)

	global, globalCtx := errgroup.WithContext(ctx)
	global.SetLimit(f.concurrentOrdersLimit())

	for {
		select {
		case order, ok := <-f.Monitor.NewOrders():
			if !ok {
				cancelMonitor()
				err := global.Wait()
				f.drainWg.Wait()
				return err
			}
			o := order
			global.Go(func() error {
				f.handleOrder(globalCtx, o, reportChan)
				return nil
			})
		case <-ctx.Done():
			cancelMonitor()
			_ = global.Wait()
			f.drainWg.Wait()
			return ctx.Err()
		}
	}
}

func (f *Filler) concurrentOrdersLimit() int {
	if f.MaxConcurrentOrders <= 0 {
		return 5
	}
	return f.MaxConcurrentOrders
}

// handleOrder runs the full per-order pipeline: price it, wait for
// confirmations, evaluate strategies in parallel, and enqueue the winner
// onto its destination chain's FIFO pool.
func (f *Filler) handleOrder(ctx context.Context, order ftypes.Order, reportChan chan<- ftypes.Report) {
	orderID := fmt.Sprintf("%x", contractinteraction.Commitment(order))
	f.Cache.Record(orderID, order)
	metrics.OrdersSeen.WithLabelValues(order.SourceChain).Inc()
	f.report(reportChan, orderID, "priced", "computing order value")

	orderValue, err := pricing.OrderValue(ctx, f.Oracle, order, f.DecimalsOf)
	if err != nil {
		log.Printf("intentfiller: order %s: price: %v", orderID, err)
		metrics.OrdersDropped.WithLabelValues("pricing_failed").Inc()
		f.report(reportChan, orderID, "dropped", "pricing failed")
		return
	}

	requiredConfs, err := f.requiredConfirmations(order, orderValue)
	if err != nil {
		log.Printf("intentfiller: order %s: confirmation policy: %v", orderID, err)
		metrics.OrdersDropped.WithLabelValues("no_confirmation_policy").Inc()
		f.report(reportChan, orderID, "dropped", "no confirmation policy for chain")
		return
	}

	f.report(reportChan, orderID, "confirming", fmt.Sprintf("waiting for %d confirmations", requiredConfs))
	if err := f.awaitConfirmations(ctx, order, requiredConfs); err != nil {
		log.Printf("intentfiller: order %s: await confirmations: %v", orderID, err)
		metrics.OrdersDropped.WithLabelValues("confirmation_wait_aborted").Inc()
		f.report(reportChan, orderID, "dropped", "confirmation wait aborted")
		return
	}

	best := f.evaluateStrategies(ctx, order)
	if best == nil {
		metrics.OrdersDropped.WithLabelValues("no_profitable_strategy").Inc()
		f.report(reportChan, orderID, "dropped", "no profitable strategy")
		return
	}

	f.report(reportChan, orderID, "enqueued", fmt.Sprintf("strategy %s selected", best.Strategy.Name()))
	f.enqueueFill(order.DestChain, func() {
		result, _ := f.Cache.Resolve(orderID, order, func() (ftypes.ExecutionResult, error) {
			return best.Strategy.ExecuteOrder(ctx, order), nil
		})
		if result.Success {
			metrics.OrdersFilled.WithLabelValues(result.StrategyName).Inc()
			f.report(reportChan, orderID, "filled", result.TxHash.Hex())
		} else {
			msg := "execution failed"
			if result.Error != nil {
				msg = result.Error.Error()
			}
			metrics.OrdersDropped.WithLabelValues("execution_failed").Inc()
			f.report(reportChan, orderID, "failed", msg)
		}
	})
}

func (f *Filler) requiredConfirmations(order ftypes.Order, orderValue ftypes.OrderValue) (int, error) {
	entry, ok := f.ConfirmationPolicy[order.SourceChain]
	if !ok {
		return 0, fmt.Errorf("no confirmation policy for chain %s", order.SourceChain)
	}
	usd := decimal.NewFromBigInt(orderValue.InputUSD, -18)
	return confirmation.Required(entry, usd)
}

func (f *Filler) awaitConfirmations(ctx context.Context, order ftypes.Order, required int) error {
	ticker := time.NewTicker(confirmationPollInterval)
	defer ticker.Stop()

	for {
		confs, err := util.RetryValue(ctx, 3, 250*time.Millisecond, func() (int, error) {
			return f.Confirmations(ctx, order.SourceChain, order.SourceTxHash)
		})
		if err == nil && confs >= required {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// evaluateStrategies runs canFill/calculateProfitability across every
// configured strategy in parallel, filters to profit > 0, and returns the
// best by descending profit, or nil if none qualify.
func (f *Filler) evaluateStrategies(ctx context.Context, order ftypes.Order) *strategy.Ranked {
	results := make([]*strategy.Ranked, len(f.Strategies))

	var wg sync.WaitGroup
	for i, s := range f.Strategies {
		wg.Add(1)
		go func(i int, s strategy.Strategy) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("intentfiller: strategy %s panicked: %v", s.Name(), r)
				}
			}()
			if !s.CanFill(ctx, order) {
				return
			}
			profit := s.CalculateProfitability(ctx, order)
			if profit == nil || profit.Sign() <= 0 {
				return
			}
			results[i] = &strategy.Ranked{Strategy: s, Profit: profit}
		}(i, s)
	}
	wg.Wait()

	var ranked []*strategy.Ranked
	for _, r := range results {
		if r != nil {
			ranked = append(ranked, r)
		}
	}
	if len(ranked) == 0 {
		return nil
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Profit.Cmp(ranked[j].Profit) > 0
	})
	return ranked[0]
}

// enqueueFill submits task to chain's single-worker FIFO pool, starting
// the worker goroutine on first use. Concurrency 1 per chain serializes
// EVM nonce management for the filler account. Run's shutdown sequence
// drains drainWg so draining covers per-chain submissions, not just the
// global analysis pool — a submitted task counts as in-flight until it
// actually runs, not merely enqueued.
func (f *Filler) enqueueFill(chain string, task func()) {
	f.mu.Lock()
	queue, ok := f.chainPools[chain]
	if !ok {
		queue = make(chan func(), 256)
		f.chainPools[chain] = queue
		go func() {
			for t := range queue {
				t()
			}
		}()
	}
	f.mu.Unlock()

	f.drainWg.Add(1)
	queue <- func() {
		defer f.drainWg.Done()
		task()
	}
}

func (f *Filler) report(reportChan chan<- ftypes.Report, orderID, phase, message string) {
	if reportChan == nil {
		return
	}
	select {
	case reportChan <- ftypes.Report{OrderID: orderID, Phase: phase, Message: message, Timestamp: time.Now()}:
	default:
		log.Printf("intentfiller: report channel full, dropping %s/%s", orderID, phase)
	}
}
