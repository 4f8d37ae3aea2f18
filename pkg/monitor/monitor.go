// Package monitor is the C5 Event Monitor: polls every configured source
// chain's gateway contract for OrderPlaced logs on a fixed tick, decodes
// them into normalized orders, and emits them on a channel. The polling
// loop's shape — ticker, per-chain goroutine, context-driven shutdown — is
// blackholedex's usual style for anything long-running, generalized here
// from one chain to N.
package monitor

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ChoSanghyuk/intentfiller/internal/util"
	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// orderPlacedEventName names the gateway event the monitor scans for; its
// keccak256 topic0 is resolved once per ABI at RegisterChain time.
const orderPlacedEventName = "OrderPlaced"

const (
	tickInterval   = 1000 * time.Millisecond
	maxBlockWindow = 1000
	retryAttempts  = 3
	retryBackoff   = 250 * time.Millisecond
)

// Decoder turns one raw OrderPlaced log into a domain Order, with the id
// already resolved via §4.7's commitment hash. Kept as an interface so the
// monitor package has no direct dependency on pkg/contractinteraction.
type Decoder interface {
	DecodeOrderPlaced(chain string, logTopics [][32]byte, logData []byte, blockNumber uint64, logIndex uint, txHash [32]byte) (ftypes.Order, error)
}

// chainState tracks one source chain's scan cursor and exclusive scan lock.
type chainState struct {
	mu          sync.Mutex
	lastScanned uint64
	client      *ethclient.Client
	gateway     abi.ABI
	gatewayAddr common.Address
	topic0      common.Hash
	limiter     *util.RateLimiter
}

// Monitor polls OrderPlaced logs on every registered chain.
type Monitor struct {
	chains   map[string]*chainState
	decoder  Decoder
	newOrder chan ftypes.Order
	seen     func(orderID string) bool
}

// New creates a Monitor. seen lets the monitor consult the cache so it
// never re-emits an order the orchestrator has already accepted, even
// across overlapping scan windows.
func New(decoder Decoder, seen func(orderID string) bool) *Monitor {
	return &Monitor{
		chains:   make(map[string]*chainState),
		decoder:  decoder,
		newOrder: make(chan ftypes.Order, 256),
		seen:     seen,
	}
}

// NewOrders returns the channel the monitor publishes decoded orders on.
func (m *Monitor) NewOrders() <-chan ftypes.Order {
	return m.newOrder
}

// RegisterChain starts tracking chain, initializing lastScanned to head-1
// so the first tick scans only the block the monitor started in. limiter
// may be nil to scan without throttling.
func (m *Monitor) RegisterChain(ctx context.Context, chain string, client *ethclient.Client, gatewayABI abi.ABI, gatewayAddr common.Address, limiter *util.RateLimiter) error {
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("monitor: fetch head for %s: %w", chain, err)
	}

	event, ok := gatewayABI.Events[orderPlacedEventName]
	if !ok {
		return fmt.Errorf("monitor: gateway ABI for %s has no %s event", chain, orderPlacedEventName)
	}

	lastScanned := uint64(0)
	if head > 0 {
		lastScanned = head - 1
	}

	m.chains[chain] = &chainState{
		lastScanned: lastScanned,
		client:      client,
		gateway:     gatewayABI,
		gatewayAddr: gatewayAddr,
		topic0:      event.ID,
		limiter:     limiter,
	}
	return nil
}

// Run starts one ticking goroutine per registered chain and blocks until
// ctx is cancelled, draining every chain's in-flight scan before returning
// — on shutdown, each chain's scan lock is taken once, then its ticker stops.
func (m *Monitor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for name, state := range m.chains {
		wg.Add(1)
		go func(chain string, st *chainState) {
			defer wg.Done()
			m.runChain(ctx, chain, st)
		}(name, state)
	}
	wg.Wait()
	close(m.newOrder)
}

func (m *Monitor) runChain(ctx context.Context, chain string, st *chainState) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			st.mu.Lock()
			st.mu.Unlock()
			return
		case <-ticker.C:
			if !st.mu.TryLock() {
				continue
			}
			m.scanOnce(ctx, chain, st)
			st.mu.Unlock()
		}
	}
}

func (m *Monitor) scanOnce(ctx context.Context, chain string, st *chainState) {
	if err := st.limiter.Wait(ctx); err != nil {
		return
	}

	head, err := st.client.BlockNumber(ctx)
	if err != nil {
		log.Printf("monitor: %s: fetch head: %v", chain, err)
		return
	}
	if head <= st.lastScanned {
		return
	}

	from := st.lastScanned + 1
	to := head
	if to > from+maxBlockWindow {
		to = from + maxBlockWindow
	}

	var logs []orderPlacedLog
	err = util.Retry(ctx, retryAttempts, retryBackoff, func() error {
		var fetchErr error
		logs, fetchErr = fetchOrderPlacedLogs(ctx, st.client, st.gatewayAddr, st.topic0, from, to)
		return fetchErr
	})
	if err != nil {
		log.Printf("monitor: %s: query logs [%d,%d]: %v", chain, from, to, err)
		return
	}

	for _, l := range logs {
		order, decodeErr := m.decoder.DecodeOrderPlaced(chain, l.topics, l.data, l.blockNumber, l.logIndex, l.txHash)
		if decodeErr != nil {
			log.Printf("monitor: %s: decode log at block %d idx %d: %v", chain, l.blockNumber, l.logIndex, decodeErr)
			continue
		}

		orderID := fmt.Sprintf("%x", order.ID)
		if m.seen != nil && m.seen(orderID) {
			continue
		}

		select {
		case m.newOrder <- order:
		case <-ctx.Done():
			return
		}
	}

	st.lastScanned = to
}

// orderPlacedLog is the raw shape a gateway log query returns before
// commitment-based decoding.
type orderPlacedLog struct {
	topics      [][32]byte
	data        []byte
	blockNumber uint64
	logIndex    uint
	txHash      [32]byte
}

// fetchOrderPlacedLogs queries the gateway contract's OrderPlaced event
// between from and to inclusive, through ethclient's FilterLogs.
func fetchOrderPlacedLogs(ctx context.Context, client *ethclient.Client, gateway common.Address, topic0 common.Hash, from, to uint64) ([]orderPlacedLog, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{gateway},
		Topics:    [][]common.Hash{{topic0}},
	}

	rawLogs, err := client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("filter logs: %w", err)
	}

	out := make([]orderPlacedLog, 0, len(rawLogs))
	for _, rl := range rawLogs {
		topics := make([][32]byte, 0, len(rl.Topics))
		for _, t := range rl.Topics {
			topics = append(topics, [32]byte(t))
		}
		out = append(out, orderPlacedLog{
			topics:      topics,
			data:        rl.Data,
			blockNumber: rl.BlockNumber,
			logIndex:    rl.Index,
			txHash:      [32]byte(rl.TxHash),
		})
	}
	return out, nil
}
