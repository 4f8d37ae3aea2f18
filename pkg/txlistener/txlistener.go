// Package txlistener polls a destination chain for a transaction's receipt,
// the way blackholedex's txlistener.NewTxListener(client, WithPollInterval,
// WithTimeout) is used throughout blackhole.go and its tests.
package txlistener

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// TxListener waits for a submitted transaction's receipt.
type TxListener interface {
	WaitForTransaction(txHash common.Hash) (*ftypes.TxReceipt, error)
}

type listener struct {
	eth          *ethclient.Client
	pollInterval time.Duration
	timeout      time.Duration
}

type Option func(*listener)

func WithPollInterval(d time.Duration) Option {
	return func(l *listener) { l.pollInterval = d }
}

func WithTimeout(d time.Duration) Option {
	return func(l *listener) { l.timeout = d }
}

// NewTxListener mirrors blackholedex's constructor signature exactly.
func NewTxListener(eth *ethclient.Client, opts ...Option) TxListener {
	l := &listener{eth: eth, pollInterval: 3 * time.Second, timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *listener) WaitForTransaction(txHash common.Hash) (*ftypes.TxReceipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			return toTxReceipt(receipt), nil
		}
		if err != ethereum.NotFound {
			return nil, fmt.Errorf("get receipt for %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func toTxReceipt(r *coretypes.Receipt) *ftypes.TxReceipt {
	status := "0x0"
	if r.Status == 1 {
		status = "0x1"
	}

	logs := make([]ftypes.ReceiptLog, 0, len(r.Logs))
	for _, log := range r.Logs {
		logs = append(logs, ftypes.ReceiptLog{
			Address: log.Address,
			Topics:  log.Topics,
			Data:    hexutil.Encode(log.Data),
			Index:   hexutil.EncodeUint64(uint64(log.Index)),
		})
	}

	return &ftypes.TxReceipt{
		TxHash:            r.TxHash.Hex(),
		BlockNumber:       hexutil.EncodeBig(r.BlockNumber),
		Status:            status,
		GasUsed:           hexutil.EncodeUint64(r.GasUsed),
		EffectiveGasPrice: hexutil.EncodeBig(effectiveGasPrice(r)),
		Logs:              logs,
		ContractAddress:   r.ContractAddress,
	}
}

func effectiveGasPrice(r *coretypes.Receipt) *big.Int {
	if r.EffectiveGasPrice != nil {
		return r.EffectiveGasPrice
	}
	return big.NewInt(0)
}
