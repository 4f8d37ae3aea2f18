package contractinteraction

import (
	"context"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// CallSimulator implements pkg/swapplanner.Simulator over a plain
// *ethclient.Client: each call in the list is priced with eth_estimateGas
// in sequence, simulating the plan before it is committed, and the first
// call that reverts fails the whole plan.
type CallSimulator struct {
	Eth  *ethclient.Client
	From common.Address
}

// Simulate estimates gas for every call in order, returning the summed
// gas or the first error encountered.
func (s *CallSimulator) Simulate(ctx context.Context, calls []ftypes.Call) (uint64, error) {
	var total uint64
	for i, c := range calls {
		to := c.To
		gas, err := s.Eth.EstimateGas(ctx, ethereum.CallMsg{From: s.From, To: &to, Data: c.Data, Value: c.Value})
		if err != nil {
			return 0, fmt.Errorf("simulate call %d to %s: %w", i, to.Hex(), err)
		}
		total += gas
	}
	return total, nil
}
