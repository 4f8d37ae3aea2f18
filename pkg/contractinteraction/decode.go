package contractinteraction

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// OrderDecoder implements pkg/monitor.Decoder, unpacking one OrderPlaced
// log and stamping the commitment-derived id.
type OrderDecoder struct {
	GatewayABI abi.ABI
}

type rawOrderPlaced struct {
	User        [32]byte
	SourceChain []byte
	DestChain   []byte
	Deadline    *big.Int
	Nonce       *big.Int
	Fees        *big.Int
	Outputs     []rawOutput
	Inputs      []rawInput
	CallData    []byte
}

type rawOutput struct {
	Token       [32]byte
	Amount      *big.Int
	Beneficiary [32]byte
}

type rawInput struct {
	Token  [32]byte
	Amount *big.Int
}

// DecodeOrderPlaced unpacks logData against the OrderPlaced event and
// builds a normalized Order, recomputing id via Commitment.
func (d *OrderDecoder) DecodeOrderPlaced(chain string, logTopics [][32]byte, logData []byte, blockNumber uint64, logIndex uint, txHash [32]byte) (ftypes.Order, error) {
	event, ok := d.GatewayABI.Events["OrderPlaced"]
	if !ok {
		return ftypes.Order{}, fmt.Errorf("gateway ABI has no OrderPlaced event")
	}

	var raw rawOrderPlaced
	if err := event.Inputs.Unpack(&raw, logData); err != nil {
		return ftypes.Order{}, fmt.Errorf("unpack OrderPlaced: %w", err)
	}

	order := ftypes.Order{
		User:         raw.User,
		SourceChain:  string(raw.SourceChain),
		DestChain:    string(raw.DestChain),
		Deadline:     raw.Deadline,
		Nonce:        raw.Nonce,
		Fees:         raw.Fees,
		CallData:     raw.CallData,
		SourceTxHash: common.Hash(txHash),
		BlockNumber:  blockNumber,
		LogIndex:     logIndex,
	}

	for _, out := range raw.Outputs {
		order.Outputs = append(order.Outputs, ftypes.Output{
			Token:       ftypes.TokenID(out.Token),
			Amount:      out.Amount,
			Beneficiary: out.Beneficiary,
		})
	}
	for _, in := range raw.Inputs {
		order.Inputs = append(order.Inputs, ftypes.Input{
			Token:  ftypes.TokenID(in.Token),
			Amount: in.Amount,
		})
	}

	order.ID = Commitment(order)

	_ = chain // chain is carried by the caller's bookkeeping, not part of the commitment
	return order, nil
}
