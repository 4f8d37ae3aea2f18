package contractinteraction

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

func sampleOrder() ftypes.Order {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	return ftypes.Order{
		User:        [32]byte{1, 2, 3},
		SourceChain: "EVM-97",
		DestChain:   "EVM-10200",
		Deadline:    big.NewInt(1000),
		Nonce:       big.NewInt(1),
		Fees:        big.NewInt(500),
		Inputs: []ftypes.Input{
			{Token: ftypes.TokenIDFromAddress(addr), Amount: big.NewInt(100)},
		},
		Outputs: []ftypes.Output{
			{Token: ftypes.TokenIDFromAddress(addr), Amount: big.NewInt(200), Beneficiary: [32]byte{9}},
		},
		CallData: []byte{0xde, 0xad},
	}
}

func TestCommitment_DeterministicForEqualOrders(t *testing.T) {
	a := Commitment(sampleOrder())
	b := Commitment(sampleOrder())
	assert.Equal(t, a, b)
}

func TestCommitment_DiffersOnNonceChange(t *testing.T) {
	a := sampleOrder()
	b := sampleOrder()
	b.Nonce = big.NewInt(2)
	assert.NotEqual(t, Commitment(a), Commitment(b))
}

func TestCommitment_DiffersOnCallData(t *testing.T) {
	a := sampleOrder()
	b := sampleOrder()
	b.CallData = []byte{0xbe, 0xef}
	assert.NotEqual(t, Commitment(a), Commitment(b))
}

func TestCommitment_IgnoresBookkeepingFields(t *testing.T) {
	a := sampleOrder()
	b := sampleOrder()
	b.BlockNumber = 999
	b.LogIndex = 7
	assert.Equal(t, Commitment(a), Commitment(b))
}
