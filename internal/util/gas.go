package util

import (
	"fmt"
	"math/big"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// ExtractGasCost parses a raw TxReceipt's hex gasUsed/effectiveGasPrice
// strings and returns gasUsed * effectiveGasPrice, the same computation
// blackholedex's Mint/Stake/Unstake perform inline after every
// WaitForTransaction call.
func ExtractGasCost(receipt *ftypes.TxReceipt) (*big.Int, error) {
	if receipt == nil {
		return nil, fmt.Errorf("nil receipt")
	}

	gasUsed := new(big.Int)
	if _, ok := gasUsed.SetString(receipt.GasUsed, 0); !ok {
		return nil, fmt.Errorf("invalid gasUsed %q", receipt.GasUsed)
	}

	gasPrice := new(big.Int)
	if _, ok := gasPrice.SetString(receipt.EffectiveGasPrice, 0); !ok {
		return nil, fmt.Errorf("invalid effectiveGasPrice %q", receipt.EffectiveGasPrice)
	}

	return new(big.Int).Mul(gasUsed, gasPrice), nil
}

// ReceiptStatusOK reports whether a raw hex status string denotes success
// ("0x1"), matching the comparison blackhole_test.go makes directly against
// receipt.Status.
func ReceiptStatusOK(receipt *ftypes.TxReceipt) bool {
	return receipt != nil && receipt.Status == "0x1"
}
