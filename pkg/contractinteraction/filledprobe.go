package contractinteraction

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// defaultFilledMappingSlot is the gateway's `filled` mapping's storage
// slot.
const defaultFilledMappingSlot = 5

// IsFilled probes the gateway's filled-storage mapping for commitment:
// non-zero at the derived slot means the order was already filled,
// letting canFill short-circuit without further RPCs.
func IsFilled(ctx context.Context, client *ethclient.Client, gateway common.Address, commitment [32]byte) (bool, error) {
	return IsFilledAtSlot(ctx, client, gateway, commitment, defaultFilledMappingSlot)
}

// IsFilledAtSlot is IsFilled with an overridable mapping base slot, for
// gateways deployed with a non-default layout.
func IsFilledAtSlot(ctx context.Context, client *ethclient.Client, gateway common.Address, commitment [32]byte, mappingBaseSlot int64) (bool, error) {
	slot := filledSlot(commitment, mappingBaseSlot)

	value, err := client.StorageAt(ctx, gateway, slot, nil)
	if err != nil {
		return false, fmt.Errorf("read filled slot for gateway %s: %w", gateway.Hex(), err)
	}

	for _, b := range value {
		if b != 0 {
			return true, nil
		}
	}
	return false, nil
}

// filledSlot computes keccak256(abi.encodePacked(commitment, mappingBaseSlot)),
// the Solidity storage-layout derivation for mapping(bytes32 => uint256).
func filledSlot(commitment [32]byte, mappingBaseSlot int64) common.Hash {
	baseWord := make([]byte, 32)
	big.NewInt(mappingBaseSlot).FillBytes(baseWord)

	preimage := make([]byte, 0, 64)
	preimage = append(preimage, commitment[:]...)
	preimage = append(preimage, baseWord...)

	return crypto.Keccak256Hash(preimage)
}
