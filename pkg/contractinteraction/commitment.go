// Package contractinteraction is the C7 Contract Interaction & Commitment
// layer: order-id hashing, the filled-storage probe, post-request fee
// quoting, fill gas estimation, and AMM quote aggregation across Uniswap
// v2/v3/v4. It is the package that actually drives *ethclient.Client the
// way blackholedex's Blackhole methods drove their single DEX contract —
// generalized to a gateway/router/quoter surface spanning several chains.
package contractinteraction

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	ftypes "github.com/ChoSanghyuk/intentfiller/pkg/types"
)

// Commitment computes the order's deterministic id: a keccak256 hash over
// the packed concatenation of every field the gateway's on-chain
// commitment algorithm hashes. The exact encoding is left
// implementation-defined by the gateway; this module resolves it as
// abi.encodePacked-style concatenation —
// fixed-width big-endian integers, raw chain-identifier bytes, and each
// tuple's fields packed in declaration order — so that two orders with
// equal fields always hash equal (testable property 1) and so a reader
// auditing it against a Solidity gateway can verify byte-for-byte.
func Commitment(o ftypes.Order) [32]byte {
	var buf []byte

	buf = append(buf, o.User[:]...)
	buf = append(buf, []byte(o.SourceChain)...)
	buf = append(buf, []byte(o.DestChain)...)
	buf = append(buf, padTo32(o.Deadline)...)
	buf = append(buf, padTo32(o.Nonce)...)
	buf = append(buf, padTo32(o.Fees)...)

	for _, out := range o.Outputs {
		buf = append(buf, out.Token[:]...)
		buf = append(buf, padTo32(out.Amount)...)
		buf = append(buf, out.Beneficiary[:]...)
	}
	for _, in := range o.Inputs {
		buf = append(buf, in.Token[:]...)
		buf = append(buf, padTo32(in.Amount)...)
	}

	buf = append(buf, o.CallData...)

	return [32]byte(crypto.Keccak256Hash(buf))
}

// padTo32 left-pads v into a 32-byte big-endian word, abi.encodePacked's
// treatment of a uint256 field. A nil v packs as zero.
func padTo32(v *big.Int) []byte {
	word := make([]byte, 32)
	if v == nil {
		return word
	}
	b := v.Bytes()
	copy(word[32-len(b):], b)
	return word
}
