package contractinteraction

import (
	"math/big"
)

// minPostBodyBytes is the floor bodyLen is clamped to before the per-byte
// fee is charged.
const minPostBodyBytes = 32

// PostRequestFee computes the ISMP post-request quote:
// perByteFee * max(32, ceil(bodyLen/2)).
func PostRequestFee(perByteFee *big.Int, bodyLen int) *big.Int {
	units := (bodyLen + 1) / 2 // ceil(bodyLen/2)
	if units < minPostBodyBytes {
		units = minPostBodyBytes
	}
	return new(big.Int).Mul(perByteFee, big.NewInt(int64(units)))
}

// EncodePostBody builds the ISMP post-request body the gateway would use
// to redeem escrow back to the source chain for commitment. The exact
// gateway wire format is opaque upstream; this packs the commitment
// followed by the relayer fee as one 32-byte big-endian word (64 bytes in
// all), which is sufficient to derive a stable bodyLen for fee quoting
// purposes.
func EncodePostBody(commitment [32]byte, relayerFee *big.Int) []byte {
	feeWord := make([]byte, 32)
	if relayerFee != nil {
		relayerFee.FillBytes(feeWord)
	}
	body := make([]byte, 0, 64)
	body = append(body, commitment[:]...)
	body = append(body, feeWord...)
	return body
}
