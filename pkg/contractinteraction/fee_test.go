package contractinteraction

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostRequestFee_ClampsToFloor(t *testing.T) {
	fee := PostRequestFee(big.NewInt(10), 4) // ceil(4/2)=2, clamped to 32
	assert.Equal(t, big.NewInt(320), fee)
}

func TestPostRequestFee_AboveFloor(t *testing.T) {
	fee := PostRequestFee(big.NewInt(10), 128) // ceil(128/2)=64
	assert.Equal(t, big.NewInt(640), fee)
}

func TestEncodePostBody_Length(t *testing.T) {
	var commitment [32]byte
	copy(commitment[:], []byte("abcdefghijklmnopqrstuvwxyz012345"))

	body := EncodePostBody(commitment, big.NewInt(42))
	assert.Len(t, body, 64)
	assert.Equal(t, commitment[:], body[:32])
}

func TestEncodePostBody_NilFee(t *testing.T) {
	var commitment [32]byte
	body := EncodePostBody(commitment, nil)
	assert.Len(t, body, 64)
	for _, b := range body[32:] {
		assert.Equal(t, byte(0), b)
	}
}
