package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ChoSanghyuk/intentfiller/pkg/contractclient"
)

// Decrypt reverses the AES-GCM envelope the operator CLI uses to store the
// filler EOA's private key at rest, mirroring cmd/main.go's
// util.Decrypt([]byte(key), encryptedPk) call: key is the passphrase, enc is
// the hex-encoded ciphertext (nonce prefix + sealed box).
func Decrypt(key []byte, enc string) (string, error) {
	ciphertext, err := hex.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	sum := sha256.Sum256(key)
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext shorter than nonce")
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed box: %w", err)
	}

	return string(plain), nil
}

// ParsePrivateKey parses the decrypted hex private key into an ecdsa key,
// the helper pkg/ethutil supplies in the Hyperlane7683 reference filler.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return contractclient.ParsePrivateKeyHex(hexKey)
}
