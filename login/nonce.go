package login

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// nonceBytes is the entropy of a CSRF state nonce. 32 bytes keeps the value
// unguessable even against an attacker who has seen prior nonces.
const nonceBytes = 32

// NonceGenerator produces the single-use CSRF state values that tie a
// redirect callback back to the login that initiated it.
type NonceGenerator interface {
	Generate() (string, error)
}

// CryptoNonceGenerator draws nonces from crypto/rand, hex encoded.
type CryptoNonceGenerator struct{}

var _ NonceGenerator = CryptoNonceGenerator{}

func (CryptoNonceGenerator) Generate() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[CryptoNonceGenerator Generate] %w", err)
	}
	return hex.EncodeToString(b), nil
}
