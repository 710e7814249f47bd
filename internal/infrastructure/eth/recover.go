package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-auth-api/internal/domain"
)

// ErrInvalidSignature is returned for any signature that cannot be decoded
// or recovered. Malformed input never panics or surfaces a library error.
var ErrInvalidSignature = fmt.Errorf("invalid signature: %w", domain.ErrUnauthorized)

// Recoverer recovers the signer address from a signed message. The concrete
// signing scheme stays behind this interface so it can be swapped without
// touching the wallet-link flow.
type Recoverer interface {
	RecoverAddress(message, signature string) (string, error)
}

// personalSignRecoverer implements EIP-191 personal-sign recovery, the
// scheme wallets use for eth_sign / personal_sign.
type personalSignRecoverer struct{}

func NewPersonalSignRecoverer() Recoverer {
	return personalSignRecoverer{}
}

// RecoverAddress returns the 0x-prefixed checksummed address that produced
// signature over message.
func (personalSignRecoverer) RecoverAddress(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", ErrInvalidSignature)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes, got %d: %w", len(sig), ErrInvalidSignature)
	}

	// Wallets emit V as 27/28; go-ethereum expects 0/1.
	v := make([]byte, 65)
	copy(v, sig)
	if v[64] >= 27 {
		v[64] -= 27
	}
	if v[64] > 1 {
		return "", fmt.Errorf("invalid recovery id: %w", ErrInvalidSignature)
	}

	hash := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(hash, v)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", ErrInvalidSignature)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
