package password

import "golang.org/x/crypto/bcrypt"

// Hasher hashes and verifies passwords. The concrete algorithm stays behind
// this interface so services and tests never touch bcrypt directly.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, hash string) bool
}

type bcryptHasher struct {
	cost int
}

func NewBcryptHasher() Hasher {
	return &bcryptHasher{cost: bcrypt.DefaultCost}
}

func (h *bcryptHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether plaintext matches hash. A mismatch is a normal
// false, never an error.
func (h *bcryptHasher) Compare(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
