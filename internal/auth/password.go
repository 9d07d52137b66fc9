package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is bcrypt's work factor: 2^12 rounds, roughly 250ms per check.
const defaultCost = 12

// ErrWrongPassphrase is returned by Verify on a mismatch.
var ErrWrongPassphrase = errors.New("auth: wrong passphrase")

// Passphrase hashes and checks the server passphrase with bcrypt. Only the hash
// is ever stored in configuration (server.passphrase_hash).
type Passphrase struct {
	cost int
}

func NewPassphrase() *Passphrase {
	return &Passphrase{cost: defaultCost}
}

// NewPassphraseWithCost is for tests, where cost 12 would make every case slow.
func NewPassphraseWithCost(cost int) *Passphrase {
	return &Passphrase{cost: cost}
}

// Hash returns a bcrypt hash suitable for server.passphrase_hash.
// bcrypt silently ignores input past 72 bytes, so longer passphrases are rejected.
func (p *Passphrase) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("auth: passphrase must not be empty")
	}
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: passphrase must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing passphrase: %w", err)
	}
	return string(hashed), nil
}

// Verify compares plaintext with hash in constant time.
func (p *Passphrase) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrWrongPassphrase
	}
	if err != nil {
		return fmt.Errorf("auth: comparing passphrase hash: %w", err)
	}
	return nil
}
