package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt.MinCost (4) keeps these tests fast; the cost does not change behavior.
func newTestPassphrase() *Passphrase {
	return NewPassphraseWithCost(bcrypt.MinCost)
}

func TestPassphrase_HashAndVerify(t *testing.T) {
	p := newTestPassphrase()

	hash, err := p.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("Hash() = %q, want a bcrypt hash", hash)
	}
	if err := p.Verify(hash, "correct horse battery staple"); err != nil {
		t.Errorf("Verify() correct passphrase: %v", err)
	}
	if err := p.Verify(hash, "wrong"); !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("Verify() wrong passphrase: err = %v, want ErrWrongPassphrase", err)
	}
}

func TestPassphrase_SaltedHashesDiffer(t *testing.T) {
	p := newTestPassphrase()
	h1, _ := p.Hash("same")
	h2, _ := p.Hash("same")
	if h1 == h2 {
		t.Error("Hash() produced identical hashes; salt missing")
	}
}

func TestPassphrase_HashRejects(t *testing.T) {
	p := newTestPassphrase()
	if _, err := p.Hash(""); err == nil {
		t.Error("Hash(\"\") should fail")
	}
	if _, err := p.Hash(strings.Repeat("a", 73)); err == nil {
		t.Error("Hash() should reject passphrases over 72 bytes")
	}
}

func TestPassphrase_VerifyMalformedHash(t *testing.T) {
	err := newTestPassphrase().Verify("not-a-hash", "x")
	if err == nil || errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("Verify() malformed hash: err = %v, want a non-mismatch error", err)
	}
}
