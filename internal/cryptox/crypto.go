// Package cryptox seals small secrets (the session token) at rest with
// AES-GCM under a key derived from a passphrase with Argon2id.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/spendsmart/internal/common"
)

const (
	// KeySize is the AES-256 key length produced by DeriveKey.
	KeySize = 32
	// SaltSize is the recommended salt length for DeriveKey.
	SaltSize = 16
)

// ErrMalformed is returned by Open when the input is too short to hold a
// nonce and tag.
var ErrMalformed = errors.New("sealed value is malformed")

// DeriveKey stretches secret into a KeySize key. The same secret and salt
// always yield the same key.
func DeriveKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// NewSalt returns SaltSize random bytes.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// Sealer encrypts and authenticates values with AES-GCM.
// It is safe for concurrent use.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer for key, which must be 16, 24 or 32 bytes.
func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// NewPassphraseSealer derives a key from passphrase and salt and returns a
// Sealer for it.
func NewPassphraseSealer(passphrase string, salt []byte) (*Sealer, error) {
	key := DeriveKey([]byte(passphrase), salt)
	defer common.WipeByteArray(key)
	return NewSealer(key)
}

// Seal returns nonce||ciphertext. A fresh random nonce is used per call, so
// sealing the same plaintext twice gives different output.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := common.GenerateRandByteArray(s.aead.NonceSize())
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal. It fails if the value was tampered with or sealed
// under another key.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns+s.aead.Overhead() {
		return nil, ErrMalformed
	}
	return s.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
}
