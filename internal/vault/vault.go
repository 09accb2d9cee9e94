// Package vault encrypts per-tenant API credentials at rest.
//
// Secrets are sealed with AES-256-GCM under a process-wide key derived from the
// configured passphrase via argon2id. The nonce is generated per encryption and
// stored alongside the ciphertext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/smallbiznis/invois/internal/config"
	"go.uber.org/fx"
	"golang.org/x/crypto/argon2"
)

// Module provides the credential vault.
var Module = fx.Provide(New)

var (
	ErrMissingPassphrase = errors.New("vault passphrase not configured")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

type Vault struct {
	aead cipher.AEAD
}

// New derives the vault key from configuration and prepares the AEAD cipher.
func New(cfg config.Config) (*Vault, error) {
	if cfg.VaultPassphrase == "" {
		return nil, ErrMissingPassphrase
	}
	key := argon2.IDKey([]byte(cfg.VaultPassphrase), []byte(cfg.VaultSalt), 1, 64*1024, 4, 32)
	return NewWithKey(key)
}

// NewWithKey builds a vault around a raw 32-byte AES key.
func NewWithKey(key []byte) (*Vault, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals the plaintext and returns base64(nonce || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Decryption happens only in memory at call time.
func (v *Vault) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(raw) < v.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}
