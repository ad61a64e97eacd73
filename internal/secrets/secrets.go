// Package secrets implements reversible encryption of refresh tokens at rest.
//
// Tokens are sealed with AES-256-GCM under a process-wide key supplied at
// startup. Every call to [Codec.Encrypt] draws a fresh random nonce; the
// nonce is stored alongside the ciphertext and both travel as hex strings
// so they fit in plain TEXT columns.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// Codec encrypts and decrypts credential strings with a static symmetric key.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec creates a Codec from a 32-byte key. Construction failures are
// returned, never panicked; callers must treat them as a hard stop for any
// path that persists credentials.
func NewCodec(key string) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to construct cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to construct GCM: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext and returns hex-encoded ciphertext and nonce.
func (c *Codec) Encrypt(plaintext string) (ciphertext, nonce string, err error) {
	raw := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, raw, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), hex.EncodeToString(raw), nil
}

// Decrypt is the exact inverse of [Codec.Encrypt]. A corrupted nonce or
// ciphertext surfaces as an error, not a crash: GCM authentication rejects
// any tampered input.
func (c *Codec) Decrypt(ciphertext, nonce string) (string, error) {
	sealed, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}

	raw, err := hex.DecodeString(nonce)
	if err != nil {
		return "", fmt.Errorf("malformed nonce: %w", err)
	}
	if len(raw) != c.aead.NonceSize() {
		return "", fmt.Errorf("nonce must be %d bytes, got %d", c.aead.NonceSize(), len(raw))
	}

	plaintext, err := c.aead.Open(nil, raw, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}
