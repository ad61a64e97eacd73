package secrets

import (
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestCodec(t *testing.T) {
	t.Run("NewCodec", func(t *testing.T) {
		t.Run("With Valid Key", func(t *testing.T) {
			codec, err := NewCodec(testKey)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if codec == nil {
				t.Fatal("expected codec to be created")
			}
		})

		t.Run("Key Too Short", func(t *testing.T) {
			_, err := NewCodec("short")
			if err == nil {
				t.Error("expected error for short key")
			}
		})

		t.Run("Key Too Long", func(t *testing.T) {
			_, err := NewCodec(testKey + "extra")
			if err == nil {
				t.Error("expected error for oversized key")
			}
		})
	})

	t.Run("Roundtrip", func(t *testing.T) {
		codec, err := NewCodec(testKey)
		if err != nil {
			t.Fatalf("failed to create codec: %v", err)
		}

		plaintext := "a-long-refresh-token-value"
		ciphertext, nonce, err := codec.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}

		if ciphertext == "" || nonce == "" {
			t.Fatal("expected non-empty ciphertext and nonce")
		}
		if strings.Contains(ciphertext, plaintext) {
			t.Error("ciphertext must not contain the plaintext")
		}

		decrypted, err := codec.Decrypt(ciphertext, nonce)
		if err != nil {
			t.Fatalf("decrypt failed: %v", err)
		}
		if decrypted != plaintext {
			t.Errorf("expected %q, got %q", plaintext, decrypted)
		}
	})

	t.Run("Nonce Is Fresh Per Call", func(t *testing.T) {
		codec, _ := NewCodec(testKey)

		_, nonce1, err := codec.Encrypt("value")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}
		_, nonce2, err := codec.Encrypt("value")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}

		if nonce1 == nonce2 {
			t.Error("expected a fresh nonce per call")
		}
	})

	t.Run("Decrypt", func(t *testing.T) {
		codec, _ := NewCodec(testKey)
		ciphertext, nonce, err := codec.Encrypt("value")
		if err != nil {
			t.Fatalf("encrypt failed: %v", err)
		}

		t.Run("Corrupted Ciphertext", func(t *testing.T) {
			corrupted := "00" + ciphertext[2:]
			if corrupted == ciphertext {
				corrupted = "ff" + ciphertext[2:]
			}
			if _, err := codec.Decrypt(corrupted, nonce); err == nil {
				t.Error("expected error for corrupted ciphertext")
			}
		})

		t.Run("Corrupted Nonce", func(t *testing.T) {
			corrupted := "00" + nonce[2:]
			if corrupted == nonce {
				corrupted = "ff" + nonce[2:]
			}
			if _, err := codec.Decrypt(ciphertext, corrupted); err == nil {
				t.Error("expected error for corrupted nonce")
			}
		})

		t.Run("Malformed Hex", func(t *testing.T) {
			if _, err := codec.Decrypt("not hex", nonce); err == nil {
				t.Error("expected error for malformed ciphertext")
			}
			if _, err := codec.Decrypt(ciphertext, "not hex"); err == nil {
				t.Error("expected error for malformed nonce")
			}
		})

		t.Run("Wrong Nonce Length", func(t *testing.T) {
			if _, err := codec.Decrypt(ciphertext, "abcd"); err == nil {
				t.Error("expected error for truncated nonce")
			}
		})

		t.Run("Wrong Key", func(t *testing.T) {
			other, _ := NewCodec("ffffffffffffffffffffffffffffffff")
			if _, err := other.Decrypt(ciphertext, nonce); err == nil {
				t.Error("expected error when decrypting with a different key")
			}
		})
	})
}
