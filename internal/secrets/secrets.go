// Package secrets decrypts the opaque credential blobs the profile
// service stores. A decryption failure is fatal for that user's cycle
// only, never for the process.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
)

// Decrypter turns an opaque stored blob back into a plaintext secret.
type Decrypter interface {
	Decrypt(blob string) (string, error)
}

// AESGCM decrypts hex(nonce||ciphertext) blobs with a fixed 32-byte key.
type AESGCM struct {
	aead cipher.AEAD
}

func NewAESGCM(hexKey string) (*AESGCM, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("secrets: decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("secrets: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

func (a *AESGCM) Decrypt(blob string) (string, error) {
	raw, err := hex.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("secrets: decode blob: %w", err)
	}
	ns := a.aead.NonceSize()
	if len(raw) < ns {
		return "", fmt.Errorf("secrets: blob too short")
	}
	plain, err := a.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("secrets: open: %w", err)
	}
	return string(plain), nil
}
