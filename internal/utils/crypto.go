// internal/utils/crypto.go
package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values produced by Sealer.Seal
const sealedPrefix = "enc:v1:"

// Sealer encrypts short secrets at rest using AES-GCM with a key derived from a passphrase.
// A nil Sealer passes values through unchanged.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a sealer from a passphrase. An empty passphrase returns nil.
func NewSealer(passphrase string) (*Sealer, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, nil
	}
	key := sha256.Sum256([]byte(passphrase))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// Seal encrypts plaintext
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil {
		return plaintext, nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a value produced by Seal. Unsealed values are returned as-is so
// records written before a secret was configured stay readable.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if s == nil {
		return "", fmt.Errorf("value is sealed but no secret is configured")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", err
	}

	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// MaskSecret hides the middle of a credential for display
func MaskSecret(secret string) string {
	if len(secret) < 10 {
		return strings.Repeat("•", len(secret))
	}
	return secret[:4] + strings.Repeat("•", 25) + secret[len(secret)-6:]
}

// SecretTail renders only the last four characters, for error messages
func SecretTail(secret string) string {
	if len(secret) <= 4 {
		return "••••"
	}
	return "••••" + secret[len(secret)-4:]
}
