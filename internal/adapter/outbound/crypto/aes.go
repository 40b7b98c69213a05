package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/elevare/server/internal/port/outbound"
	"golang.org/x/crypto/hkdf"
)

// hkdfInfo binds derived keys to their purpose.
const hkdfInfo = "elevare provider credentials v1"

// ErrEmptyMasterKey is returned when no master key is configured.
var ErrEmptyMasterKey = errors.New("crypto: empty master key")

// cryptoAdapter implements outbound.CryptoPort with AES-256-GCM.
type cryptoAdapter struct {
	aead cipher.AEAD
}

// NewCryptoAdapter derives a 32-byte key from the master key with HKDF-SHA256.
func NewCryptoAdapter(masterKey string) (outbound.CryptoPort, error) {
	if masterKey == "" {
		return nil, ErrEmptyMasterKey
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(masterKey), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &cryptoAdapter{aead: aead}, nil
}

// Encrypt seals plaintext; the output is base64(nonce || ciphertext).
func (c *cryptoAdapter) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (c *cryptoAdapter) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// Compile-time check
var _ outbound.CryptoPort = (*cryptoAdapter)(nil)
