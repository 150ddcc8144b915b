// Package keys manages the secp256k1 signing keys used to submit transactions.
// Keys can be configured in plain hex or encrypted at rest with AES-256-GCM under a master key.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

const privateKeySize = 32

// GenerateSignerKey generates a new random secp256k1 signing key
func GenerateSignerKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}
	return key, nil
}

// DeriveSignerKey deterministically derives a signing key from a label and a seed.
// The same (label, seed) pair always yields the same key.
func DeriveSignerKey(label string, seed []byte) (*ecdsa.PrivateKey, error) {
	if len(seed) < 32 {
		return nil, errors.New("seed must be at least 32 bytes")
	}

	reader := hkdf.New(sha256.New, seed, nil, []byte("signer-key-"+label))
	raw := make([]byte, privateKeySize)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return nil, fmt.Errorf("failed to derive key seed: %w", err)
	}

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create private key: %w", err)
	}
	return key, nil
}

// ParsePrivateKey parses a hex private key, with or without 0x prefix
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	return key, nil
}

// EncryptPrivateKey encrypts the private key using AES-256-GCM with the provided master key.
// Returns base64(nonce || ciphertext || tag).
func EncryptPrivateKey(key *ecdsa.PrivateKey, masterKey []byte) (string, error) {
	if len(masterKey) != 32 {
		return "", errors.New("master key must be 32 bytes (AES-256)")
	}

	gcm, err := newGCM(masterKey)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, crypto.FromECDSA(key), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey
func DecryptPrivateKey(encrypted string, masterKey []byte) (*ecdsa.PrivateKey, error) {
	if len(masterKey) != 32 {
		return nil, errors.New("master key must be 32 bytes (AES-256)")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	if len(plaintext) != privateKeySize {
		return nil, fmt.Errorf("decrypted key has wrong size: got %d, want %d", len(plaintext), privateKeySize)
	}

	key, err := crypto.ToECDSA(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to create private key: %w", err)
	}
	return key, nil
}

func newGCM(masterKey []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// GenerateMasterKey generates a new random 32-byte master key
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	return key, nil
}

// MasterKeyFromBase64 decodes a base64-encoded master key
func MasterKeyFromBase64(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode master key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// MasterKeyToBase64 encodes a master key as base64 for storage
func MasterKeyToBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
