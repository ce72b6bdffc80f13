// Package envelope implements the symmetric envelope encryption used for
// gated media: content bytes are sealed under a random per-post key, and that
// key is sealed under a single process-wide master key.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

// ErrIntegrity signals authentication-tag verification failure: the
// ciphertext was tampered with or the wrong key was used. Callers must treat
// it as a hard failure, never as recoverable plaintext.
var ErrIntegrity = errors.New("envelope: integrity check failed")

// GenerateContentKey returns a fresh random 256-bit key.
func GenerateContentKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate content key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext under key with AES-256-GCM. The nonce is freshly
// random per call and is never reused with the same key.
func Seal(plaintext, key []byte) (ciphertext, iv, tag []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - TagSize
	return sealed[:split], iv, sealed[split:], nil
}

// Open decrypts ciphertext sealed by Seal. It returns ErrIntegrity when the
// authentication tag does not verify.
func Open(ciphertext, key, iv, tag []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != NonceSize {
		return nil, fmt.Errorf("envelope: nonce must be %d bytes, got %d", NonceSize, len(iv))
	}
	if len(tag) != TagSize {
		return nil, fmt.Errorf("envelope: tag must be %d bytes, got %d", TagSize, len(tag))
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// EncodeBlob concatenates the at-rest media format:
// [12-byte IV][ciphertext][16-byte tag].
func EncodeBlob(iv, ciphertext, tag []byte) []byte {
	blob := make([]byte, 0, len(iv)+len(ciphertext)+len(tag))
	blob = append(blob, iv...)
	blob = append(blob, ciphertext...)
	blob = append(blob, tag...)
	return blob
}

// DecodeBlob splits a stored media blob back into its parts.
func DecodeBlob(blob []byte) (iv, ciphertext, tag []byte, err error) {
	if len(blob) < NonceSize+TagSize {
		return nil, nil, nil, fmt.Errorf("envelope: blob too short (%d bytes)", len(blob))
	}
	iv = blob[:NonceSize]
	ciphertext = blob[NonceSize : len(blob)-TagSize]
	tag = blob[len(blob)-TagSize:]
	return iv, ciphertext, tag, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("envelope: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// KeyEnvelope is the stored form of a wrapped content key: three base64
// fields persisted on the post record.
type KeyEnvelope struct {
	EncryptedKey string
	IV           string
	AuthTag      string
}

// Master wraps and unwraps content keys under the process master key.
type Master struct {
	key []byte
}

// NewMaster derives the master key from the configured secret: the secret's
// bytes zero-padded on the right, or truncated, to exactly 32 bytes. Stored
// envelopes remain readable only while the secret stays stable.
func NewMaster(secret string) (*Master, error) {
	if secret == "" {
		return nil, errors.New("envelope: master secret is required")
	}
	key := make([]byte, KeySize)
	copy(key, secret)
	return &Master{key: key}, nil
}

// SealContentKey wraps a content key under the master key.
func (m *Master) SealContentKey(key []byte) (KeyEnvelope, error) {
	ciphertext, iv, tag, err := Seal(key, m.key)
	if err != nil {
		return KeyEnvelope{}, err
	}
	return KeyEnvelope{
		EncryptedKey: base64.StdEncoding.EncodeToString(ciphertext),
		IV:           base64.StdEncoding.EncodeToString(iv),
		AuthTag:      base64.StdEncoding.EncodeToString(tag),
	}, nil
}

// OpenContentKey unwraps a stored key envelope. Returns ErrIntegrity when
// the envelope was tampered with or sealed under a different master secret.
func (m *Master) OpenContentKey(env KeyEnvelope) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(env.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("envelope: decoding encrypted key: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("envelope: decoding iv: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	if err != nil {
		return nil, fmt.Errorf("envelope: decoding auth tag: %w", err)
	}
	return Open(ciphertext, m.key, iv, tag)
}
