// Package attachseal encrypts attachment originals before they enter blob
// storage. Originals never rest unencrypted outside capsule scope; the
// capsule carries the sealed blob's ref and the plaintext hash.
package attachseal

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the sealing key length in bytes.
const KeySize = chacha20poly1305.KeySize

// Sealer seals and opens attachment payloads with XChaCha20-Poly1305.
// The attachment id is bound as associated data, so a sealed blob cannot
// be swapped between attachments.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// GenerateKey returns a fresh random sealing key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate sealing key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext bound to attachmentID. The random nonce is
// prepended to the ciphertext.
func (s *Sealer) Seal(attachmentID string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(attachmentID)), nil
}

// Open decrypts a sealed payload for the given attachment id.
func (s *Sealer) Open(attachmentID string, sealed []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, fmt.Errorf("sealed payload too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(attachmentID))
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}
	return plaintext, nil
}
