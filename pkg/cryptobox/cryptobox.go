// Package cryptobox encrypts and decrypts opaque strings with a process-wide
// AES-256-GCM key. The key comes from the ENCRYPTION_KEY environment variable,
// a key file in the data directory, or is generated and persisted on first use.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// EnvKey is the environment variable holding a hex-encoded 32-byte key.
const EnvKey = "ENCRYPTION_KEY"

const keySize = 32

// ErrNotCiphertext is returned by Decrypt, together with the input unchanged,
// when the value is not in the iv:tag:payload format. Callers relying on the
// plaintext passthrough contract must check for it with errors.Is; everything
// else should treat it as a failure.
var ErrNotCiphertext = errors.New("value is not in encrypted format")

type Box struct {
	key []byte
}

// New creates a Box with the key resolved from the environment or the data
// directory. A present but malformed ENCRYPTION_KEY is a fatal configuration
// error rather than a silent fallback.
func New(dataDir string) (*Box, error) {
	key, err := resolveKey(dataDir)
	if err != nil {
		return nil, err
	}
	return &Box{key: key}, nil
}

// NewWithKey creates a Box from raw key bytes. Used by tests and callers that
// manage key material themselves.
func NewWithKey(key []byte) (*Box, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	return &Box{key: key}, nil
}

// Encrypt seals plaintext with a fresh IV and returns iv:tag:payload, each
// part hex-encoded. The empty string encrypts to the empty string.
func (b *Box) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := aesGCM.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the auth tag to the ciphertext; split it back out so the
	// stored format stays iv:tag:payload.
	tagStart := len(sealed) - aesGCM.Overhead()
	payload, tag := sealed[:tagStart], sealed[tagStart:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(payload), nil
}

// Decrypt opens an iv:tag:payload value. Input that does not look like
// ciphertext is returned unchanged alongside ErrNotCiphertext; an
// authentication failure on well-formed input is a hard error.
func (b *Box) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return value, ErrNotCiphertext
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil {
		return value, ErrNotCiphertext
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return value, ErrNotCiphertext
	}
	payload, err := hex.DecodeString(parts[2])
	if err != nil {
		return value, ErrNotCiphertext
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(nonce) != aesGCM.NonceSize() {
		return value, ErrNotCiphertext
	}

	plaintext, err := aesGCM.Open(nil, nonce, append(payload, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}

	return string(plaintext), nil
}
