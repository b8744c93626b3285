package cryptobox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const keyFileName = ".encryption_key"

// resolveKey implements the zero-config-in-development, explicit-config-in-
// production key chain: environment variable, then key file, then a freshly
// generated key persisted with owner-only permissions.
func resolveKey(dataDir string) ([]byte, error) {
	if v := os.Getenv(EnvKey); v != "" {
		key, err := decodeHexKey(v)
		if err != nil {
			return nil, fmt.Errorf("%s is set but invalid: %w", EnvKey, err)
		}
		return key, nil
	}

	keyPath := filepath.Join(dataDir, keyFileName)
	if data, err := os.ReadFile(keyPath); err == nil {
		if key, err := decodeHexKey(strings.TrimSpace(string(data))); err == nil {
			return key, nil
		}
		slog.Warn("ignoring malformed key file", "path", keyPath)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("persist encryption key: %w", err)
	}

	return key, nil
}

func decodeHexKey(s string) ([]byte, error) {
	if len(s) != keySize*2 {
		return nil, fmt.Errorf("key must be %d hex characters, got %d", keySize*2, len(s))
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("key is not valid hex: %w", err)
	}
	return key, nil
}
