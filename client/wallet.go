package client

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrWalletExists = errors.New("wallet key already exists")

// CreateWallet writes a new hex-encoded ed25519 key to path. It refuses to
// replace an existing file.
func CreateWallet(path string) (ed25519.PrivateKey, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrWalletExists, path)
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
		return nil, err
	}
	return priv, nil
}

// EnsureWallet loads the key at path, creating it first if missing.
func EnsureWallet(path string) (ed25519.PrivateKey, error) {
	priv, err := LoadWallet(path)
	if errors.Is(err, os.ErrNotExist) {
		return CreateWallet(path)
	}
	return priv, err
}

func LoadWallet(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode wallet key: %w", err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid wallet key size: %d", len(decoded))
	}
	return ed25519.PrivateKey(decoded), nil
}
