package overlay

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	yggAddress "github.com/yggdrasil-network/yggdrasil-go/src/address"
	yggConfig "github.com/yggdrasil-network/yggdrasil-go/src/config"
)

func GeneratePrivateKey() yggConfig.KeyBytes {
	return yggConfig.GenerateConfig().PrivateKey
}

// EnsurePrivateKey writes a fresh hex-encoded key to path unless one exists.
func EnsurePrivateKey(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	key := GeneratePrivateKey()
	return os.WriteFile(path, []byte(hex.EncodeToString(key[:])), 0o600)
}

func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key hex: %w", err)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: %d", len(decoded))
	}
	return ed25519.PrivateKey(decoded), nil
}

func PublicKey(path string) (ed25519.PublicKey, error) {
	priv, err := LoadPrivateKey(path)
	if err != nil {
		return nil, err
	}
	return priv.Public().(ed25519.PublicKey), nil
}

// AddressOf returns the Yggdrasil IPv6 address owned by the key at path.
func AddressOf(path string) (string, error) {
	pub, err := PublicKey(path)
	if err != nil {
		return "", err
	}
	addr := yggAddress.AddrForKey(pub)
	if addr == nil {
		return "", errors.New("no yggdrasil address for key")
	}
	return net.IP(addr[:]).String(), nil
}

// SelfPeer is the persistent peer entry other nodes use to reach this one.
func SelfPeer(nodeID string, keyPath string) (string, error) {
	ip, err := AddressOf(keyPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s@ygg://[%s]:%d", nodeID, ip, DefaultPort), nil
}

// nodeConfig builds the yggdrasil node config around the key stored in cfg.
func nodeConfig(cfg Config, peers []string) (*yggConfig.NodeConfig, error) {
	node := yggConfig.GenerateConfig()
	node.AdminListen = cfg.AdminListen
	node.Listen = cfg.Listen
	node.Peers = peers
	node.AllowedPublicKeys = cfg.AllowedPublicKeys
	if cfg.PrivateKeyFile != "" {
		priv, err := LoadPrivateKey(cfg.PrivateKeyFile)
		if err != nil {
			return nil, err
		}
		node.PrivateKey = yggConfig.KeyBytes(priv)
		node.PrivateKeyPath = cfg.PrivateKeyFile
		if err := node.GenerateSelfSignedCertificate(); err != nil {
			return nil, fmt.Errorf("failed to generate certificate from private key: %w", err)
		}
	}
	return node, nil
}
