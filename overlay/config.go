// Package overlay carries Tendermint p2p traffic over the Yggdrasil network.
// Each node exposes its p2p port on its Yggdrasil address and reaches its
// persistent peers through local TCP forwards.
package overlay

import (
	"fmt"

	"github.com/spf13/viper"
)

// DefaultPort is the Yggdrasil-side port every node listens on for p2p.
const DefaultPort = 4224

// PeersAuto selects public peers by latency at startup.
const PeersAuto = "auto"

type Config struct {
	Enabled           bool     `mapstructure:"enabled"`
	AdminListen       string   `mapstructure:"admin_listen"`
	Listen            []string `mapstructure:"listen"`
	Peers             []string `mapstructure:"peers"`
	AllowedPublicKeys []string `mapstructure:"allowed_public_keys"`
	PrivateKeyFile    string   `mapstructure:"private_key_file"`
	// PeersFile is read when public peers cannot be fetched.
	PeersFile string `mapstructure:"peers_file"`
	// P2PMapping is "<ygg port>:<local host>:<local port>" for the node's own
	// p2p listener.
	P2PMapping string `mapstructure:"p2p_mapping"`
	// PersistentPeers uses the Tendermint "id@ygg://[addr]:port" notation.
	PersistentPeers string `mapstructure:"persistent_peers"`
}

func DefaultConfig() Config {
	return Config{
		AdminListen:    "none",
		Peers:          []string{PeersAuto},
		PrivateKeyFile: "./config/yggdrasil.key",
		PeersFile:      "peers.txt",
		P2PMapping:     fmt.Sprintf("%d:127.0.0.1:26656", DefaultPort),
	}
}

// ConfigFrom reads the [overlay] section on top of the defaults.
func ConfigFrom(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	sub := v.Sub("overlay")
	if sub == nil {
		return cfg, nil
	}
	if err := sub.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("overlay config: %w", err)
	}
	return cfg, nil
}

// Settings renders cfg for writing back into the config file.
func (c Config) Settings() map[string]any {
	return map[string]any{
		"enabled":             c.Enabled,
		"admin_listen":        c.AdminListen,
		"listen":              c.Listen,
		"peers":               c.Peers,
		"allowed_public_keys": c.AllowedPublicKeys,
		"private_key_file":    c.PrivateKeyFile,
		"peers_file":          c.PeersFile,
		"p2p_mapping":         c.P2PMapping,
		"persistent_peers":    c.PersistentPeers,
	}
}

func (c Config) autoPeers() bool {
	return len(c.Peers) == 1 && c.Peers[0] == PeersAuto
}
