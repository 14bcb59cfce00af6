package configfunctions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/privval"
	tmTypes "github.com/tendermint/tendermint/types"

	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/overlay"
)

// EnvPrefix prefixes environment overrides, e.g. BOUNTY_GATEWAY_LISTEN.
const EnvPrefix = "BOUNTY"

// AppConfig holds the non-Tendermint sections of config.toml.
type AppConfig struct {
	KeyFile    string        // [bounty] key_file
	Node       string        // [bounty] node, RPC address used by tx/query
	Listen     string        // [gateway] listen
	GCInterval time.Duration // [maintenance] gc_interval
	LogLevel   string        // [bounty] log_level
}

func DefaultAppConfig(rootDir string) AppConfig {
	return AppConfig{
		KeyFile:    filepath.Join(rootDir, "config", "wallet.key"),
		Node:       "tcp://127.0.0.1:26657",
		Listen:     ":8080",
		GCInterval: 10 * time.Minute,
		LogLevel:   "info",
	}
}

func setAppDefaults(v *viper.Viper, rootDir string) {
	d := DefaultAppConfig(rootDir)
	v.SetDefault("bounty.key_file", d.KeyFile)
	v.SetDefault("bounty.node", d.Node)
	v.SetDefault("bounty.log_level", d.LogLevel)
	v.SetDefault("gateway.listen", d.Listen)
	v.SetDefault("maintenance.gc_interval", d.GCInterval.String())
}

func ReadAppConfig(v *viper.Viper) AppConfig {
	return AppConfig{
		KeyFile:    v.GetString("bounty.key_file"),
		Node:       v.GetString("bounty.node"),
		Listen:     v.GetString("gateway.listen"),
		GCInterval: v.GetDuration("maintenance.gc_interval"),
		LogLevel:   v.GetString("bounty.log_level"),
	}
}

// RootDir is the node home: config.toml lives in <root>/config.
func RootDir(configPath string) string {
	return filepath.Dir(filepath.Dir(configPath))
}

// LoadViperConfig reads config.toml after loading an optional .env, so that
// BOUNTY_* variables from either source override the file.
func LoadViperConfig(configPath string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return v, err
	}
	return v, nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setAppDefaults(v, RootDir(configPath))
	return v
}

func InitTendermintFiles(config *cfg.Config, isGenesis bool, chainName string, appState json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(config.PrivValidatorKeyFile()), 0700); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(config.RootDir, "data"), 0700); err != nil {
		return err
	}

	pv := privval.LoadOrGenFilePV(
		config.PrivValidatorKeyFile(),
		config.PrivValidatorStateFile(),
	)
	if _, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile()); err != nil {
		return err
	}
	key, err := pv.GetPubKey()
	if err != nil {
		return err
	}

	if !isGenesis {
		return nil
	}
	genDoc := &tmTypes.GenesisDoc{
		ChainID:         chainName,
		GenesisTime:     time.Now(),
		ConsensusParams: tmTypes.DefaultConsensusParams(),
		Validators: []tmTypes.GenesisValidator{
			{
				Address: key.Address(),
				PubKey:  key,
				Power:   10,
				Name:    config.Moniker,
			},
		},
		AppHash:  []byte{},
		AppState: appState,
	}
	return genDoc.SaveAs(config.GenesisFile())
}

// GenesisAppState encodes the app_state section: params plus the initial
// allocations.
func GenesisAppState(params any, accounts []types.GenesisAccount) (json.RawMessage, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(types.Genesis{Params: rawParams, Accounts: accounts})
}

// WriteConfig stores the Tendermint settings and the application sections in
// configPath and returns a viper bound to the file.
func WriteConfig(config *cfg.Config, configPath string, app AppConfig, ov overlay.Config) (*viper.Viper, error) {
	v := newViper(configPath)

	v.Set("moniker", config.Moniker)
	v.Set("db_backend", config.DBBackend)
	v.Set("db_dir", config.DBPath)
	v.Set("log_level", config.LogLevel)
	v.Set("log_format", config.LogFormat)
	v.Set("genesis_file", config.Genesis)
	v.Set("node_key_file", config.NodeKey)
	v.Set("abci", config.ABCI)
	v.Set("filter_peers", config.FilterPeers)

	v.Set("priv_validator_key_file", config.PrivValidatorKey)
	v.Set("priv_validator_state_file", config.PrivValidatorState)
	v.Set("priv_validator_laddr", config.PrivValidatorListenAddr)

	v.Set("rpc", map[string]any{
		"laddr": config.RPC.ListenAddress,
	})

	if a := ReadP2Peers(configPath); a != "" && config.P2P.PersistentPeers == "" {
		config.P2P.PersistentPeers = a
	}
	v.Set("p2p", map[string]any{
		"laddr":            config.P2P.ListenAddress,
		"external_address": config.P2P.ExternalAddress,
		"upnp":             false,
		"persistent_peers": config.P2P.PersistentPeers,
		"addr_book_file":   config.P2P.AddrBook,
		"addr_book_strict": false,
	})

	v.Set("bounty", map[string]any{
		"key_file":  app.KeyFile,
		"node":      app.Node,
		"log_level": app.LogLevel,
	})
	v.Set("gateway", map[string]any{"listen": app.Listen})
	v.Set("maintenance", map[string]any{"gc_interval": app.GCInterval.String()})

	if ov.PersistentPeers == "" {
		ov.PersistentPeers = config.P2P.PersistentPeers
	}
	v.Set("overlay", ov.Settings())

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return nil, err
	}
	if err := v.WriteConfigAs(configPath); err != nil {
		return nil, fmt.Errorf("error writing config: %w", err)
	}
	return v, nil
}

// ReadConfig decodes the Tendermint part of the config file.
func ReadConfig(v *viper.Viper, configFile string) (*cfg.Config, error) {
	config := cfg.DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("viper unmarshal: %w", err)
	}
	config.SetRoot(RootDir(configFile))

	if err := config.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}
	return config, nil
}

func DefaultConfig(configPath string) *cfg.Config {
	config := cfg.DefaultConfig()
	config.SetRoot(RootDir(configPath))
	return config
}

// ReadP2Peers returns the "p2peers" entry the genesis node put into
// genesis.json next to configFile.
func ReadP2Peers(configFile string) string {
	var genesis map[string]any
	genesisJson, err := os.ReadFile(filepath.Join(filepath.Dir(configFile), "genesis.json"))
	if err != nil {
		return ""
	}
	_ = json.Unmarshal(genesisJson, &genesis)
	p2peers, _ := genesis["p2peers"].(string)
	return p2peers
}

// UpdateGenesisJson records how joiners reach the genesis node.
func UpdateGenesisJson(nodeInfo p2p.NodeInfo, peer string, configDir string) error {
	genesisJsonPath := filepath.Join(configDir, "genesis.json")
	file, err := os.ReadFile(genesisJsonPath)
	if err != nil {
		return err
	}

	var dat map[string]any
	if err := json.Unmarshal(file, &dat); err != nil {
		return err
	}
	if peer == "" {
		peer = fmt.Sprintf("%s@%s", nodeInfo.ID(), "127.0.0.1:26656")
	}
	dat["p2peers"] = peer

	out, err := json.MarshalIndent(dat, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(genesisJsonPath, out, 0o644)
}

// CopyFile copies src to dst, creating dst's directory.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err = os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Sync()
		_ = out.Close()
	}()

	_, err = io.Copy(out, in)
	return err
}
