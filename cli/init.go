package cli

import (
	"crypto/ed25519"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/blockchain"
	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/client"
	cfg "github.com/gregorybednov/bountychain/configfunctions"
	"github.com/gregorybednov/bountychain/market"
	"github.com/gregorybednov/bountychain/overlay"
)

var (
	initMoniker     string
	initOverlay     bool
	initFund        uint64
	initFaucetLimit uint64
)

var initCmd = &cobra.Command{
	Use:   "init [genesis|join] [genesis-path]",
	Short: "Initialize a node: genesis or join",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "genesis":
			if err := initGenesis(); err != nil {
				return err
			}
			fmt.Println("Genesis node initialized.")
		case "join":
			if len(args) < 2 {
				return fmt.Errorf("path to genesis.json is required")
			}
			if err := initJoiner(args[1]); err != nil {
				return err
			}
			fmt.Println("Joiner node initialized.")
		default:
			return fmt.Errorf("unknown init mode: %s", args[0])
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initMoniker, "moniker", "", "Node name (default: Tendermint's host-based name)")
	initCmd.Flags().BoolVar(&initOverlay, "overlay", false, "Carry p2p traffic over Yggdrasil")
	initCmd.Flags().Uint64Var(&initFund, "fund", 1000, "Whole units credited to the local wallet at genesis")
	initCmd.Flags().Uint64Var(&initFaucetLimit, "faucet-limit", 0, "Largest airdrop in minor units, 0 disables the faucet")
	rootCmd.AddCommand(initCmd)
}

// nodeSetup is what both init modes write.
type nodeSetup struct {
	root   string
	app    cfg.AppConfig
	ov     overlay.Config
	wallet ed25519.PrivateKey
}

func prepareNode() (*nodeSetup, error) {
	root := cfg.RootDir(configPath)
	s := &nodeSetup{
		root: root,
		app:  cfg.DefaultAppConfig(root),
		ov:   overlay.DefaultConfig(),
	}
	s.ov.Enabled = initOverlay
	s.ov.PrivateKeyFile = filepath.Join(root, "config", "yggdrasil.key")
	s.ov.PeersFile = filepath.Join(root, "config", "peers.txt")
	if initOverlay {
		if err := overlay.EnsurePrivateKey(s.ov.PrivateKeyFile); err != nil {
			return nil, fmt.Errorf("overlay key: %w", err)
		}
	}

	var err error
	if s.wallet, err = client.EnsureWallet(s.app.KeyFile); err != nil {
		return nil, fmt.Errorf("wallet key: %w", err)
	}
	return s, nil
}

func initGenesis() error {
	s, err := prepareNode()
	if err != nil {
		return err
	}
	config := cfg.DefaultConfig(configPath)
	if initMoniker != "" {
		config.Moniker = initMoniker
	}

	params := market.DefaultParams()
	params.FaucetLimit = initFaucetLimit
	funds, err := params.ToMinorUnits(initFund)
	if err != nil {
		return fmt.Errorf("fund: %w", err)
	}
	walletAddr, err := address.FromPublicKey(s.wallet.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	state, err := cfg.GenesisAppState(params, []types.GenesisAccount{{Address: walletAddr, Balance: funds}})
	if err != nil {
		return err
	}
	if err := cfg.InitTendermintFiles(config, true, chainName, state); err != nil {
		return fmt.Errorf("failed to init files: %w", err)
	}

	logger := newLogger("warn")
	nodeInfo, err := blockchain.GetNodeInfo(config, dbPath, logger)
	if err != nil {
		return fmt.Errorf("node info: %w", err)
	}
	var peer string
	if s.ov.Enabled {
		if peer, err = overlay.SelfPeer(string(nodeInfo.ID()), s.ov.PrivateKeyFile); err != nil {
			return err
		}
	}
	if err := cfg.UpdateGenesisJson(nodeInfo, peer, filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("update genesis: %w", err)
	}

	if _, err := cfg.WriteConfig(config, configPath, s.app, s.ov); err != nil {
		return err
	}
	fmt.Printf("Wallet %s funded with %d units.\n", walletAddr, initFund)
	return nil
}

func initJoiner(genesisPath string) error {
	s, err := prepareNode()
	if err != nil {
		return err
	}
	config := cfg.DefaultConfig(configPath)
	if initMoniker != "" {
		config.Moniker = initMoniker
	}
	if err := cfg.CopyFile(genesisPath, config.GenesisFile()); err != nil {
		return fmt.Errorf("failed to copy genesis.json: %w", err)
	}
	if err := cfg.InitTendermintFiles(config, false, chainName, nil); err != nil {
		return fmt.Errorf("failed to init files: %w", err)
	}
	if _, err := cfg.WriteConfig(config, configPath, s.app, s.ov); err != nil {
		return err
	}
	if config.P2P.PersistentPeers == "" {
		fmt.Println("genesis.json carries no p2peers entry; set p2p.persistent_peers by hand.")
	}
	return nil
}
