package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gologme/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/gregorybednov/bountychain/configfunctions"
)

var (
	homeDir    string
	configPath string
	dbPath     string
	chainName  string
	nodeAddr   string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&homeDir, "home", ".", "Node home directory")
	flags.StringVar(&configPath, "config", "", "Path to config file (default <home>/config/config.toml)")
	flags.StringVar(&dbPath, "badger", "", "Path to BadgerDB (default <home>/badger)")
	flags.StringVar(&chainName, "chainname", "bounty-chain", "Chain name for a new genesis")
	flags.StringVar(&nodeAddr, "node", "", "Node RPC address, overrides [bounty] node")
}

var rootCmd = &cobra.Command{
	Use:          "bountychain",
	Short:        "Decentralized bounty marketplace node",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configPath == "" {
			configPath = filepath.Join(homeDir, "config", "config.toml")
		}
		if dbPath == "" {
			dbPath = filepath.Join(homeDir, "badger")
		}
	},
	RunE: runNode,
}

// env is the loaded configuration shared by the subcommands.
type env struct {
	v      *viper.Viper
	app    cfg.AppConfig
	logger *log.Logger
}

func loadEnv() (*env, error) {
	v, err := cfg.LoadViperConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf(`config file not found: %w

The node does not look initialized. Create the files with one of:

  bountychain init genesis              # start a new chain
  bountychain init join <genesis.json>  # join an existing one

Config is looked up at %s`, err, configPath)
	}
	app := cfg.ReadAppConfig(v)
	if nodeAddr != "" {
		app.Node = nodeAddr
	}
	return &env{v: v, app: app, logger: newLogger(app.LogLevel)}, nil
}

var logLevels = []string{"error", "warn", "info", "debug", "trace"}

// newLogger enables every level up to and including level.
func newLogger(level string) *log.Logger {
	logger := log.New(os.Stdout, "", log.Flags())
	for _, l := range logLevels {
		logger.EnableLevel(l)
		if l == level {
			break
		}
	}
	return logger
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
