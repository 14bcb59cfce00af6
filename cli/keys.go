package cli

import (
	"crypto/ed25519"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/client"
	cfg "github.com/gregorybednov/bountychain/configfunctions"
)

var keyFile string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the wallet key",
}

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a wallet key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := walletPath()
		priv, err := client.CreateWallet(path)
		if err != nil {
			return err
		}
		fmt.Printf("Wallet written to %s\n", path)
		return printAddress(priv)
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the wallet address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, err := client.LoadWallet(walletPath())
		if err != nil {
			return err
		}
		return printAddress(priv)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&keyFile, "key", "", "Wallet key file (default [bounty] key_file)")
	keysCmd.AddCommand(keysNewCmd, keysShowCmd)
	rootCmd.AddCommand(keysCmd)
}

// walletPath prefers --key, then the config file, then the default location
// under --home.
func walletPath() string {
	if keyFile != "" {
		return keyFile
	}
	if e, err := loadEnv(); err == nil {
		return e.app.KeyFile
	}
	return cfg.DefaultAppConfig(cfg.RootDir(configPath)).KeyFile
}

func loadWallet() (ed25519.PrivateKey, error) {
	priv, err := client.LoadWallet(walletPath())
	if err != nil {
		return nil, fmt.Errorf("wallet key: %w", err)
	}
	return priv, nil
}

func printAddress(priv ed25519.PrivateKey) error {
	a, err := address.FromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	fmt.Println(a)
	return nil
}
