package cli

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/market"
)

var queryCmd = &cobra.Command{
	Use:   "query <path>",
	Short: "Run an ABCI query, e.g. bounty/<addr> or list/bounty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := nodeClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), txTimeout)
		defer cancel()

		var raw json.RawMessage
		if err := c.Query(ctx, args[0], &raw); err != nil {
			return err
		}
		var out bytes.Buffer
		if err := json.Indent(&out, raw, "", "  "); err != nil {
			return err
		}
		fmt.Println(out.String())
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show an account balance, the wallet's by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var a address.Address
		if len(args) == 1 {
			var err error
			if a, err = address.Parse(args[0]); err != nil {
				return err
			}
		} else {
			priv, err := loadWallet()
			if err != nil {
				return err
			}
			if a, err = address.FromPublicKey(priv.Public().(ed25519.PublicKey)); err != nil {
				return err
			}
		}

		c, err := nodeClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), txTimeout)
		defer cancel()

		var params market.Params
		if err := c.Query(ctx, "params", &params); err != nil {
			return err
		}
		acc, err := c.Account(ctx, a)
		if err != nil {
			return err
		}
		p := message.NewPrinter(language.English)
		p.Printf("%s: %s units (%d minor)\n", a, params.FormatAmount(acc.Balance), acc.Balance)
		if !acc.Exists {
			fmt.Println("account has no record on chain")
		}
		return nil
	},
}

func init() {
	queryCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(queryCmd)
}
