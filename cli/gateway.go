package cli

import (
	"github.com/spf13/cobra"

	"github.com/gregorybednov/bountychain/client"
	"github.com/gregorybednov/bountychain/gateway"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Serve the HTTP gateway against a running node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		c, err := client.New(e.app.Node)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return gateway.Serve(ctx, e.app.Listen, c, e.logger)
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}
