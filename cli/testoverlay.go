package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gregorybednov/bountychain/overlay"
)

var testOverlayWait time.Duration

var testOverlayCmd = &cobra.Command{
	Use:   "testOverlay",
	Short: "Check Yggdrasil connectivity without starting Tendermint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		ov, err := overlay.ConfigFrom(e.v)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		if err := overlay.TestConnectivity(ctx, ov, testOverlayWait, e.logger); err != nil {
			return fmt.Errorf("test failed: %w", err)
		}
		fmt.Println("Yggdrasil connectivity test successful")
		return nil
	},
}

func init() {
	testOverlayCmd.Flags().DurationVar(&testOverlayWait, "wait", 30*time.Second, "How long to wait for a peer")
	rootCmd.AddCommand(testOverlayCmd)
}
