package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gregorybednov/bountychain/blockchain"
	"github.com/gregorybednov/bountychain/client"
	cfg "github.com/gregorybednov/bountychain/configfunctions"
	"github.com/gregorybednov/bountychain/gateway"
	"github.com/gregorybednov/bountychain/overlay"
)

var runWithGateway bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the node",
	Args:  cobra.NoArgs,
	RunE:  runNode,
}

func init() {
	runCmd.Flags().BoolVar(&runWithGateway, "gateway", false, "Also serve the HTTP gateway against this node")
	rootCmd.AddCommand(runCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runNode(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	config, err := cfg.ReadConfig(e.v, configPath)
	if err != nil {
		return err
	}
	ov, err := overlay.ConfigFrom(e.v)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var endpoints *overlay.Endpoints
	if ov.Enabled {
		if endpoints, err = overlay.Start(ctx, ov, e.logger); err != nil {
			return fmt.Errorf("overlay: %w", err)
		}
		e.logger.Infof("p2p via overlay: listen %s, peers %q", endpoints.ListenAddress, endpoints.PersistentPeers)
	}

	if runWithGateway {
		c, err := client.New(localRPC(config.RPC.ListenAddress))
		if err != nil {
			return err
		}
		go func() {
			if err := gateway.Serve(ctx, e.app.Listen, c, e.logger); err != nil {
				e.logger.Errorf("gateway: %v", err)
			}
		}()
	}

	return blockchain.Run(ctx, blockchain.RunOptions{
		DBPath:     dbPath,
		Config:     config,
		Endpoints:  endpoints,
		GCInterval: e.app.GCInterval,
		Logger:     e.logger,
	})
}

// localRPC turns an RPC listen address into one a client can dial.
func localRPC(laddr string) string {
	return strings.Replace(laddr, "0.0.0.0", "127.0.0.1", 1)
}
