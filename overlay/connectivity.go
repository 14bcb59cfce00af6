package overlay

import (
	"context"
	"errors"
	"time"

	"github.com/gologme/log"
)

// TestConnectivity starts a temporary Yggdrasil node with cfg and waits for at
// least one peer connection. It fails if the node cannot start or no peer
// connects before wait elapses.
func TestConnectivity(ctx context.Context, cfg Config, wait time.Duration, logger *log.Logger) error {
	yggCfg, err := nodeConfig(cfg, resolvePeers(ctx, cfg, logger))
	if err != nil {
		return err
	}
	c, err := newCore(yggCfg, logger)
	if err != nil {
		return err
	}
	defer c.Stop()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.New("no peers connected")
		case <-ticker.C:
			for _, p := range c.GetPeers() {
				if p.Up {
					logger.Infof("connected to %s", p.URI)
					return nil
				}
			}
		}
	}
}
