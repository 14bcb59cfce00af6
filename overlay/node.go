package overlay

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/gologme/log"

	"github.com/yggdrasil-network/yggdrasil-go/src/admin"
	yggConfig "github.com/yggdrasil-network/yggdrasil-go/src/config"
	"github.com/yggdrasil-network/yggdrasil-go/src/core"
	"github.com/yggdrasil-network/yggdrasil-go/src/multicast"
	"github.com/yggdrasil-network/yggstack/src/netstack"
	"github.com/yggdrasil-network/yggstack/src/types"

	"github.com/gregorybednov/bountychain/persistentpeersparser"
)

// Endpoints are what Tendermint should use once the overlay is up.
type Endpoints struct {
	// ListenAddress is the local host:port the Yggdrasil listener forwards to.
	ListenAddress string
	// PersistentPeers point at local forwards to each remote peer.
	PersistentPeers string
}

type node struct {
	core      *core.Core
	multicast *multicast.Multicast
	admin     *admin.AdminSocket
	stack     *netstack.YggdrasilNetstack
	logger    *log.Logger
}

func newCore(cfg *yggConfig.NodeConfig, logger *log.Logger) (*core.Core, error) {
	options := []core.SetupOption{
		core.NodeInfo(cfg.NodeInfo),
		core.NodeInfoPrivacy(cfg.NodeInfoPrivacy),
	}
	for _, addr := range cfg.Listen {
		options = append(options, core.ListenAddress(addr))
	}
	for _, peer := range cfg.Peers {
		options = append(options, core.Peer{URI: peer})
	}
	for intf, peers := range cfg.InterfacePeers {
		for _, peer := range peers {
			options = append(options, core.Peer{URI: peer, SourceInterface: intf})
		}
	}
	for _, allowed := range cfg.AllowedPublicKeys {
		k, err := hex.DecodeString(allowed)
		if err != nil {
			return nil, fmt.Errorf("allowed public key %q: %w", allowed, err)
		}
		options = append(options, core.AllowedPublicKey(k[:]))
	}
	return core.New(cfg.Certificate, logger, options...)
}

type identity struct {
	PublicKey string
	Address   string
	Subnet    string
}

func describeCore(c *core.Core) identity {
	subnet := c.Subnet()
	return identity{
		PublicKey: hex.EncodeToString(c.PublicKey()),
		Address:   c.Address().String(),
		Subnet:    subnet.String(),
	}
}

// Start brings the overlay up and returns the endpoints Tendermint should
// bind to. The node runs until ctx is cancelled.
func Start(ctx context.Context, cfg Config, logger *log.Logger) (*Endpoints, error) {
	var remoteTCP types.TCPRemoteMappings
	if err := remoteTCP.Set(cfg.P2PMapping); err != nil {
		return nil, fmt.Errorf("p2p mapping %q: %w", cfg.P2PMapping, err)
	}

	parsed, err := persistentpeersparser.ParseEntries(cfg.PersistentPeers)
	if err != nil {
		logger.Warnf("persistent peers ignored: %v", err)
		parsed = nil
	}

	yggCfg, err := nodeConfig(cfg, resolvePeers(ctx, cfg, logger))
	if err != nil {
		return nil, err
	}
	logger.Infof("Yggdrasil peers: %s", yggCfg.Peers)

	n := &node{logger: logger}
	if n.core, err = newCore(yggCfg, logger); err != nil {
		return nil, fmt.Errorf("start yggdrasil core: %w", err)
	}
	id := describeCore(n.core)
	logger.Printf("Your public key is %s", id.PublicKey)
	logger.Printf("Your IPv6 address is %s", id.Address)
	logger.Printf("Your IPv6 subnet is %s", id.Subnet)
	logger.Printf("Your Yggstack resolver name is %s%s", id.PublicKey, types.NameMappingSuffix)

	if err := n.setupAdmin(yggCfg); err != nil {
		n.stop()
		return nil, err
	}
	if err := n.setupMulticast(yggCfg); err != nil {
		n.stop()
		return nil, err
	}
	if n.stack, err = netstack.CreateYggdrasilNetstack(n.core); err != nil {
		n.stop()
		return nil, fmt.Errorf("yggdrasil netstack: %w", err)
	}

	peers, err := n.forwardPeers(ctx, parsed)
	if err != nil {
		n.stop()
		return nil, err
	}
	for _, mapping := range remoteTCP {
		if err := n.exposeLocal(ctx, mapping); err != nil {
			n.stop()
			return nil, err
		}
	}

	go func() {
		<-ctx.Done()
		n.stop()
	}()
	return &Endpoints{
		ListenAddress:   remoteTCP[0].Mapped.String(),
		PersistentPeers: strings.Join(peers, ","),
	}, nil
}

func (n *node) setupAdmin(cfg *yggConfig.NodeConfig) error {
	options := []admin.SetupOption{
		admin.ListenAddress(cfg.AdminListen),
	}
	if cfg.LogLookups {
		options = append(options, admin.LogLookups{})
	}
	var err error
	if n.admin, err = admin.New(n.core, n.logger, options...); err != nil {
		return fmt.Errorf("yggdrasil admin socket: %w", err)
	}
	if n.admin != nil {
		n.admin.SetupAdminHandlers()
	}
	return nil
}

func (n *node) setupMulticast(cfg *yggConfig.NodeConfig) error {
	options := []multicast.SetupOption{}
	for _, intf := range cfg.MulticastInterfaces {
		options = append(options, multicast.MulticastInterface{
			Regex:    regexp.MustCompile(intf.Regex),
			Beacon:   intf.Beacon,
			Listen:   intf.Listen,
			Port:     intf.Port,
			Priority: uint8(intf.Priority),
			Password: intf.Password,
		})
	}
	var err error
	if n.multicast, err = multicast.New(n.core, n.logger, options...); err != nil {
		return fmt.Errorf("yggdrasil multicast: %w", err)
	}
	if n.admin != nil && n.multicast != nil {
		n.multicast.SetupAdminHandlers(n.admin)
	}
	return nil
}

// forwardPeers opens a local listener for every ygg:// peer and returns the
// Tendermint peer entries pointing at them.
func (n *node) forwardPeers(ctx context.Context, parsed []persistentpeersparser.ParsedEntry) ([]string, error) {
	var peers []string
	for _, p := range parsed {
		if p.Proto != "ygg" {
			peers = append(peers, p.String())
			continue
		}
		port := DefaultPort
		if p.Port != nil {
			port = *p.Port
		}
		listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
		if err != nil {
			return nil, fmt.Errorf("forward listener: %w", err)
		}
		realPort := listener.Addr().(*net.TCPAddr).Port
		mapped := net.TCPAddr{IP: net.ParseIP(p.Address), Port: port}
		peers = append(peers, fmt.Sprintf("%s@127.0.0.1:%d", p.ID, realPort))

		n.logger.Infof("Mapping local TCP port %d to Ygg %s", realPort, mapped.String())
		go func() {
			<-ctx.Done()
			_ = listener.Close()
		}()
		go func() {
			for {
				c, err := listener.Accept()
				if err != nil {
					return
				}
				r, err := n.stack.DialTCP(&mapped)
				if err != nil {
					n.logger.Errorf("Failed to connect to %s: %s", mapped.String(), err)
					_ = c.Close()
					continue
				}
				go types.ProxyTCP(n.core.MTU(), c, r)
			}
		}()
	}
	return peers, nil
}

// exposeLocal accepts connections on the Yggdrasil side and forwards them to
// the local p2p listener.
func (n *node) exposeLocal(ctx context.Context, mapping types.TCPMapping) error {
	listener, err := n.stack.ListenTCP(mapping.Listen)
	if err != nil {
		return fmt.Errorf("ygg listener on port %d: %w", mapping.Listen.Port, err)
	}
	n.logger.Infof("Mapping Yggdrasil TCP port %d to %s", mapping.Listen.Port, mapping.Mapped)
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()
	go func() {
		for {
			c, err := listener.Accept()
			if err != nil {
				return
			}
			r, err := net.DialTCP("tcp", nil, mapping.Mapped)
			if err != nil {
				n.logger.Errorf("Failed to connect to %s: %s", mapping.Mapped, err)
				_ = c.Close()
				continue
			}
			go types.ProxyTCP(n.core.MTU(), c, r)
		}
	}()
	return nil
}

func (n *node) stop() {
	if n.admin != nil {
		_ = n.admin.Stop()
	}
	if n.multicast != nil {
		_ = n.multicast.Stop()
	}
	if n.core != nil {
		n.core.Stop()
	}
}
