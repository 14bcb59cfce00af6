package blockchain

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/go-co-op/gocron/v2"
	"github.com/gologme/log"
	abci "github.com/tendermint/tendermint/abci/types"
	tmcfg "github.com/tendermint/tendermint/config"
	tmflags "github.com/tendermint/tendermint/libs/cli/flags"
	tmlog "github.com/tendermint/tendermint/libs/log"
	nm "github.com/tendermint/tendermint/node"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/privval"
	"github.com/tendermint/tendermint/proxy"
	tmTypes "github.com/tendermint/tendermint/types"

	"github.com/gregorybednov/bountychain/overlay"
)

// RunOptions configures a full node.
type RunOptions struct {
	DBPath string
	Config *tmcfg.Config
	// Endpoints replace the p2p listen address and persistent peers when the
	// node is reached through the overlay network.
	Endpoints *overlay.Endpoints
	// GCInterval schedules badger value log GC; zero disables it.
	GCInterval time.Duration
	Logger     *log.Logger
}

// badgerLogger routes badger's messages to the application logger.
type badgerLogger struct {
	*log.Logger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) { l.Warnf(format, args...) }

func openBadger(path string, logger *log.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithTruncate(true)
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{logger})
	}
	return badger.Open(opts)
}

func nodeLogger(config *tmcfg.Config) (tmlog.Logger, error) {
	logger := tmlog.NewTMLogger(tmlog.NewSyncWriter(os.Stdout))
	if config.LogFormat == tmcfg.LogFormatJSON {
		logger = tmlog.NewTMJSONLogger(tmlog.NewSyncWriter(os.Stdout))
	}
	return tmflags.ParseLogLevel(config.LogLevel, logger, "info")
}

func loadPrivValidator(config *tmcfg.Config, logger *log.Logger) tmTypes.PrivValidator {
	if _, err := os.Stat(config.PrivValidatorKeyFile()); err == nil {
		return privval.LoadFilePV(
			config.PrivValidatorKeyFile(),
			config.PrivValidatorStateFile(),
		)
	}
	logger.Warnln("priv_validator_key.json not found. Node will run as non-validator.")
	return tmTypes.NewMockPV()
}

func newTendermint(app abci.Application, config *tmcfg.Config, logger *log.Logger) (*nm.Node, error) {
	nodeKey, err := p2p.LoadNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("load node key: %w", err)
	}
	tmLogger, err := nodeLogger(config)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	return nm.NewNode(
		config,
		loadPrivValidator(config, logger),
		nodeKey,
		proxy.NewLocalClientCreator(app),
		nm.DefaultGenesisDocProviderFunc(config),
		nm.DefaultDBProvider,
		nm.DefaultMetricsProvider(config.Instrumentation),
		tmLogger,
	)
}

// GetNodeInfo builds (without starting) a node to read its p2p identity.
func GetNodeInfo(config *tmcfg.Config, dbPath string, logger *log.Logger) (p2p.NodeInfo, error) {
	db, err := openBadger(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db to get node info %v", err)
	}
	defer db.Close()

	app, err := NewBountyApp(db, logger)
	if err != nil {
		return nil, err
	}

	config.P2P.PersistentPeers = ""
	node, err := newTendermint(app, config, logger)
	if err != nil {
		return nil, err
	}
	return node.NodeInfo(), nil
}

// startMaintenance schedules periodic badger value log GC.
func startMaintenance(db *badger.DB, every time.Duration, logger *log.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			for {
				err := db.RunValueLogGC(0.5)
				if err == badger.ErrNoRewrite {
					return
				}
				if err != nil {
					logger.Warnf("value log GC: %v", err)
					return
				}
				logger.Debugln("value log GC rewrote a file")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	sched.Start()
	return sched, nil
}

// Run starts the node and blocks until ctx is cancelled or the node quits.
func Run(ctx context.Context, opts RunOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "", log.Flags())
	}
	db, err := openBadger(opts.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open badger db: %w", err)
	}
	defer db.Close()

	if opts.GCInterval > 0 {
		sched, err := startMaintenance(db, opts.GCInterval, logger)
		if err != nil {
			return fmt.Errorf("schedule maintenance: %w", err)
		}
		defer func() { _ = sched.Shutdown() }()
	}

	config := opts.Config
	if ep := opts.Endpoints; ep != nil {
		config.P2P.ListenAddress = "tcp://" + ep.ListenAddress
		config.P2P.PersistentPeers = ep.PersistentPeers
	}

	app, err := NewBountyApp(db, logger)
	if err != nil {
		return fmt.Errorf("load app state: %w", err)
	}
	node, err := newTendermint(app, config, logger)
	if err != nil {
		return fmt.Errorf("build node: %w", err)
	}
	if err := node.Start(); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-node.Quit():
		return fmt.Errorf("node stopped")
	}
	if err := node.Stop(); err != nil {
		logger.Errorf("stop node: %v", err)
	}
	node.Wait()
	return nil
}
