package blockchain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/gologme/log"
	abci "github.com/tendermint/tendermint/abci/types"

	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/market"
)

const (
	AppName    = "bountychain"
	AppVersion = "0.1.0"
)

// BountyApp runs the market engine inside Tendermint. Each DeliverTx executes
// against its own write cache; only successful transactions reach the block
// cache, which is written to badger in Commit.
type BountyApp struct {
	db     *badger.DB
	logger *log.Logger
	engine *market.Engine

	chainID string
	params  market.Params

	block     *cacheState
	hasher    blockHasher
	blockTime time.Time

	checkState *cacheState

	lastHeight  int64
	lastAppHash []byte
}

var _ abci.Application = (*BountyApp)(nil)

func NewBountyApp(db *badger.DB, logger *log.Logger) (*BountyApp, error) {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.Flags())
	}
	app := &BountyApp{db: db, logger: logger, params: market.DefaultParams()}

	committed := viewState{db}
	height, err := getUint64(committed, keyHeight)
	if err != nil {
		return nil, err
	}
	app.lastHeight = int64(height)
	if app.lastAppHash, err = optional(committed.Get(keyAppHash)); err != nil {
		return nil, err
	}
	chainID, err := optional(committed.Get(keyChainID))
	if err != nil {
		return nil, err
	}
	app.chainID = string(chainID)
	raw, err := optional(committed.Get(keyParams))
	if err != nil {
		return nil, err
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &app.params); err != nil {
			return nil, fmt.Errorf("corrupted params: %w", err)
		}
	}

	app.engine = market.NewEngine(app.params, logger)
	app.checkState = newCache(committed)
	return app, nil
}

func optional(v []byte, err error) ([]byte, error) {
	if errors.Is(err, market.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (app *BountyApp) Info(req abci.RequestInfo) abci.ResponseInfo {
	return abci.ResponseInfo{
		Data:             AppName,
		Version:          AppVersion,
		AppVersion:       1,
		LastBlockHeight:  app.lastHeight,
		LastBlockAppHash: app.lastAppHash,
	}
}

func (app *BountyApp) SetOption(req abci.RequestSetOption) abci.ResponseSetOption {
	return abci.ResponseSetOption{}
}

// InitChain loads params and initial balances from the genesis app_state.
func (app *BountyApp) InitChain(req abci.RequestInitChain) abci.ResponseInitChain {
	if err := app.initChain(req.ChainId, req.AppStateBytes); err != nil {
		panic(fmt.Errorf("init chain: %w", err))
	}
	return abci.ResponseInitChain{}
}

func (app *BountyApp) initChain(chainID string, appState []byte) error {
	params := market.DefaultParams()
	var genesis types.Genesis
	if len(appState) > 0 {
		if err := json.Unmarshal(appState, &genesis); err != nil {
			return fmt.Errorf("app_state: %w", err)
		}
		if len(genesis.Params) > 0 {
			if err := json.Unmarshal(genesis.Params, &params); err != nil {
				return fmt.Errorf("app_state params: %w", err)
			}
		}
	}
	if err := params.Validate(); err != nil {
		return err
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return err
	}

	// The handshake repeats InitChain until the first block is committed.
	prev, err := optional(viewState{app.db}.Get(keyChainID))
	if err != nil {
		return err
	}
	applied := prev != nil
	if applied && string(prev) != chainID {
		return fmt.Errorf("state belongs to chain %q", prev)
	}
	if !applied {
		st := newCache(viewState{app.db})
		if err := st.Set(keyParams, rawParams); err != nil {
			return err
		}
		for _, acc := range genesis.Accounts {
			if err := market.Credit(st, acc.Address, acc.Balance); err != nil {
				return fmt.Errorf("genesis account %s: %w", acc.Address, err)
			}
		}
		// The chain id marks the genesis as applied, so it goes last.
		w := newBatchWriter(app.db)
		if err := st.persist(w); err != nil {
			w.discard()
			return err
		}
		if err := w.write(keyChainID, []byte(chainID), false); err != nil {
			w.discard()
			return err
		}
		if err := w.commit(); err != nil {
			return err
		}
	}

	app.chainID = chainID
	app.params = params
	app.engine = market.NewEngine(params, app.logger)
	app.checkState = newCache(viewState{app.db})
	if applied {
		app.logger.Infof("chain %s genesis state already applied", chainID)
		return nil
	}
	app.logger.Infof("chain %s initialized with %d genesis accounts", chainID, len(genesis.Accounts))
	return nil
}

func (app *BountyApp) BeginBlock(req abci.RequestBeginBlock) abci.ResponseBeginBlock {
	app.block = newCache(viewState{app.db})
	app.hasher.reset()
	app.blockTime = req.Header.Time
	return abci.ResponseBeginBlock{}
}

// CheckTx runs the transaction against the mempool view so that consecutive
// transactions from one signer see each other's sequence and balance changes.
func (app *BountyApp) CheckTx(req abci.RequestCheckTx) abci.ResponseCheckTx {
	cache, _, err := app.execute(app.checkState, req.Tx, app.checkTime())
	if err != nil {
		code, space := responseCode(err)
		return abci.ResponseCheckTx{Code: code, Codespace: space, Log: err.Error()}
	}
	if err := cache.flush(); err != nil {
		return abci.ResponseCheckTx{Code: 1, Log: err.Error()}
	}
	return abci.ResponseCheckTx{Code: abci.CodeTypeOK, GasWanted: 1}
}

func (app *BountyApp) checkTime() time.Time {
	if app.blockTime.IsZero() {
		return time.Now()
	}
	return app.blockTime
}

func (app *BountyApp) DeliverTx(req abci.RequestDeliverTx) abci.ResponseDeliverTx {
	if app.block == nil {
		app.block = newCache(viewState{app.db})
	}
	cache, out, err := app.execute(app.block, req.Tx, app.blockTime)
	if err != nil {
		code, space := responseCode(err)
		app.logger.Debugf("tx rejected: %v", err)
		return abci.ResponseDeliverTx{Code: code, Codespace: space, Log: err.Error()}
	}
	if err := cache.flush(); err != nil {
		app.logger.Errorf("flush tx writes: %v", err)
		return abci.ResponseDeliverTx{Code: 1, Log: err.Error()}
	}
	cache.hashInto(&app.hasher)
	return abci.ResponseDeliverTx{Code: abci.CodeTypeOK, Data: out.data, Events: out.events}
}

type txOutput struct {
	data   []byte
	events []abci.Event
}

// execute authorizes tx and runs it on a fresh cache over parent. The cache is
// returned for the caller to flush only when err is nil.
func (app *BountyApp) execute(parent market.State, tx []byte, now time.Time) (*cacheState, *txOutput, error) {
	atx, err := authorize(tx, app.chainID)
	if err != nil {
		return nil, nil, err
	}
	cache := newCache(parent)
	if err := useSequence(cache, atx); err != nil {
		return nil, nil, err
	}

	ctx := market.NewContext(cache, atx.signer, now)
	res, err := handlers[atx.body.Type](app.engine, ctx, atx.body.Payload)
	if err != nil {
		return nil, nil, err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, nil, err
	}
	return cache, &txOutput{data: data, events: abciEvents(atx, ctx.Events())}, nil
}

func abciEvents(atx *authorizedTx, events []market.Event) []abci.Event {
	out := []abci.Event{{
		Type: "tx",
		Attributes: []abci.EventAttribute{
			{Key: []byte("type"), Value: []byte(atx.body.Type), Index: true},
			{Key: []byte("signer"), Value: []byte(atx.signer.String()), Index: true},
		},
	}}
	for _, ev := range events {
		e := abci.Event{Type: ev.Type}
		for _, a := range ev.Attributes {
			e.Attributes = append(e.Attributes, abci.EventAttribute{Key: []byte(a.Key), Value: []byte(a.Value), Index: true})
		}
		out = append(out, e)
	}
	return out
}

func (app *BountyApp) EndBlock(req abci.RequestEndBlock) abci.ResponseEndBlock {
	return abci.ResponseEndBlock{}
}

// Commit persists the block writes, then the new height and app hash in one
// final transaction. Large blocks span several badger transactions.
func (app *BountyApp) Commit() abci.ResponseCommit {
	if app.block == nil {
		app.block = newCache(viewState{app.db})
	}
	height := app.lastHeight + 1
	hash := app.hasher.sum(app.lastAppHash)

	w := newBatchWriter(app.db)
	if err := app.block.persist(w); err != nil {
		w.discard()
		panic(fmt.Errorf("persist block %d: %w", height, err))
	}
	if err := w.commit(); err != nil {
		panic(fmt.Errorf("persist block %d: %w", height, err))
	}
	if w.commits > 1 {
		app.logger.Debugf("block %d written in %d transactions", height, w.commits)
	}
	err := app.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyAppHash, hash); err != nil {
			return err
		}
		return txn.Set(keyHeight, putUint64(uint64(height)))
	})
	if err != nil {
		panic(fmt.Errorf("commit block %d: %w", height, err))
	}
	app.block = nil
	app.hasher.reset()

	app.lastHeight = height
	app.lastAppHash = hash
	app.checkState = newCache(viewState{app.db})
	return abci.ResponseCommit{Data: hash}
}

func (app *BountyApp) ListSnapshots(req abci.RequestListSnapshots) abci.ResponseListSnapshots {
	return abci.ResponseListSnapshots{}
}

func (app *BountyApp) OfferSnapshot(req abci.RequestOfferSnapshot) abci.ResponseOfferSnapshot {
	return abci.ResponseOfferSnapshot{Result: abci.ResponseOfferSnapshot_REJECT}
}

func (app *BountyApp) LoadSnapshotChunk(req abci.RequestLoadSnapshotChunk) abci.ResponseLoadSnapshotChunk {
	return abci.ResponseLoadSnapshotChunk{}
}

func (app *BountyApp) ApplySnapshotChunk(req abci.RequestApplySnapshotChunk) abci.ResponseApplySnapshotChunk {
	return abci.ResponseApplySnapshotChunk{Result: abci.ResponseApplySnapshotChunk_ACCEPT}
}
