package client

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/gologme/log"
	abci "github.com/tendermint/tendermint/abci/types"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	"github.com/tendermint/tendermint/p2p"
	tmproto "github.com/tendermint/tendermint/proto/tendermint/types"
	ctypes "github.com/tendermint/tendermint/rpc/core/types"
	tmtypes "github.com/tendermint/tendermint/types"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/blockchain"
	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/market"
)

const testChain = "client-test"

// localRPC runs every broadcast in its own block against an in-process app.
type localRPC struct {
	app    *blockchain.BountyApp
	height int64
	now    time.Time
}

func (r *localRPC) ABCIQuery(_ context.Context, path string, _ tmbytes.HexBytes) (*ctypes.ResultABCIQuery, error) {
	return &ctypes.ResultABCIQuery{Response: r.app.Query(abci.RequestQuery{Path: path})}, nil
}

func (r *localRPC) BroadcastTxCommit(_ context.Context, tx tmtypes.Tx) (*ctypes.ResultBroadcastTxCommit, error) {
	out := &ctypes.ResultBroadcastTxCommit{Hash: tx.Hash()}
	out.CheckTx = r.app.CheckTx(abci.RequestCheckTx{Tx: tx})
	if !out.CheckTx.IsOK() {
		return out, nil
	}
	r.height++
	r.now = r.now.Add(5 * time.Second)
	r.app.BeginBlock(abci.RequestBeginBlock{Header: tmproto.Header{ChainID: testChain, Height: r.height, Time: r.now}})
	out.DeliverTx = r.app.DeliverTx(abci.RequestDeliverTx{Tx: tx})
	r.app.EndBlock(abci.RequestEndBlock{Height: r.height})
	r.app.Commit()
	out.Height = r.height
	return out, nil
}

func (r *localRPC) Status(context.Context) (*ctypes.ResultStatus, error) {
	return &ctypes.ResultStatus{NodeInfo: p2p.DefaultNodeInfo{Network: testChain}}, nil
}

func newLocalClient(t *testing.T, funded ...ed25519.PrivateKey) (*Client, *localRPC) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	app, err := blockchain.NewBountyApp(db, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}

	var g types.Genesis
	for _, priv := range funded {
		a, _ := address.FromPublicKey(priv.Public().(ed25519.PublicKey))
		g.Accounts = append(g.Accounts, types.GenesisAccount{Address: a, Balance: 20_000_000_000})
	}
	state, _ := json.Marshal(g)
	app.InitChain(abci.RequestInitChain{ChainId: testChain, AppStateBytes: state})

	rpc := &localRPC{app: app, now: time.Unix(1_700_000_000, 0)}
	return NewWithRPC(rpc), rpc
}

func newWallet(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	priv, err := CreateWallet(filepath.Join(t.TempDir(), "wallet.key"))
	if err != nil {
		t.Fatal(err)
	}
	return priv
}

func TestSendTracksSequence(t *testing.T) {
	funder := newWallet(t)
	c, rpc := newLocalClient(t, funder)
	ctx := context.Background()

	res, err := c.Send(ctx, funder, types.TxRegisterClient, types.RegisterClientPayload{
		CompanyName: "Acme", CompanyEmail: "ops@acme.test", CompanyLink: "https://acme.test",
	})
	if err != nil || !res.OK() {
		t.Fatalf("register: %+v %v", res, err)
	}
	res, err = c.Send(ctx, funder, types.TxCreateBounty, types.CreateBountyPayload{
		Title: "docs", Description: "write the guide", Reward: 3, Deadline: uint64(rpc.now.Unix() + 3600),
	})
	if err != nil || !res.OK() {
		t.Fatalf("create bounty: %+v %v", res, err)
	}
	if res.Result == nil || res.Result.Escrow == nil || res.Height != 2 {
		t.Fatalf("create result = %+v", res)
	}

	acc, err := c.Account(ctx, *res.Result.Escrow)
	if err != nil || acc.Balance != 3_000_000_000 {
		t.Fatalf("escrow account = %+v, %v", acc, err)
	}
	signer, _ := address.FromPublicKey(funder.Public().(ed25519.PublicKey))
	if seq, err := c.Sequence(ctx, signer); err != nil || seq != 2 {
		t.Fatalf("sequence = %d, %v", seq, err)
	}
}

func TestSendReportsRejection(t *testing.T) {
	c, _ := newLocalClient(t)
	ctx := context.Background()

	res, err := c.Send(ctx, newWallet(t), types.TxDeleteBounty, types.DeleteBountyPayload{Title: "none"})
	if err != nil {
		t.Fatal(err)
	}
	if res.OK() || res.Codespace != market.Codespace {
		t.Fatalf("result = %+v", res)
	}
}

func TestQueryError(t *testing.T) {
	c, _ := newLocalClient(t)
	var b market.Bounty
	err := c.Query(context.Background(), "bounty/"+address.Zero.String(), &b)
	var qe *QueryError
	if !errors.As(err, &qe) || qe.Code != market.ErrBountyNotFound.Code {
		t.Fatalf("err = %v", err)
	}
}

func TestWalletFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "wallet.key")
	created, err := EnsureWallet(path)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := EnsureWallet(path)
	if err != nil || !created.Equal(loaded) {
		t.Fatalf("reloaded key differs: %v", err)
	}
	if _, err := CreateWallet(path); !errors.Is(err, ErrWalletExists) {
		t.Fatalf("overwrite err = %v", err)
	}
}
