package blockchain

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/gologme/log"
	abci "github.com/tendermint/tendermint/abci/types"
	tmproto "github.com/tendermint/tendermint/proto/tendermint/types"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/market"
)

const (
	testChain = "test-chain"
	unit      = 1_000_000_000
)

var genesisTime = time.Unix(1_700_000_000, 0).UTC()

type signer struct {
	priv ed25519.PrivateKey
	addr address.Address
	seq  uint64
}

func newSigner(t *testing.T) *signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	a, err := address.FromPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return &signer{priv: priv, addr: a}
}

// tx signs the next transaction. The sequence advances whether or not the
// chain accepts it; tests that expect a failure call rewind.
func (s *signer) tx(t *testing.T, txType string, payload any) []byte {
	t.Helper()
	raw, err := types.NewSignedTx(s.priv, txType, s.seq, testChain, payload)
	if err != nil {
		t.Fatal(err)
	}
	s.seq++
	return raw
}

func (s *signer) rewind() { s.seq-- }

type testChainApp struct {
	t      *testing.T
	db     *badger.DB
	app    *BountyApp
	height int64
	now    time.Time
}

func openTestDB(t *testing.T, dir string) *badger.DB {
	t.Helper()
	db, err := openBadger(dir, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	return db
}

func newTestChain(t *testing.T, genesis types.Genesis) *testChainApp {
	t.Helper()
	db := openTestDB(t, t.TempDir())
	t.Cleanup(func() { db.Close() })
	return newTestChainOn(t, db, genesis)
}

func newTestChainOn(t *testing.T, db *badger.DB, genesis types.Genesis) *testChainApp {
	t.Helper()
	app, err := NewBountyApp(db, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	state, err := json.Marshal(genesis)
	if err != nil {
		t.Fatal(err)
	}
	app.InitChain(abci.RequestInitChain{ChainId: testChain, AppStateBytes: state})
	return &testChainApp{t: t, db: db, app: app, now: genesisTime}
}

func fundedGenesis(params *market.Params, accounts ...*signer) types.Genesis {
	var g types.Genesis
	if params != nil {
		g.Params, _ = json.Marshal(params)
	}
	for _, a := range accounts {
		g.Accounts = append(g.Accounts, types.GenesisAccount{Address: a.addr, Balance: 10 * unit})
	}
	return g
}

// block delivers txs in one block, ten seconds after the previous one.
func (c *testChainApp) block(txs ...[]byte) []abci.ResponseDeliverTx {
	c.height++
	c.now = c.now.Add(10 * time.Second)
	c.app.BeginBlock(abci.RequestBeginBlock{Header: tmproto.Header{ChainID: testChain, Height: c.height, Time: c.now}})
	var out []abci.ResponseDeliverTx
	for _, tx := range txs {
		out = append(out, c.app.DeliverTx(abci.RequestDeliverTx{Tx: tx}))
	}
	c.app.EndBlock(abci.RequestEndBlock{Height: c.height})
	c.app.Commit()
	return out
}

func (c *testChainApp) mustBlock(txs ...[]byte) []abci.ResponseDeliverTx {
	c.t.Helper()
	res := c.block(txs...)
	for i, r := range res {
		if r.Code != abci.CodeTypeOK {
			c.t.Fatalf("tx %d failed: code=%d %s", i, r.Code, r.Log)
		}
	}
	return res
}

func (c *testChainApp) query(path string, v any) abci.ResponseQuery {
	c.t.Helper()
	res := c.app.Query(abci.RequestQuery{Path: path})
	if res.Code == abci.CodeTypeOK && v != nil {
		if err := json.Unmarshal(res.Value, v); err != nil {
			c.t.Fatalf("decode %s: %v", path, err)
		}
	}
	return res
}

func (c *testChainApp) balance(a address.Address) uint64 {
	c.t.Helper()
	var acc AccountView
	if res := c.query("account/"+a.String(), &acc); res.Code != 0 {
		c.t.Fatalf("account query: %s", res.Log)
	}
	return acc.Balance
}

func TestRewardLifecycleOverABCI(t *testing.T) {
	client, worker := newSigner(t), newSigner(t)
	c := newTestChain(t, fundedGenesis(nil, client))

	c.mustBlock(
		client.tx(t, types.TxRegisterClient, types.RegisterClientPayload{CompanyName: "Acme", CompanyEmail: "a@acme.test", CompanyLink: "https://acme.test"}),
		worker.tx(t, types.TxRegisterUser, types.RegisterUserPayload{Name: "Bob", Email: "bob@example.test"}),
	)
	res := c.mustBlock(client.tx(t, types.TxCreateBounty, types.CreateBountyPayload{
		Title: "audit", Description: "audit the escrow", Reward: 5, Deadline: uint64(genesisTime.Unix() + 1000),
	}))
	var created types.Result
	if err := json.Unmarshal(res[0].Data, &created); err != nil || created.Address == nil || created.Escrow == nil {
		t.Fatalf("create result %s: %v", res[0].Data, err)
	}
	bountyAddr, escrow := *created.Address, *created.Escrow

	var derived DerivedBounty
	c.query("derive/bounty/"+client.addr.String()+"/audit", &derived)
	if derived.Bounty != bountyAddr || derived.Escrow != escrow {
		t.Fatalf("derive query = %+v, created %s/%s", derived, bountyAddr, escrow)
	}
	if got := c.balance(escrow); got != 5*unit {
		t.Fatalf("escrow = %d", got)
	}

	res = c.mustBlock(worker.tx(t, types.TxCreateSubmission, types.CreateSubmissionPayload{Bounty: bountyAddr, Description: "escrow audit report", WorkURL: "https://git.example/pr/7"}))
	var sub types.Result
	_ = json.Unmarshal(res[0].Data, &sub)

	c.mustBlock(client.tx(t, types.TxSelectSubmission, types.SelectSubmissionPayload{Title: "audit", Submission: *sub.Address, Winner: worker.addr}))

	retained, _ := market.DefaultParams().RetainedMinimum(0)
	if got := c.balance(worker.addr); got != 5*unit-retained {
		t.Fatalf("worker = %d, want %d", got, 5*unit-retained)
	}
	if got := c.balance(escrow); got != retained {
		t.Fatalf("escrow = %d, want %d", got, retained)
	}
	var b market.Bounty
	c.query("bounty/"+bountyAddr.String(), &b)
	if b.Live || !b.BountyRewarded || b.SelectedUserWalletKey != worker.addr {
		t.Fatalf("bounty after select: %+v", b)
	}
	var u market.User
	c.query("user/"+worker.addr.String(), &u)
	if u.Earned != 5*unit {
		t.Fatalf("earned = %d", u.Earned)
	}

	// a second selection is rejected with the state error code
	res = c.block(client.tx(t, types.TxSelectSubmission, types.SelectSubmissionPayload{Title: "audit", Submission: *sub.Address, Winner: worker.addr}))
	if res[0].Code != market.ErrBountyAlreadyRewarded.Code || res[0].Codespace != market.Codespace {
		t.Fatalf("second select: code=%d space=%q", res[0].Code, res[0].Codespace)
	}
}

func TestFailedTxLeavesNoTrace(t *testing.T) {
	client := newSigner(t)
	c := newTestChain(t, fundedGenesis(nil, client))
	c.mustBlock(client.tx(t, types.TxRegisterClient, types.RegisterClientPayload{CompanyName: "Acme", CompanyEmail: "a@acme.test", CompanyLink: "https://acme.test"}))

	before := c.app.lastAppHash
	res := c.block(client.tx(t, types.TxCreateBounty, types.CreateBountyPayload{
		Title: "big", Description: "too expensive", Reward: 11, Deadline: uint64(genesisTime.Unix() + 1000),
	}))
	client.rewind()
	if res[0].Code != market.ErrInsufficientBalance.Code {
		t.Fatalf("code = %d (%s)", res[0].Code, res[0].Log)
	}

	var seq SequenceView
	c.query("sequence/"+client.addr.String(), &seq)
	if seq.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1", seq.Sequence)
	}
	var bounties []ListEntry
	c.query("list/bounty", &bounties)
	if len(bounties) != 0 {
		t.Fatalf("bounties = %d", len(bounties))
	}
	if c.balance(client.addr) != 10*unit {
		t.Fatal("balance changed")
	}
	// an empty block still chains the hash forward
	if bytes.Equal(before, c.app.lastAppHash) {
		t.Fatal("app hash did not advance")
	}
}

func TestGuardRejectsEnvelopes(t *testing.T) {
	user := newSigner(t)
	c := newTestChain(t, fundedGenesis(nil))

	register := types.RegisterUserPayload{Name: "Eve", Email: "eve@example.test"}
	good := user.tx(t, types.TxRegisterUser, register)
	user.rewind()

	var tampered types.SignedTx
	_ = json.Unmarshal(good, &tampered)
	tampered.Body = bytes.Replace(tampered.Body, []byte("Eve"), []byte("Mal"), 1)
	tamperedTx, _ := json.Marshal(tampered)

	otherChain, _ := types.NewSignedTx(user.priv, types.TxRegisterUser, 0, "other-chain", register)
	unknown, _ := types.NewSignedTx(user.priv, "mint_everything", 0, testChain, register)
	skipped, _ := types.NewSignedTx(user.priv, types.TxRegisterUser, 3, testChain, register)
	unknownField, _ := types.NewSignedTx(user.priv, types.TxRegisterUser, 0, testChain, map[string]string{"name": "Eve", "email": "e@x", "role": "admin"})

	tests := []struct {
		name string
		tx   []byte
		code uint32
	}{
		{"not json", []byte("hello"), ErrMalformedTx.Code},
		{"tampered body", tamperedTx, ErrBadSignature.Code},
		{"other chain", otherChain, ErrWrongChain.Code},
		{"unknown type", unknown, ErrUnknownTxType.Code},
		{"skipped sequence", skipped, ErrBadSequence.Code},
		{"unknown payload field", unknownField, ErrMalformedTx.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := c.app.CheckTx(abci.RequestCheckTx{Tx: tt.tx})
			if check.Code != tt.code || check.Codespace != CodespaceAuth {
				t.Fatalf("CheckTx code=%d space=%q log=%s", check.Code, check.Codespace, check.Log)
			}
			res := c.block(tt.tx)
			if res[0].Code != tt.code {
				t.Fatalf("DeliverTx code=%d log=%s", res[0].Code, res[0].Log)
			}
		})
	}

	c.mustBlock(good)
	replay := c.block(good)
	if replay[0].Code != ErrBadSequence.Code {
		t.Fatalf("replay code = %d", replay[0].Code)
	}
}

func TestCheckTxTracksPendingSequence(t *testing.T) {
	user := newSigner(t)
	params := market.DefaultParams()
	params.FaucetLimit = unit
	c := newTestChain(t, fundedGenesis(&params))

	first := user.tx(t, types.TxAirdrop, types.AirdropPayload{Amount: unit})
	second := user.tx(t, types.TxAirdrop, types.AirdropPayload{Amount: unit})
	for i, tx := range [][]byte{first, second} {
		if res := c.app.CheckTx(abci.RequestCheckTx{Tx: tx}); res.Code != abci.CodeTypeOK {
			t.Fatalf("check %d: %s", i, res.Log)
		}
	}
	if res := c.app.CheckTx(abci.RequestCheckTx{Tx: first}); res.Code != ErrBadSequence.Code {
		t.Fatalf("duplicate check code = %d", res.Code)
	}

	// nothing was delivered, so the mempool view starts over after commit
	c.block()
	if res := c.app.CheckTx(abci.RequestCheckTx{Tx: first, Type: abci.CheckTxType_Recheck}); res.Code != abci.CodeTypeOK {
		t.Fatalf("recheck after empty block: %s", res.Log)
	}

	c.mustBlock(first, second)
	if got := c.balance(user.addr); got != 2*unit {
		t.Fatalf("balance = %d", got)
	}
}

func TestAppStateSurvivesRestart(t *testing.T) {
	client := newSigner(t)
	dir := t.TempDir()
	db := openTestDB(t, dir)

	app, err := NewBountyApp(db, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	state, _ := json.Marshal(fundedGenesis(nil, client))
	app.InitChain(abci.RequestInitChain{ChainId: testChain, AppStateBytes: state})
	c := &testChainApp{t: t, db: db, app: app, now: genesisTime}
	c.mustBlock(client.tx(t, types.TxRegisterClient, types.RegisterClientPayload{CompanyName: "Acme", CompanyEmail: "a@acme.test", CompanyLink: "https://acme.test"}))
	c.block()
	info := app.Info(abci.RequestInfo{})
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db = openTestDB(t, dir)
	defer db.Close()
	reopened, err := NewBountyApp(db, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	got := reopened.Info(abci.RequestInfo{})
	if got.LastBlockHeight != 2 || got.LastBlockHeight != info.LastBlockHeight || !bytes.Equal(got.LastBlockAppHash, info.LastBlockAppHash) {
		t.Fatalf("info after restart = %+v, before %+v", got, info)
	}
	if reopened.chainID != testChain {
		t.Fatalf("chain id = %q", reopened.chainID)
	}
}

func TestAppHashIsDeterministic(t *testing.T) {
	client := newSigner(t)
	genesis := fundedGenesis(nil, client)
	register := client.tx(t, types.TxRegisterClient, types.RegisterClientPayload{CompanyName: "Acme", CompanyEmail: "a@acme.test", CompanyLink: "https://acme.test"})

	a, b := newTestChain(t, genesis), newTestChain(t, genesis)
	a.mustBlock(register)
	b.mustBlock(register)
	if !bytes.Equal(a.app.lastAppHash, b.app.lastAppHash) {
		t.Fatal("replicas diverged")
	}

	other := newTestChain(t, genesis)
	other.block()
	if bytes.Equal(a.app.lastAppHash, other.app.lastAppHash) {
		t.Fatal("different blocks produced the same hash")
	}
}

func TestQueryPaths(t *testing.T) {
	client := newSigner(t)
	c := newTestChain(t, fundedGenesis(nil, client))
	c.mustBlock(client.tx(t, types.TxRegisterClient, types.RegisterClientPayload{CompanyName: "Acme", CompanyEmail: "a@acme.test", CompanyLink: "https://acme.test"}))

	var params market.Params
	c.query("params", &params)
	if params != market.DefaultParams() {
		t.Fatalf("params = %+v", params)
	}

	var clients []ListEntry
	c.query("list/client", &clients)
	clientAddr, _, _ := address.Client(client.addr)
	if len(clients) != 1 || clients[0].Address != clientAddr {
		t.Fatalf("clients = %+v", clients)
	}

	for path, code := range map[string]uint32{
		"bounty/" + client.addr.String(): market.ErrBountyNotFound.Code,
		"user/" + client.addr.String():   market.ErrUserNotFound.Code,
		"account/nothex":                 market.ErrInvalidAddress.Code,
		"list/sequence":                  1,
		"frobnicate":                     1,
	} {
		if res := c.query(path, nil); res.Code != code {
			t.Errorf("%s: code = %d (%s), want %d", path, res.Code, res.Log, code)
		}
	}
}

func TestRepeatedInitChainCreditsOnce(t *testing.T) {
	funder := newSigner(t)
	genesis := fundedGenesis(nil, funder)
	c := newTestChain(t, genesis)

	state, _ := json.Marshal(genesis)
	c.app.InitChain(abci.RequestInitChain{ChainId: testChain, AppStateBytes: state})
	if got := c.balance(funder.addr); got != 10*unit {
		t.Fatalf("balance after second InitChain = %d", got)
	}
	if err := c.app.initChain("other-chain", state); err == nil {
		t.Fatal("state accepted a different chain id")
	}
}

func TestLargeBlockSpansSeveralTransactions(t *testing.T) {
	const n = 400
	params := market.DefaultParams()
	params.FaucetLimit = unit

	// A small table size shrinks badger's per-transaction limit, so the block
	// cannot be written in one transaction.
	dir := t.TempDir()
	db, err := badger.Open(badger.DefaultOptions(dir).WithMaxTableSize(1 << 16).WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	small := newTestChainOn(t, db, fundedGenesis(&params))
	reference := newTestChain(t, fundedGenesis(&params))

	users := make([]*signer, n)
	txs := make([][]byte, n)
	for i := range users {
		users[i] = newSigner(t)
		txs[i] = users[i].tx(t, types.TxAirdrop, types.AirdropPayload{Amount: unit})
	}
	small.mustBlock(txs...)
	reference.mustBlock(txs...)

	if !bytes.Equal(small.app.lastAppHash, reference.app.lastAppHash) {
		t.Fatal("app hash depends on how the block was written")
	}
	for _, u := range users {
		if got := small.balance(u.addr); got != unit {
			t.Fatalf("balance of %s = %d", u.addr, got)
		}
	}
	info := small.app.Info(abci.RequestInfo{})
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = badger.Open(badger.DefaultOptions(dir).WithMaxTableSize(1 << 16).WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	reopened, err := NewBountyApp(db, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	got := reopened.Info(abci.RequestInfo{})
	if got.LastBlockHeight != 1 || !bytes.Equal(got.LastBlockAppHash, info.LastBlockAppHash) {
		t.Fatalf("info after reopen = %+v, before %+v", got, info)
	}
	var acc AccountView
	res := reopened.Query(abci.RequestQuery{Path: "account/" + users[n-1].addr.String()})
	if err := json.Unmarshal(res.Value, &acc); err != nil || acc.Balance != unit {
		t.Fatalf("last account after reopen = %s: %v", res.Value, err)
	}
}
