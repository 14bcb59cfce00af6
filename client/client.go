// Package client signs bountychain transactions and talks to a node over
// Tendermint RPC.
package client

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	rpchttp "github.com/tendermint/tendermint/rpc/client/http"
	ctypes "github.com/tendermint/tendermint/rpc/core/types"
	tmtypes "github.com/tendermint/tendermint/types"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/blockchain"
	"github.com/gregorybednov/bountychain/blockchain/types"
)

// RPC is the part of the Tendermint RPC client used here.
type RPC interface {
	ABCIQuery(ctx context.Context, path string, data tmbytes.HexBytes) (*ctypes.ResultABCIQuery, error)
	BroadcastTxCommit(ctx context.Context, tx tmtypes.Tx) (*ctypes.ResultBroadcastTxCommit, error)
	Status(ctx context.Context) (*ctypes.ResultStatus, error)
}

// QueryError is a non-zero code returned by the application.
type QueryError struct {
	Path      string
	Code      uint32
	Codespace string
	Log       string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: code %d (%s): %s", e.Path, e.Code, e.Codespace, e.Log)
}

// TxResult is the outcome of a committed or rejected transaction.
type TxResult struct {
	Hash      string        `json:"hash"`
	Height    int64         `json:"height"`
	Code      uint32        `json:"code"`
	Codespace string        `json:"codespace,omitempty"`
	Log       string        `json:"log,omitempty"`
	Result    *types.Result `json:"result,omitempty"`
}

func (r *TxResult) OK() bool { return r.Code == 0 }

type Client struct {
	rpc     RPC
	chainID string
}

// New dials the node RPC at remote, e.g. tcp://127.0.0.1:26657.
func New(remote string) (*Client, error) {
	c, err := rpchttp.New(remote, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("rpc client: %w", err)
	}
	return NewWithRPC(c), nil
}

func NewWithRPC(rpc RPC) *Client {
	return &Client{rpc: rpc}
}

// Query runs an ABCI query and decodes the JSON answer into v.
func (c *Client) Query(ctx context.Context, path string, v any) error {
	res, err := c.rpc.ABCIQuery(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	resp := res.Response
	if !resp.IsOK() {
		return &QueryError{Path: path, Code: resp.Code, Codespace: resp.Codespace, Log: resp.Log}
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(resp.Value, v)
}

// ChainID is the network name reported by the node, cached after first use.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	if c.chainID != "" {
		return c.chainID, nil
	}
	st, err := c.rpc.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("status: %w", err)
	}
	c.chainID = st.NodeInfo.Network
	return c.chainID, nil
}

// Sequence is the next sequence number signer must use.
func (c *Client) Sequence(ctx context.Context, signer address.Address) (uint64, error) {
	var view blockchain.SequenceView
	if err := c.Query(ctx, "sequence/"+signer.String(), &view); err != nil {
		return 0, err
	}
	return view.Sequence, nil
}

func (c *Client) Account(ctx context.Context, a address.Address) (*blockchain.AccountView, error) {
	var view blockchain.AccountView
	if err := c.Query(ctx, "account/"+a.String(), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Broadcast submits a signed envelope and waits for it to be committed. A
// rejected transaction is reported through TxResult.Code, not as an error.
func (c *Client) Broadcast(ctx context.Context, tx []byte) (*TxResult, error) {
	res, err := c.rpc.BroadcastTxCommit(ctx, tmtypes.Tx(tx))
	if err != nil {
		return nil, fmt.Errorf("broadcast: %w", err)
	}
	out := &TxResult{Hash: res.Hash.String(), Height: res.Height}
	if !res.CheckTx.IsOK() {
		out.Code, out.Codespace, out.Log = res.CheckTx.Code, res.CheckTx.Codespace, res.CheckTx.Log
		return out, nil
	}
	deliver := res.DeliverTx
	out.Code, out.Codespace, out.Log = deliver.Code, deliver.Codespace, deliver.Log
	if deliver.IsOK() && len(deliver.Data) > 0 {
		var result types.Result
		if err := json.Unmarshal(deliver.Data, &result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out.Result = &result
	}
	return out, nil
}

// Send signs payload as txType with the next sequence of priv's owner and
// broadcasts it.
func (c *Client) Send(ctx context.Context, priv ed25519.PrivateKey, txType string, payload any) (*TxResult, error) {
	signer, err := address.FromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	seq, err := c.Sequence(ctx, signer)
	if err != nil {
		return nil, err
	}
	tx, err := types.NewSignedTx(priv, txType, seq, chainID, payload)
	if err != nil {
		return nil, err
	}
	return c.Broadcast(ctx, tx)
}
