package blockchain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger"
	abci "github.com/tendermint/tendermint/abci/types"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/market"
)

var errUnsupportedQuery = errors.New("unsupported query")

// ListEntry is one element of a list/<kind> response.
type ListEntry struct {
	Address address.Address `json:"address"`
	Record  json.RawMessage `json:"record"`
}

type AccountView struct {
	Address address.Address `json:"address"`
	Balance uint64          `json:"balance"`
	Exists  bool            `json:"exists"`
}

type DerivedBounty struct {
	Bounty address.Address `json:"bounty"`
	Escrow address.Address `json:"escrow"`
}

type SequenceView struct {
	Sequence uint64 `json:"sequence"`
}

var listable = map[string]bool{
	market.PrefixClient:     true,
	market.PrefixUser:       true,
	market.PrefixBounty:     true,
	market.PrefixSubmission: true,
	market.PrefixAccount:    true,
}

// Query answers from the last committed state. Paths:
//
//	params
//	account/<addr>  client/<authority>  user/<authority>
//	bounty/<addr>   submission/<addr>   sequence/<addr>
//	list/<kind>
//	derive/bounty/<creator>/<title>
//	derive/submission/<worker>/<bounty>
func (app *BountyApp) Query(req abci.RequestQuery) abci.ResponseQuery {
	parts := strings.Split(strings.Trim(req.Path, "/"), "/")
	value, err := app.query(parts)
	if err != nil {
		code, space := responseCode(err)
		if errors.Is(err, errUnsupportedQuery) {
			code = 1
		}
		return abci.ResponseQuery{Code: code, Codespace: space, Log: err.Error(), Height: app.lastHeight}
	}
	all, err := json.Marshal(value)
	if err != nil {
		return abci.ResponseQuery{Code: 1, Log: err.Error()}
	}
	return abci.ResponseQuery{Code: abci.CodeTypeOK, Key: []byte(req.Path), Value: all, Height: app.lastHeight}
}

func (app *BountyApp) query(parts []string) (any, error) {
	st := viewState{app.db}
	switch {
	case len(parts) == 1 && parts[0] == "params":
		return app.params, nil
	case len(parts) == 2 && parts[0] == "list":
		if !listable[parts[1]] {
			return nil, fmt.Errorf("%w: cannot list %q", errUnsupportedQuery, parts[1])
		}
		return app.list(parts[1])
	case len(parts) == 2:
		a, err := address.Parse(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", market.ErrInvalidAddress, err)
		}
		switch parts[0] {
		case "account":
			acc := AccountView{Address: a}
			if acc.Exists, err = market.AccountExists(st, a); err != nil {
				return nil, err
			}
			acc.Balance, err = market.Balance(st, a)
			return acc, err
		case "client":
			return market.GetClient(st, a)
		case "user":
			return market.GetUser(st, a)
		case "bounty":
			return market.GetBounty(st, a)
		case "submission":
			return market.GetSubmission(st, a)
		case "sequence":
			seq, err := getUint64(st, sequenceKey(a))
			return SequenceView{Sequence: seq}, err
		}
	case len(parts) == 4 && parts[0] == "derive":
		return derive(parts[1], parts[2], parts[3])
	}
	return nil, fmt.Errorf("%w: %s", errUnsupportedQuery, strings.Join(parts, "/"))
}

func derive(kind, first, second string) (any, error) {
	a, err := address.Parse(first)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrInvalidAddress, err)
	}
	switch kind {
	case "bounty":
		bounty, _, err := address.Bounty(second, a)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", market.ErrInvalidTitle, err)
		}
		escrow, _, err := address.Escrow(bounty)
		if err != nil {
			return nil, err
		}
		return DerivedBounty{Bounty: bounty, Escrow: escrow}, nil
	case "submission":
		b, err := address.Parse(second)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", market.ErrInvalidAddress, err)
		}
		sub, _, err := address.Submission(a, b)
		return sub, err
	}
	return nil, fmt.Errorf("%w: derive/%s", errUnsupportedQuery, kind)
}

func (app *BountyApp) list(kind string) ([]ListEntry, error) {
	prefix := []byte(kind + ":")
	result := []ListEntry{}
	err := app.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			a, err := address.Parse(string(item.Key()[len(prefix):]))
			if err != nil {
				return fmt.Errorf("corrupted key %s: %w", item.Key(), err)
			}
			err = item.Value(func(v []byte) error {
				var raw json.RawMessage = make([]byte, len(v))
				copy(raw, v)
				result = append(result, ListEntry{Address: a, Record: raw})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return result, err
}
