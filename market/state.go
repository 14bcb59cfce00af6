package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/gregorybednov/bountychain/address"
)

// State is the key/value view a single operation runs against. The caller is
// responsible for making the whole operation atomic: either every write made
// through State is kept, or none is.
type State interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

// MemState is a map backed State.
type MemState struct {
	data map[string][]byte
}

func NewMemState() *MemState {
	return &MemState{data: make(map[string][]byte)}
}

func (m *MemState) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemState) Set(key, value []byte) error {
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemState) Delete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

// Keys returns the stored keys in order.
func (m *MemState) Keys() []string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// store wraps State with typed record access.
type store struct {
	s State
}

func (st store) has(key []byte) (bool, error) {
	_, err := st.s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// load decodes the record under key into v. notFound is returned when absent.
func (st store) load(key []byte, v any, notFound error) error {
	raw, err := st.s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("corrupted record %s: %w", key, err)
	}
	return nil
}

func (st store) save(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return st.s.Set(key, data)
}

func (st store) client(a address.Address) (*Client, error) {
	var c Client
	if err := st.load(Key(PrefixClient, a), &c, ErrClientNotFound); err != nil {
		return nil, err
	}
	return &c, nil
}

func (st store) user(a address.Address) (*User, error) {
	var u User
	if err := st.load(Key(PrefixUser, a), &u, ErrUserNotFound); err != nil {
		return nil, err
	}
	return &u, nil
}

func (st store) bounty(a address.Address) (*Bounty, error) {
	var b Bounty
	if err := st.load(Key(PrefixBounty, a), &b, ErrBountyNotFound); err != nil {
		return nil, err
	}
	return &b, nil
}

func (st store) submission(a address.Address) (*Submission, error) {
	var s Submission
	if err := st.load(Key(PrefixSubmission, a), &s, ErrSubmissionNotFound); err != nil {
		return nil, err
	}
	return &s, nil
}

// account returns the account and whether it exists. Missing accounts have a
// zero balance.
func (st store) account(a address.Address) (Account, bool, error) {
	var acc Account
	err := st.load(Key(PrefixAccount, a), &acc, ErrNotFound)
	if errors.Is(err, ErrNotFound) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return acc, true, nil
}

func (st store) putAccount(a address.Address, acc Account) error {
	return st.save(Key(PrefixAccount, a), acc)
}

func (st store) closeAccount(a address.Address) error {
	return st.s.Delete(Key(PrefixAccount, a))
}

// Balance reads the spendable balance of any account.
func Balance(s State, a address.Address) (uint64, error) {
	acc, _, err := store{s}.account(a)
	return acc.Balance, err
}

// Credit adds value to an account, creating it if needed. Used for genesis
// allocations.
func Credit(s State, a address.Address, amount uint64) error {
	return store{s}.credit(a, amount)
}

func (st store) credit(a address.Address, amount uint64) error {
	acc, _, err := st.account(a)
	if err != nil {
		return err
	}
	if acc.Balance, err = addUint64(acc.Balance, amount); err != nil {
		return err
	}
	return st.putAccount(a, acc)
}

func (st store) debit(a address.Address, amount uint64) error {
	acc, ok, err := st.account(a)
	if err != nil {
		return err
	}
	if !ok || acc.Balance < amount {
		return wrap(ErrInsufficientBalance, "%s has %d, needs %d", a, acc.Balance, amount)
	}
	acc.Balance -= amount
	return st.putAccount(a, acc)
}

// move debits from and credits to as one step. Both writes land in the same
// operation State, so they commit or vanish together.
func (st store) move(from, to address.Address, amount uint64) error {
	if err := st.debit(from, amount); err != nil {
		return err
	}
	return st.credit(to, amount)
}
