package market

import (
	"github.com/gregorybednov/bountychain/address"
)

// Read-only accessors used by queries and tests.

func GetBounty(s State, a address.Address) (*Bounty, error) { return store{s}.bounty(a) }

func GetSubmission(s State, a address.Address) (*Submission, error) {
	return store{s}.submission(a)
}

// GetClient looks a client up by its authority key.
func GetClient(s State, authority address.Address) (*Client, error) {
	a, _, err := address.Client(authority)
	if err != nil {
		return nil, err
	}
	return store{s}.client(a)
}

// GetUser looks a user up by its authority key.
func GetUser(s State, authority address.Address) (*User, error) {
	a, _, err := address.User(authority)
	if err != nil {
		return nil, err
	}
	return store{s}.user(a)
}

// AccountExists reports whether a wallet or escrow account is resolvable.
func AccountExists(s State, a address.Address) (bool, error) {
	_, ok, err := store{s}.account(a)
	return ok, err
}
