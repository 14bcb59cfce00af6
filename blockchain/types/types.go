package types

// Types subpackage.
// Everything a client needs to build, sign and decode bountychain transactions.

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gregorybednov/bountychain/address"
)

const (
	TxCreateBounty     = "create_bounty"
	TxUpdateBounty     = "update_bounty"
	TxDeleteBounty     = "delete_bounty"
	TxCreateSubmission = "create_submission"
	TxSelectSubmission = "select_submission"
	TxRegisterUser     = "register_user"
	TxUpdateUser       = "update_user"
	TxDeleteUser       = "delete_user"
	TxRegisterClient   = "register_client"
	TxUpdateClient     = "update_client"
	TxDeleteClient     = "delete_client"
	TxAirdrop          = "airdrop"
)

// SignedTx is the wire envelope. Signature covers the raw Body bytes exactly
// as sent.
type SignedTx struct {
	Body      json.RawMessage `json:"body"`
	Signature string          `json:"signature"`
}

type TxBody struct {
	Type     string          `json:"type"`
	Signer   string          `json:"signer"` // base64 ed25519 public key
	Sequence uint64          `json:"sequence"`
	ChainID  string          `json:"chain_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type CreateBountyPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Reward      uint64   `json:"reward"`
	Deadline    uint64   `json:"deadline"`
	Skills      []string `json:"skills,omitempty"`
}

type UpdateBountyPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    uint64 `json:"deadline"`
}

type DeleteBountyPayload struct {
	Title string `json:"title"`
}

type CreateSubmissionPayload struct {
	Bounty      address.Address `json:"bounty"`
	Description string          `json:"description"`
	WorkURL     string          `json:"work_url"`
}

type SelectSubmissionPayload struct {
	Title      string          `json:"title"`
	Submission address.Address `json:"submission"`
	Winner     address.Address `json:"winner"`
}

type RegisterUserPayload struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Skills []string `json:"skills,omitempty"`
}

type UpdateUserPayload struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Bio    string   `json:"bio"`
	Skills []string `json:"skills,omitempty"`
}

type RegisterClientPayload struct {
	CompanyName  string `json:"company_name"`
	CompanyEmail string `json:"company_email"`
	CompanyLink  string `json:"company_link"`
}

type UpdateClientPayload struct {
	CompanyName  string `json:"company_name"`
	CompanyEmail string `json:"company_email"`
	CompanyLink  string `json:"company_link"`
	CompanyBio   string `json:"company_bio"`
}

type AirdropPayload struct {
	Amount uint64 `json:"amount"`
}

// Result is returned in DeliverTx data.
type Result struct {
	Address  *address.Address `json:"address,omitempty"`
	Escrow   *address.Address `json:"escrow,omitempty"`
	Refunded uint64           `json:"refunded,omitempty"`
}

// Genesis is the app_state section of genesis.json.
type Genesis struct {
	Params   json.RawMessage  `json:"params,omitempty"`
	Accounts []GenesisAccount `json:"accounts,omitempty"`
}

type GenesisAccount struct {
	Address address.Address `json:"address"`
	Balance uint64          `json:"balance"`
}

// NewSignedTx encodes payload, wraps it into a body for the key's owner and
// signs it. The returned bytes go to broadcast_tx as is.
func NewSignedTx(priv ed25519.PrivateKey, txType string, sequence uint64, chainID string, payload any) ([]byte, error) {
	body := TxBody{
		Type:     txType,
		Signer:   base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey)),
		Sequence: sequence,
		ChainID:  chainID,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body.Payload = raw
	}
	msg, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(SignedTx{
		Body:      msg,
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(priv, msg)),
	})
}
