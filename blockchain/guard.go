package blockchain

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/market"
)

// CodespaceAuth tags envelope failures in ABCI responses.
const CodespaceAuth = "auth"

// GuardError is an envelope-level rejection: the transaction never reached the
// market engine.
type GuardError struct {
	Code uint32
	msg  string
}

func (e *GuardError) Error() string { return e.msg }

var (
	ErrMalformedTx   = &GuardError{Code: 2, msg: "malformed transaction"}
	ErrBadSignature  = &GuardError{Code: 3, msg: "signature verification failed"}
	ErrWrongChain    = &GuardError{Code: 4, msg: "wrong chain id"}
	ErrBadSequence   = &GuardError{Code: 5, msg: "bad sequence"}
	ErrUnknownTxType = &GuardError{Code: 6, msg: "unknown transaction type"}
)

func guardf(e *GuardError, format string, args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}

// authorizedTx is a transaction whose signature checked out.
type authorizedTx struct {
	body   types.TxBody
	signer address.Address
}

// authorize checks the envelope: the signature over the raw body bytes must
// verify under the key the body names as its signer. The signer then becomes
// the only authority the engine acts for.
func authorize(tx []byte, chainID string) (*authorizedTx, error) {
	// 1) outer envelope with the body kept raw
	var outer types.SignedTx
	if err := json.Unmarshal(tx, &outer); err != nil {
		return nil, guardf(ErrMalformedTx, "invalid JSON wrapper")
	}
	if len(outer.Body) == 0 {
		return nil, guardf(ErrMalformedTx, "missing body")
	}

	var body types.TxBody
	if err := json.Unmarshal(outer.Body, &body); err != nil {
		return nil, guardf(ErrMalformedTx, "invalid body JSON")
	}

	// 2) signer key
	pubkeyB64 := strings.TrimSpace(body.Signer)
	if pubkeyB64 == "" {
		return nil, guardf(ErrMalformedTx, "missing signer")
	}
	pubkey, err := base64.StdEncoding.DecodeString(pubkeyB64)
	if err != nil {
		return nil, guardf(ErrMalformedTx, "invalid signer base64")
	}
	if len(pubkey) != ed25519.PublicKeySize {
		return nil, guardf(ErrMalformedTx, "invalid signer length: got %d, want %d", len(pubkey), ed25519.PublicKeySize)
	}

	// 3) signature over the raw body bytes
	sig, err := base64.StdEncoding.DecodeString(outer.Signature)
	if err != nil {
		return nil, guardf(ErrMalformedTx, "invalid signature base64")
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, guardf(ErrMalformedTx, "invalid signature length: got %d, want %d", len(sig), ed25519.SignatureSize)
	}
	if !ed25519.Verify(pubkey, outer.Body, sig) {
		return nil, ErrBadSignature
	}

	if chainID != "" && body.ChainID != chainID {
		return nil, guardf(ErrWrongChain, "got %q, want %q", body.ChainID, chainID)
	}
	if _, ok := handlers[body.Type]; !ok {
		return nil, guardf(ErrUnknownTxType, "%q", body.Type)
	}

	signer, err := address.FromPublicKey(pubkey)
	if err != nil {
		return nil, guardf(ErrMalformedTx, "%v", err)
	}
	return &authorizedTx{body: body, signer: signer}, nil
}

// useSequence requires the body sequence to be the signer's next one and
// advances it.
func useSequence(s market.State, tx *authorizedTx) error {
	key := sequenceKey(tx.signer)
	next, err := getUint64(s, key)
	if err != nil {
		return err
	}
	if tx.body.Sequence != next {
		return guardf(ErrBadSequence, "got %d, want %d", tx.body.Sequence, next)
	}
	return s.Set(key, putUint64(next+1))
}

// responseCode maps an error onto the ABCI code and codespace.
func responseCode(err error) (uint32, string) {
	var g *GuardError
	if errors.As(err, &g) {
		return g.Code, CodespaceAuth
	}
	code, kind := market.Classify(err)
	if kind == market.KindInternal {
		return code, ""
	}
	return code, market.Codespace
}
