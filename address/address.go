// Package address derives deterministic capability addresses for chain records.
//
// A derived address is the SHA-256 of a seed tuple and a one byte nonce, chosen so
// that the digest does not decode to an ed25519 curve point. No private key can
// exist for such an address, so only the state machine that derived it can move
// value in or out of it.
package address

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
)

// Size of an address or authority key in bytes.
const Size = 32

const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

var (
	ErrMaxSeedLength = errors.New("seed exceeds maximum length")
	ErrTooManySeeds  = errors.New("too many seeds")
	ErrNoViableNonce = errors.New("unable to find a viable nonce")
	ErrInvalid       = errors.New("invalid address")
	ErrOnCurve       = errors.New("derived address is on the ed25519 curve")
)

// Seed tags. Each record kind has its own namespace.
var (
	TagClient     = []byte("client")
	TagUser       = []byte("user")
	TagBounty     = []byte("bounty")
	TagEscrow     = []byte("escrow")
	TagSubmission = []byte("submission")
)

var marker = []byte("bountychain/derived-address")

// Address identifies an account: either an authority key or a derived address.
type Address [Size]byte

// Zero is the empty address used for unset references.
var Zero Address

func FromPublicKey(pk ed25519.PublicKey) (Address, error) {
	var a Address
	if len(pk) != ed25519.PublicKeySize {
		return a, fmt.Errorf("%w: public key length %d", ErrInvalid, len(pk))
	}
	copy(a[:], pk)
	return a, nil
}

func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, fmt.Errorf("%w: length %d", ErrInvalid, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Parse decodes the hex form produced by String.
func Parse(s string) (Address, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return FromBytes(b)
}

func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return hex.EncodeToString(a[:]) }

func (a Address) Bytes() []byte { return a[:] }

func (a Address) IsZero() bool { return a == Zero }

func (a Address) PublicKey() ed25519.PublicKey { return ed25519.PublicKey(bytes.Clone(a[:])) }

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = Zero
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// OnCurve reports whether the address decodes to a valid ed25519 point.
func (a Address) OnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%w: %d > %d", ErrTooManySeeds, len(seeds), MaxSeeds)
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLen {
			return fmt.Errorf("%w: seed %d is %d bytes", ErrMaxSeedLength, i, len(s))
		}
	}
	return nil
}

func hashSeeds(seeds [][]byte, nonce uint8) Address {
	h := sha256.New()
	for _, s := range seeds {
		// length prefix keeps ("ab","c") and ("a","bc") apart
		h.Write([]byte{byte(len(s))})
		h.Write(s)
	}
	h.Write([]byte{nonce})
	h.Write(marker)
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// Derive returns the address for the seed tuple together with the nonce that
// produced it. The nonce is searched downward from 255.
func Derive(seeds ...[]byte) (Address, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return Address{}, 0, err
	}
	for n := 255; n >= 0; n-- {
		a := hashSeeds(seeds, uint8(n))
		if !a.OnCurve() {
			return a, uint8(n), nil
		}
	}
	return Address{}, 0, ErrNoViableNonce
}

// WithNonce recomputes an address from a previously stored nonce.
func WithNonce(nonce uint8, seeds ...[]byte) (Address, error) {
	if err := checkSeeds(seeds); err != nil {
		return Address{}, err
	}
	a := hashSeeds(seeds, nonce)
	if a.OnCurve() {
		return Address{}, ErrOnCurve
	}
	return a, nil
}

func Client(authority Address) (Address, uint8, error) {
	return Derive(TagClient, authority[:])
}

func User(authority Address) (Address, uint8, error) {
	return Derive(TagUser, authority[:])
}

func Bounty(title string, creator Address) (Address, uint8, error) {
	return Derive(TagBounty, []byte(title), creator[:])
}

func Escrow(bounty Address) (Address, uint8, error) {
	return Derive(TagEscrow, bounty[:])
}

func Submission(worker, bounty Address) (Address, uint8, error) {
	return Derive(TagSubmission, worker[:], bounty[:])
}
