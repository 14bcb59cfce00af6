package market

import (
	"errors"
	"fmt"
)

// Kind groups errors by what the caller has to fix.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindState
	KindAuthorization
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindAuthorization:
		return "authorization"
	case KindResource:
		return "resource"
	default:
		return "internal"
	}
}

// Codespace is reported alongside error codes in tx results.
const Codespace = "market"

// Error is a registered, stable failure reason. Sentinels are compared with errors.Is.
type Error struct {
	Code uint32
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

var registry = map[uint32]*Error{}

func register(code uint32, kind Kind, msg string) *Error {
	e := &Error{Code: code, Kind: kind, msg: msg}
	registry[code] = e
	return e
}

// Lookup returns the registered error for a code reported by a node.
func Lookup(code uint32) (*Error, bool) {
	e, ok := registry[code]
	return e, ok
}

var (
	ErrInvalidRewardAmount = register(100, KindValidation, "invalid reward amount")
	ErrInvalidDeadline     = register(101, KindValidation, "invalid deadline")
	ErrInvalidTitle        = register(102, KindValidation, "invalid bounty title")
	ErrInvalidDescription  = register(103, KindValidation, "invalid description")
	ErrInvalidSkills       = register(104, KindValidation, "invalid required skills")
	ErrInvalidWorkLink     = register(105, KindValidation, "submission link is invalid")
	ErrInvalidName         = register(106, KindValidation, "invalid name format")
	ErrInvalidEmail        = register(107, KindValidation, "invalid email format")
	ErrInvalidLink         = register(108, KindValidation, "invalid link format")
	ErrInvalidBio          = register(109, KindValidation, "invalid bio format")
	ErrInvalidAmount       = register(110, KindValidation, "invalid amount")
	ErrInvalidAddress      = register(111, KindValidation, "invalid address")

	ErrBountyAlreadyClosed        = register(200, KindState, "bounty is already closed")
	ErrCannotUpdateWithSubmission = register(201, KindState, "cannot update bounty that has submissions")
	ErrCannotDeleteWithSubmission = register(202, KindState, "cannot delete bounty that has submissions")
	ErrBountyDeadlinePassed       = register(203, KindState, "bounty deadline has passed")
	ErrBountyNotLive              = register(204, KindState, "bounty is not live")
	ErrBountyAlreadyRewarded      = register(205, KindState, "bounty has already been rewarded")
	ErrBountyNotFound             = register(206, KindState, "bounty not found")
	ErrBountyAlreadyExists        = register(207, KindState, "bounty already exists")
	ErrSubmissionAlreadyExists    = register(208, KindState, "submission already exists")
	ErrSubmissionNotFound         = register(209, KindState, "submission not found")
	ErrWrongBounty                = register(210, KindState, "submission is not for the specified bounty")
	ErrClientNotFound             = register(211, KindState, "client not found")
	ErrClientAlreadyExists        = register(212, KindState, "client already exists")
	ErrUserNotFound               = register(213, KindState, "user not found")
	ErrUserAlreadyExists          = register(214, KindState, "user already exists")
	ErrEscrowAccountNotFound      = register(215, KindState, "escrow account not found")
	ErrClientHasBounties          = register(216, KindState, "client has posted bounties")
	ErrFaucetDisabled             = register(217, KindState, "faucet is disabled")

	ErrInvalidSubmission      = register(300, KindAuthorization, "invalid submission for selected user")
	ErrNotAuthorizedForBounty = register(301, KindAuthorization, "client is not authorized for this bounty")
	ErrInvalidEscrowAccount   = register(302, KindAuthorization, "invalid escrow account")
	ErrAddressMismatch        = register(303, KindAuthorization, "record does not match its derived address")

	ErrInsufficientBalance = register(400, KindResource, "insufficient balance")
	ErrOverflow            = register(401, KindResource, "arithmetic overflow")
	ErrFaucetLimitExceeded = register(402, KindResource, "faucet limit exceeded")
)

// ErrNotFound is returned by State implementations for absent keys.
var ErrNotFound = errors.New("key not found")

// Classify returns the registered code and kind for err. Unregistered errors are
// internal.
func Classify(err error) (uint32, Kind) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Kind
	}
	return 1, KindInternal
}

func wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
