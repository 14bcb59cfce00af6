package market

import (
	"github.com/gregorybednov/bountychain/address"
)

// Record key prefixes. Keys are "<prefix>:<hex address>", matching the list/<prefix>
// query.
const (
	PrefixClient     = "client"
	PrefixUser       = "user"
	PrefixBounty     = "bounty"
	PrefixSubmission = "submission"
	PrefixAccount    = "account"
	prefixTitleIndex = "bountyidx"
)

func Key(prefix string, a address.Address) []byte {
	return []byte(prefix + ":" + a.String())
}

func titleIndexKey(creator address.Address, title string) []byte {
	return []byte(prefixTitleIndex + ":" + creator.String() + ":" + title)
}

// Account holds spendable value. Wallets are keyed by authority key, escrows by
// their derived address.
type Account struct {
	Balance uint64 `json:"balance"`
}

// Client is a funder profile. Only Rewarded and BountiesPosted are touched by
// the escrow lifecycle.
type Client struct {
	Authority      address.Address `json:"authority"`
	CompanyName    string          `json:"company_name"`
	CompanyEmail   string          `json:"company_email"`
	CompanyAvatar  string          `json:"company_avatar"`
	CompanyLink    string          `json:"company_link"`
	CompanyBio     string          `json:"company_bio"`
	JoinedAt       uint64          `json:"joined_at"`
	Rewarded       uint64          `json:"rewarded"`
	BountiesPosted uint64          `json:"bounties_posted"`
	Nonce          uint8           `json:"nonce"`
}

// User is a worker profile.
type User struct {
	Authority         address.Address `json:"authority"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	Avatar            string          `json:"avatar"`
	Bio               string          `json:"bio"`
	Skills            []string        `json:"skills"`
	JoinedAt          uint64          `json:"joined_at"`
	Earned            uint64          `json:"earned"`
	BountiesSubmitted uint64          `json:"bounties_submitted"`
	BountiesCompleted uint64          `json:"bounties_completed"`
	Nonce             uint8           `json:"nonce"`
}

// Bounty is a paid task whose reward sits in EscrowAccount until it is either
// refunded or paid to a single winner.
type Bounty struct {
	CreatorWalletKey      address.Address `json:"creator_wallet_key"`
	ClientKey             address.Address `json:"client_key"`
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	Reward                uint64          `json:"reward"`
	Live                  bool            `json:"live"`
	CreatedAt             uint64          `json:"created_at"`
	Deadline              uint64          `json:"deadline"`
	RequiredSkills        []string        `json:"required_skills"`
	NoOfSubmissions       uint64          `json:"no_of_submissions"`
	SelectedSubmission    address.Address `json:"selected_submission"`
	SelectedUserWalletKey address.Address `json:"selected_user_wallet_key"`
	EscrowAccount         address.Address `json:"escrow_account"`
	BountyRewarded        bool            `json:"bounty_rewarded"`
	Nonce                 uint8           `json:"nonce"`
}

// Submission is a worker's entry for one bounty. At most one exists per
// (worker, bounty) pair.
type Submission struct {
	UserWalletKey address.Address `json:"user_wallet_key"`
	UserKey       address.Address `json:"user_key"`
	BountyKey     address.Address `json:"bounty_key"`
	Description   string          `json:"description"`
	WorkURL       string          `json:"work_url"`
	Nonce         uint8           `json:"nonce"`
}
