package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/blockchain"
	"github.com/gregorybednov/bountychain/market"
)

type BountyView struct {
	Address     address.Address  `json:"address"`
	Slug        string           `json:"slug"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Reward      uint64           `json:"reward"`
	Live        bool             `json:"live"`
	Rewarded    bool             `json:"rewarded"`
	CreatedAt   time.Time        `json:"created_at"`
	Deadline    time.Time        `json:"deadline"`
	Skills      []string         `json:"skills"`
	Submissions uint64           `json:"submissions"`
	Creator     address.Address  `json:"creator"`
	Escrow      address.Address  `json:"escrow"`
	Winner      *address.Address `json:"winner,omitempty"`
	// EscrowBalance is only filled for single bounty lookups.
	EscrowBalance string `json:"escrow_balance,omitempty"`
}

func bountyView(a address.Address, b *market.Bounty) BountyView {
	v := BountyView{
		Address:     a,
		Slug:        slug.Make(b.Title),
		Title:       b.Title,
		Description: b.Description,
		Reward:      b.Reward,
		Live:        b.Live,
		Rewarded:    b.BountyRewarded,
		CreatedAt:   time.Unix(int64(b.CreatedAt), 0).UTC(),
		Deadline:    time.Unix(int64(b.Deadline), 0).UTC(),
		Skills:      b.RequiredSkills,
		Submissions: b.NoOfSubmissions,
		Creator:     b.CreatorWalletKey,
		Escrow:      b.EscrowAccount,
	}
	if !b.SelectedUserWalletKey.IsZero() {
		w := b.SelectedUserWalletKey
		v.Winner = &w
	}
	return v
}

type AccountBalance struct {
	Address address.Address `json:"address"`
	Balance uint64          `json:"balance"`
	Amount  string          `json:"amount"`
	Exists  bool            `json:"exists"`
}

func addressParam(c *fiber.Ctx, name string) (address.Address, error) {
	a, err := address.Parse(c.Params(name))
	if err != nil {
		return a, fiber.NewError(fiber.StatusBadRequest, "invalid address")
	}
	return a, nil
}

func (s *server) getParams(c *fiber.Ctx) error {
	p, err := s.marketParams(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// listBounties accepts ?live=true|false and ?skill=<name> filters.
func (s *server) listBounties(c *fiber.Ctx) error {
	var live *bool
	if raw := c.Query("live"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "live must be a boolean")
		}
		live = &b
	}
	skill := strings.ToLower(c.Query("skill"))

	var entries []blockchain.ListEntry
	if err := s.chain.Query(c.UserContext(), "list/"+market.PrefixBounty, &entries); err != nil {
		return err
	}
	out := []BountyView{}
	for _, e := range entries {
		var b market.Bounty
		if err := json.Unmarshal(e.Record, &b); err != nil {
			return err
		}
		if live != nil && b.Live != *live {
			continue
		}
		if skill != "" && !hasSkill(b.RequiredSkills, skill) {
			continue
		}
		out = append(out, bountyView(e.Address, &b))
	}
	return c.JSON(out)
}

func hasSkill(skills []string, want string) bool {
	for _, sk := range skills {
		if strings.ToLower(sk) == want {
			return true
		}
	}
	return false
}

func (s *server) getBounty(c *fiber.Ctx) error {
	a, err := addressParam(c, "addr")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	var b market.Bounty
	if err := s.chain.Query(ctx, "bounty/"+a.String(), &b); err != nil {
		return err
	}
	p, err := s.marketParams(ctx)
	if err != nil {
		return err
	}
	var escrow blockchain.AccountView
	if err := s.chain.Query(ctx, "account/"+b.EscrowAccount.String(), &escrow); err != nil {
		return err
	}
	v := bountyView(a, &b)
	v.EscrowBalance = p.FormatAmount(escrow.Balance)
	return c.JSON(v)
}

func (s *server) listSubmissions(c *fiber.Ctx) error {
	a, err := addressParam(c, "addr")
	if err != nil {
		return err
	}
	var entries []blockchain.ListEntry
	if err := s.chain.Query(c.UserContext(), "list/"+market.PrefixSubmission, &entries); err != nil {
		return err
	}
	type submissionView struct {
		Address address.Address `json:"address"`
		market.Submission
	}
	out := []submissionView{}
	for _, e := range entries {
		var sub market.Submission
		if err := json.Unmarshal(e.Record, &sub); err != nil {
			return err
		}
		if sub.BountyKey == a {
			out = append(out, submissionView{Address: e.Address, Submission: sub})
		}
	}
	return c.JSON(out)
}

func (s *server) getAccount(c *fiber.Ctx) error {
	a, err := addressParam(c, "key")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	var acc blockchain.AccountView
	if err := s.chain.Query(ctx, "account/"+a.String(), &acc); err != nil {
		return err
	}
	p, err := s.marketParams(ctx)
	if err != nil {
		return err
	}
	return c.JSON(AccountBalance{
		Address: acc.Address,
		Balance: acc.Balance,
		Amount:  p.FormatAmount(acc.Balance),
		Exists:  acc.Exists,
	})
}

func (s *server) getUser(c *fiber.Ctx) error {
	return s.relayRecord(c, market.PrefixUser, &market.User{})
}

func (s *server) getClient(c *fiber.Ctx) error {
	return s.relayRecord(c, market.PrefixClient, &market.Client{})
}

func (s *server) relayRecord(c *fiber.Ctx, kind string, record any) error {
	a, err := addressParam(c, "key")
	if err != nil {
		return err
	}
	if err := s.chain.Query(c.UserContext(), kind+"/"+a.String(), record); err != nil {
		return err
	}
	return c.JSON(record)
}

// postTx relays a signed envelope. Rejected transactions answer 422 with the
// node's result so the caller sees the code and log.
func (s *server) postTx(c *fiber.Ctx) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 || !json.Valid(body) {
		return fiber.NewError(fiber.StatusBadRequest, "body must be a signed transaction")
	}
	res, err := s.chain.Broadcast(c.UserContext(), bytes.Clone(body))
	if err != nil {
		return err
	}
	if !res.OK() {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}
	return c.JSON(res)
}
