package market

import (
	"github.com/gregorybednov/bountychain/address"
)

// CreateBounty opens a bounty owned by the signer's client record and locks
// reward (whole units) in its escrow account.
func (e *Engine) CreateBounty(ctx *Context, title, description string, reward, deadline uint64, skills []string) (address.Address, *Bounty, error) {
	if err := requireText(title, MaxTitleLen, ErrInvalidTitle, "title"); err != nil {
		return address.Zero, nil, err
	}
	if err := requireText(description, MaxDescriptionLen, ErrInvalidDescription, "description"); err != nil {
		return address.Zero, nil, err
	}
	if err := validateSkills(skills); err != nil {
		return address.Zero, nil, err
	}
	if reward == 0 {
		return address.Zero, nil, ErrInvalidRewardAmount
	}
	now := ctx.unix()
	if deadline <= now {
		return address.Zero, nil, wrap(ErrInvalidDeadline, "deadline %d is not after %d", deadline, now)
	}

	st := ctx.store()
	clientAddr, _, err := address.Client(ctx.Signer)
	if err != nil {
		return address.Zero, nil, err
	}
	client, err := st.client(clientAddr)
	if err != nil {
		return address.Zero, nil, err
	}

	bountyAddr, nonce, err := address.Bounty(title, ctx.Signer)
	if err != nil {
		return address.Zero, nil, wrap(ErrInvalidTitle, "%v", err)
	}
	if err := e.checkBountySlotFree(st, bountyAddr, ctx.Signer, title); err != nil {
		return address.Zero, nil, err
	}

	escrowAddr, locked, err := e.lockFunds(ctx, st, bountyAddr, reward)
	if err != nil {
		return address.Zero, nil, err
	}

	b := &Bounty{
		CreatorWalletKey: ctx.Signer,
		ClientKey:        clientAddr,
		Title:            title,
		Description:      description,
		Reward:           reward,
		Live:             true,
		CreatedAt:        now,
		Deadline:         deadline,
		RequiredSkills:   skills,
		EscrowAccount:    escrowAddr,
		Nonce:            nonce,
	}
	if err := st.save(Key(PrefixBounty, bountyAddr), b); err != nil {
		return address.Zero, nil, err
	}
	if err := st.s.Set(titleIndexKey(ctx.Signer, title), bountyAddr.Bytes()); err != nil {
		return address.Zero, nil, err
	}

	if client.BountiesPosted, err = addUint64(client.BountiesPosted, 1); err != nil {
		return address.Zero, nil, err
	}
	if err := st.save(Key(PrefixClient, clientAddr), client); err != nil {
		return address.Zero, nil, err
	}

	ctx.emit("bounty.created",
		"bounty", bountyAddr.String(),
		"creator", ctx.Signer.String(),
		"escrow", escrowAddr.String(),
		"locked", u64(locked),
	)
	e.logger.Infof("bounty %q (%s) opened by %s, %s locked", title, bountyAddr, ctx.Signer, e.params.FormatAmount(locked))
	return bountyAddr, b, nil
}

// checkBountySlotFree rejects a (creator, title) pair that is already in use,
// either by its derived record, its escrow or the explicit title index.
func (e *Engine) checkBountySlotFree(st store, bountyAddr, creator address.Address, title string) error {
	taken, err := st.has(Key(PrefixBounty, bountyAddr))
	if err != nil {
		return err
	}
	if !taken {
		taken, err = st.has(titleIndexKey(creator, title))
		if err != nil {
			return err
		}
	}
	if !taken {
		escrowAddr, _, err := address.Escrow(bountyAddr)
		if err != nil {
			return err
		}
		_, taken, err = st.account(escrowAddr)
		if err != nil {
			return err
		}
	}
	if taken {
		return wrap(ErrBountyAlreadyExists, "%q by %s", title, creator)
	}
	return nil
}

type ownedBounty struct {
	addr       address.Address
	bounty     *Bounty
	clientAddr address.Address
	client     *Client
}

// ownedBounty loads the signer's bounty by title together with the signer's
// client record and checks they belong together.
func (e *Engine) ownedBounty(ctx *Context, title string) (*ownedBounty, error) {
	if err := requireText(title, MaxTitleLen, ErrInvalidTitle, "title"); err != nil {
		return nil, err
	}
	st := ctx.store()
	clientAddr, _, err := address.Client(ctx.Signer)
	if err != nil {
		return nil, err
	}
	client, err := st.client(clientAddr)
	if err != nil {
		return nil, err
	}
	bountyAddr, _, err := address.Bounty(title, ctx.Signer)
	if err != nil {
		return nil, wrap(ErrInvalidTitle, "%v", err)
	}
	b, err := st.bounty(bountyAddr)
	if err != nil {
		return nil, err
	}
	if err := verifyBountyAddress(bountyAddr, b); err != nil {
		return nil, err
	}
	if b.ClientKey != clientAddr || b.CreatorWalletKey != ctx.Signer {
		return nil, ErrNotAuthorizedForBounty
	}
	return &ownedBounty{addr: bountyAddr, bounty: b, clientAddr: clientAddr, client: client}, nil
}

func verifyBountyAddress(addr address.Address, b *Bounty) error {
	derived, err := address.WithNonce(b.Nonce, address.TagBounty, []byte(b.Title), b.CreatorWalletKey[:])
	if err != nil || derived != addr {
		return wrap(ErrAddressMismatch, "bounty %s", addr)
	}
	return nil
}

// UpdateBounty rewrites description and deadline of a live bounty that has no
// submissions yet. Title, reward and escrow never change.
func (e *Engine) UpdateBounty(ctx *Context, title, description string, deadline uint64) (*Bounty, error) {
	if err := requireText(description, MaxDescriptionLen, ErrInvalidDescription, "description"); err != nil {
		return nil, err
	}
	if now := ctx.unix(); deadline <= now {
		return nil, wrap(ErrInvalidDeadline, "deadline %d is not after %d", deadline, now)
	}

	ob, err := e.ownedBounty(ctx, title)
	if err != nil {
		return nil, err
	}
	b := ob.bounty
	if !b.Live {
		return nil, ErrBountyAlreadyClosed
	}
	if b.NoOfSubmissions != 0 {
		return nil, ErrCannotUpdateWithSubmission
	}

	b.Description = description
	b.Deadline = deadline
	if err := ctx.store().save(Key(PrefixBounty, ob.addr), b); err != nil {
		return nil, err
	}
	ctx.emit("bounty.updated", "bounty", ob.addr.String(), "deadline", u64(deadline))
	return b, nil
}

// DeleteBounty cancels a live bounty without submissions, refunds the whole
// escrow balance to the creator and frees the (creator, title) slot.
func (e *Engine) DeleteBounty(ctx *Context, title string) (uint64, error) {
	ob, err := e.ownedBounty(ctx, title)
	if err != nil {
		return 0, err
	}
	b := ob.bounty
	if !b.Live {
		return 0, ErrBountyAlreadyClosed
	}
	if b.NoOfSubmissions != 0 {
		return 0, ErrCannotDeleteWithSubmission
	}

	st := ctx.store()
	refunded, err := e.refundFunds(ctx, st, ob.addr, b)
	if err != nil {
		return 0, err
	}

	if err := st.s.Delete(Key(PrefixBounty, ob.addr)); err != nil {
		return 0, err
	}
	if err := st.s.Delete(titleIndexKey(ctx.Signer, b.Title)); err != nil {
		return 0, err
	}

	client := ob.client
	if client.BountiesPosted, err = subUint64(client.BountiesPosted, 1); err != nil {
		return 0, err
	}
	if err := st.save(Key(PrefixClient, ob.clientAddr), client); err != nil {
		return 0, err
	}

	ctx.emit("bounty.deleted", "bounty", ob.addr.String(), "refunded", u64(refunded))
	e.logger.Infof("bounty %q (%s) deleted, %s refunded to %s", b.Title, ob.addr, e.params.FormatAmount(refunded), ctx.Signer)
	return refunded, nil
}
