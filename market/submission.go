package market

import (
	"github.com/gregorybednov/bountychain/address"
)

// CreateSubmission records the signer's work for a live bounty. A worker can
// submit once per bounty; the submission address is derived from both keys.
func (e *Engine) CreateSubmission(ctx *Context, bountyAddr address.Address, description, workURL string) (address.Address, *Submission, error) {
	if err := requireText(description, MaxDescriptionLen, ErrInvalidDescription, "description"); err != nil {
		return address.Zero, nil, err
	}
	if err := requireText(workURL, MaxWorkURLLen, ErrInvalidWorkLink, "work url"); err != nil {
		return address.Zero, nil, err
	}

	st := ctx.store()
	userAddr, _, err := address.User(ctx.Signer)
	if err != nil {
		return address.Zero, nil, err
	}
	user, err := st.user(userAddr)
	if err != nil {
		return address.Zero, nil, err
	}

	b, err := st.bounty(bountyAddr)
	if err != nil {
		return address.Zero, nil, err
	}
	if err := verifyBountyAddress(bountyAddr, b); err != nil {
		return address.Zero, nil, err
	}
	if !b.Live {
		return address.Zero, nil, ErrBountyNotLive
	}
	if now := ctx.unix(); now > b.Deadline {
		return address.Zero, nil, wrap(ErrBountyDeadlinePassed, "deadline %d, now %d", b.Deadline, now)
	}

	subAddr, nonce, err := address.Submission(ctx.Signer, bountyAddr)
	if err != nil {
		return address.Zero, nil, err
	}
	exists, err := st.has(Key(PrefixSubmission, subAddr))
	if err != nil {
		return address.Zero, nil, err
	}
	if exists {
		return address.Zero, nil, ErrSubmissionAlreadyExists
	}

	sub := &Submission{
		UserWalletKey: ctx.Signer,
		UserKey:       userAddr,
		BountyKey:     bountyAddr,
		Description:   description,
		WorkURL:       workURL,
		Nonce:         nonce,
	}
	if err := st.save(Key(PrefixSubmission, subAddr), sub); err != nil {
		return address.Zero, nil, err
	}

	if b.NoOfSubmissions, err = addUint64(b.NoOfSubmissions, 1); err != nil {
		return address.Zero, nil, err
	}
	if err := st.save(Key(PrefixBounty, bountyAddr), b); err != nil {
		return address.Zero, nil, err
	}
	if user.BountiesSubmitted, err = addUint64(user.BountiesSubmitted, 1); err != nil {
		return address.Zero, nil, err
	}
	if err := st.save(Key(PrefixUser, userAddr), user); err != nil {
		return address.Zero, nil, err
	}

	ctx.emit("submission.created", "submission", subAddr.String(), "bounty", bountyAddr.String(), "worker", ctx.Signer.String())
	return subAddr, sub, nil
}
