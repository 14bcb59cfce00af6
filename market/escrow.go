package market

import (
	"errors"

	"github.com/gregorybednov/bountychain/address"
)

// Escrow accounts carry no payload and have no signing authority. Only this
// engine, which derives their addresses, moves value in or out of them, using
// explicit debit/credit pairs on the operation State.
const escrowDataLen = 0

// lockFunds transfers the converted reward from the signer into the escrow
// derived from bountyAddr.
func (e *Engine) lockFunds(ctx *Context, st store, bountyAddr address.Address, reward uint64) (address.Address, uint64, error) {
	amount, err := e.params.ToMinorUnits(reward)
	if err != nil {
		return address.Zero, 0, wrap(ErrInvalidRewardAmount, "reward %d overflows", reward)
	}
	balance, err := Balance(st.s, ctx.Signer)
	if err != nil {
		return address.Zero, 0, err
	}
	if balance < amount {
		return address.Zero, 0, wrap(ErrInsufficientBalance, "balance %d, reward needs %d", balance, amount)
	}

	escrowAddr, _, err := address.Escrow(bountyAddr)
	if err != nil {
		return address.Zero, 0, err
	}
	if err := st.move(ctx.Signer, escrowAddr, amount); err != nil {
		return address.Zero, 0, err
	}
	ctx.emit("escrow.locked", "escrow", escrowAddr.String(), "from", ctx.Signer.String(), "amount", u64(amount))
	return escrowAddr, amount, nil
}

// escrowOf resolves and verifies the escrow account referenced by a bounty.
func escrowOf(st store, bountyAddr address.Address, b *Bounty) (address.Address, Account, error) {
	escrowAddr, _, err := address.Escrow(bountyAddr)
	if err != nil {
		return address.Zero, Account{}, err
	}
	if escrowAddr != b.EscrowAccount {
		return address.Zero, Account{}, ErrInvalidEscrowAccount
	}
	acc, ok, err := st.account(escrowAddr)
	if err != nil {
		return address.Zero, Account{}, err
	}
	if !ok {
		return address.Zero, Account{}, ErrEscrowAccountNotFound
	}
	return escrowAddr, acc, nil
}

// refundFunds drains the escrow back to the creator and closes it.
func (e *Engine) refundFunds(ctx *Context, st store, bountyAddr address.Address, b *Bounty) (uint64, error) {
	escrowAddr, acc, err := escrowOf(st, bountyAddr, b)
	if err != nil {
		return 0, err
	}
	if acc.Balance > 0 {
		if err := st.move(escrowAddr, b.CreatorWalletKey, acc.Balance); err != nil {
			return 0, err
		}
	}
	if err := st.closeAccount(escrowAddr); err != nil {
		return 0, err
	}
	ctx.emit("escrow.refunded", "escrow", escrowAddr.String(), "to", b.CreatorWalletKey.String(), "amount", u64(acc.Balance))
	return acc.Balance, nil
}

// releaseFunds pays the escrow's current balance above its retained minimum to
// the winner. The originally locked amount is not consulted.
func (e *Engine) releaseFunds(ctx *Context, st store, bountyAddr address.Address, b *Bounty, winner address.Address) (uint64, error) {
	escrowAddr, acc, err := escrowOf(st, bountyAddr, b)
	if err != nil {
		return 0, err
	}
	retained, err := e.params.RetainedMinimum(escrowDataLen)
	if err != nil {
		return 0, err
	}
	amount := saturatingSub(acc.Balance, retained)
	if err := st.move(escrowAddr, winner, amount); err != nil {
		return 0, err
	}
	ctx.emit("escrow.released", "escrow", escrowAddr.String(), "to", winner.String(), "amount", u64(amount), "retained", u64(acc.Balance-amount))
	return amount, nil
}

// SelectSubmission picks the winning submission of the signer's bounty, pays
// out the escrow and closes the bounty. Counters are credited with the nominal
// reward, not the amount actually released.
func (e *Engine) SelectSubmission(ctx *Context, title string, submissionAddr, winner address.Address) (*Bounty, error) {
	ob, err := e.ownedBounty(ctx, title)
	if err != nil {
		return nil, err
	}
	b := ob.bounty
	if b.BountyRewarded {
		return nil, ErrBountyAlreadyRewarded
	}
	if !b.Live {
		return nil, ErrBountyNotLive
	}

	st := ctx.store()
	expected, _, err := address.Submission(winner, ob.addr)
	if err != nil {
		return nil, err
	}
	if expected != submissionAddr {
		return nil, wrap(ErrInvalidSubmission, "submission %s was not made by %s", submissionAddr, winner)
	}
	sub, err := st.submission(submissionAddr)
	if err != nil {
		return nil, err
	}
	if sub.BountyKey != ob.addr {
		return nil, ErrWrongBounty
	}
	userAddr, _, err := address.User(sub.UserWalletKey)
	if err != nil {
		return nil, err
	}
	// A worker may have deleted their profile after submitting. The payout
	// still goes to the submission's wallet; only the profile counters are
	// skipped.
	user, err := st.user(userAddr)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if sub.UserWalletKey != winner || (user != nil && user.Authority != winner) {
		return nil, ErrInvalidSubmission
	}

	reward, err := e.params.ToMinorUnits(b.Reward)
	if err != nil {
		return nil, err
	}
	paid, err := e.releaseFunds(ctx, st, ob.addr, b, winner)
	if err != nil {
		return nil, err
	}

	b.SelectedSubmission = submissionAddr
	b.SelectedUserWalletKey = winner
	b.BountyRewarded = true
	b.Live = false
	if err := st.save(Key(PrefixBounty, ob.addr), b); err != nil {
		return nil, err
	}

	if user != nil {
		if user.Earned, err = addUint64(user.Earned, reward); err != nil {
			return nil, err
		}
		if user.BountiesCompleted, err = addUint64(user.BountiesCompleted, 1); err != nil {
			return nil, err
		}
		if err := st.save(Key(PrefixUser, userAddr), user); err != nil {
			return nil, err
		}
	}

	client := ob.client
	if client.Rewarded, err = addUint64(client.Rewarded, reward); err != nil {
		return nil, err
	}
	if err := st.save(Key(PrefixClient, ob.clientAddr), client); err != nil {
		return nil, err
	}

	ctx.emit("bounty.rewarded",
		"bounty", ob.addr.String(),
		"submission", submissionAddr.String(),
		"winner", winner.String(),
		"reward", u64(reward),
		"paid", u64(paid),
	)
	e.logger.Infof("bounty %q (%s) rewarded to %s, paid %s of nominal %s",
		b.Title, ob.addr, winner, e.params.FormatAmount(paid), e.params.FormatAmount(reward))
	return b, nil
}
