package market

// Airdrop credits the signer from nowhere. It exists for development networks
// and is disabled unless the genesis sets a faucet limit.
func (e *Engine) Airdrop(ctx *Context, amount uint64) error {
	if e.params.FaucetLimit == 0 {
		return ErrFaucetDisabled
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > e.params.FaucetLimit {
		return wrap(ErrFaucetLimitExceeded, "%d > %d", amount, e.params.FaucetLimit)
	}
	if err := ctx.store().credit(ctx.Signer, amount); err != nil {
		return err
	}
	ctx.emit("faucet.airdrop", "to", ctx.Signer.String(), "amount", u64(amount))
	return nil
}
