package market

import (
	"github.com/gregorybednov/bountychain/address"
)

func (e *Engine) RegisterUser(ctx *Context, name, email string, skills []string) (*User, error) {
	if err := requireText(name, MaxNameLen, ErrInvalidName, "name"); err != nil {
		return nil, err
	}
	if err := requireText(email, MaxUserEmailLen, ErrInvalidEmail, "email"); err != nil {
		return nil, err
	}
	if err := validateSkills(skills); err != nil {
		return nil, err
	}

	st := ctx.store()
	addr, nonce, err := address.User(ctx.Signer)
	if err != nil {
		return nil, err
	}
	exists, err := st.has(Key(PrefixUser, addr))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	u := &User{
		Authority: ctx.Signer,
		Name:      name,
		Email:     email,
		Avatar:    avatarFor(name),
		Bio:       DefaultUserBio,
		Skills:    skills,
		JoinedAt:  ctx.unix(),
		Nonce:     nonce,
	}
	if err := st.save(Key(PrefixUser, addr), u); err != nil {
		return nil, err
	}
	ctx.emit("user.registered", "user", addr.String(), "authority", ctx.Signer.String())
	e.logger.Debugf("user %s registered as %s", ctx.Signer, addr)
	return u, nil
}

func (e *Engine) UpdateUser(ctx *Context, name, email, bio string, skills []string) (*User, error) {
	if err := requireText(name, MaxNameLen, ErrInvalidName, "name"); err != nil {
		return nil, err
	}
	if err := requireText(email, MaxUserEmailLen, ErrInvalidEmail, "email"); err != nil {
		return nil, err
	}
	if err := limitText(bio, MaxBioLen, ErrInvalidBio, "bio"); err != nil {
		return nil, err
	}
	if err := validateSkills(skills); err != nil {
		return nil, err
	}

	st := ctx.store()
	addr, _, err := address.User(ctx.Signer)
	if err != nil {
		return nil, err
	}
	u, err := st.user(addr)
	if err != nil {
		return nil, err
	}
	u.Name = name
	u.Email = email
	u.Avatar = avatarFor(name)
	u.Bio = bio
	u.Skills = skills
	if err := st.save(Key(PrefixUser, addr), u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser closes the signer's user record. Existing submissions stay and
// can still be selected; the reward goes to the submitting wallet.
func (e *Engine) DeleteUser(ctx *Context) error {
	st := ctx.store()
	addr, _, err := address.User(ctx.Signer)
	if err != nil {
		return err
	}
	if _, err := st.user(addr); err != nil {
		return err
	}
	if err := st.s.Delete(Key(PrefixUser, addr)); err != nil {
		return err
	}
	ctx.emit("user.deleted", "user", addr.String())
	return nil
}

func (e *Engine) RegisterClient(ctx *Context, companyName, companyEmail, companyLink string) (*Client, error) {
	if err := validateClientFields(companyName, companyEmail, companyLink); err != nil {
		return nil, err
	}

	st := ctx.store()
	addr, nonce, err := address.Client(ctx.Signer)
	if err != nil {
		return nil, err
	}
	exists, err := st.has(Key(PrefixClient, addr))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrClientAlreadyExists
	}

	c := &Client{
		Authority:     ctx.Signer,
		CompanyName:   companyName,
		CompanyEmail:  companyEmail,
		CompanyAvatar: avatarFor(companyName),
		CompanyLink:   companyLink,
		JoinedAt:      ctx.unix(),
		Nonce:         nonce,
	}
	if err := st.save(Key(PrefixClient, addr), c); err != nil {
		return nil, err
	}
	ctx.emit("client.registered", "client", addr.String(), "authority", ctx.Signer.String())
	e.logger.Debugf("client %s registered as %s", ctx.Signer, addr)
	return c, nil
}

func (e *Engine) UpdateClient(ctx *Context, companyName, companyEmail, companyLink, companyBio string) (*Client, error) {
	if err := validateClientFields(companyName, companyEmail, companyLink); err != nil {
		return nil, err
	}
	if err := limitText(companyBio, MaxBioLen, ErrInvalidBio, "company bio"); err != nil {
		return nil, err
	}

	st := ctx.store()
	addr, _, err := address.Client(ctx.Signer)
	if err != nil {
		return nil, err
	}
	c, err := st.client(addr)
	if err != nil {
		return nil, err
	}
	c.CompanyName = companyName
	c.CompanyEmail = companyEmail
	c.CompanyAvatar = avatarFor(companyName)
	c.CompanyLink = companyLink
	c.CompanyBio = companyBio
	if err := st.save(Key(PrefixClient, addr), c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteClient closes the signer's client record. A client that still has
// posted bounties cannot leave, otherwise their escrow could never be settled.
func (e *Engine) DeleteClient(ctx *Context) error {
	st := ctx.store()
	addr, _, err := address.Client(ctx.Signer)
	if err != nil {
		return err
	}
	c, err := st.client(addr)
	if err != nil {
		return err
	}
	if c.BountiesPosted > 0 {
		return wrap(ErrClientHasBounties, "%d posted", c.BountiesPosted)
	}
	if err := st.s.Delete(Key(PrefixClient, addr)); err != nil {
		return err
	}
	ctx.emit("client.deleted", "client", addr.String())
	return nil
}

func validateClientFields(name, email, link string) error {
	if err := requireText(name, MaxNameLen, ErrInvalidName, "company name"); err != nil {
		return err
	}
	if err := requireText(email, MaxCompanyEmailLen, ErrInvalidEmail, "company email"); err != nil {
		return err
	}
	return requireText(link, MaxCompanyLinkLen, ErrInvalidLink, "company link")
}
