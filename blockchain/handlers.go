package blockchain

import (
	"bytes"
	"encoding/json"

	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/market"
)

type handler func(e *market.Engine, ctx *market.Context, payload json.RawMessage) (*types.Result, error)

var handlers = map[string]handler{
	types.TxCreateBounty:     createBounty,
	types.TxUpdateBounty:     updateBounty,
	types.TxDeleteBounty:     deleteBounty,
	types.TxCreateSubmission: createSubmission,
	types.TxSelectSubmission: selectSubmission,
	types.TxRegisterUser:     registerUser,
	types.TxUpdateUser:       updateUser,
	types.TxDeleteUser:       deleteUser,
	types.TxRegisterClient:   registerClient,
	types.TxUpdateClient:     updateClient,
	types.TxDeleteClient:     deleteClient,
	types.TxAirdrop:          airdrop,
}

// decodePayload rejects unknown fields so a typo never silently zeroes a value.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return guardf(ErrMalformedTx, "missing payload")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return guardf(ErrMalformedTx, "payload: %v", err)
	}
	return nil
}

func createBounty(e *market.Engine, ctx *market.Context, raw json.RawMessage) (*types.Result, error) {
	var p types.CreateBountyPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	addr, b, err := e.CreateBounty(ctx, p.Title, p.Description, p.Reward, p.Deadline, p.Skills)
	if err != nil {
		return nil, err
	}
	return &types.Result{Address: &addr, Escrow: &b.EscrowAccount}, nil
}

func updateBounty(e *market.Engine, ctx *market.Context, raw json.RawMessage) (*types.Result, error) {
	var p types.UpdateBountyPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	_, err := e.UpdateBounty(ctx, p.Title, p.Description, p.Deadline)
	return &types.Result{}, err
}

func deleteBounty(e *market.Engine, ctx *market.Context, raw json.RawMessage) (*types.Result, error) {
	var p types.DeleteBountyPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	refunded, err := e.DeleteBounty(ctx, p.Title)
	if err != nil {
		return nil, err
	}
	return &types.Result{Refunded: refunded}, nil
}

func createSubmission(e *market.Engine, ctx *market.Context, raw json.RawMessage) (*types.Result, error) {
	var p types.CreateSubmissionPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	addr, _, err := e.CreateSubmission(ctx, p.Bounty, p.Description, p.WorkURL)
	if err != nil {
		return nil, err
	}
	return &types.Result{Address: &addr}, nil
}

func selectSubmission(e *market.Engine, ctx *market.Context, raw json.RawMessage) (*types.Result, error) {
	var p types.SelectSubmissionPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	b, err := e.SelectSubmission(ctx, p.Title, p.Submission, p.Winner)
	if err != nil {
		return nil, err
	}
	return &types.Result{Address: &b.SelectedSubmission, Escrow: &b.EscrowAccount}, nil
}

func registerUser(e *market.Engine, ctx *market.Context, raw json.RawMessage) (*types.Result, error) {
	var p types.RegisterUserPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	_, err := e.RegisterUser(ctx, p.Name, p.Email, p.Skills)
	return &types.Result{}, err
}

func updateUser(e *market.Engine, ctx *market.Context, raw json.RawMessage) (*types.Result, error) {
	var p types.UpdateUserPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	_, err := e.UpdateUser(ctx, p.Name, p.Email, p.Bio, p.Skills)
	return &types.Result{}, err
}

func deleteUser(e *market.Engine, ctx *market.Context, _ json.RawMessage) (*types.Result, error) {
	return &types.Result{}, e.DeleteUser(ctx)
}

func registerClient(e *market.Engine, ctx *market.Context, raw json.RawMessage) (*types.Result, error) {
	var p types.RegisterClientPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	_, err := e.RegisterClient(ctx, p.CompanyName, p.CompanyEmail, p.CompanyLink)
	return &types.Result{}, err
}

func updateClient(e *market.Engine, ctx *market.Context, raw json.RawMessage) (*types.Result, error) {
	var p types.UpdateClientPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	_, err := e.UpdateClient(ctx, p.CompanyName, p.CompanyEmail, p.CompanyLink, p.CompanyBio)
	return &types.Result{}, err
}

func deleteClient(e *market.Engine, ctx *market.Context, _ json.RawMessage) (*types.Result, error) {
	return &types.Result{}, e.DeleteClient(ctx)
}

func airdrop(e *market.Engine, ctx *market.Context, raw json.RawMessage) (*types.Result, error) {
	var p types.AirdropPayload
	if err := decodePayload(raw, &p); err != nil {
		return nil, err
	}
	return &types.Result{}, e.Airdrop(ctx, p.Amount)
}
