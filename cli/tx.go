package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gregorybednov/bountychain/address"
	"github.com/gregorybednov/bountychain/blockchain/types"
	"github.com/gregorybednov/bountychain/client"
	cfg "github.com/gregorybednov/bountychain/configfunctions"
)

const txTimeout = 30 * time.Second

// Flag values shared by the tx subcommands.
var (
	txTitle       string
	txDescription string
	txReward      uint64
	txDeadline    time.Duration
	txSkills      []string
	txBounty      string
	txSubmission  string
	txWinner      string
	txWorkURL     string
	txName        string
	txEmail       string
	txLink        string
	txBio         string
	txAmount      uint64
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Sign and broadcast a transaction with the wallet key",
}

func nodeClient() (*client.Client, error) {
	remote := nodeAddr
	if remote == "" {
		if e, err := loadEnv(); err == nil {
			remote = e.app.Node
		} else {
			remote = cfg.DefaultAppConfig(homeDir).Node
		}
	}
	return client.New(remote)
}

func sendTx(cmd *cobra.Command, txType string, payload any) error {
	priv, err := loadWallet()
	if err != nil {
		return err
	}
	c, err := nodeClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), txTimeout)
	defer cancel()

	res, err := c.Send(ctx, priv, txType, payload)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !res.OK() {
		return fmt.Errorf("transaction rejected: %s", res.Log)
	}
	return nil
}

func parseAddressFlag(name, value string) (address.Address, error) {
	a, err := address.Parse(value)
	if err != nil {
		return a, fmt.Errorf("--%s: %w", name, err)
	}
	return a, nil
}

func deadlineFromNow() uint64 {
	return uint64(time.Now().Add(txDeadline).Unix())
}

// txCommand builds a subcommand whose payload is assembled from flags.
func txCommand(use, short, txType string, payload func() (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := payload()
			if err != nil {
				return err
			}
			return sendTx(cmd, txType, p)
		},
	}
}

func withTitle(cmd *cobra.Command) {
	cmd.Flags().StringVar(&txTitle, "title", "", "Bounty title")
	_ = cmd.MarkFlagRequired("title")
}

func withBountyText(cmd *cobra.Command) {
	cmd.Flags().StringVar(&txDescription, "description", "", "Bounty description")
	cmd.Flags().DurationVar(&txDeadline, "deadline", 7*24*time.Hour, "Time from now until submissions close")
}

func withProfile(cmd *cobra.Command, bio bool) {
	cmd.Flags().StringVar(&txName, "name", "", "Display or company name")
	cmd.Flags().StringVar(&txEmail, "email", "", "Contact email")
	if bio {
		cmd.Flags().StringVar(&txBio, "bio", "", "Short bio")
	}
}

func init() {
	createBounty := txCommand("create-bounty", "Post a bounty and lock its reward in escrow", types.TxCreateBounty, func() (any, error) {
		return types.CreateBountyPayload{
			Title: txTitle, Description: txDescription, Reward: txReward,
			Deadline: deadlineFromNow(), Skills: txSkills,
		}, nil
	})
	withTitle(createBounty)
	withBountyText(createBounty)
	createBounty.Flags().Uint64Var(&txReward, "reward", 0, "Reward in whole units")
	createBounty.Flags().StringSliceVar(&txSkills, "skills", nil, "Required skills")

	updateBounty := txCommand("update-bounty", "Change a bounty that has no submissions", types.TxUpdateBounty, func() (any, error) {
		return types.UpdateBountyPayload{Title: txTitle, Description: txDescription, Deadline: deadlineFromNow()}, nil
	})
	withTitle(updateBounty)
	withBountyText(updateBounty)

	deleteBounty := txCommand("delete-bounty", "Close a bounty and refund its escrow", types.TxDeleteBounty, func() (any, error) {
		return types.DeleteBountyPayload{Title: txTitle}, nil
	})
	withTitle(deleteBounty)

	submit := txCommand("submit", "Submit work for a bounty", types.TxCreateSubmission, func() (any, error) {
		b, err := parseAddressFlag("bounty", txBounty)
		if err != nil {
			return nil, err
		}
		return types.CreateSubmissionPayload{Bounty: b, Description: txDescription, WorkURL: txWorkURL}, nil
	})
	submit.Flags().StringVar(&txBounty, "bounty", "", "Bounty address")
	submit.Flags().StringVar(&txDescription, "description", "", "Submission notes")
	submit.Flags().StringVar(&txWorkURL, "url", "", "Link to the work")

	selectWinner := txCommand("select", "Pick the winning submission and pay out the escrow", types.TxSelectSubmission, func() (any, error) {
		sub, err := parseAddressFlag("submission", txSubmission)
		if err != nil {
			return nil, err
		}
		winner, err := parseAddressFlag("winner", txWinner)
		if err != nil {
			return nil, err
		}
		return types.SelectSubmissionPayload{Title: txTitle, Submission: sub, Winner: winner}, nil
	})
	withTitle(selectWinner)
	selectWinner.Flags().StringVar(&txSubmission, "submission", "", "Submission address")
	selectWinner.Flags().StringVar(&txWinner, "winner", "", "Wallet address of the submission's author")

	registerUser := txCommand("register-user", "Create a worker profile", types.TxRegisterUser, func() (any, error) {
		return types.RegisterUserPayload{Name: txName, Email: txEmail, Skills: txSkills}, nil
	})
	withProfile(registerUser, false)
	registerUser.Flags().StringSliceVar(&txSkills, "skills", nil, "Skills")

	updateUser := txCommand("update-user", "Change the worker profile", types.TxUpdateUser, func() (any, error) {
		return types.UpdateUserPayload{Name: txName, Email: txEmail, Bio: txBio, Skills: txSkills}, nil
	})
	withProfile(updateUser, true)
	updateUser.Flags().StringSliceVar(&txSkills, "skills", nil, "Skills")

	registerClient := txCommand("register-client", "Create a funder profile", types.TxRegisterClient, func() (any, error) {
		return types.RegisterClientPayload{CompanyName: txName, CompanyEmail: txEmail, CompanyLink: txLink}, nil
	})
	withProfile(registerClient, false)
	registerClient.Flags().StringVar(&txLink, "link", "", "Company website")

	updateClient := txCommand("update-client", "Change the funder profile", types.TxUpdateClient, func() (any, error) {
		return types.UpdateClientPayload{CompanyName: txName, CompanyEmail: txEmail, CompanyLink: txLink, CompanyBio: txBio}, nil
	})
	withProfile(updateClient, true)
	updateClient.Flags().StringVar(&txLink, "link", "", "Company website")

	deleteUser := txCommand("delete-user", "Close the worker profile", types.TxDeleteUser, func() (any, error) { return nil, nil })
	deleteClient := txCommand("delete-client", "Close the funder profile", types.TxDeleteClient, func() (any, error) { return nil, nil })

	airdrop := txCommand("airdrop", "Request devnet funds from the faucet", types.TxAirdrop, func() (any, error) {
		return types.AirdropPayload{Amount: txAmount}, nil
	})
	airdrop.Flags().Uint64Var(&txAmount, "amount", 0, "Amount in minor units")

	txCmd.AddCommand(
		createBounty, updateBounty, deleteBounty,
		submit, selectWinner,
		registerUser, updateUser, deleteUser,
		registerClient, updateClient, deleteClient,
		airdrop,
	)
	rootCmd.AddCommand(txCmd)
}
