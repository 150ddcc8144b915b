package commands

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/chainsafe/optimal-wallet/pkg/ethereum/contracts"
)

type txOutput struct {
	Contract string `json:"contract"`
	Address  string `json:"address,omitempty"`
	TxHash   string `json:"txHash"`
	Block    uint64 `json:"block"`
	GasUsed  uint64 `json:"gasUsed"`
}

func deployCreatorCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy-creator",
		Short: "Deploy an OptimalWalletCreator bound to a branded token, wallet factory and organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ubt, err := parseAddressFlag(cmd, "ubt")
			if err != nil {
				return err
			}
			factory, err := parseAddressFlag(cmd, "factory")
			if err != nil {
				return err
			}
			org, err := parseAddressFlag(cmd, "organization")
			if err != nil {
				return err
			}

			e, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			from, err := opts.sender(e.keyring)
			if err != nil {
				return err
			}

			creator, receipt, err := contracts.DeployOptimalWalletCreator(cmd.Context(), e.backend, opts.txOptions(from), ubt, factory, org)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), &txOutput{
				Contract: creator.Handle().Name(),
				Address:  creator.Address().Hex(),
				TxHash:   receipt.TxHash.Hex(),
				Block:    receipt.BlockNumber,
				GasUsed:  receipt.GasUsed,
			})
		},
	}
	cmd.Flags().String("ubt", "", "UtilityBrandedToken address")
	cmd.Flags().String("factory", "", "UserWalletFactory address")
	cmd.Flags().String("organization", "", "Organization address")
	return cmd
}

func setWorkerCmd(opts *options) *cobra.Command {
	var expiration string
	cmd := &cobra.Command{
		Use:   "set-worker",
		Short: "Whitelist a worker on an organization until the given block height",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orgAddr, err := parseAddressFlag(cmd, "organization")
			if err != nil {
				return err
			}
			worker, err := parseAddressFlag(cmd, "worker")
			if err != nil {
				return err
			}
			height, ok := new(big.Int).SetString(expiration, 10)
			if !ok || height.Sign() < 0 {
				return fmt.Errorf("--expiration-height %q is not a block height", expiration)
			}

			e, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			from, err := opts.sender(e.keyring)
			if err != nil {
				return err
			}

			org, err := contracts.NewOrganization(e.backend, orgAddr)
			if err != nil {
				return err
			}
			receipt, err := org.SetWorker(cmd.Context(), worker, height, opts.txOptions(from))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), &txOutput{
				Contract: org.Handle().Name(),
				TxHash:   receipt.TxHash.Hex(),
				Block:    receipt.BlockNumber,
				GasUsed:  receipt.GasUsed,
			})
		},
	}
	cmd.Flags().String("organization", "", "Organization address")
	cmd.Flags().String("worker", "", "worker address")
	cmd.Flags().StringVar(&expiration, "expiration-height", "", "block height at which the whitelisting lapses")
	_ = cmd.MarkFlagRequired("expiration-height")
	return cmd
}
