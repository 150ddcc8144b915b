package commands

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/chainsafe/optimal-wallet/pkg/keys"
)

type keyOutput struct {
	Address      string `json:"address"`
	PrivateKey   string `json:"private_key,omitempty"`
	EncryptedKey string `json:"encrypted_key,omitempty"`
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate signer and master keys for the configuration file",
	}
	cmd.AddCommand(keysGenerateCmd(), keysMasterKeyCmd())
	return cmd
}

func keysGenerateCmd() *cobra.Command {
	var masterKey string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a signer key, encrypted under --master-key when given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := keys.GenerateSignerKey()
			if err != nil {
				return err
			}
			out := &keyOutput{Address: crypto.PubkeyToAddress(key.PublicKey).Hex()}

			if masterKey == "" {
				out.PrivateKey = hexutil.Encode(crypto.FromECDSA(key))
				return printJSON(cmd.OutOrStdout(), out)
			}

			mk, err := keys.MasterKeyFromBase64(masterKey)
			if err != nil {
				return err
			}
			if out.EncryptedKey, err = keys.EncryptPrivateKey(key, mk); err != nil {
				return fmt.Errorf("encrypt key: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&masterKey, "master-key", "", "base64 master key (keys.master_key)")
	return cmd
}

func keysMasterKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "master-key",
		Short: "Generate a base64 AES-256 master key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mk, err := keys.GenerateMasterKey()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), keys.MasterKeyToBase64(mk))
			return err
		},
	}
}
