package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/config"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum/contracts"
	"github.com/chainsafe/optimal-wallet/pkg/keys"
)

// options are the persistent flags shared by every command
type options struct {
	configPath   string
	artifactsDir string
	from         string
	gas          string
	gasPrice     string
}

// env is the connected state of commands that talk to a node
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	keyring *keys.Keyring
	client  *ethereum.Client
	backend *contracts.Backend
}

func (e *env) Close() {
	e.client.Close()
	_ = e.logger.Sync()
}

// Execute runs the owc root command
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "owc",
		Short:         "Deploy and provision OptimalWalletCreator economies",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to configuration file")
	root.PersistentFlags().StringVar(&opts.artifactsDir, "artifacts", "", "compiled contract artifacts dir (overrides artifacts.dir)")
	root.PersistentFlags().StringVar(&opts.from, "from", "", "sender address or configured signer name")
	root.PersistentFlags().StringVar(&opts.gas, "gas", "", "gas limit (estimated when empty)")
	root.PersistentFlags().StringVar(&opts.gasPrice, "gas-price", "", "gas price in wei (node suggestion when empty)")

	root.AddCommand(
		provisionCmd(opts),
		deployCreatorCmd(opts),
		setWorkerCmd(opts),
		deployTxCmd(opts),
		contractsCmd(opts),
		keysCmd(),
		tokenCmd(opts),
	)
	return root
}

// provider loads the embedded ABIs plus the artifact dir from --artifacts or the config file.
// A missing config file is not an error for offline commands.
func (o *options) provider() (*artifacts.Provider, error) {
	dir := o.artifactsDir
	if dir == "" {
		if cfg, err := config.Load(o.configPath); err == nil {
			dir = cfg.Artifacts.Dir
		}
	}
	if dir == "" {
		return artifacts.NewProvider()
	}
	return artifacts.NewProvider(artifacts.WithArtifactDir(dir))
}

func (o *options) connect(ctx context.Context) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.artifactsDir != "" {
		cfg.Artifacts.Dir = o.artifactsDir
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	keyring, err := keys.NewKeyringFromConfig(&cfg.Keys)
	if err != nil {
		return nil, fmt.Errorf("load signer keys: %w", err)
	}

	client, err := ethereum.NewClient(ctx, &cfg.Ethereum, keyring, logger)
	if err != nil {
		return nil, err
	}

	provider, err := o.provider()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("load contract artifacts: %w", err)
	}

	backend, err := contracts.NewBackend(client, contracts.NewRegistry(provider), logger,
		ethereum.WithPollInterval(cfg.Ethereum.ReceiptPollInterval),
		ethereum.WithReceiptTimeout(cfg.Ethereum.ReceiptTimeout))
	if err != nil {
		client.Close()
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, keyring: keyring, client: client, backend: backend}, nil
}

// sender resolves --from as a signer name first and as an address second
func (o *options) sender(kr *keys.Keyring) (common.Address, error) {
	if o.from == "" {
		return common.Address{}, errors.New("--from is required")
	}
	if kr != nil {
		if addr, ok := kr.Address(o.from); ok {
			return addr, nil
		}
	}
	return ethereum.ParseAddress("from", o.from)
}

func (o *options) txOptions(from common.Address) *ethereum.TxOptions {
	return &ethereum.TxOptions{From: from, Gas: o.gas, GasPrice: o.gasPrice}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAddressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return common.Address{}, err
	}
	if value == "" {
		return common.Address{}, fmt.Errorf("--%s is required", name)
	}
	return ethereum.ParseAddress(name, value)
}
