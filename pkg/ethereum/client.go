package ethereum

import (
	"context"
	"fmt"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/pkg/config"
	"github.com/chainsafe/optimal-wallet/pkg/keys"
)

// Backend is the subset of ethclient.Client used by Client
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg geth.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client represents an Ethereum client signing with keys from a keyring
type Client struct {
	backend     Backend
	rpc         *rpc.Client
	keyring     *keys.Keyring
	chainID     *big.Int
	maxGasPrice *big.Int
	logger      *zap.Logger
	closeFn     func()
}

var _ Connection = (*Client)(nil)

// ClientOption configures a Client
type ClientOption func(*Client)

// WithMaxGasPrice caps node suggested gas prices
func WithMaxGasPrice(maxGasPrice *big.Int) ClientOption {
	return func(c *Client) {
		c.maxGasPrice = maxGasPrice
	}
}

// NewClient dials the configured RPC endpoint and checks it serves the configured chain
func NewClient(ctx context.Context, cfg *config.EthereumConfig, keyring *keys.Keyring, logger *zap.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	var opts []ClientOption
	if cfg.MaxGasPrice != "" {
		maxGasPrice, ok := new(big.Int).SetString(cfg.MaxGasPrice, 10)
		if !ok {
			rpcClient.Close()
			return nil, fmt.Errorf("invalid max gas price %q", cfg.MaxGasPrice)
		}
		opts = append(opts, WithMaxGasPrice(maxGasPrice))
	}

	client, err := NewClientWithBackend(ctx, ethclient.NewClient(rpcClient), keyring, logger, opts...)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	client.rpc = rpcClient
	client.closeFn = rpcClient.Close

	if cfg.ChainID != 0 && client.chainID.Int64() != cfg.ChainID {
		rpcClient.Close()
		return nil, &InvalidConnectionError{
			Reason: fmt.Sprintf("node serves chain %s, configured chain is %d", client.chainID, cfg.ChainID),
		}
	}

	client.logger.Info("Connected to Ethereum",
		zap.String("chain_id", client.chainID.String()),
		zap.String("rpc_url", cfg.RPCURL),
		zap.Int("signers", client.keyring.Len()))

	return client, nil
}

// NewClientWithBackend wraps an already connected backend
func NewClientWithBackend(ctx context.Context, backend Backend, keyring *keys.Keyring, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if backend == nil {
		return nil, &InvalidConnectionError{Reason: "nil backend"}
	}
	if keyring == nil {
		keyring = keys.NewKeyring()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, &InvalidConnectionError{Reason: fmt.Sprintf("failed to get chain id: %v", err)}
	}

	c := &Client{
		backend: backend,
		keyring: keyring,
		chainID: chainID,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the RPC connection
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// ChainID returns the chain id reported at connect time
func (c *Client) ChainID(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

// Accounts lists keyring addresses followed by accounts unlocked on the node
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	accounts := c.keyring.Addresses()
	if c.rpc == nil {
		return accounts, nil
	}

	var nodeAccounts []common.Address
	if err := c.rpc.CallContext(ctx, &nodeAccounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("failed to list node accounts: %w", err)
	}

	seen := make(map[common.Address]struct{}, len(accounts))
	for _, a := range accounts {
		seen[a] = struct{}{}
	}
	for _, a := range nodeAccounts {
		if _, ok := seen[a]; !ok {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

// Transactor returns a transaction signer for opts.From.
// Extra keys "nonce" and "value" override the pending nonce and the sent value.
func (c *Client) Transactor(ctx context.Context, opts *TxOptions) (*bind.TransactOpts, error) {
	if err := ValidateTxOptions(opts); err != nil {
		return nil, err
	}

	key, ok := c.keyring.Key(opts.From)
	if !ok {
		return nil, &InvalidTransactionOptionsError{
			Reason: fmt.Sprintf("no signing key for from address %s", opts.From.Hex()),
		}
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx

	if v, ok := opts.Extra["nonce"]; ok {
		nonce, parsed := parseUint(v)
		if !parsed || !nonce.IsUint64() {
			return nil, &InvalidTransactionOptionsError{Reason: fmt.Sprintf("nonce %q is not a number", v)}
		}
		auth.Nonce = nonce
	} else {
		nonce, err := c.backend.PendingNonceAt(ctx, opts.From)
		if err != nil {
			return nil, fmt.Errorf("failed to get nonce: %w", err)
		}
		auth.Nonce = new(big.Int).SetUint64(nonce)
	}

	if v, ok := opts.Extra["value"]; ok {
		value, parsed := parseUint(v)
		if !parsed {
			return nil, &InvalidTransactionOptionsError{Reason: fmt.Sprintf("value %q is not a number", v)}
		}
		auth.Value = value
	}

	auth.GasLimit = opts.GasValue()

	if gasPrice := opts.GasPriceValue(); gasPrice != nil {
		auth.GasPrice = gasPrice
		return auth, nil
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	if c.maxGasPrice != nil && gasPrice.Cmp(c.maxGasPrice) > 0 {
		c.logger.Warn("Suggested gas price exceeds maximum",
			zap.String("suggested", gasPrice.String()),
			zap.String("max", c.maxGasPrice.String()))
		gasPrice = new(big.Int).Set(c.maxGasPrice)
	}
	auth.GasPrice = gasPrice

	return auth, nil
}

// EstimateGas asks the node for the gas needed by msg
func (c *Client) EstimateGas(ctx context.Context, msg geth.CallMsg) (uint64, error) {
	return c.backend.EstimateGas(ctx, msg)
}

// CallContract executes a read-only call
func (c *Client) CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.backend.CallContract(ctx, msg, blockNumber)
}

// SendTransaction broadcasts a signed transaction
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.backend.SendTransaction(ctx, tx)
}

// TransactionReceipt returns the receipt of a mined transaction or geth.NotFound
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.backend.TransactionReceipt(ctx, txHash)
}
