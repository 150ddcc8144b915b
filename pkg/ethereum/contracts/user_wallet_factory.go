package contracts

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
)

// UserWalletFactory clones gnosis safe and token holder master copies into user wallets
type UserWalletFactory struct {
	*contract
}

// NewUserWalletFactory binds a deployed UserWalletFactory
func NewUserWalletFactory(b *Backend, address common.Address) (*UserWalletFactory, error) {
	c, err := b.bind(artifacts.UserWalletFactory, address)
	if err != nil {
		return nil, err
	}
	return &UserWalletFactory{contract: c}, nil
}

// DeployUserWalletFactory deploys a UserWalletFactory
func DeployUserWalletFactory(ctx context.Context, b *Backend, opts *ethereum.TxOptions) (*UserWalletFactory, *ethereum.Receipt, error) {
	addr, receipt, err := b.deploy(ctx, opts, artifacts.UserWalletFactory)
	if err != nil {
		return nil, receipt, err
	}
	f, err := NewUserWalletFactory(b, addr)
	return f, receipt, err
}

// DeployUserWalletFactoryRawTx returns the unsigned creation transaction
func DeployUserWalletFactoryRawTx(b *Backend) (*ethereum.RawTx, error) {
	return b.deployTx(artifacts.UserWalletFactory)
}

// CreateUserWallet creates a wallet directly, without the worker gate of OptimalWalletCreator.
// It takes the same arguments as optimalCall.
func (f *UserWalletFactory) CreateUserWallet(ctx context.Context, params OptimalCallParams, opts *ethereum.TxOptions) (*ethereum.Receipt, error) {
	return f.transact(ctx, opts, "createUserWallet", params.args()...)
}

// CreateUserWalletRawTx returns the unsigned createUserWallet transaction
func (f *UserWalletFactory) CreateUserWalletRawTx(params OptimalCallParams) (*ethereum.RawTx, error) {
	return f.rawTx("createUserWallet", params.args()...)
}
