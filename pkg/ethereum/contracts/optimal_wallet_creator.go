package contracts

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
)

// SessionKey authorises a secondary key on a token holder with a spending limit and expiry
type SessionKey struct {
	Address          common.Address `json:"address"`
	SpendingLimit    *big.Int       `json:"spendingLimit"`
	ExpirationHeight *big.Int       `json:"expirationHeight"`
}

// OptimalCallParams are the arguments of OptimalWalletCreator.optimalCall and
// UserWalletFactory.createUserWallet. An empty SessionKeys list is valid.
type OptimalCallParams struct {
	GnosisSafeMasterCopy  common.Address
	GnosisSafeData        []byte
	TokenHolderMasterCopy common.Address
	Token                 common.Address
	TokenRules            common.Address
	SessionKeys           []SessionKey
}

func (p OptimalCallParams) args() []any {
	keys := make([]common.Address, 0, len(p.SessionKeys))
	limits := make([]*big.Int, 0, len(p.SessionKeys))
	heights := make([]*big.Int, 0, len(p.SessionKeys))
	for _, k := range p.SessionKeys {
		keys = append(keys, k.Address)
		limits = append(limits, orZero(k.SpendingLimit))
		heights = append(heights, orZero(k.ExpirationHeight))
	}

	data := p.GnosisSafeData
	if data == nil {
		data = []byte{}
	}

	return []any{
		p.GnosisSafeMasterCopy,
		data,
		p.TokenHolderMasterCopy,
		p.Token,
		p.TokenRules,
		keys,
		limits,
		heights,
	}
}

// OptimalWalletCreator provisions a complete user wallet in one transaction.
// Only addresses registered as workers on its organization may call OptimalCall.
type OptimalWalletCreator struct {
	*contract
}

// NewOptimalWalletCreator binds a deployed OptimalWalletCreator
func NewOptimalWalletCreator(b *Backend, address common.Address) (*OptimalWalletCreator, error) {
	c, err := b.bind(artifacts.OptimalWalletCreator, address)
	if err != nil {
		return nil, err
	}
	return &OptimalWalletCreator{contract: c}, nil
}

// DeployOptimalWalletCreator deploys a creator wired to the given branded token, wallet factory
// and organization
func DeployOptimalWalletCreator(
	ctx context.Context,
	b *Backend,
	opts *ethereum.TxOptions,
	ubt, userWalletFactory, organization common.Address,
) (*OptimalWalletCreator, *ethereum.Receipt, error) {
	addr, receipt, err := b.deploy(ctx, opts, artifacts.OptimalWalletCreator, ubt, userWalletFactory, organization)
	if err != nil {
		return nil, receipt, err
	}
	owc, err := NewOptimalWalletCreator(b, addr)
	return owc, receipt, err
}

// DeployOptimalWalletCreatorRawTx returns the unsigned creation transaction
func DeployOptimalWalletCreatorRawTx(b *Backend, ubt, userWalletFactory, organization common.Address) (*ethereum.RawTx, error) {
	return b.deployTx(artifacts.OptimalWalletCreator, ubt, userWalletFactory, organization)
}

// OptimalCall creates the gnosis safe proxy, token holder proxy, recovery module and session keys.
// opts.From must be a worker of the creator's organization.
func (o *OptimalWalletCreator) OptimalCall(ctx context.Context, params OptimalCallParams, opts *ethereum.TxOptions) (*ethereum.Receipt, error) {
	return o.transact(ctx, opts, "optimalCall", params.args()...)
}

// OptimalCallRawTx returns the unsigned optimalCall transaction
func (o *OptimalWalletCreator) OptimalCallRawTx(params OptimalCallParams) (*ethereum.RawTx, error) {
	return o.rawTx("optimalCall", params.args()...)
}

// UtilityBrandedToken returns the branded token the creator was deployed with
func (o *OptimalWalletCreator) UtilityBrandedToken(ctx context.Context) (common.Address, error) {
	return o.callAddress(ctx, "ubtContractAddr")
}

// UserWalletFactory returns the wallet factory the creator was deployed with
func (o *OptimalWalletCreator) UserWalletFactory(ctx context.Context) (common.Address, error) {
	return o.callAddress(ctx, "userWalletFactoryContractAddr")
}

// Organization returns the organization the creator was deployed with
func (o *OptimalWalletCreator) Organization(ctx context.Context) (common.Address, error) {
	return o.callAddress(ctx, "organization")
}

// CreatedWallet is the pair of proxies announced by UserWalletCreated
type CreatedWallet struct {
	GnosisSafeProxy  common.Address `json:"gnosisSafeProxy"`
	TokenHolderProxy common.Address `json:"tokenHolderProxy"`
}

// CreatedWalletFromReceipt reads the UserWalletCreated event of an optimalCall or createUserWallet receipt
func CreatedWalletFromReceipt(r *ethereum.Receipt) (CreatedWallet, error) {
	ev, ok := r.Event("UserWalletCreated")
	if !ok {
		return CreatedWallet{}, errors.New("receipt has no UserWalletCreated event")
	}
	safe, ok := ev.Fields["gnosisSafeProxy"].(common.Address)
	if !ok {
		return CreatedWallet{}, errors.New("UserWalletCreated has no gnosisSafeProxy")
	}
	holder, ok := ev.Fields["tokenHolderProxy"].(common.Address)
	if !ok {
		return CreatedWallet{}, errors.New("UserWalletCreated has no tokenHolderProxy")
	}
	return CreatedWallet{GnosisSafeProxy: safe, TokenHolderProxy: holder}, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
