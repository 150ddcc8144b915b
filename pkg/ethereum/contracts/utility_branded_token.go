package contracts

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
)

// UtilityBrandedTokenConfig is the constructor input of a UtilityBrandedToken
type UtilityBrandedTokenConfig struct {
	Token        common.Address `json:"token" yaml:"token"`
	Symbol       string         `json:"symbol" yaml:"symbol"`
	Name         string         `json:"name" yaml:"name"`
	Decimals     uint8          `json:"decimals" yaml:"decimals"`
	Organization common.Address `json:"organization" yaml:"organization"`
}

func (c UtilityBrandedTokenConfig) args() []any {
	return []any{c.Token, c.Symbol, c.Name, c.Decimals, c.Organization}
}

// UtilityBrandedToken is a branded token backed by an EIP20 value token
type UtilityBrandedToken struct {
	*contract
}

// NewUtilityBrandedToken binds a deployed UtilityBrandedToken
func NewUtilityBrandedToken(b *Backend, address common.Address) (*UtilityBrandedToken, error) {
	c, err := b.bind(artifacts.UtilityBrandedToken, address)
	if err != nil {
		return nil, err
	}
	return &UtilityBrandedToken{contract: c}, nil
}

// DeployUtilityBrandedToken deploys a branded token over token governed by organization
func DeployUtilityBrandedToken(
	ctx context.Context,
	b *Backend,
	opts *ethereum.TxOptions,
	token common.Address,
	symbol, name string,
	decimals uint8,
	organization common.Address,
) (*UtilityBrandedToken, *ethereum.Receipt, error) {
	return SetupUtilityBrandedToken(ctx, b, UtilityBrandedTokenConfig{
		Token:        token,
		Symbol:       symbol,
		Name:         name,
		Decimals:     decimals,
		Organization: organization,
	}, opts)
}

// SetupUtilityBrandedToken deploys a branded token from cfg
func SetupUtilityBrandedToken(ctx context.Context, b *Backend, cfg UtilityBrandedTokenConfig, opts *ethereum.TxOptions) (*UtilityBrandedToken, *ethereum.Receipt, error) {
	addr, receipt, err := b.deploy(ctx, opts, artifacts.UtilityBrandedToken, cfg.args()...)
	if err != nil {
		return nil, receipt, err
	}
	ubt, err := NewUtilityBrandedToken(b, addr)
	return ubt, receipt, err
}

// DeployUtilityBrandedTokenRawTx returns the unsigned creation transaction
func DeployUtilityBrandedTokenRawTx(b *Backend, cfg UtilityBrandedTokenConfig) (*ethereum.RawTx, error) {
	return b.deployTx(artifacts.UtilityBrandedToken, cfg.args()...)
}

// RegisterInternalActors allows actors to hold the branded token. Only organization workers may call it.
func (u *UtilityBrandedToken) RegisterInternalActors(ctx context.Context, actors []common.Address, opts *ethereum.TxOptions) (*ethereum.Receipt, error) {
	if actors == nil {
		actors = []common.Address{}
	}
	return u.transact(ctx, opts, "registerInternalActors", actors)
}

// IsInternalActor reports whether actor is registered
func (u *UtilityBrandedToken) IsInternalActor(ctx context.Context, actor common.Address) (bool, error) {
	return u.callBool(ctx, "isInternalActor", actor)
}

// Token returns the value token
func (u *UtilityBrandedToken) Token(ctx context.Context) (common.Address, error) {
	return u.callAddress(ctx, "token")
}

// Organization returns the governing organization
func (u *UtilityBrandedToken) Organization(ctx context.Context) (common.Address, error) {
	return u.callAddress(ctx, "organization")
}
