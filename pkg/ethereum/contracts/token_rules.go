package contracts

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
)

// TokenRules holds the transfer rules of an economy token
type TokenRules struct {
	*contract
}

// NewTokenRules binds a deployed TokenRules
func NewTokenRules(b *Backend, address common.Address) (*TokenRules, error) {
	c, err := b.bind(artifacts.TokenRules, address)
	if err != nil {
		return nil, err
	}
	return &TokenRules{contract: c}, nil
}

// DeployTokenRules deploys the rules of token governed by organization
func DeployTokenRules(ctx context.Context, b *Backend, opts *ethereum.TxOptions, organization, token common.Address) (*TokenRules, *ethereum.Receipt, error) {
	addr, receipt, err := b.deploy(ctx, opts, artifacts.TokenRules, organization, token)
	if err != nil {
		return nil, receipt, err
	}
	rules, err := NewTokenRules(b, addr)
	return rules, receipt, err
}

// DeployTokenRulesRawTx returns the unsigned creation transaction
func DeployTokenRulesRawTx(b *Backend, organization, token common.Address) (*ethereum.RawTx, error) {
	return b.deployTx(artifacts.TokenRules, organization, token)
}

// Token returns the token the rules apply to
func (r *TokenRules) Token(ctx context.Context) (common.Address, error) {
	return r.callAddress(ctx, "token")
}

// Organization returns the governing organization
func (r *TokenRules) Organization(ctx context.Context) (common.Address, error) {
	return r.callAddress(ctx, "organization")
}
