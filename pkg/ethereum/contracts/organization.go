package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
)

// OrganizationConfig is the constructor input of an Organization
type OrganizationConfig struct {
	Owner            common.Address   `json:"owner" yaml:"owner"`
	Admin            common.Address   `json:"admin" yaml:"admin"`
	Workers          []common.Address `json:"workers" yaml:"workers"`
	ExpirationHeight *big.Int         `json:"expirationHeight" yaml:"expiration_height"`
}

func (c OrganizationConfig) args() []any {
	workers := c.Workers
	if workers == nil {
		workers = []common.Address{}
	}
	return []any{c.Owner, c.Admin, workers, orZero(c.ExpirationHeight)}
}

// Organization holds the owner, admin and worker whitelist of an economy
type Organization struct {
	*contract
}

// NewOrganization binds a deployed Organization
func NewOrganization(b *Backend, address common.Address) (*Organization, error) {
	c, err := b.bind(artifacts.Organization, address)
	if err != nil {
		return nil, err
	}
	return &Organization{contract: c}, nil
}

// DeployOrganization deploys an Organization.
// Workers are whitelisted until expirationHeight.
func DeployOrganization(
	ctx context.Context,
	b *Backend,
	opts *ethereum.TxOptions,
	owner, admin common.Address,
	workers []common.Address,
	expirationHeight *big.Int,
) (*Organization, *ethereum.Receipt, error) {
	return SetupOrganization(ctx, b, OrganizationConfig{
		Owner:            owner,
		Admin:            admin,
		Workers:          workers,
		ExpirationHeight: expirationHeight,
	}, opts)
}

// SetupOrganization deploys an Organization from cfg
func SetupOrganization(ctx context.Context, b *Backend, cfg OrganizationConfig, opts *ethereum.TxOptions) (*Organization, *ethereum.Receipt, error) {
	addr, receipt, err := b.deploy(ctx, opts, artifacts.Organization, cfg.args()...)
	if err != nil {
		return nil, receipt, err
	}
	org, err := NewOrganization(b, addr)
	return org, receipt, err
}

// DeployOrganizationRawTx returns the unsigned creation transaction
func DeployOrganizationRawTx(b *Backend, cfg OrganizationConfig) (*ethereum.RawTx, error) {
	return b.deployTx(artifacts.Organization, cfg.args()...)
}

// SetWorker whitelists worker until expirationHeight. Only the owner or admin may call it.
// The receipt carries a WorkerSet event.
func (o *Organization) SetWorker(ctx context.Context, worker common.Address, expirationHeight *big.Int, opts *ethereum.TxOptions) (*ethereum.Receipt, error) {
	return o.transact(ctx, opts, "setWorker", worker, orZero(expirationHeight))
}

// SetWorkerRawTx returns the unsigned setWorker transaction
func (o *Organization) SetWorkerRawTx(worker common.Address, expirationHeight *big.Int) (*ethereum.RawTx, error) {
	return o.rawTx("setWorker", worker, orZero(expirationHeight))
}

// UnsetWorker removes worker from the whitelist
func (o *Organization) UnsetWorker(ctx context.Context, worker common.Address, opts *ethereum.TxOptions) (*ethereum.Receipt, error) {
	return o.transact(ctx, opts, "unsetWorker", worker)
}

// SetAdmin replaces the admin. Only the owner may call it.
func (o *Organization) SetAdmin(ctx context.Context, admin common.Address, opts *ethereum.TxOptions) (*ethereum.Receipt, error) {
	return o.transact(ctx, opts, "setAdmin", admin)
}

// InitiateOwnershipTransfer proposes a new owner
func (o *Organization) InitiateOwnershipTransfer(ctx context.Context, proposedOwner common.Address, opts *ethereum.TxOptions) (*ethereum.Receipt, error) {
	return o.transact(ctx, opts, "initiateOwnershipTransfer", proposedOwner)
}

// CompleteOwnershipTransfer accepts ownership; opts.From must be the proposed owner
func (o *Organization) CompleteOwnershipTransfer(ctx context.Context, opts *ethereum.TxOptions) (*ethereum.Receipt, error) {
	return o.transact(ctx, opts, "completeOwnershipTransfer")
}

// IsWorker reports whether worker is whitelisted and not expired
func (o *Organization) IsWorker(ctx context.Context, worker common.Address) (bool, error) {
	return o.callBool(ctx, "isWorker", worker)
}

// Owner returns the organization owner
func (o *Organization) Owner(ctx context.Context) (common.Address, error) {
	return o.callAddress(ctx, "owner")
}

// Admin returns the organization admin
func (o *Organization) Admin(ctx context.Context) (common.Address, error) {
	return o.callAddress(ctx, "admin")
}

// WorkerSetEvent is the decoded WorkerSet event
type WorkerSetEvent struct {
	Worker           common.Address
	ExpirationHeight *big.Int
	RemainingHeight  *big.Int
}

// WorkerSetFromReceipt reads the WorkerSet event of a setWorker receipt
func WorkerSetFromReceipt(r *ethereum.Receipt) (WorkerSetEvent, bool) {
	ev, ok := r.Event("WorkerSet")
	if !ok {
		return WorkerSetEvent{}, false
	}
	worker, ok := ev.Fields["worker"].(common.Address)
	if !ok {
		return WorkerSetEvent{}, false
	}
	out := WorkerSetEvent{Worker: worker}
	out.ExpirationHeight, _ = ev.Fields["expirationHeight"].(*big.Int)
	out.RemainingHeight, _ = ev.Fields["remainingHeight"].(*big.Int)
	return out, true
}
