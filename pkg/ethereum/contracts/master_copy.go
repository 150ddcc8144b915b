package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
)

// MasterCopyNames lists the contracts deployable with DeployMasterCopy
var MasterCopyNames = []string{
	artifacts.TokenHolder,
	artifacts.GnosisSafe,
	artifacts.DelayedRecoveryModule,
	artifacts.CreateAndAddModules,
	artifacts.ProxyFactory,
	artifacts.MockToken,
}

// MasterCopy is a contract with an argument-less constructor that proxies delegate to,
// or a helper deployed once per economy
type MasterCopy struct {
	*contract
}

// NewMasterCopy binds a deployed master copy of name
func NewMasterCopy(b *Backend, name string, address common.Address) (*MasterCopy, error) {
	if err := checkMasterCopy(name); err != nil {
		return nil, err
	}
	c, err := b.bind(name, address)
	if err != nil {
		return nil, err
	}
	return &MasterCopy{contract: c}, nil
}

// DeployMasterCopy deploys name
func DeployMasterCopy(ctx context.Context, b *Backend, opts *ethereum.TxOptions, name string) (*MasterCopy, *ethereum.Receipt, error) {
	if err := ethereum.ValidateTxOptions(opts); err != nil {
		return nil, nil, err
	}
	if err := checkMasterCopy(name); err != nil {
		return nil, nil, err
	}
	addr, receipt, err := b.deploy(ctx, opts, name)
	if err != nil {
		return nil, receipt, err
	}
	mc, err := NewMasterCopy(b, name, addr)
	return mc, receipt, err
}

// DeployMasterCopyRawTx returns the unsigned creation transaction of name
func DeployMasterCopyRawTx(b *Backend, name string) (*ethereum.RawTx, error) {
	if err := checkMasterCopy(name); err != nil {
		return nil, err
	}
	return b.deployTx(name)
}

// Name returns the contract name
func (m *MasterCopy) Name() string {
	return m.handle.Name()
}

func checkMasterCopy(name string) error {
	for _, n := range MasterCopyNames {
		if n == name {
			return nil
		}
	}
	return &ContractResolutionError{Contract: name, Err: fmt.Errorf("%s is not a master copy contract", name)}
}
