package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
)

var bytesArguments = func() abi.Arguments {
	t, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

// RecoveryConfig configures the DelayedRecoveryModule attached to a new wallet
type RecoveryConfig struct {
	Owner      common.Address `json:"owner" yaml:"owner"`
	Controller common.Address `json:"controller" yaml:"controller"`
	BlockDelay *big.Int       `json:"blockDelay" yaml:"block_delay"`
}

// WalletSetupConfig describes the gnosis safe of a new user wallet
type WalletSetupConfig struct {
	Owners    []common.Address
	Threshold *big.Int
	Recovery  RecoveryConfig
	// DelayedRecoveryModuleMasterCopy is cloned through ProxyFactory into the recovery module.
	// When zero no recovery module is attached.
	DelayedRecoveryModuleMasterCopy common.Address
	ProxyFactory                    common.Address
	CreateAndAddModules             common.Address
}

// SetupEncoder builds the initialisation payloads passed to the wallet factory
type SetupEncoder struct {
	registry *Registry
}

// NewSetupEncoder creates an encoder over the registry ABIs
func NewSetupEncoder(registry *Registry) *SetupEncoder {
	return &SetupEncoder{registry: registry}
}

// DelayedRecoveryModuleSetupData encodes DelayedRecoveryModule.setup
func (e *SetupEncoder) DelayedRecoveryModuleSetupData(recovery RecoveryConfig) ([]byte, error) {
	return e.registry.EncodeCall(artifacts.DelayedRecoveryModule, "setup",
		recovery.Owner, recovery.Controller, orZero(recovery.BlockDelay))
}

// ProxyFactoryCreateProxyData encodes ProxyFactory.createProxy(masterCopy, data)
func (e *SetupEncoder) ProxyFactoryCreateProxyData(masterCopy common.Address, data []byte) ([]byte, error) {
	if data == nil {
		data = []byte{}
	}
	return e.registry.EncodeCall(artifacts.ProxyFactory, "createProxy", masterCopy, data)
}

// CreateAndAddModulesData encodes CreateAndAddModules.createAndAddModules. Each module call is
// ABI encoded as bytes with its offset word dropped, and the results are concatenated.
func (e *SetupEncoder) CreateAndAddModulesData(proxyFactory common.Address, moduleCalls ...[]byte) ([]byte, error) {
	var modules []byte
	for i, call := range moduleCalls {
		encoded, err := bytesArguments.Pack(call)
		if err != nil {
			return nil, fmt.Errorf("failed to encode module %d: %w", i, err)
		}
		modules = append(modules, encoded[32:]...)
	}
	if modules == nil {
		modules = []byte{}
	}
	return e.registry.EncodeCall(artifacts.CreateAndAddModules, "createAndAddModules", proxyFactory, modules)
}

// GnosisSafeSetupData encodes GnosisSafe.setup. to and data describe the delegate call run
// during setup; pass the zero address and nil to skip it.
func (e *SetupEncoder) GnosisSafeSetupData(owners []common.Address, threshold *big.Int, to common.Address, data []byte) ([]byte, error) {
	if owners == nil {
		owners = []common.Address{}
	}
	if data == nil {
		data = []byte{}
	}
	return e.registry.EncodeCall(artifacts.GnosisSafe, "setup", owners, orZero(threshold), to, data)
}

// WalletSetupData builds the gnosis safe initialisation data of a new wallet, including the
// recovery module when a master copy for it is configured
func (e *SetupEncoder) WalletSetupData(cfg WalletSetupConfig) ([]byte, error) {
	if cfg.DelayedRecoveryModuleMasterCopy == (common.Address{}) {
		return e.GnosisSafeSetupData(cfg.Owners, cfg.Threshold, common.Address{}, nil)
	}

	recoverySetup, err := e.DelayedRecoveryModuleSetupData(cfg.Recovery)
	if err != nil {
		return nil, err
	}
	createProxy, err := e.ProxyFactoryCreateProxyData(cfg.DelayedRecoveryModuleMasterCopy, recoverySetup)
	if err != nil {
		return nil, err
	}
	modules, err := e.CreateAndAddModulesData(cfg.ProxyFactory, createProxy)
	if err != nil {
		return nil, err
	}
	return e.GnosisSafeSetupData(cfg.Owners, cfg.Threshold, cfg.CreateAndAddModules, modules)
}
