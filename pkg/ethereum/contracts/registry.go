package contracts

import (
	"context"
	"fmt"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
)

// ContractResolutionError is returned when a contract cannot be described or located
type ContractResolutionError struct {
	Contract string
	Address  common.Address
	Err      error
}

func (e *ContractResolutionError) Error() string {
	if e.Address == (common.Address{}) {
		return fmt.Sprintf("resolve contract %s: %v", e.Contract, e.Err)
	}
	return fmt.Sprintf("resolve contract %s at %s: %v", e.Contract, e.Address.Hex(), e.Err)
}

func (e *ContractResolutionError) Unwrap() error {
	return e.Err
}

// Registry resolves contract names against an artifact provider
type Registry struct {
	provider *artifacts.Provider
}

// NewRegistry creates a registry over provider
func NewRegistry(provider *artifacts.Provider) *Registry {
	return &Registry{provider: provider}
}

// Provider returns the artifact provider backing the registry
func (r *Registry) Provider() *artifacts.Provider {
	return r.provider
}

// Resolve binds the ABI of name to address. It performs no network I/O.
func (r *Registry) Resolve(name string, address common.Address) (*Handle, error) {
	if err := ethereum.RequireContractAddress(name, address); err != nil {
		return nil, &ContractResolutionError{Contract: name, Err: err}
	}
	a, err := r.lookup(name)
	if err != nil {
		return nil, &ContractResolutionError{Contract: name, Address: address, Err: err}
	}
	return &Handle{name: name, address: address, abi: a.ABI}, nil
}

// DeployTx builds the creation transaction of name with packed constructor args
func (r *Registry) DeployTx(name string, args ...any) (*ethereum.RawTx, error) {
	a, err := r.lookup(name)
	if err != nil {
		return nil, &ContractResolutionError{Contract: name, Err: err}
	}
	if !a.Deployable() {
		return nil, &ContractResolutionError{
			Contract: name,
			Err:      &artifacts.MetadataNotFoundError{Contract: name, Kind: "bytecode"},
		}
	}

	packed, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s constructor: %w", name, err)
	}

	data := make([]byte, 0, len(a.Bin)+len(packed))
	data = append(data, a.Bin...)
	data = append(data, packed...)

	return &ethereum.RawTx{Contract: name, Data: data}, nil
}

// ABIs returns every known ABI, for receipt event decoding
func (r *Registry) ABIs() []abi.ABI {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.ABIs()
}

// EncodeCall packs calldata for method of name without binding an address
func (r *Registry) EncodeCall(name, method string, args ...any) ([]byte, error) {
	a, err := r.lookup(name)
	if err != nil {
		return nil, &ContractResolutionError{Contract: name, Err: err}
	}
	return pack(name, a.ABI, method, args...)
}

func (r *Registry) lookup(name string) (*artifacts.Artifact, error) {
	if r == nil || r.provider == nil {
		return nil, &artifacts.MetadataNotFoundError{Contract: name, Kind: "abi"}
	}
	return r.provider.Lookup(name)
}

// Handle is a contract ABI bound to a deployed address
type Handle struct {
	name    string
	address common.Address
	abi     abi.ABI
}

// Name returns the contract name
func (h *Handle) Name() string { return h.name }

// Address returns the bound address
func (h *Handle) Address() common.Address { return h.address }

// ABI returns the contract ABI
func (h *Handle) ABI() abi.ABI { return h.abi }

// Pack builds a state-changing call of method
func (h *Handle) Pack(method string, args ...any) (*ethereum.RawTx, error) {
	data, err := pack(h.name, h.abi, method, args...)
	if err != nil {
		return nil, err
	}
	to := h.address
	return &ethereum.RawTx{Contract: h.name, Method: method, To: &to, Data: data}, nil
}

// Call executes a read-only call of method at the latest block and returns the unpacked outputs
func (h *Handle) Call(ctx context.Context, conn ethereum.Connection, method string, args ...any) ([]any, error) {
	if conn == nil {
		return nil, &ethereum.InvalidConnectionError{Reason: "nil connection"}
	}
	data, err := pack(h.name, h.abi, method, args...)
	if err != nil {
		return nil, err
	}

	to := h.address
	out, err := conn.CallContract(ctx, geth.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", h.name, method, err)
	}

	values, err := h.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s.%s result: %w", h.name, method, err)
	}
	return values, nil
}

func pack(name string, parsed abi.ABI, method string, args ...any) ([]byte, error) {
	if _, ok := parsed.Methods[method]; !ok {
		return nil, &ContractResolutionError{
			Contract: name,
			Err:      fmt.Errorf("no method %q in ABI", method),
		}
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s.%s: %w", name, method, err)
	}
	return data, nil
}
