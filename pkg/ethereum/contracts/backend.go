// Package contracts provides typed bindings for the wallet provisioning contracts.
//
// Every binding is created through a fallible factory: NewX binds an already deployed
// instance, DeployX submits a creation transaction and binds the result, and DeployXRawTx
// only builds the unsigned creation transaction.
package contracts

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
)

// Submitter sends prepared transactions
type Submitter interface {
	Submit(ctx context.Context, tx *ethereum.RawTx, opts *ethereum.TxOptions) (*ethereum.Receipt, error)
}

// Backend is the shared context of every binding
type Backend struct {
	Conn      ethereum.Connection
	Registry  *Registry
	Submitter Submitter
}

// NewBackend creates a backend whose submitter decodes events of every registry ABI
func NewBackend(conn ethereum.Connection, registry *Registry, logger *zap.Logger, opts ...ethereum.SubmitterOption) (*Backend, error) {
	if conn == nil {
		return nil, &ethereum.InvalidConnectionError{Reason: "nil connection"}
	}
	if registry == nil {
		return nil, errors.New("nil contract registry")
	}
	opts = append([]ethereum.SubmitterOption{ethereum.WithEventABIs(registry.ABIs()...)}, opts...)
	return &Backend{
		Conn:      conn,
		Registry:  registry,
		Submitter: ethereum.NewSubmitter(conn, logger, opts...),
	}, nil
}

func (b *Backend) validate() error {
	switch {
	case b == nil:
		return &ethereum.InvalidConnectionError{Reason: "nil backend"}
	case b.Conn == nil:
		return &ethereum.InvalidConnectionError{Reason: "backend has no connection"}
	case b.Registry == nil:
		return &ethereum.InvalidConnectionError{Reason: "backend has no contract registry"}
	case b.Submitter == nil:
		return &ethereum.InvalidConnectionError{Reason: "backend has no submitter"}
	}
	return nil
}

// bind resolves a deployed instance of name
func (b *Backend) bind(name string, address common.Address) (*contract, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	if err := ethereum.RequireContractAddress(name, address); err != nil {
		return nil, err
	}
	h, err := b.Registry.Resolve(name, address)
	if err != nil {
		return nil, err
	}
	return &contract{backend: b, handle: h}, nil
}

func (b *Backend) deployTx(name string, args ...any) (*ethereum.RawTx, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b.Registry.DeployTx(name, args...)
}

// deploy submits the creation transaction of name and returns the created address.
// Options are validated before anything else so invalid options never reach the network.
func (b *Backend) deploy(ctx context.Context, opts *ethereum.TxOptions, name string, args ...any) (common.Address, *ethereum.Receipt, error) {
	if err := ethereum.ValidateTxOptions(opts); err != nil {
		return common.Address{}, nil, err
	}
	tx, err := b.deployTx(name, args...)
	if err != nil {
		return common.Address{}, nil, err
	}

	receipt, err := b.Submitter.Submit(ctx, tx, opts)
	if err != nil {
		return common.Address{}, receipt, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, receipt, &ContractResolutionError{
			Contract: name,
			Err:      fmt.Errorf("receipt %s has no contract address", receipt.TxHash.Hex()),
		}
	}
	return receipt.ContractAddress, receipt, nil
}

// contract is the bound state shared by every binding
type contract struct {
	backend *Backend
	handle  *Handle
}

// Address returns the address of the bound instance
func (c *contract) Address() common.Address {
	return c.handle.Address()
}

// Handle returns the resolved contract handle
func (c *contract) Handle() *Handle {
	return c.handle
}

func (c *contract) rawTx(method string, args ...any) (*ethereum.RawTx, error) {
	return c.handle.Pack(method, args...)
}

func (c *contract) transact(ctx context.Context, opts *ethereum.TxOptions, method string, args ...any) (*ethereum.Receipt, error) {
	if err := ethereum.ValidateTxOptions(opts); err != nil {
		return nil, err
	}
	tx, err := c.handle.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	return c.backend.Submitter.Submit(ctx, tx, opts)
}

func (c *contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	return c.handle.Call(ctx, c.backend.Conn, method, args...)
}

func (c *contract) callAddress(ctx context.Context, method string, args ...any) (common.Address, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	return firstOutput[common.Address](c.handle, method, out)
}

func (c *contract) callBool(ctx context.Context, method string, args ...any) (bool, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return false, err
	}
	return firstOutput[bool](c.handle, method, out)
}

func firstOutput[T any](h *Handle, method string, out []any) (T, error) {
	var zero T
	if len(out) == 0 {
		return zero, fmt.Errorf("%s.%s returned no values", h.Name(), method)
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s.%s returned %T, want %T", h.Name(), method, out[0], zero)
	}
	return v, nil
}
