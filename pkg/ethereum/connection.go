package ethereum

import (
	"context"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Connection is the set of chain capabilities the bindings rely on.
// Client implements it over JSON-RPC; tests provide their own.
type Connection interface {
	ChainID(ctx context.Context) (*big.Int, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	// Transactor resolves signer, nonce and gas price for opts
	Transactor(ctx context.Context, opts *TxOptions) (*bind.TransactOpts, error)
	EstimateGas(ctx context.Context, msg geth.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// RawTx is an unsigned contract interaction. To is nil for deployments.
type RawTx struct {
	Contract string          `json:"contract"`
	Method   string          `json:"method,omitempty"`
	To       *common.Address `json:"to,omitempty"`
	Data     []byte          `json:"data"`
	Value    *big.Int        `json:"value,omitempty"`
}

// IsDeployment reports whether the transaction creates a contract
func (t *RawTx) IsDeployment() bool {
	return t.To == nil
}

// Label names the interaction for logs and metrics
func (t *RawTx) Label() string {
	if t.IsDeployment() {
		return t.Contract + ".deploy"
	}
	return t.Contract + "." + t.Method
}
