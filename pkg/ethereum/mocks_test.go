package ethereum

import (
	"context"
	"math/big"
	"sync"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MockConnection is a func-field Connection that counts every call
type MockConnection struct {
	ChainIDFunc            func(ctx context.Context) (*big.Int, error)
	AccountsFunc           func(ctx context.Context) ([]common.Address, error)
	TransactorFunc         func(ctx context.Context, opts *TxOptions) (*bind.TransactOpts, error)
	EstimateGasFunc        func(ctx context.Context, msg geth.CallMsg) (uint64, error)
	CallContractFunc       func(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransactionFunc    func(ctx context.Context, tx *types.Transaction) error
	TransactionReceiptFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockConnection) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns the number of calls to name, or all calls when name is empty
func (m *MockConnection) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name != "" {
		return m.calls[name]
	}
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *MockConnection) ChainID(ctx context.Context) (*big.Int, error) {
	m.record("ChainID")
	if m.ChainIDFunc != nil {
		return m.ChainIDFunc(ctx)
	}
	return big.NewInt(1337), nil
}

func (m *MockConnection) Accounts(ctx context.Context) ([]common.Address, error) {
	m.record("Accounts")
	if m.AccountsFunc != nil {
		return m.AccountsFunc(ctx)
	}
	return nil, nil
}

func (m *MockConnection) Transactor(ctx context.Context, opts *TxOptions) (*bind.TransactOpts, error) {
	m.record("Transactor")
	if m.TransactorFunc != nil {
		return m.TransactorFunc(ctx, opts)
	}
	return &bind.TransactOpts{
		From:     opts.From,
		Nonce:    big.NewInt(0),
		GasPrice: big.NewInt(1),
		GasLimit: opts.GasValue(),
		Signer: func(_ common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return tx, nil
		},
	}, nil
}

func (m *MockConnection) EstimateGas(ctx context.Context, msg geth.CallMsg) (uint64, error) {
	m.record("EstimateGas")
	if m.EstimateGasFunc != nil {
		return m.EstimateGasFunc(ctx, msg)
	}
	return 100000, nil
}

func (m *MockConnection) CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.record("CallContract")
	if m.CallContractFunc != nil {
		return m.CallContractFunc(ctx, msg, blockNumber)
	}
	return nil, nil
}

func (m *MockConnection) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	m.record("SendTransaction")
	if m.SendTransactionFunc != nil {
		return m.SendTransactionFunc(ctx, tx)
	}
	return nil
}

func (m *MockConnection) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.record("TransactionReceipt")
	if m.TransactionReceiptFunc != nil {
		return m.TransactionReceiptFunc(ctx, txHash)
	}
	return &types.Receipt{
		TxHash:      txHash,
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(1),
		GasUsed:     21000,
	}, nil
}
