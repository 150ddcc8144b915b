package contracts

import (
	"context"
	"math/big"
	"sync"
	"testing"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
)

var (
	testFrom     = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	testDeployed = common.HexToAddress("0x00000000000000000000000000000000000000de")
	addrA        = common.HexToAddress("0x000000000000000000000000000000000000000a")
	addrB        = common.HexToAddress("0x000000000000000000000000000000000000000b")
	addrC        = common.HexToAddress("0x000000000000000000000000000000000000000c")
)

// spySubmitter records submitted transactions and answers with a canned receipt
type spySubmitter struct {
	SubmitFunc func(ctx context.Context, tx *ethereum.RawTx, opts *ethereum.TxOptions) (*ethereum.Receipt, error)

	mu   sync.Mutex
	txs  []*ethereum.RawTx
	opts []*ethereum.TxOptions
}

func (s *spySubmitter) Submit(ctx context.Context, tx *ethereum.RawTx, opts *ethereum.TxOptions) (*ethereum.Receipt, error) {
	s.mu.Lock()
	s.txs = append(s.txs, tx)
	s.opts = append(s.opts, opts)
	s.mu.Unlock()

	if s.SubmitFunc != nil {
		return s.SubmitFunc(ctx, tx, opts)
	}
	r := &ethereum.Receipt{Status: true, From: opts.From, To: tx.To, Events: map[string][]ethereum.Event{}}
	if tx.IsDeployment() {
		r.ContractAddress = testDeployed
	}
	return r, nil
}

func (s *spySubmitter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func (s *spySubmitter) Last() *ethereum.RawTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.txs) == 0 {
		return nil
	}
	return s.txs[len(s.txs)-1]
}

// mockConnection counts calls; CallContract and EstimateGas are configurable
type mockConnection struct {
	CallContractFunc func(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGasFunc  func(ctx context.Context, msg geth.CallMsg) (uint64, error)
	ReceiptFunc      func(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	mu    sync.Mutex
	calls int
}

func (m *mockConnection) record() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *mockConnection) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockConnection) ChainID(context.Context) (*big.Int, error) {
	m.record()
	return big.NewInt(1337), nil
}

func (m *mockConnection) Accounts(context.Context) ([]common.Address, error) {
	m.record()
	return []common.Address{testFrom}, nil
}

func (m *mockConnection) Transactor(_ context.Context, opts *ethereum.TxOptions) (*bind.TransactOpts, error) {
	m.record()
	return &bind.TransactOpts{
		From:     testFrom,
		Nonce:    big.NewInt(0),
		GasPrice: big.NewInt(1),
		GasLimit: opts.GasValue(),
		Signer: func(_ common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return tx, nil
		},
	}, nil
}

func (m *mockConnection) EstimateGas(ctx context.Context, msg geth.CallMsg) (uint64, error) {
	m.record()
	if m.EstimateGasFunc != nil {
		return m.EstimateGasFunc(ctx, msg)
	}
	return 21000, nil
}

func (m *mockConnection) CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.record()
	if m.CallContractFunc != nil {
		return m.CallContractFunc(ctx, msg, blockNumber)
	}
	return nil, nil
}

func (m *mockConnection) SendTransaction(context.Context, *types.Transaction) error {
	m.record()
	return nil
}

func (m *mockConnection) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	m.record()
	if m.ReceiptFunc != nil {
		return m.ReceiptFunc(ctx, hash)
	}
	return nil, geth.NotFound
}

// stubProvider attaches placeholder bytecode to every known contract
func stubProvider(t *testing.T, bin []byte) *artifacts.Provider {
	t.Helper()
	base, err := artifacts.NewProvider()
	require.NoError(t, err)

	opts := make([]artifacts.Option, 0, len(base.Names()))
	for _, name := range base.Names() {
		opts = append(opts, artifacts.WithBytecode(name, bin))
	}
	p, err := artifacts.NewProvider(opts...)
	require.NoError(t, err)
	return p
}

func newTestBackend(t *testing.T) (*Backend, *spySubmitter, *mockConnection) {
	t.Helper()
	conn := &mockConnection{}
	spy := &spySubmitter{}
	return &Backend{
		Conn:      conn,
		Registry:  NewRegistry(stubProvider(t, []byte{0x60, 0x80, 0x60, 0x40})),
		Submitter: spy,
	}, spy, conn
}
