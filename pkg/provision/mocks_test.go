package provision

import (
	"context"
	"errors"
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
	"github.com/chainsafe/optimal-wallet/pkg/ethereum/contracts"
)

var (
	testDeployer = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	testWorker   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testOwner    = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	stubBin      = []byte{0x60, 0x80, 0x60, 0x40}
)

// spySubmitter records submissions. Deployments get sequential addresses 0x..1001, 0x..1002, ...
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
	n := len(s.txs)
	s.mu.Unlock()

	if s.SubmitFunc != nil {
		return s.SubmitFunc(ctx, tx, opts)
	}
	return defaultReceipt(n, tx, opts), nil
}

func defaultReceipt(n int, tx *ethereum.RawTx, opts *ethereum.TxOptions) *ethereum.Receipt {
	r := &ethereum.Receipt{
		TxHash:  common.BigToHash(big.NewInt(int64(n))),
		GasUsed: 21000,
		Status:  true,
		From:    opts.From,
		To:      tx.To,
		Events:  map[string][]ethereum.Event{},
	}
	if tx.IsDeployment() {
		r.ContractAddress = common.BigToAddress(big.NewInt(int64(0x1000 + n)))
	}
	return r
}

func (s *spySubmitter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

// find returns the first submission of contract.method; method "" matches the deployment
func (s *spySubmitter) find(t *testing.T, contract, method string) (*ethereum.RawTx, *ethereum.TxOptions) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.txs {
		if tx.Contract == contract && tx.Method == method {
			return tx, s.opts[i]
		}
	}
	t.Fatalf("no %s.%s submission recorded", contract, method)
	return nil, nil
}

var errNotUsed = errors.New("not used by the orchestrator")

// deadConnection satisfies ethereum.Connection for backends whose submitter is mocked
type deadConnection struct{}

func (deadConnection) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1337), nil }
func (deadConnection) Accounts(context.Context) ([]common.Address, error) {
	return nil, errNotUsed
}
func (deadConnection) Transactor(context.Context, *ethereum.TxOptions) (*bind.TransactOpts, error) {
	return nil, errNotUsed
}
func (deadConnection) EstimateGas(context.Context, geth.CallMsg) (uint64, error) {
	return 0, errNotUsed
}
func (deadConnection) CallContract(context.Context, geth.CallMsg, *big.Int) ([]byte, error) {
	return nil, errNotUsed
}
func (deadConnection) SendTransaction(context.Context, *types.Transaction) error { return errNotUsed }
func (deadConnection) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, errNotUsed
}

// stubProvider attaches bin to every known contract
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

func newTestOrchestrator(t *testing.T) (*Orchestrator, *spySubmitter, *contracts.Registry) {
	t.Helper()
	spy := &spySubmitter{}
	reg := contracts.NewRegistry(stubProvider(t, stubBin))
	o, err := NewOrchestrator(&contracts.Backend{Conn: deadConnection{}, Registry: reg, Submitter: spy}, nil)
	require.NoError(t, err)
	return o, spy, reg
}

func validPlan() *Plan {
	return &Plan{
		Deployer: testDeployer,
		Worker:   testWorker,
		Gas:      "4000000",
		Organization: contracts.OrganizationConfig{
			Owner:            testDeployer,
			Admin:            testWorker,
			Workers:          []common.Address{testWorker},
			ExpirationHeight: big.NewInt(100000000),
		},
		UtilityBrandedToken:    BrandedTokenPlan{Symbol: "UBT", Name: "Utility Branded Token", Decimals: 18},
		WorkerExpirationHeight: big.NewInt(100000000),
		Wallet: WalletPlan{
			Owners:    []common.Address{testOwner},
			Threshold: big.NewInt(1),
		},
	}
}

// recordingObserver keeps every notification in order
type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingObserver) StepStarted(_ context.Context, s Step)          { r.add("start:" + s.Name) }
func (r *recordingObserver) StepCompleted(_ context.Context, s StepResult) { r.add("done:" + s.Name) }
func (r *recordingObserver) StepFailed(_ context.Context, s Step, _ error) { r.add("fail:" + s.Name) }
