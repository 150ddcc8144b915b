// Package ethtest provides an in-process chain for binding and orchestrator tests.
package ethtest

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
	"github.com/chainsafe/optimal-wallet/pkg/keys"
)

// StubContractBin deploys a contract that accepts any call and emits one LOG1 with StubEventTopic
const StubContractBin = "0x6027600c60003960276000f37f0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f2060006000a100"

// StubEventTopic is the topic emitted by StubContractBin on every call
const StubEventTopic = "0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"

// ChainID of the simulated chain
const ChainID = 1337

var fundedBalance = new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))

// Chain is a simulated chain with funded signer accounts
type Chain struct {
	Backend  *simulated.Backend
	Client   *ethereum.Client
	Keyring  *keys.Keyring
	Accounts []common.Address
}

// autoCommit mines a block after every accepted transaction
type autoCommit struct {
	simulated.Client
	backend *simulated.Backend
}

func (a *autoCommit) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := a.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	a.backend.Commit()
	return nil
}

// NewChain starts a simulated chain with n funded accounts named signer-0 .. signer-(n-1).
// Keys are derived deterministically so addresses are stable between runs.
func NewChain(t testing.TB, n int) *Chain {
	t.Helper()

	seed := make([]byte, 32)
	copy(seed, "optimal-wallet-simulated-chain")

	kr := keys.NewKeyring()
	alloc := types.GenesisAlloc{}
	accounts := make([]common.Address, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("signer-%d", i)
		key, err := keys.DeriveSignerKey(name, seed)
		if err != nil {
			t.Fatalf("derive key %s: %v", name, err)
		}
		addr := mustAdd(t, kr, name, key)
		alloc[addr] = types.Account{Balance: fundedBalance}
		accounts = append(accounts, addr)
	}

	backend := simulated.NewBackend(alloc, simulated.WithBlockGasLimit(30_000_000))
	t.Cleanup(func() {
		_ = backend.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := ethereum.NewClientWithBackend(ctx, &autoCommit{Client: backend.Client(), backend: backend}, kr, zap.NewNop())
	if err != nil {
		t.Fatalf("new simulated client: %v", err)
	}

	return &Chain{
		Backend:  backend,
		Client:   client,
		Keyring:  kr,
		Accounts: accounts,
	}
}

// Submitter returns a submitter over the chain that polls fast enough for tests
func (c *Chain) Submitter(opts ...ethereum.SubmitterOption) *ethereum.Submitter {
	opts = append([]ethereum.SubmitterOption{
		ethereum.WithPollInterval(10 * time.Millisecond),
		ethereum.WithReceiptTimeout(10 * time.Second),
	}, opts...)
	return ethereum.NewSubmitter(c.Client, zap.NewNop(), opts...)
}

// StubBytecode returns StubContractBin decoded
func StubBytecode() []byte {
	return common.FromHex(StubContractBin)
}

func mustAdd(t testing.TB, kr *keys.Keyring, name string, key *ecdsa.PrivateKey) common.Address {
	t.Helper()
	addr, err := kr.Add(name, key)
	if err != nil {
		t.Fatalf("add key %s: %v", name, err)
	}
	return addr
}
