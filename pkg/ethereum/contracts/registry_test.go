package contracts

import (
	"context"
	"errors"
	"math/big"
	"testing"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
)

func TestRegistry_ResolveIsIdempotent(t *testing.T) {
	r := NewRegistry(stubProvider(t, nil))

	first, err := r.Resolve(artifacts.Organization, addrA)
	require.NoError(t, err)
	second, err := r.Resolve(artifacts.Organization, addrA)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, addrA, first.Address())
	assert.Equal(t, artifacts.Organization, first.Name())
}

func TestRegistry_ResolveErrors(t *testing.T) {
	r := NewRegistry(stubProvider(t, nil))

	_, err := r.Resolve("Unknown", addrA)
	var resErr *ContractResolutionError
	require.True(t, errors.As(err, &resErr))
	var notFound *artifacts.MetadataNotFoundError
	assert.True(t, errors.As(err, &notFound))

	_, err = r.Resolve(artifacts.Organization, common.Address{})
	require.True(t, errors.As(err, &resErr))
	var addrErr *ethereum.InvalidAddressError
	assert.True(t, errors.As(err, &addrErr))
}

func TestRegistry_DeployTx(t *testing.T) {
	bin := []byte{0x60, 0x80, 0x60, 0x40}
	r := NewRegistry(stubProvider(t, bin))

	tx, err := r.DeployTx(artifacts.OptimalWalletCreator, addrA, addrB, addrC)
	require.NoError(t, err)
	assert.True(t, tx.IsDeployment())
	assert.Equal(t, "OptimalWalletCreator.deploy", tx.Label())
	require.Equal(t, bin, tx.Data[:len(bin)])

	a, err := r.Provider().Lookup(artifacts.OptimalWalletCreator)
	require.NoError(t, err)
	args, err := a.ABI.Constructor.Inputs.Unpack(tx.Data[len(bin):])
	require.NoError(t, err)
	assert.Equal(t, []any{addrA, addrB, addrC}, args)
}

func TestRegistry_DeployTxWithoutBytecode(t *testing.T) {
	p, err := artifacts.NewProvider()
	require.NoError(t, err)

	_, err = NewRegistry(p).DeployTx(artifacts.Organization, addrA, addrB, []common.Address{}, big.NewInt(1))
	var notFound *artifacts.MetadataNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "bytecode", notFound.Kind)
}

func TestRegistry_DeployTxBadArgs(t *testing.T) {
	r := NewRegistry(stubProvider(t, []byte{0x00}))

	_, err := r.DeployTx(artifacts.OptimalWalletCreator, addrA)
	require.Error(t, err)
}

func TestHandle_PackUnknownMethod(t *testing.T) {
	h, err := NewRegistry(stubProvider(t, nil)).Resolve(artifacts.Organization, addrA)
	require.NoError(t, err)

	_, err = h.Pack("selfDestruct")
	var resErr *ContractResolutionError
	assert.True(t, errors.As(err, &resErr))
}

func TestHandle_Call(t *testing.T) {
	h, err := NewRegistry(stubProvider(t, nil)).Resolve(artifacts.Organization, addrA)
	require.NoError(t, err)

	conn := &mockConnection{
		CallContractFunc: func(_ context.Context, msg geth.CallMsg, _ *big.Int) ([]byte, error) {
			require.Equal(t, addrA, *msg.To)
			return h.ABI().Methods["owner"].Outputs.Pack(addrB)
		},
	}

	out, err := h.Call(context.Background(), conn, "owner")
	require.NoError(t, err)
	assert.Equal(t, []any{addrB}, out)

	_, err = h.Call(context.Background(), nil, "owner")
	var connErr *ethereum.InvalidConnectionError
	assert.True(t, errors.As(err, &connErr))
}
