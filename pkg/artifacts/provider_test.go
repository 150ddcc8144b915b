package artifacts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_EmbeddedABIs(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)

	for _, name := range []string{
		OptimalWalletCreator, UserWalletFactory, Organization, UtilityBrandedToken, TokenRules,
		TokenHolder, GnosisSafe, DelayedRecoveryModule, CreateAndAddModules, ProxyFactory, MockToken,
	} {
		a, err := p.Lookup(name)
		require.NoError(t, err, name)
		assert.False(t, a.Deployable(), name)
	}

	owc, err := p.Lookup(OptimalWalletCreator)
	require.NoError(t, err)
	assert.Len(t, owc.ABI.Constructor.Inputs, 3)
	assert.Len(t, owc.ABI.Methods["optimalCall"].Inputs, 8)

	org, err := p.Lookup(Organization)
	require.NoError(t, err)
	assert.Contains(t, org.ABI.Events, "WorkerSet")
	assert.Len(t, p.ABIs(), len(p.Names()))
}

func TestProvider_LookupUnknown(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)

	_, err = p.Lookup("Unknown")
	var notFound *MetadataNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "abi", notFound.Kind)
}

func TestProvider_BytecodeMissing(t *testing.T) {
	p, err := NewProvider()
	require.NoError(t, err)

	_, err = p.Bytecode(Organization)
	var notFound *MetadataNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "bytecode", notFound.Kind)
	assert.Equal(t, Organization, notFound.Contract)
}

func TestProvider_WithBytecode(t *testing.T) {
	p, err := NewProvider(WithBytecode(MockToken, []byte{0x60, 0x80}))
	require.NoError(t, err)

	bin, err := p.Bytecode(MockToken)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, bin)

	_, err = NewProvider(WithBytecode("Nope", []byte{0x00}))
	require.Error(t, err)
}

func TestProvider_WithArtifact(t *testing.T) {
	p, err := NewProvider(WithArtifact("Counter", `[{"type":"function","name":"inc","inputs":[],"outputs":[]}]`, []byte{0x01}))
	require.NoError(t, err)

	a, err := p.Lookup("Counter")
	require.NoError(t, err)
	assert.Contains(t, a.ABI.Methods, "inc")
	assert.True(t, a.Deployable())
}

func TestProvider_LoadDir(t *testing.T) {
	dir := t.TempDir()
	truffle := `{"contractName":"Organization","abi":[{"type":"constructor","inputs":[{"name":"_owner","type":"address"},{"name":"_admin","type":"address"},{"name":"_workers","type":"address[]"},{"name":"_expirationHeight","type":"uint256"}]}],"bytecode":"0x6080"}`
	foundryDir := filepath.Join(dir, "out", "MockToken.sol")
	require.NoError(t, os.MkdirAll(foundryDir, 0o755))
	foundry := `{"abi":[{"type":"constructor","inputs":[]}],"bytecode":{"object":"0x6001","linkReferences":{}}}`
	buildInfo := `{"id":"abc","solcVersion":"0.5.0"}`

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Organization.json"), []byte(truffle), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(foundryDir, "MockToken.json"), []byte(foundry), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build-info.json"), []byte(buildInfo), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not json"), 0o600))

	p, err := NewProvider(WithArtifactDir(dir))
	require.NoError(t, err)

	orgBin, err := p.Bytecode(Organization)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, orgBin)

	tokenBin, err := p.Bytecode(MockToken)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x01}, tokenBin)

	_, err = p.Lookup("build-info")
	require.Error(t, err)
}

func TestProvider_LoadDirRejectsUnlinkedBytecode(t *testing.T) {
	dir := t.TempDir()
	unlinked := `{"contractName":"TokenHolder","abi":[],"bytecode":"0x6080__$lib$__"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "TokenHolder.json"), []byte(unlinked), 0o600))

	_, err := NewProvider(WithArtifactDir(dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unlinked")
}
