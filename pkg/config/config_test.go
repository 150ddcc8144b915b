package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  rpc_url: http://localhost:8545
keys:
  signers:
    - name: deployer
      private_key: b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(1337), cfg.Ethereum.ChainID)
	assert.Equal(t, time.Second, cfg.Ethereum.ReceiptPollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Ethereum.ReceiptTimeout)
	assert.Equal(t, 4, cfg.Provisioning.MaxConcurrentRuns)
	assert.False(t, cfg.Database.Enabled())
	require.Len(t, cfg.Keys.Signers, 1)
	assert.Equal(t, "deployer", cfg.Keys.Signers[0].Name)
}

func TestLoad_MissingRPCURL(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPCURL")
}

func TestLoad_AuthRequiresSecret(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  rpc_url: http://localhost:8545
auth:
  enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWTSecret")
}

func TestLoad_EncryptedSignerNeedsMasterKey(t *testing.T) {
	path := writeConfig(t, `
ethereum:
  rpc_url: http://localhost:8545
keys:
  signers:
    - name: worker
      encrypted_key: c2VjcmV0
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keys.master_key")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(LoggingConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
}

func TestNewLogger_Console(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}
