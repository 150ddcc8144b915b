package provision

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planYAML = `
deployer: "0x00000000000000000000000000000000000000d1"
worker: "0x00000000000000000000000000000000000000a1"
gas_price: "1000000000"
organization:
  workers:
    - "0x00000000000000000000000000000000000000a1"
    - "0x00000000000000000000000000000000000000a2"
utility_branded_token:
  symbol: OST
  decimals: 6
wallet:
  owners:
    - "0x00000000000000000000000000000000000000e1"
    - "0x00000000000000000000000000000000000000e2"
  threshold: 2
  recovery:
    owner: "0x00000000000000000000000000000000000000f1"
    controller: "0x00000000000000000000000000000000000000f2"
  session_keys:
    - address: "0x00000000000000000000000000000000000000b1"
      spending_limit: "1.5"
      expiration_height: 5000
`

func TestLoadPlanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(planYAML), 0o600))

	plan, err := LoadPlanFile(path)
	require.NoError(t, err)

	assert.Equal(t, testDeployer, plan.Deployer)
	assert.Equal(t, testDeployer, plan.Organization.Owner)
	assert.Equal(t, testWorker, plan.Organization.Admin)
	assert.Len(t, plan.Organization.Workers, 2)
	assert.Equal(t, "1000000000", plan.GasPrice)
	assert.Equal(t, 0, plan.Organization.ExpirationHeight.Cmp(big.NewInt(100000000)))
	assert.Equal(t, 0, plan.WorkerExpirationHeight.Cmp(big.NewInt(100000000)))

	assert.Equal(t, "OST", plan.UtilityBrandedToken.Symbol)
	assert.Equal(t, "Utility Branded Token", plan.UtilityBrandedToken.Name)
	assert.Equal(t, uint8(6), plan.UtilityBrandedToken.Decimals)
	assert.Equal(t, common.Address{}, plan.Token)

	assert.Equal(t, 0, plan.Wallet.Threshold.Cmp(big.NewInt(2)))
	assert.True(t, plan.recoveryEnabled())
	assert.Equal(t, 0, plan.Wallet.Recovery.BlockDelay.Cmp(big.NewInt(100)))

	require.Len(t, plan.Wallet.SessionKeys, 1)
	sk := plan.Wallet.SessionKeys[0]
	assert.Equal(t, common.HexToAddress("0xb1"), sk.Address)
	assert.Equal(t, "1500000", sk.SpendingLimit.String())
	assert.Equal(t, 0, sk.ExpirationHeight.Cmp(big.NewInt(5000)))
}

func TestLoadPlanFile_Missing(t *testing.T) {
	_, err := LoadPlanFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDecodePlanJSON_Defaults(t *testing.T) {
	plan, err := DecodePlanJSON([]byte(planJSON))
	require.NoError(t, err)

	assert.Equal(t, []common.Address{testWorker}, plan.Organization.Workers)
	assert.Equal(t, uint8(18), plan.UtilityBrandedToken.Decimals)
	assert.Equal(t, 0, plan.Wallet.Threshold.Cmp(big.NewInt(1)))
	assert.False(t, plan.recoveryEnabled())
	assert.NotNil(t, plan.Wallet.SessionKeys)
	assert.Empty(t, plan.Wallet.SessionKeys)
}

func TestDecodePlanJSON_Errors(t *testing.T) {
	_, err := DecodePlanJSON([]byte(`{"deployer": 5}`))
	var planErr *InvalidPlanError
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, "body", planErr.Field)

	_, err = DecodePlanJSON([]byte(`{
		"deployer": "0x00000000000000000000000000000000000000d1",
		"worker": "0x00000000000000000000000000000000000000a1",
		"wallet": {"owners": ["0x00000000000000000000000000000000000000e1"], "threshold": 3}
	}`))
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, "wallet.threshold", planErr.Field)

	_, err = DecodePlanJSON([]byte(`{
		"deployer": "0x00000000000000000000000000000000000000d1",
		"worker": "0x00000000000000000000000000000000000000a1",
		"gas": "lots",
		"wallet": {"owners": ["0x00000000000000000000000000000000000000e1"]}
	}`))
	require.Error(t, err)
}

func TestPlanValidate(t *testing.T) {
	var nilPlan *Plan
	var planErr *InvalidPlanError
	require.ErrorAs(t, nilPlan.Validate(), &planErr)

	p := validPlan()
	require.NoError(t, p.Validate())

	p.Organization.Owner = common.Address{}
	require.ErrorAs(t, p.Validate(), &planErr)
	assert.Equal(t, "organization.owner", planErr.Field)

	p = validPlan()
	p.GasPrice = "cheap"
	require.ErrorAs(t, p.Validate(), &planErr)
	assert.Equal(t, "tx_options", planErr.Field)
}

func TestTokenAmount(t *testing.T) {
	cases := []struct {
		amount   string
		decimals uint8
		want     string
		ok       bool
	}{
		{"0", 18, "0", true},
		{"1", 18, "1000000000000000000", true},
		{"2.25", 2, "225", true},
		{"0.001", 2, "", false},
		{"-1", 18, "", false},
		{"ten", 18, "", false},
	}
	for _, tc := range cases {
		got, err := TokenAmount(tc.amount, tc.decimals)
		if !tc.ok {
			assert.Error(t, err, tc.amount)
			continue
		}
		require.NoError(t, err, tc.amount)
		assert.Equal(t, tc.want, got.String())
	}
}

func TestPlanFile_InvalidToken(t *testing.T) {
	pf := &PlanFile{Deployer: "0x00000000000000000000000000000000000000d1", Worker: "0x00000000000000000000000000000000000000a1"}
	pf.Wallet.Owners = []string{"0x00000000000000000000000000000000000000e1"}
	pf.Token = "not-an-address"

	_, err := pf.Plan()
	var planErr *InvalidPlanError
	require.ErrorAs(t, err, &planErr)
	assert.Contains(t, planErr.Reason, "Token")
}
