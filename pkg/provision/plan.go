package provision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum/contracts"
)

// InvalidPlanError is returned for plans that fail local validation
type InvalidPlanError struct {
	Field  string
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan: %s: %s", e.Field, e.Reason)
}

// BrandedTokenPlan describes the utility branded token of the economy
type BrandedTokenPlan struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// WalletPlan describes the user wallet created by optimalCall
type WalletPlan struct {
	Owners    []common.Address `json:"owners"`
	Threshold *big.Int         `json:"threshold"`
	// Recovery is skipped when both owner and controller are zero
	Recovery    contracts.RecoveryConfig `json:"recovery"`
	SessionKeys []contracts.SessionKey   `json:"sessionKeys"`
}

// Plan is one end-to-end wallet provisioning run
type Plan struct {
	// Deployer sends every deployment
	Deployer common.Address `json:"deployer"`
	// Worker sends optimalCall and must be whitelisted on the organization
	Worker   common.Address `json:"worker"`
	GasPrice string         `json:"gasPrice,omitempty"`
	Gas      string         `json:"gas,omitempty"`

	Organization contracts.OrganizationConfig `json:"organization"`
	// Token is an existing economy token. When zero a MockToken is deployed.
	Token               common.Address   `json:"token"`
	UtilityBrandedToken BrandedTokenPlan `json:"utilityBrandedToken"`
	// WorkerExpirationHeight is used when whitelisting the OptimalWalletCreator
	WorkerExpirationHeight *big.Int   `json:"workerExpirationHeight"`
	Wallet                 WalletPlan `json:"wallet"`
}

// Validate checks the plan without touching the network
func (p *Plan) Validate() error {
	switch {
	case p == nil:
		return &InvalidPlanError{Field: "plan", Reason: "required"}
	case p.Deployer == (common.Address{}):
		return &InvalidPlanError{Field: "deployer", Reason: "required"}
	case p.Worker == (common.Address{}):
		return &InvalidPlanError{Field: "worker", Reason: "required"}
	case p.Organization.Owner == (common.Address{}):
		return &InvalidPlanError{Field: "organization.owner", Reason: "required"}
	case len(p.Wallet.Owners) == 0:
		return &InvalidPlanError{Field: "wallet.owners", Reason: "at least one owner is required"}
	case p.Wallet.Threshold == nil || p.Wallet.Threshold.Sign() <= 0:
		return &InvalidPlanError{Field: "wallet.threshold", Reason: "must be positive"}
	case p.Wallet.Threshold.Cmp(big.NewInt(int64(len(p.Wallet.Owners)))) > 0:
		return &InvalidPlanError{Field: "wallet.threshold", Reason: "exceeds number of owners"}
	}
	if err := ethereum.ValidateTxOptions(p.txOptions(p.Deployer)); err != nil {
		return &InvalidPlanError{Field: "tx_options", Reason: err.Error()}
	}
	return nil
}

func (p *Plan) recoveryEnabled() bool {
	return p.Wallet.Recovery.Owner != (common.Address{}) || p.Wallet.Recovery.Controller != (common.Address{})
}

func (p *Plan) txOptions(from common.Address) *ethereum.TxOptions {
	return &ethereum.TxOptions{From: from, GasPrice: p.GasPrice, Gas: p.Gas}
}

// PlanFile is the YAML / JSON form of a Plan. Token amounts are decimal strings in
// branded token units; heights and delays are block counts.
type PlanFile struct {
	Deployer string `yaml:"deployer" json:"deployer" validate:"required,eth_addr"`
	Worker   string `yaml:"worker" json:"worker" validate:"required,eth_addr"`
	GasPrice string `yaml:"gas_price" json:"gasPrice" validate:"omitempty,numeric"`
	Gas      string `yaml:"gas" json:"gas" validate:"omitempty,numeric"`

	Organization struct {
		// Owner defaults to the deployer
		Owner string `yaml:"owner" json:"owner" validate:"omitempty,eth_addr"`
		// Admin defaults to the worker
		Admin string `yaml:"admin" json:"admin" validate:"omitempty,eth_addr"`
		// Workers defaults to [worker]
		Workers          []string `yaml:"workers" json:"workers" validate:"dive,eth_addr"`
		ExpirationHeight uint64   `yaml:"expiration_height" json:"expirationHeight" default:"100000000"`
	} `yaml:"organization" json:"organization"`

	Token string `yaml:"token" json:"token" validate:"omitempty,eth_addr"`

	UtilityBrandedToken struct {
		Symbol   string `yaml:"symbol" json:"symbol" default:"UBT" validate:"required"`
		Name     string `yaml:"name" json:"name" default:"Utility Branded Token" validate:"required"`
		Decimals uint8  `yaml:"decimals" json:"decimals" default:"18" validate:"max=77"`
	} `yaml:"utility_branded_token" json:"utilityBrandedToken"`

	WorkerExpirationHeight uint64 `yaml:"worker_expiration_height" json:"workerExpirationHeight" default:"100000000"`

	Wallet struct {
		Owners    []string `yaml:"owners" json:"owners" validate:"required,min=1,dive,eth_addr"`
		Threshold uint64   `yaml:"threshold" json:"threshold" default:"1" validate:"min=1"`
		Recovery  struct {
			Owner      string `yaml:"owner" json:"owner" validate:"omitempty,eth_addr"`
			Controller string `yaml:"controller" json:"controller" validate:"omitempty,eth_addr"`
			BlockDelay uint64 `yaml:"block_delay" json:"blockDelay" default:"100"`
		} `yaml:"recovery" json:"recovery"`
		SessionKeys []SessionKeyFile `yaml:"session_keys" json:"sessionKeys" validate:"dive"`
	} `yaml:"wallet" json:"wallet"`
}

// SessionKeyFile is one session key of a PlanFile
type SessionKeyFile struct {
	Address          string `yaml:"address" json:"address" validate:"required,eth_addr"`
	SpendingLimit    string `yaml:"spending_limit" json:"spendingLimit" default:"0"`
	ExpirationHeight uint64 `yaml:"expiration_height" json:"expirationHeight" validate:"required"`
}

// LoadPlanFile reads a YAML plan from path
func LoadPlanFile(path string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	var pf PlanFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	return pf.Plan()
}

// DecodePlanJSON decodes a JSON plan, rejecting unknown fields
func DecodePlanJSON(raw []byte) (*Plan, error) {
	var pf PlanFile
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&pf); err != nil {
		return nil, &InvalidPlanError{Field: "body", Reason: err.Error()}
	}
	return pf.Plan()
}

// Plan applies defaults, validates the file and converts it into a Plan
func (pf *PlanFile) Plan() (*Plan, error) {
	if err := defaults.Set(pf); err != nil {
		return nil, fmt.Errorf("failed to apply plan defaults: %w", err)
	}
	if err := validator.New().Struct(pf); err != nil {
		return nil, &InvalidPlanError{Field: "plan", Reason: err.Error()}
	}

	p := &Plan{
		GasPrice: pf.GasPrice,
		Gas:      pf.Gas,
		UtilityBrandedToken: BrandedTokenPlan{
			Symbol:   pf.UtilityBrandedToken.Symbol,
			Name:     pf.UtilityBrandedToken.Name,
			Decimals: pf.UtilityBrandedToken.Decimals,
		},
		WorkerExpirationHeight: new(big.Int).SetUint64(pf.WorkerExpirationHeight),
	}

	var err error
	if p.Deployer, err = ethereum.ParseAddress("deployer", pf.Deployer); err != nil {
		return nil, err
	}
	if p.Worker, err = ethereum.ParseAddress("worker", pf.Worker); err != nil {
		return nil, err
	}
	if p.Token, err = optionalAddress("token", pf.Token, common.Address{}); err != nil {
		return nil, err
	}

	org := &p.Organization
	if org.Owner, err = optionalAddress("organization.owner", pf.Organization.Owner, p.Deployer); err != nil {
		return nil, err
	}
	if org.Admin, err = optionalAddress("organization.admin", pf.Organization.Admin, p.Worker); err != nil {
		return nil, err
	}
	if len(pf.Organization.Workers) == 0 {
		org.Workers = []common.Address{p.Worker}
	} else if org.Workers, err = ethereum.ParseAddresses("organization.workers", pf.Organization.Workers); err != nil {
		return nil, err
	}
	org.ExpirationHeight = new(big.Int).SetUint64(pf.Organization.ExpirationHeight)

	wallet := &p.Wallet
	if wallet.Owners, err = ethereum.ParseAddresses("wallet.owners", pf.Wallet.Owners); err != nil {
		return nil, err
	}
	wallet.Threshold = new(big.Int).SetUint64(pf.Wallet.Threshold)
	if wallet.Recovery.Owner, err = optionalAddress("wallet.recovery.owner", pf.Wallet.Recovery.Owner, common.Address{}); err != nil {
		return nil, err
	}
	if wallet.Recovery.Controller, err = optionalAddress("wallet.recovery.controller", pf.Wallet.Recovery.Controller, common.Address{}); err != nil {
		return nil, err
	}
	wallet.Recovery.BlockDelay = new(big.Int).SetUint64(pf.Wallet.Recovery.BlockDelay)

	wallet.SessionKeys = make([]contracts.SessionKey, 0, len(pf.Wallet.SessionKeys))
	for i, sk := range pf.Wallet.SessionKeys {
		field := fmt.Sprintf("wallet.session_keys[%d]", i)
		addr, err := ethereum.ParseAddress(field+".address", sk.Address)
		if err != nil {
			return nil, err
		}
		amount := sk.SpendingLimit
		if amount == "" {
			amount = "0"
		}
		limit, err := TokenAmount(amount, p.UtilityBrandedToken.Decimals)
		if err != nil {
			return nil, &InvalidPlanError{Field: field + ".spending_limit", Reason: err.Error()}
		}
		wallet.SessionKeys = append(wallet.SessionKeys, contracts.SessionKey{
			Address:          addr,
			SpendingLimit:    limit,
			ExpirationHeight: new(big.Int).SetUint64(sk.ExpirationHeight),
		})
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// TokenAmount converts a decimal amount in token units into base units
func TokenAmount(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", amount)
	}
	base := d.Shift(int32(decimals))
	if !base.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	return base.BigInt(), nil
}

func optionalAddress(field, value string, fallback common.Address) (common.Address, error) {
	if value == "" {
		return fallback, nil
	}
	return ethereum.ParseAddress(field, value)
}
