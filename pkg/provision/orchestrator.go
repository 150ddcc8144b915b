// Package provision runs the ordered wallet provisioning plan and exposes it as a service.
package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/internal/metrics"
	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum/contracts"
)

// Step names in execution order
const (
	StepOrganization                    = "organization"
	StepToken                           = "token"
	StepTokenRules                      = "token_rules"
	StepTokenHolderMasterCopy           = "token_holder_master_copy"
	StepGnosisSafeMasterCopy            = "gnosis_safe_master_copy"
	StepDelayedRecoveryModuleMasterCopy = "delayed_recovery_module_master_copy"
	StepCreateAndAddModules             = "create_and_add_modules"
	StepUserWalletFactory               = "user_wallet_factory"
	StepProxyFactory                    = "proxy_factory"
	StepUtilityBrandedToken             = "utility_branded_token"
	StepOptimalWalletCreator            = "optimal_wallet_creator"
	StepSetWorker                       = "set_worker"
	StepOptimalCall                     = "optimal_call"
)

// Step identifies one plan step. Stage groups steps into the eight provisioning stages.
type Step struct {
	Index int    `json:"index"`
	Stage int    `json:"stage"`
	Name  string `json:"name"`
}

// StepResult is the outcome of a completed step
type StepResult struct {
	Step
	TxHash  common.Hash    `json:"txHash"`
	Address common.Address `json:"address"`
	GasUsed uint64         `json:"gasUsed"`
	// Skipped is set when the plan supplied the address and no transaction was sent
	Skipped bool `json:"skipped"`
}

// StepError reports the first failed step. Earlier steps are not rolled back.
type StepError struct {
	Index int
	Stage int
	Name  string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provisioning step %d (%s) failed: %v", e.Index, e.Name, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Result holds every address produced by a run
type Result struct {
	Organization                    common.Address           `json:"organization"`
	Token                           common.Address           `json:"token"`
	TokenRules                      common.Address           `json:"tokenRules"`
	TokenHolderMasterCopy           common.Address           `json:"tokenHolderMasterCopy"`
	GnosisSafeMasterCopy            common.Address           `json:"gnosisSafeMasterCopy"`
	DelayedRecoveryModuleMasterCopy common.Address           `json:"delayedRecoveryModuleMasterCopy"`
	CreateAndAddModules             common.Address           `json:"createAndAddModules"`
	UserWalletFactory               common.Address           `json:"userWalletFactory"`
	ProxyFactory                    common.Address           `json:"proxyFactory"`
	UtilityBrandedToken             common.Address           `json:"utilityBrandedToken"`
	OptimalWalletCreator            common.Address           `json:"optimalWalletCreator"`
	Wallet                          *contracts.CreatedWallet `json:"wallet,omitempty"`
	Steps                           []StepResult             `json:"steps"`
}

// Observer is notified as steps progress
type Observer interface {
	StepStarted(ctx context.Context, step Step)
	StepCompleted(ctx context.Context, result StepResult)
	StepFailed(ctx context.Context, step Step, err error)
}

type nopObserver struct{}

func (nopObserver) StepStarted(context.Context, Step)         {}
func (nopObserver) StepCompleted(context.Context, StepResult) {}
func (nopObserver) StepFailed(context.Context, Step, error)   {}

// Orchestrator executes provisioning plans against one backend
type Orchestrator struct {
	backend *contracts.Backend
	encoder *contracts.SetupEncoder
	logger  *zap.Logger
}

// NewOrchestrator creates an orchestrator over b
func NewOrchestrator(b *contracts.Backend, logger *zap.Logger) (*Orchestrator, error) {
	if b == nil || b.Registry == nil {
		return nil, &ethereum.InvalidConnectionError{Reason: "nil backend"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		backend: b,
		encoder: contracts.NewSetupEncoder(b.Registry),
		logger:  logger.Named("orchestrator"),
	}, nil
}

// stepOutcome is what a step function reports back
type stepOutcome struct {
	receipt *ethereum.Receipt
	address common.Address
	skipped bool
}

type stepFunc func(ctx context.Context, run *run) (stepOutcome, error)

type stepDef struct {
	stage int
	name  string
	fn    stepFunc
}

// run is the mutable state of one plan execution
type run struct {
	plan   *Plan
	result *Result

	org     *contracts.Organization
	creator *contracts.OptimalWalletCreator
}

// Run executes plan step by step. The first failure stops the run and is returned as
// *StepError together with the partial result.
func (o *Orchestrator) Run(ctx context.Context, plan *Plan, observer Observer) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = nopObserver{}
	}

	r := &run{plan: plan, result: &Result{}}

	for i, def := range o.steps() {
		step := Step{Index: i + 1, Stage: def.stage, Name: def.name}
		observer.StepStarted(ctx, step)

		start := time.Now()
		outcome, err := def.fn(ctx, r)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			metrics.ProvisioningStepDuration.WithLabelValues(def.name, "failed").Observe(time.Since(start).Seconds())
			observer.StepFailed(ctx, step, err)
			o.logger.Warn("Provisioning step failed",
				zap.Int("step", step.Index),
				zap.String("name", step.Name),
				zap.Error(err))
			return r.result, &StepError{Index: step.Index, Stage: step.Stage, Name: step.Name, Err: err}
		}
		metrics.ProvisioningStepDuration.WithLabelValues(def.name, "success").Observe(time.Since(start).Seconds())

		sr := StepResult{Step: step, Address: outcome.address, Skipped: outcome.skipped}
		if outcome.receipt != nil {
			sr.TxHash = outcome.receipt.TxHash
			sr.GasUsed = outcome.receipt.GasUsed
		}
		r.result.Steps = append(r.result.Steps, sr)
		observer.StepCompleted(ctx, sr)

		o.logger.Debug("Provisioning step completed",
			zap.Int("step", step.Index),
			zap.String("name", step.Name),
			zap.Stringer("address", sr.Address),
			zap.String("tx_hash", sr.TxHash.Hex()))
	}

	return r.result, nil
}

func (o *Orchestrator) steps() []stepDef {
	return []stepDef{
		{stage: 1, name: StepOrganization, fn: o.deployOrganization},
		{stage: 2, name: StepToken, fn: o.deployToken},
		{stage: 2, name: StepTokenRules, fn: o.deployTokenRules},
		{stage: 3, name: StepTokenHolderMasterCopy, fn: o.masterCopy(artifacts.TokenHolder, func(r *Result) *common.Address { return &r.TokenHolderMasterCopy })},
		{stage: 3, name: StepGnosisSafeMasterCopy, fn: o.masterCopy(artifacts.GnosisSafe, func(r *Result) *common.Address { return &r.GnosisSafeMasterCopy })},
		{stage: 3, name: StepDelayedRecoveryModuleMasterCopy, fn: o.masterCopy(artifacts.DelayedRecoveryModule, func(r *Result) *common.Address { return &r.DelayedRecoveryModuleMasterCopy })},
		{stage: 4, name: StepCreateAndAddModules, fn: o.masterCopy(artifacts.CreateAndAddModules, func(r *Result) *common.Address { return &r.CreateAndAddModules })},
		{stage: 4, name: StepUserWalletFactory, fn: o.deployUserWalletFactory},
		{stage: 4, name: StepProxyFactory, fn: o.masterCopy(artifacts.ProxyFactory, func(r *Result) *common.Address { return &r.ProxyFactory })},
		{stage: 5, name: StepUtilityBrandedToken, fn: o.deployUtilityBrandedToken},
		{stage: 6, name: StepOptimalWalletCreator, fn: o.deployOptimalWalletCreator},
		{stage: 7, name: StepSetWorker, fn: o.setWorker},
		{stage: 8, name: StepOptimalCall, fn: o.optimalCall},
	}
}

func (o *Orchestrator) deployerOpts(r *run) *ethereum.TxOptions {
	return r.plan.txOptions(r.plan.Deployer)
}

func (o *Orchestrator) deployOrganization(ctx context.Context, r *run) (stepOutcome, error) {
	org, receipt, err := contracts.SetupOrganization(ctx, o.backend, r.plan.Organization, o.deployerOpts(r))
	if err != nil {
		return stepOutcome{receipt: receipt}, err
	}
	r.org = org
	r.result.Organization = org.Address()
	return stepOutcome{receipt: receipt, address: org.Address()}, nil
}

func (o *Orchestrator) deployToken(ctx context.Context, r *run) (stepOutcome, error) {
	if r.plan.Token != (common.Address{}) {
		r.result.Token = r.plan.Token
		return stepOutcome{address: r.plan.Token, skipped: true}, nil
	}
	token, receipt, err := contracts.DeployMasterCopy(ctx, o.backend, o.deployerOpts(r), artifacts.MockToken)
	if err != nil {
		return stepOutcome{receipt: receipt}, err
	}
	r.result.Token = token.Address()
	return stepOutcome{receipt: receipt, address: token.Address()}, nil
}

func (o *Orchestrator) deployTokenRules(ctx context.Context, r *run) (stepOutcome, error) {
	rules, receipt, err := contracts.DeployTokenRules(ctx, o.backend, o.deployerOpts(r), r.result.Organization, r.result.Token)
	if err != nil {
		return stepOutcome{receipt: receipt}, err
	}
	r.result.TokenRules = rules.Address()
	return stepOutcome{receipt: receipt, address: rules.Address()}, nil
}

func (o *Orchestrator) masterCopy(name string, target func(*Result) *common.Address) stepFunc {
	return func(ctx context.Context, r *run) (stepOutcome, error) {
		mc, receipt, err := contracts.DeployMasterCopy(ctx, o.backend, o.deployerOpts(r), name)
		if err != nil {
			return stepOutcome{receipt: receipt}, err
		}
		*target(r.result) = mc.Address()
		return stepOutcome{receipt: receipt, address: mc.Address()}, nil
	}
}

func (o *Orchestrator) deployUserWalletFactory(ctx context.Context, r *run) (stepOutcome, error) {
	f, receipt, err := contracts.DeployUserWalletFactory(ctx, o.backend, o.deployerOpts(r))
	if err != nil {
		return stepOutcome{receipt: receipt}, err
	}
	r.result.UserWalletFactory = f.Address()
	return stepOutcome{receipt: receipt, address: f.Address()}, nil
}

func (o *Orchestrator) deployUtilityBrandedToken(ctx context.Context, r *run) (stepOutcome, error) {
	ubtPlan := r.plan.UtilityBrandedToken
	ubt, receipt, err := contracts.SetupUtilityBrandedToken(ctx, o.backend, contracts.UtilityBrandedTokenConfig{
		Token:        r.result.Token,
		Symbol:       ubtPlan.Symbol,
		Name:         ubtPlan.Name,
		Decimals:     ubtPlan.Decimals,
		Organization: r.result.Organization,
	}, o.deployerOpts(r))
	if err != nil {
		return stepOutcome{receipt: receipt}, err
	}
	r.result.UtilityBrandedToken = ubt.Address()
	return stepOutcome{receipt: receipt, address: ubt.Address()}, nil
}

func (o *Orchestrator) deployOptimalWalletCreator(ctx context.Context, r *run) (stepOutcome, error) {
	owc, receipt, err := contracts.DeployOptimalWalletCreator(ctx, o.backend, o.deployerOpts(r),
		r.result.UtilityBrandedToken, r.result.UserWalletFactory, r.result.Organization)
	if err != nil {
		return stepOutcome{receipt: receipt}, err
	}
	r.creator = owc
	r.result.OptimalWalletCreator = owc.Address()
	return stepOutcome{receipt: receipt, address: owc.Address()}, nil
}

func (o *Orchestrator) setWorker(ctx context.Context, r *run) (stepOutcome, error) {
	opts := r.plan.txOptions(r.plan.Organization.Owner)
	receipt, err := r.org.SetWorker(ctx, r.result.OptimalWalletCreator, r.plan.WorkerExpirationHeight, opts)
	if err != nil {
		return stepOutcome{receipt: receipt}, err
	}
	return stepOutcome{receipt: receipt, address: r.result.OptimalWalletCreator}, nil
}

func (o *Orchestrator) optimalCall(ctx context.Context, r *run) (stepOutcome, error) {
	setup := contracts.WalletSetupConfig{
		Owners:    r.plan.Wallet.Owners,
		Threshold: r.plan.Wallet.Threshold,
	}
	if r.plan.recoveryEnabled() {
		setup.Recovery = r.plan.Wallet.Recovery
		setup.DelayedRecoveryModuleMasterCopy = r.result.DelayedRecoveryModuleMasterCopy
		setup.ProxyFactory = r.result.ProxyFactory
		setup.CreateAndAddModules = r.result.CreateAndAddModules
	}

	safeData, err := o.encoder.WalletSetupData(setup)
	if err != nil {
		return stepOutcome{}, fmt.Errorf("failed to encode wallet setup: %w", err)
	}

	receipt, err := r.creator.OptimalCall(ctx, contracts.OptimalCallParams{
		GnosisSafeMasterCopy:  r.result.GnosisSafeMasterCopy,
		GnosisSafeData:        safeData,
		TokenHolderMasterCopy: r.result.TokenHolderMasterCopy,
		Token:                 r.result.Token,
		TokenRules:            r.result.TokenRules,
		SessionKeys:           r.plan.Wallet.SessionKeys,
	}, r.plan.txOptions(r.plan.Worker))
	if err != nil {
		return stepOutcome{receipt: receipt}, err
	}

	if wallet, err := contracts.CreatedWalletFromReceipt(receipt); err == nil {
		r.result.Wallet = &wallet
		return stepOutcome{receipt: receipt, address: wallet.GnosisSafeProxy}, nil
	}
	o.logger.Debug("optimalCall receipt carries no UserWalletCreated event",
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return stepOutcome{receipt: receipt}, nil
}
