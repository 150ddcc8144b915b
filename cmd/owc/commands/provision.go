package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chainsafe/optimal-wallet/pkg/provision"
)

func provisionCmd(opts *options) *cobra.Command {
	var planPath string
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Run every provisioning step of a plan file and print the resulting addresses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := provision.LoadPlanFile(planPath)
			if err != nil {
				return err
			}
			if opts.gas != "" {
				plan.Gas = opts.gas
			}
			if opts.gasPrice != "" {
				plan.GasPrice = opts.gasPrice
			}

			ctx := cmd.Context()
			e, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			orchestrator, err := provision.NewOrchestrator(e.backend, e.logger)
			if err != nil {
				return err
			}

			result, runErr := orchestrator.Run(ctx, plan, &progress{w: cmd.ErrOrStderr()})
			if result != nil {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&planPath, "plan", "p", "plan.yaml", "path to the YAML plan file")
	return cmd
}

// progress prints one line per step
type progress struct {
	w io.Writer
}

func (p *progress) StepStarted(_ context.Context, step provision.Step) {
	fmt.Fprintf(p.w, "[%2d] stage %d %s ...\n", step.Index, step.Stage, step.Name)
}

func (p *progress) StepCompleted(_ context.Context, r provision.StepResult) {
	switch {
	case r.Skipped:
		fmt.Fprintf(p.w, "[%2d] %s skipped (%s)\n", r.Index, r.Name, r.Address.Hex())
	default:
		fmt.Fprintf(p.w, "[%2d] %s ok address=%s tx=%s gas=%d\n", r.Index, r.Name, r.Address.Hex(), r.TxHash.Hex(), r.GasUsed)
	}
}

func (p *progress) StepFailed(_ context.Context, step provision.Step, err error) {
	fmt.Fprintf(p.w, "[%2d] %s FAILED: %v\n", step.Index, step.Name, err)
}
