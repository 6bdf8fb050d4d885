package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratus-io/stratus/internal/engine"
	"github.com/stratus-io/stratus/internal/ir"
	"github.com/stratus-io/stratus/internal/plan"
)

var autoApprove bool

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile the plan against the provider",
	Long: `Apply resolves every resource in the plan find-or-create, in
dependency order, and persists the resulting state snapshot. If any
resource fails, everything this run created is rolled back in reverse
creation order before the command returns.`,
	RunE: runApply,
}

func init() {
	addPlanFlags(applyCmd)
	addRunFlags(applyCmd)
	applyCmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip interactive approval")
}

func runApply(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(planFile)
	if err != nil {
		if reportInvalidPlan(err) {
			return fmt.Errorf("plan %s failed validation", planFile)
		}
		return err
	}

	graph, err := engine.BuildGraph(p)
	if err != nil {
		return err
	}

	fmt.Printf("Plan: %d resource(s), reconciled in this order:\n", len(p.Resources))
	for i, name := range graph.CreationOrder() {
		fmt.Printf("  %2d. %s (%s)\n", i+1, name, p.Resource(name).Kind)
	}
	fmt.Println()

	if !autoApprove && !confirm("Apply this plan?") {
		fmt.Println("Apply cancelled")
		return nil
	}

	prov, err := selectedProvider()
	if err != nil {
		return err
	}
	backend, err := newBackend()
	if err != nil {
		return err
	}
	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	ctx := cmd.Context()
	prior, err := backend.Read(ctx)
	if err != nil {
		return err
	}

	runner := engine.NewRunner(prov, engine.Options{
		Parallelism: parallelism,
		Timeout:     opTimeout,
		Callback:    renderEvent,
	})
	result, runErr := runner.Run(ctx, p)
	if result == nil {
		return runErr
	}

	snap := &ir.Snapshot{
		Serial:    prior.Serial,
		Lineage:   prior.Lineage,
		Status:    result.Status,
		Resources: result.States,
		Record:    result.Record,
	}
	if err := backend.Write(ctx, snap); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to persist state: %w", err))
	}

	fmt.Println()
	switch result.Status {
	case ir.RunCompleted:
		var created, adopted int
		for _, rs := range result.States {
			if rs.Adopted {
				adopted++
			} else {
				created++
			}
		}
		fmt.Printf("Apply complete: %d created, %d adopted.\n", created, adopted)
	case ir.RunAborted:
		fmt.Println("Apply failed; everything this run created was rolled back.")
	case ir.RunAbortedIncomplete:
		fmt.Println("Apply failed and rollback could not remove every resource.")
		fmt.Println("Still present:")
		for _, name := range result.Leftover {
			fmt.Printf("  - %s\n", name)
		}
	}
	return runErr
}
