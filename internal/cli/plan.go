package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratus-io/stratus/internal/engine"
	"github.com/stratus-io/stratus/internal/plan"
	"github.com/stratus-io/stratus/internal/provider"
)

var planRefresh bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview what apply would do, without changing anything",
	Long: `Plan validates the plan file, prints the deterministic creation
order and, with --refresh, asks the provider which resources already
exist so the preview distinguishes adoptions from creations.`,
	RunE: runPlan,
}

func init() {
	addPlanFlags(planCmd)
	addRunFlags(planCmd)
	planCmd.Flags().BoolVar(&planRefresh, "refresh", false, "Query the provider for existing resources")
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	var prov provider.Provider
	if planRefresh {
		if prov, err = selectedProvider(); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	var creates, adoptions int

	fmt.Printf("Plan: %d resource(s), reconciled in this order:\n", len(p.Resources))
	for i, name := range graph.CreationOrder() {
		res := p.Resource(name)
		action := "create or adopt"
		if planRefresh {
			// Refs are unresolved at plan time; a lookup that needs a
			// parent identifier simply reports the resource as absent.
			found, findErr := prov.Find(ctx, &provider.Request{
				Kind: res.Kind, Name: res.Name, Params: res.Params,
			})
			switch {
			case findErr != nil:
				action = fmt.Sprintf("lookup failed: %v", findErr)
			case found != nil:
				action = fmt.Sprintf("adopt (%s)", found.ID)
				adoptions++
			default:
				action = "create"
				creates++
			}
		}
		fmt.Printf("  %2d. %s (%s): %s\n", i+1, name, res.Kind, action)
	}

	if planRefresh {
		fmt.Printf("\nApply would create %d and adopt %d resource(s).\n", creates, adoptions)
	} else {
		fmt.Println("\nRun with --refresh to check which resources already exist.")
	}
	return nil
}
