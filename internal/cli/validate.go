package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratus-io/stratus/internal/plan"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a plan file without touching any provider",
	Long: `Validate parses the plan and reports every violation it finds:
unknown kinds, missing required parameters, duplicate names, dangling
or mistyped dependencies, and dependency cycles.`,
	RunE: runValidate,
}

func init() {
	addPlanFlags(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(planFile)
	if err != nil {
		if reportInvalidPlan(err) {
			return fmt.Errorf("plan %s failed validation", planFile)
		}
		return err
	}
	fmt.Printf("Plan is valid: %d resource(s).\n", len(p.Resources))
	return nil
}
