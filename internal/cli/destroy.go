package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratus-io/stratus/internal/engine"
	"github.com/stratus-io/stratus/internal/ir"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Tear down everything the persisted state tracks",
	Long: `Destroy deletes tracked resources in reverse creation order.
Resources that were adopted rather than created are left alone. The
sweep is best-effort: a failed deletion is reported and the sweep
continues with the next older resource.`,
	RunE: runDestroy,
}

func init() {
	addRunFlags(destroyCmd)
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	backend, err := newBackend()
	if err != nil {
		return err
	}
	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	ctx := cmd.Context()
	snap, err := backend.Read(ctx)
	if err != nil {
		return err
	}

	var targets int
	for _, rs := range snap.Resources {
		if rs.Status == ir.StatusCreated && !rs.Adopted && rs.ID != "" {
			targets++
		}
	}
	if targets == 0 {
		fmt.Println("Nothing to destroy: the state tracks no created resources.")
		return nil
	}

	fmt.Printf("Destroy will delete %d resource(s):\n", targets)
	for _, rs := range snap.Resources {
		if rs.Status == ir.StatusCreated && !rs.Adopted && rs.ID != "" {
			fmt.Printf("  - %s (%s, %s)\n", rs.Name, rs.Kind, rs.ID)
		}
	}
	fmt.Println()

	if !destroyAutoApprove && !confirm("Destroy these resources?") {
		fmt.Println("Destroy cancelled")
		return nil
	}

	prov, err := selectedProvider()
	if err != nil {
		return err
	}

	runner := engine.NewRunner(prov, engine.Options{
		Timeout:  opTimeout,
		Callback: renderEvent,
	})
	result, destroyErr := runner.Destroy(ctx, snap)

	snap.Status = result.Status
	snap.Resources = result.States
	snap.Record = result.Record
	if err := backend.Write(ctx, snap); err != nil {
		return errors.Join(destroyErr, fmt.Errorf("failed to persist state: %w", err))
	}

	fmt.Println()
	if len(result.Leftover) > 0 {
		fmt.Println("Destroy could not remove every resource. Still present:")
		for _, name := range result.Leftover {
			fmt.Printf("  - %s\n", name)
		}
	} else {
		fmt.Println("Destroy complete.")
	}
	return destroyErr
}
