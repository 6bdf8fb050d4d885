package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the persisted state snapshot",
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked resources",
	RunE:  runStateList,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one tracked resource in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

func init() {
	addRunFlags(stateListCmd)
	addRunFlags(stateShowCmd)
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
}

func runStateList(cmd *cobra.Command, args []string) error {
	backend, err := newBackend()
	if err != nil {
		return err
	}
	snap, err := backend.Read(cmd.Context())
	if err != nil {
		return err
	}

	if len(snap.Resources) == 0 {
		fmt.Println("State is empty.")
		return nil
	}

	fmt.Printf("State serial %d (run status: %s):\n", snap.Serial, snap.Status)
	for _, rs := range snap.Resources {
		marker := ""
		if rs.Adopted {
			marker = " (adopted)"
		}
		fmt.Printf("  %-30s %-20s %-12s %s%s\n", rs.Name, rs.Kind, rs.Status, rs.ID, marker)
	}
	return nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	backend, err := newBackend()
	if err != nil {
		return err
	}
	snap, err := backend.Read(cmd.Context())
	if err != nil {
		return err
	}

	for _, rs := range snap.Resources {
		if rs.Name == args[0] {
			out, err := yaml.Marshal(rs)
			if err != nil {
				return fmt.Errorf("failed to serialize resource state: %w", err)
			}
			fmt.Print(string(out))
			return nil
		}
	}
	return fmt.Errorf("no resource named %s in state", args[0])
}
