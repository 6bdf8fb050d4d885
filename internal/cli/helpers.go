package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratus-io/stratus/internal/engine"
	"github.com/stratus-io/stratus/internal/provider"
	"github.com/stratus-io/stratus/internal/store"
	awsprovider "github.com/stratus-io/stratus/providers/aws"
	memoryprovider "github.com/stratus-io/stratus/providers/memory"
)

var (
	planFile      string
	statePath     string
	backendType   string
	backendConfig map[string]string
	providerName  string
	awsRegion     string
	awsProfile    string
	parallelism   int
	opTimeout     time.Duration
)

// addPlanFlags registers the flags for commands that read a plan file.
func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&planFile, "file", "f", "stratus.yaml", "Path to the plan file")
}

// addRunFlags registers the flags for commands that touch a provider or
// persist state.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&statePath, "state", ".stratus/state.yaml", "Path to the local state snapshot")
	cmd.Flags().StringVar(&backendType, "backend", "local", "State backend (local, s3)")
	cmd.Flags().StringToStringVar(&backendConfig, "backend-config", nil, "Backend configuration (format: key=value)")
	cmd.Flags().StringVar(&providerName, "provider", "aws", "Provider to reconcile against (aws, memory)")
	cmd.Flags().StringVar(&awsRegion, "region", "", "AWS region (defaults to the SDK's resolution)")
	cmd.Flags().StringVar(&awsProfile, "profile", "", "AWS shared config profile")
	cmd.Flags().IntVar(&parallelism, "parallelism", 1, "How many independent resources to reconcile at once")
	cmd.Flags().DurationVar(&opTimeout, "timeout", engine.DefaultTimeout, "Per-resource provider call timeout")
}

func newBackend() (store.Backend, error) {
	return store.NewBackend(&store.BackendConfig{
		Type:   backendType,
		Path:   statePath,
		Config: backendConfig,
	})
}

func newRegistry() *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register("aws", awsprovider.New(awsRegion, awsProfile))
	registry.Register("memory", memoryprovider.New())
	return registry
}

func selectedProvider() (provider.Provider, error) {
	return newRegistry().Get(providerName)
}

// reportInvalidPlan prints every violation of an InvalidPlanError, one per
// line. Returns false when err is some other failure.
func reportInvalidPlan(err error) bool {
	var invalid *engine.InvalidPlanError
	if !errors.As(err, &invalid) {
		return false
	}
	fmt.Printf("Plan is invalid (%d violation(s)):\n", len(invalid.Violations))
	for _, v := range invalid.Violations {
		fmt.Printf("  - %s\n", v)
	}
	return true
}

// renderEvent prints run progress, one line per state change.
func renderEvent(event engine.Event) {
	switch event.Status {
	case "started":
		fmt.Printf("%s: %s...\n", event.Name, event.Op)
	case "adopted":
		fmt.Printf("%s: adopted existing %s (%s)\n", event.Name, event.Kind, event.Duration.Round(time.Millisecond))
	case "created":
		fmt.Printf("%s: created (%s)\n", event.Name, event.Duration.Round(time.Millisecond))
	case "deleted":
		fmt.Printf("%s: deleted (%s)\n", event.Name, event.Duration.Round(time.Millisecond))
	case "failed":
		fmt.Printf("%s: %s FAILED: %v\n", event.Name, event.Op, event.Error)
	}
}

// confirm asks for interactive approval.
func confirm(prompt string) bool {
	fmt.Printf("%s (y/n): ", prompt)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "yes"
}
