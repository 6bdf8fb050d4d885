package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stratus-io/stratus/internal/ir"
)

// Violation is a single plan validation failure, attributed to a resource
// when one is responsible.
type Violation struct {
	Name string
	Msg  string
}

func (v Violation) String() string {
	if v.Name == "" {
		return v.Msg
	}
	return fmt.Sprintf("%s: %s", v.Name, v.Msg)
}

// InvalidPlanError aggregates every validation failure found in a plan.
// A plan that produces one of these never reaches the provider.
type InvalidPlanError struct {
	Violations []Violation
}

func (e *InvalidPlanError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return fmt.Sprintf("invalid plan: %d violation(s): %s", len(e.Violations), strings.Join(msgs, "; "))
}

// CycleError reports a dependency cycle by its member names.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among: %s", strings.Join(e.Members, ", "))
}

// UnknownDependencyError reports a dependency on a name absent from the plan.
type UnknownDependencyError struct {
	Resource   string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("%s depends on unknown resource %q", e.Resource, e.Dependency)
}

// ProviderError is a failed provider call, always attributed to the logical
// name it was issued for.
type ProviderError struct {
	Name string
	Kind ir.Kind
	Op   string // "find", "create" or "delete"
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed for %s (%s): %v", e.Op, e.Name, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// RollbackIncompleteError means one or more teardown calls failed during a
// rollback sweep. Leftover lists every resource that still exists and needs
// manual intervention.
type RollbackIncompleteError struct {
	Leftover []string
	Errs     []error
}

func (e *RollbackIncompleteError) Error() string {
	return fmt.Sprintf("rollback incomplete: %d resource(s) could not be torn down and require manual cleanup: %s",
		len(e.Leftover), strings.Join(e.Leftover, ", "))
}

func (e *RollbackIncompleteError) Unwrap() error {
	return errors.Join(e.Errs...)
}
