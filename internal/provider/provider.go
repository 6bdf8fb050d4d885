package provider

import (
	"context"

	"github.com/stratus-io/stratus/internal/ir"
)

// Request carries everything a provider needs for one call. Kind and Name
// form the natural key a provider maps onto its own tagging or naming
// convention. Params are the resource's parameters after reference
// substitution. ID and Attrs are populated for Delete from the tracked
// state of the resource being torn down.
type Request struct {
	Kind   ir.Kind
	Name   string
	ID     string
	Params map[string]any
	Attrs  map[string]string
}

// Result is the outcome of a successful Find or Create.
type Result struct {
	// ID is the provider-assigned identifier.
	ID string

	// Attrs carries additional provider attributes dependents or operators
	// may need, such as a load balancer DNS name.
	Attrs map[string]string
}

// Provider is the reconciler's only external collaborator. Implementations
// translate the engine's find-or-create-or-delete contract into calls
// against a resource management service.
type Provider interface {
	// Find looks up an existing resource by natural key. It returns
	// (nil, nil) when no matching resource exists.
	Find(ctx context.Context, req *Request) (*Result, error)

	// Create provisions a new resource and returns its identifier.
	Create(ctx context.Context, req *Request) (*Result, error)

	// Delete tears down the resource identified by req.ID.
	Delete(ctx context.Context, req *Request) error
}
