// Package memory implements an in-memory provider. It backs the engine's
// test suite and the "memory" provider name, which is handy for exercising
// plans without touching a cloud account.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stratus-io/stratus/internal/provider"
)

type resource struct {
	id     string
	kind   string
	name   string
	params map[string]any
}

// Provider stores resources in process memory, keyed by kind+name. Failures
// can be injected per logical name to drive rollback paths in tests.
type Provider struct {
	mu        sync.Mutex
	resources map[string]*resource // natural key -> resource
	byID      map[string]string    // id -> natural key
	nextID    int

	// FailCreate and FailDelete inject an error for the named resource.
	FailCreate map[string]error
	FailDelete map[string]error

	findCalls   []string
	createCalls []string
	deleteCalls []string
}

func New() *Provider {
	return &Provider{
		resources: make(map[string]*resource),
		byID:      make(map[string]string),
	}
}

func key(req *provider.Request) string {
	return string(req.Kind) + "/" + req.Name
}

func (p *Provider) Find(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.findCalls = append(p.findCalls, req.Name)
	res, ok := p.resources[key(req)]
	if !ok {
		return nil, nil
	}
	return &provider.Result{ID: res.id}, nil
}

func (p *Provider) Create(ctx context.Context, req *provider.Request) (*provider.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.createCalls = append(p.createCalls, req.Name)
	if err := p.FailCreate[req.Name]; err != nil {
		return nil, err
	}
	if _, exists := p.resources[key(req)]; exists {
		return nil, fmt.Errorf("resource %s already exists", key(req))
	}

	p.nextID++
	id := fmt.Sprintf("mem-%s-%d", strings.ToLower(string(req.Kind)), p.nextID)
	p.resources[key(req)] = &resource{
		id:     id,
		kind:   string(req.Kind),
		name:   req.Name,
		params: req.Params,
	}
	p.byID[id] = key(req)
	return &provider.Result{ID: id}, nil
}

func (p *Provider) Delete(ctx context.Context, req *provider.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deleteCalls = append(p.deleteCalls, req.Name)
	if err := p.FailDelete[req.Name]; err != nil {
		return err
	}

	k, ok := p.byID[req.ID]
	if !ok {
		return fmt.Errorf("no resource with id %s", req.ID)
	}
	delete(p.resources, k)
	delete(p.byID, req.ID)
	return nil
}

// Exists reports whether a resource with the given kind and name is held.
func (p *Provider) Exists(kind, name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.resources[kind+"/"+name]
	return ok
}

// Len returns how many resources are currently held.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}

// FindCalls returns the logical names passed to Find, in call order.
func (p *Provider) FindCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.findCalls...)
}

// CreateCalls returns the logical names passed to Create, in call order.
func (p *Provider) CreateCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.createCalls...)
}

// DeleteCalls returns the logical names passed to Delete, in call order.
func (p *Provider) DeleteCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleteCalls...)
}
