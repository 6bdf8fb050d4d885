package engine

import (
	"sort"

	"github.com/stratus-io/stratus/internal/ir"
)

// Graph is the dependency DAG of a plan, keyed by logical name.
type Graph struct {
	nodes map[string]*graphNode
	order []string // deterministic topological order (creation order)
}

type graphNode struct {
	name       string
	deps       []string // names this node depends on
	dependents []string // names that depend on this node
}

// BuildGraph assembles the dependency graph of a plan and computes its
// topological order. Edges come from explicit depends_on entries and from
// implicit ref(name) occurrences in parameters.
//
// Ties in the topological order are broken by authoring order in the plan,
// so the same plan always yields the same execution order.
func BuildGraph(p *ir.Plan) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*graphNode, len(p.Resources))}

	for _, res := range p.Resources {
		g.nodes[res.Name] = &graphNode{name: res.Name}
	}

	for _, res := range p.Resources {
		node := g.nodes[res.Name]
		seen := make(map[string]bool)

		for _, dep := range res.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, &UnknownDependencyError{Resource: res.Name, Dependency: dep}
			}
			if !seen[dep] {
				seen[dep] = true
				node.deps = append(node.deps, dep)
			}
		}

		for _, ref := range ExtractRefs(res.Params) {
			if _, ok := g.nodes[ref]; !ok {
				return nil, &UnknownDependencyError{Resource: res.Name, Dependency: ref}
			}
			if !seen[ref] {
				seen[ref] = true
				node.deps = append(node.deps, ref)
			}
		}
	}

	for _, node := range g.nodes {
		for _, dep := range node.deps {
			g.nodes[dep].dependents = append(g.nodes[dep].dependents, node.name)
		}
	}

	order, err := g.topoSort(p)
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// CreationOrder returns logical names in dependency-respecting order.
func (g *Graph) CreationOrder() []string {
	return g.order
}

// Dependencies returns the direct dependencies of name.
func (g *Graph) Dependencies(name string) []string {
	if node, ok := g.nodes[name]; ok {
		return node.deps
	}
	return nil
}

// Dependents returns the names that directly depend on name.
func (g *Graph) Dependents(name string) []string {
	if node, ok := g.nodes[name]; ok {
		return node.dependents
	}
	return nil
}

// topoSort runs Kahn's algorithm, always emitting the ready node that
// appears earliest in the plan. The scan is quadratic but plans are small
// and the determinism is what the tests rely on.
func (g *Graph) topoSort(p *ir.Plan) ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for name, node := range g.nodes {
		inDegree[name] = len(node.deps)
	}

	emitted := make(map[string]bool, len(g.nodes))
	sorted := make([]string, 0, len(g.nodes))

	for len(sorted) < len(g.nodes) {
		next := ""
		for _, res := range p.Resources {
			if !emitted[res.Name] && inDegree[res.Name] == 0 {
				next = res.Name
				break
			}
		}
		if next == "" {
			return nil, &CycleError{Members: g.cycleMembers(p, emitted)}
		}

		emitted[next] = true
		sorted = append(sorted, next)
		for _, dependent := range g.nodes[next].dependents {
			inDegree[dependent]--
		}
	}

	return sorted, nil
}

// cycleMembers isolates the actual cycle participants from the unemitted
// remainder by repeatedly peeling nodes that nothing unemitted depends on.
// What survives the peeling is on a cycle.
func (g *Graph) cycleMembers(p *ir.Plan, emitted map[string]bool) []string {
	remaining := make(map[string]bool)
	for name := range g.nodes {
		if !emitted[name] {
			remaining[name] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for name := range remaining {
			hasDependent := false
			for _, dep := range g.nodes[name].dependents {
				if remaining[dep] {
					hasDependent = true
					break
				}
			}
			if !hasDependent {
				delete(remaining, name)
				changed = true
			}
		}
	}

	members := make([]string, 0, len(remaining))
	for name := range remaining {
		members = append(members, name)
	}
	sort.Slice(members, func(i, j int) bool {
		return p.Index(members[i]) < p.Index(members[j])
	})
	return members
}
