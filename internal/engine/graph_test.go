package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-io/stratus/internal/ir"
)

func planOf(resources ...*ir.Resource) *ir.Plan {
	return &ir.Plan{Resources: resources}
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestBuildGraph_NoDependencies(t *testing.T) {
	p := planOf(
		&ir.Resource{Name: "a", Kind: ir.KindNetwork},
		&ir.Resource{Name: "b", Kind: ir.KindNetwork},
		&ir.Resource{Name: "c", Kind: ir.KindNetwork},
	)

	graph, err := BuildGraph(p)
	require.NoError(t, err)

	// With no edges the creation order is the authoring order.
	assert.Equal(t, []string{"a", "b", "c"}, graph.CreationOrder())
}

func TestBuildGraph_ExplicitDependsOn(t *testing.T) {
	p := planOf(
		&ir.Resource{Name: "a", Kind: ir.KindSubnet, DependsOn: []string{"b"}},
		&ir.Resource{Name: "b", Kind: ir.KindNetwork},
		&ir.Resource{Name: "c", Kind: ir.KindGateway, DependsOn: []string{"a"}},
	)

	graph, err := BuildGraph(p)
	require.NoError(t, err)

	order := graph.CreationOrder()
	require.Len(t, order, 3)

	assert.Less(t, indexOf(order, "b"), indexOf(order, "a"), "b should come before a")
	assert.Less(t, indexOf(order, "a"), indexOf(order, "c"), "a should come before c")
}

func TestBuildGraph_ImplicitRefEdge(t *testing.T) {
	p := planOf(
		&ir.Resource{
			Name: "web-subnet",
			Kind: ir.KindSubnet,
			Params: map[string]any{
				"vpc":        "ref(main-vpc)",
				"cidr_block": "10.0.1.0/24",
			},
		},
		&ir.Resource{Name: "main-vpc", Kind: ir.KindNetwork},
	)

	graph, err := BuildGraph(p)
	require.NoError(t, err)

	order := graph.CreationOrder()
	require.Len(t, order, 2)
	assert.Less(t, indexOf(order, "main-vpc"), indexOf(order, "web-subnet"))
	assert.Equal(t, []string{"main-vpc"}, graph.Dependencies("web-subnet"))
}

func TestBuildGraph_NestedRefEdges(t *testing.T) {
	p := planOf(
		&ir.Resource{
			Name: "public-rt",
			Kind: ir.KindRouteTable,
			Params: map[string]any{
				"vpc": "ref(main-vpc)",
				"routes": []any{
					map[string]any{
						"destination": "0.0.0.0/0",
						"gateway":     "ref(igw)",
					},
				},
			},
		},
		&ir.Resource{Name: "main-vpc", Kind: ir.KindNetwork},
		&ir.Resource{Name: "igw", Kind: ir.KindGateway},
	)

	graph, err := BuildGraph(p)
	require.NoError(t, err)

	order := graph.CreationOrder()
	assert.Less(t, indexOf(order, "main-vpc"), indexOf(order, "public-rt"))
	assert.Less(t, indexOf(order, "igw"), indexOf(order, "public-rt"))
}

func TestBuildGraph_TiesFollowAuthoringOrder(t *testing.T) {
	p := planOf(
		&ir.Resource{Name: "root", Kind: ir.KindNetwork},
		&ir.Resource{Name: "z", Kind: ir.KindSubnet, DependsOn: []string{"root"}},
		&ir.Resource{Name: "a", Kind: ir.KindSubnet, DependsOn: []string{"root"}},
		&ir.Resource{Name: "m", Kind: ir.KindSubnet, DependsOn: []string{"root"}},
	)

	graph, err := BuildGraph(p)
	require.NoError(t, err)

	// All three subnets become ready at once; the tie is broken by where
	// they appear in the plan, not alphabetically or by map order.
	assert.Equal(t, []string{"root", "z", "a", "m"}, graph.CreationOrder())
}

func TestBuildGraph_Deterministic(t *testing.T) {
	p := planOf(
		&ir.Resource{Name: "vpc", Kind: ir.KindNetwork},
		&ir.Resource{Name: "s1", Kind: ir.KindSubnet, Params: map[string]any{"vpc": "ref(vpc)"}},
		&ir.Resource{Name: "s2", Kind: ir.KindSubnet, Params: map[string]any{"vpc": "ref(vpc)"}},
		&ir.Resource{Name: "gw", Kind: ir.KindGateway, DependsOn: []string{"vpc"}},
		&ir.Resource{Name: "rt", Kind: ir.KindRouteTable, Params: map[string]any{"vpc": "ref(vpc)"}, DependsOn: []string{"gw"}},
	)

	first, err := BuildGraph(p)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		again, err := BuildGraph(p)
		require.NoError(t, err)
		assert.Equal(t, first.CreationOrder(), again.CreationOrder())
	}
}

func TestBuildGraph_UnknownDependency(t *testing.T) {
	p := planOf(
		&ir.Resource{Name: "a", Kind: ir.KindSubnet, DependsOn: []string{"missing"}},
	)

	_, err := BuildGraph(p)
	require.Error(t, err)

	var unknown *UnknownDependencyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "a", unknown.Resource)
	assert.Equal(t, "missing", unknown.Dependency)
}

func TestBuildGraph_UnknownRefTarget(t *testing.T) {
	p := planOf(
		&ir.Resource{Name: "a", Kind: ir.KindSubnet, Params: map[string]any{"vpc": "ref(ghost)"}},
	)

	_, err := BuildGraph(p)
	var unknown *UnknownDependencyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Dependency)
}

func TestBuildGraph_CycleDetection(t *testing.T) {
	p := planOf(
		&ir.Resource{Name: "a", Kind: ir.KindNetwork, DependsOn: []string{"b"}},
		&ir.Resource{Name: "b", Kind: ir.KindNetwork, DependsOn: []string{"a"}},
	)

	_, err := BuildGraph(p)
	require.Error(t, err)

	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b"}, cycle.Members)
}

func TestBuildGraph_CycleMembersExcludeDownstream(t *testing.T) {
	// d depends on the cycle but is not part of it, so it must not be
	// reported as a member.
	p := planOf(
		&ir.Resource{Name: "a", Kind: ir.KindNetwork, DependsOn: []string{"c"}},
		&ir.Resource{Name: "b", Kind: ir.KindNetwork, DependsOn: []string{"a"}},
		&ir.Resource{Name: "c", Kind: ir.KindNetwork, DependsOn: []string{"b"}},
		&ir.Resource{Name: "d", Kind: ir.KindSubnet, DependsOn: []string{"c"}},
	)

	_, err := BuildGraph(p)
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "c"}, cycle.Members)
}

func TestBuildGraph_DuplicateEdgesCollapse(t *testing.T) {
	p := planOf(
		&ir.Resource{Name: "vpc", Kind: ir.KindNetwork},
		&ir.Resource{
			Name:      "subnet",
			Kind:      ir.KindSubnet,
			Params:    map[string]any{"vpc": "ref(vpc)"},
			DependsOn: []string{"vpc"},
		},
	)

	graph, err := BuildGraph(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"vpc"}, graph.Dependencies("subnet"))
	assert.Equal(t, []string{"subnet"}, graph.Dependents("vpc"))
}
