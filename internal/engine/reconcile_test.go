package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-io/stratus/internal/ir"
	"github.com/stratus-io/stratus/internal/provider"
	"github.com/stratus-io/stratus/providers/memory"
)

// threeTier is a small plan shaped like the topologies the engine exists
// for: a network, a subnet inside it, and a security group inside it.
func threeTier() *ir.Plan {
	return planOf(
		&ir.Resource{Name: "v1", Kind: ir.KindNetwork, Params: map[string]any{"cidr_block": "10.0.0.0/16"}},
		&ir.Resource{Name: "s1", Kind: ir.KindSubnet, Params: map[string]any{
			"vpc":        "ref(v1)",
			"cidr_block": "10.0.1.0/24",
		}},
		&ir.Resource{Name: "sg1", Kind: ir.KindSecurityGroup, Params: map[string]any{
			"vpc": "ref(v1)",
		}, DependsOn: []string{"s1"}},
	)
}

func newTestRunner(prov *memory.Provider, parallelism int) *Runner {
	return NewRunner(prov, Options{Parallelism: parallelism})
}

func TestRun_CreatesInDependencyOrder(t *testing.T) {
	prov := memory.New()
	runner := newTestRunner(prov, 1)

	result, err := runner.Run(context.Background(), threeTier())
	require.NoError(t, err)

	assert.Equal(t, ir.RunCompleted, result.Status)
	assert.Equal(t, []string{"v1", "s1", "sg1"}, prov.CreateCalls())
	assert.Equal(t, 3, prov.Len())

	for _, rs := range result.States {
		assert.Equal(t, ir.StatusCreated, rs.Status)
		assert.False(t, rs.Adopted)
		assert.NotEmpty(t, rs.ID)
	}
}

func TestRun_SubstitutesRefsWithResolvedIDs(t *testing.T) {
	prov := memory.New()
	runner := newTestRunner(prov, 1)

	result, err := runner.Run(context.Background(), threeTier())
	require.NoError(t, err)

	byName := make(map[string]*ir.ResourceState)
	for _, rs := range result.States {
		byName[rs.Name] = rs
	}

	// s1's vpc parameter carried ref(v1) in the plan; the tracked state
	// holds v1's actual identifier.
	assert.Equal(t, byName["v1"].ID, byName["s1"].Params["vpc"])
	assert.Equal(t, byName["v1"].ID, byName["sg1"].Params["vpc"])
}

func TestRun_SecondRunAdoptsEverything(t *testing.T) {
	prov := memory.New()

	first, err := newTestRunner(prov, 1).Run(context.Background(), threeTier())
	require.NoError(t, err)
	createdAfterFirst := prov.CreateCalls()

	second, err := newTestRunner(prov, 1).Run(context.Background(), threeTier())
	require.NoError(t, err)

	// Re-running the same plan creates nothing new.
	assert.Equal(t, createdAfterFirst, prov.CreateCalls())
	assert.Equal(t, ir.RunCompleted, second.Status)
	for _, rs := range second.States {
		assert.True(t, rs.Adopted, rs.Name)
	}

	firstIDs := make(map[string]string)
	for _, rs := range first.States {
		firstIDs[rs.Name] = rs.ID
	}
	for _, rs := range second.States {
		assert.Equal(t, firstIDs[rs.Name], rs.ID, rs.Name)
	}
}

func TestRun_FailureRollsBackInReverseOrder(t *testing.T) {
	prov := memory.New()
	prov.FailCreate = map[string]error{"sg1": errors.New("quota exceeded")}
	runner := newTestRunner(prov, 1)

	result, err := runner.Run(context.Background(), threeTier())
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "sg1", perr.Name)
	assert.Equal(t, "create", perr.Op)

	assert.Equal(t, ir.RunAborted, result.Status)
	assert.Empty(t, result.Leftover)
	// s1 came after v1, so it goes first on the way down.
	assert.Equal(t, []string{"s1", "v1"}, prov.DeleteCalls())
	assert.Equal(t, 0, prov.Len())

	byName := make(map[string]*ir.ResourceState)
	for _, rs := range result.States {
		byName[rs.Name] = rs
	}
	assert.Equal(t, ir.StatusRolledBack, byName["v1"].Status)
	assert.Equal(t, ir.StatusRolledBack, byName["s1"].Status)
	assert.Equal(t, ir.StatusFailed, byName["sg1"].Status)
	assert.NotEmpty(t, byName["sg1"].LastError)
}

func TestRun_RollbackNeverDeletesAdopted(t *testing.T) {
	prov := memory.New()

	// v1 exists before the run.
	_, err := prov.Create(context.Background(), req(ir.KindNetwork, "v1"))
	require.NoError(t, err)

	prov.FailCreate = map[string]error{"sg1": errors.New("boom")}
	result, runErr := newTestRunner(prov, 1).Run(context.Background(), threeTier())
	require.Error(t, runErr)

	assert.Equal(t, ir.RunAborted, result.Status)
	// Only the subnet this run created is deleted; the pre-existing
	// network survives the rollback.
	assert.Equal(t, []string{"s1"}, prov.DeleteCalls())
	assert.True(t, prov.Exists(string(ir.KindNetwork), "v1"))
}

func TestRun_RollbackContinuesPastDeleteFailure(t *testing.T) {
	prov := memory.New()
	prov.FailCreate = map[string]error{"sg1": errors.New("boom")}
	prov.FailDelete = map[string]error{"s1": errors.New("dependency violation")}

	result, err := newTestRunner(prov, 1).Run(context.Background(), threeTier())
	require.Error(t, err)

	var rbErr *RollbackIncompleteError
	require.ErrorAs(t, err, &rbErr)
	assert.Equal(t, []string{"s1"}, rbErr.Leftover)

	assert.Equal(t, ir.RunAbortedIncomplete, result.Status)
	assert.Equal(t, []string{"s1"}, result.Leftover)
	// The sweep does not stop at s1: v1 is still attempted and deleted.
	assert.Equal(t, []string{"s1", "v1"}, prov.DeleteCalls())

	byName := make(map[string]*ir.ResourceState)
	for _, rs := range result.States {
		byName[rs.Name] = rs
	}
	// The leftover still exists, so its state says Created.
	assert.Equal(t, ir.StatusCreated, byName["s1"].Status)
	assert.NotEmpty(t, byName["s1"].LastError)
	assert.Equal(t, ir.StatusRolledBack, byName["v1"].Status)
}

func TestRun_CancellationRollsBackCompletedWork(t *testing.T) {
	prov := memory.New()
	ctx, cancel := context.WithCancel(context.Background())

	runner := NewRunner(prov, Options{
		Callback: func(ev Event) {
			// Cancel once the subnet is done; sg1 must not start.
			if ev.Name == "s1" && ev.Status == "created" {
				cancel()
			}
		},
	})

	result, err := runner.Run(ctx, threeTier())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, ir.RunAborted, result.Status)
	assert.NotContains(t, prov.CreateCalls(), "sg1")
	// Cancellation does not abandon teardown: both created resources go.
	assert.Equal(t, []string{"s1", "v1"}, prov.DeleteCalls())
	assert.Equal(t, 0, prov.Len())
}

func TestRun_ParallelPreservesDependencyOrder(t *testing.T) {
	// x and y are independent; z needs both. With a pool of two the engine
	// may reconcile x and y in either order, but z always sees their IDs.
	p := planOf(
		&ir.Resource{Name: "x", Kind: ir.KindNetwork, Params: map[string]any{"cidr_block": "10.0.0.0/16"}},
		&ir.Resource{Name: "y", Kind: ir.KindNetwork, Params: map[string]any{"cidr_block": "10.1.0.0/16"}},
		&ir.Resource{Name: "z", Kind: ir.KindSubnet, Params: map[string]any{
			"vpc":        "ref(x)",
			"peer":       "ref(y)",
			"cidr_block": "10.0.1.0/24",
		}},
	)

	for i := 0; i < 20; i++ {
		prov := memory.New()
		result, err := newTestRunner(prov, 2).Run(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, ir.RunCompleted, result.Status)

		byName := make(map[string]*ir.ResourceState)
		for _, rs := range result.States {
			byName[rs.Name] = rs
		}
		assert.Equal(t, byName["x"].ID, byName["z"].Params["vpc"])
		assert.Equal(t, byName["y"].ID, byName["z"].Params["peer"])

		creates := prov.CreateCalls()
		require.Len(t, creates, 3)
		assert.Equal(t, "z", creates[2])
	}
}

func TestRun_ParallelFailureSkipsDependents(t *testing.T) {
	p := planOf(
		&ir.Resource{Name: "x", Kind: ir.KindNetwork, Params: map[string]any{"cidr_block": "10.0.0.0/16"}},
		&ir.Resource{Name: "y", Kind: ir.KindNetwork, Params: map[string]any{"cidr_block": "10.1.0.0/16"}},
		&ir.Resource{Name: "z", Kind: ir.KindSubnet, Params: map[string]any{"vpc": "ref(x)", "cidr_block": "10.0.1.0/24"}},
	)

	prov := memory.New()
	prov.FailCreate = map[string]error{"x": errors.New("boom")}

	result, err := newTestRunner(prov, 2).Run(context.Background(), p)
	require.Error(t, err)

	assert.NotContains(t, prov.CreateCalls(), "z")
	assert.Contains(t, []ir.RunStatus{ir.RunAborted}, result.Status)
	assert.Equal(t, 0, prov.Len())
}

func TestDestroy_ReverseOrderAndAdoptedSkipped(t *testing.T) {
	prov := memory.New()

	// v1 pre-exists; the run adopts it and creates the rest.
	_, err := prov.Create(context.Background(), req(ir.KindNetwork, "v1"))
	require.NoError(t, err)

	runner := newTestRunner(prov, 1)
	result, err := runner.Run(context.Background(), threeTier())
	require.NoError(t, err)

	snap := &ir.Snapshot{Resources: result.States, Record: result.Record}
	destroyResult, err := runner.Destroy(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, ir.RunCompleted, destroyResult.Status)
	assert.Equal(t, []string{"sg1", "s1"}, prov.DeleteCalls())
	assert.True(t, prov.Exists(string(ir.KindNetwork), "v1"), "adopted network must survive destroy")
}

func TestDestroy_ReportsLeftovers(t *testing.T) {
	prov := memory.New()
	runner := newTestRunner(prov, 1)

	result, err := runner.Run(context.Background(), threeTier())
	require.NoError(t, err)

	prov.FailDelete = map[string]error{"s1": errors.New("still in use")}
	snap := &ir.Snapshot{Resources: result.States, Record: result.Record}

	destroyResult, err := runner.Destroy(context.Background(), snap)
	require.Error(t, err)

	var rbErr *RollbackIncompleteError
	require.ErrorAs(t, err, &rbErr)
	assert.Equal(t, []string{"s1"}, destroyResult.Leftover)
	assert.Equal(t, ir.RunAbortedIncomplete, destroyResult.Status)
	// sg1 and v1 are still gone.
	assert.Equal(t, []string{"sg1", "s1", "v1"}, prov.DeleteCalls())
}

func TestRun_RecordTracksOutcomes(t *testing.T) {
	prov := memory.New()
	_, err := prov.Create(context.Background(), req(ir.KindNetwork, "v1"))
	require.NoError(t, err)

	result, err := newTestRunner(prov, 1).Run(context.Background(), threeTier())
	require.NoError(t, err)

	outcomes := make(map[string]ir.Outcome)
	for _, entry := range result.Record {
		outcomes[entry.Name] = entry.Outcome
	}
	assert.Equal(t, ir.OutcomeAdopted, outcomes["v1"])
	assert.Equal(t, ir.OutcomeCreated, outcomes["s1"])
	assert.Equal(t, ir.OutcomeCreated, outcomes["sg1"])
}

func req(kind ir.Kind, name string) *provider.Request {
	return &provider.Request{Kind: kind, Name: name}
}
