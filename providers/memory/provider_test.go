package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-io/stratus/internal/ir"
	"github.com/stratus-io/stratus/internal/provider"
)

func TestProvider_FindCreateDelete(t *testing.T) {
	p := New()
	ctx := context.Background()
	req := &provider.Request{Kind: ir.KindNetwork, Name: "vpc"}

	found, err := p.Find(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, found, "absent resource reports (nil, nil)")

	created, err := p.Create(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, p.Exists(string(ir.KindNetwork), "vpc"))

	found, err = p.Find(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	require.NoError(t, p.Delete(ctx, &provider.Request{Kind: ir.KindNetwork, Name: "vpc", ID: created.ID}))
	assert.False(t, p.Exists(string(ir.KindNetwork), "vpc"))
	assert.Equal(t, 0, p.Len())
}

func TestProvider_NaturalKeyIncludesKind(t *testing.T) {
	p := New()
	ctx := context.Background()

	_, err := p.Create(ctx, &provider.Request{Kind: ir.KindNetwork, Name: "shared"})
	require.NoError(t, err)
	_, err = p.Create(ctx, &provider.Request{Kind: ir.KindSubnet, Name: "shared"})
	require.NoError(t, err)

	assert.Equal(t, 2, p.Len())
}

func TestProvider_DuplicateCreateFails(t *testing.T) {
	p := New()
	ctx := context.Background()
	req := &provider.Request{Kind: ir.KindNetwork, Name: "vpc"}

	_, err := p.Create(ctx, req)
	require.NoError(t, err)
	_, err = p.Create(ctx, req)
	require.Error(t, err)
}

func TestProvider_InjectedFailures(t *testing.T) {
	p := New()
	ctx := context.Background()

	p.FailCreate = map[string]error{"vpc": errors.New("quota")}
	_, err := p.Create(ctx, &provider.Request{Kind: ir.KindNetwork, Name: "vpc"})
	assert.EqualError(t, err, "quota")

	p.FailCreate = nil
	created, err := p.Create(ctx, &provider.Request{Kind: ir.KindNetwork, Name: "vpc"})
	require.NoError(t, err)

	p.FailDelete = map[string]error{"vpc": errors.New("in use")}
	err = p.Delete(ctx, &provider.Request{Kind: ir.KindNetwork, Name: "vpc", ID: created.ID})
	assert.EqualError(t, err, "in use")
	assert.True(t, p.Exists(string(ir.KindNetwork), "vpc"))
}

func TestProvider_DeleteUnknownID(t *testing.T) {
	p := New()
	err := p.Delete(context.Background(), &provider.Request{Kind: ir.KindNetwork, Name: "vpc", ID: "mem-ghost-1"})
	require.Error(t, err)
}

func TestProvider_CallLogs(t *testing.T) {
	p := New()
	ctx := context.Background()

	p.Find(ctx, &provider.Request{Kind: ir.KindNetwork, Name: "a"})
	p.Create(ctx, &provider.Request{Kind: ir.KindNetwork, Name: "a"})
	p.Find(ctx, &provider.Request{Kind: ir.KindSubnet, Name: "b"})

	assert.Equal(t, []string{"a", "b"}, p.FindCalls())
	assert.Equal(t, []string{"a"}, p.CreateCalls())
	assert.Empty(t, p.DeleteCalls())
}
