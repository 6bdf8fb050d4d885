package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-io/stratus/internal/ir"
)

func testSnapshot() *ir.Snapshot {
	return &ir.Snapshot{
		Status: ir.RunCompleted,
		Resources: []*ir.ResourceState{
			{Name: "vpc", Kind: ir.KindNetwork, ID: "vpc-123", Status: ir.StatusCreated},
			{Name: "subnet", Kind: ir.KindSubnet, ID: "subnet-456", Status: ir.StatusCreated, Adopted: true},
		},
		Record: []ir.RecordEntry{
			{Name: "vpc", Kind: ir.KindNetwork, Outcome: ir.OutcomeCreated, ID: "vpc-123"},
			{Name: "subnet", Kind: ir.KindSubnet, Outcome: ir.OutcomeAdopted, ID: "subnet-456"},
		},
	}
}

func TestFileBackend_ReadMissingReturnsEmpty(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "state.yaml"))

	snap, err := b.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Serial)
	assert.Empty(t, snap.Resources)
}

func TestFileBackend_WriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	b := NewFileBackend(path)
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, testSnapshot()))

	snap, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Serial)
	assert.NotEmpty(t, snap.Lineage)
	assert.Equal(t, ir.RunCompleted, snap.Status)
	require.Len(t, snap.Resources, 2)
	assert.Equal(t, "vpc-123", snap.Resources[0].ID)
	assert.True(t, snap.Resources[1].Adopted)
	require.Len(t, snap.Record, 2)
	assert.Equal(t, ir.OutcomeCreated, snap.Record[0].Outcome)
}

func TestFileBackend_SerialBumpsAndLineageSticks(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "state.yaml"))
	ctx := context.Background()

	require.NoError(t, b.Write(ctx, testSnapshot()))
	first, err := b.Read(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Write(ctx, first))
	second, err := b.Read(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Serial+1, second.Serial)
	assert.Equal(t, first.Lineage, second.Lineage)
}

func TestFileBackend_LockConflict(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "state.yaml"))

	require.NoError(t, b.Lock())
	err := b.Lock()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")

	require.NoError(t, b.Unlock())
	require.NoError(t, b.Lock())
	require.NoError(t, b.Unlock())
}

func TestFileBackend_StaleLockReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	b := NewFileBackend(path)

	lockPath := path + ".lock"
	require.NoError(t, os.WriteFile(lockPath, []byte("pid=1\n"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	assert.NoError(t, b.Lock())
	require.NoError(t, b.Unlock())
}

func TestFileBackend_UnlockWithoutLock(t *testing.T) {
	b := NewFileBackend(filepath.Join(t.TempDir(), "state.yaml"))
	assert.NoError(t, b.Unlock())
}
