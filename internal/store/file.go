package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/stratus-io/stratus/internal/ir"
)

// FileBackend persists snapshots as a YAML file next to the plan.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Read loads the snapshot from the configured path.
// If the snapshot file is encrypted, it is transparently decrypted first.
func (b *FileBackend) Read(ctx context.Context) (*ir.Snapshot, error) {
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return emptySnapshot(), nil
	}

	raw, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file %s: %w", b.path, err)
	}

	content, err := DecryptSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt snapshot: %w", err)
	}

	var snap ir.Snapshot
	if err := yaml.Unmarshal(content, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file %s: %w", b.path, err)
	}
	return &snap, nil
}

// Write saves the snapshot to the configured path, bumping its serial.
// If STRATUS_STATE_ENCRYPTION_KEY is set, the file is transparently encrypted.
func (b *FileBackend) Write(ctx context.Context, snap *ir.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	content, err := marshalSnapshot(snap)
	if err != nil {
		return err
	}

	encrypted, err := EncryptSnapshot(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	if err := os.WriteFile(b.path, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot file %s: %w", b.path, err)
	}
	return nil
}

// Lock acquires a file lock on the snapshot to prevent concurrent runs.
func (b *FileBackend) Lock() error {
	lockPath := b.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	// A lock older than 10 minutes is treated as stale and replaced.
	if info, err := os.Stat(lockPath); err == nil {
		if time.Since(info.ModTime()) > 10*time.Minute {
			os.Remove(lockPath)
		} else {
			return fmt.Errorf("state is locked by another process (lock file: %s). "+
				"If this is an error, remove the lock file manually", lockPath)
		}
	}

	content := fmt.Sprintf("pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(lockPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	return nil
}

// Unlock releases the snapshot lock.
func (b *FileBackend) Unlock() error {
	if err := os.Remove(b.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (b *FileBackend) lockPath() string {
	return b.path + ".lock"
}

func emptySnapshot() *ir.Snapshot {
	return &ir.Snapshot{Version: ir.SnapshotVersion, Serial: 0}
}

// marshalSnapshot serializes a snapshot, bumping the serial and assigning a
// lineage on first write.
func marshalSnapshot(snap *ir.Snapshot) ([]byte, error) {
	snap.Version = ir.SnapshotVersion
	snap.Serial++
	if snap.Lineage == "" {
		snap.Lineage = uuid.NewString()
	}
	content, err := yaml.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return content, nil
}
