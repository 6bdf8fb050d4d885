package store

import (
	"context"
	"fmt"

	"github.com/stratus-io/stratus/internal/ir"
)

// Backend persists run snapshots. The in-memory Store is what correctness
// is defined against; a backend only adds durability between runs.
type Backend interface {
	// Read loads the latest snapshot. A backend with no snapshot yet
	// returns an empty one, never an error.
	Read(ctx context.Context) (*ir.Snapshot, error)

	// Write persists the snapshot, bumping its serial.
	Write(ctx context.Context, snap *ir.Snapshot) error

	// Lock acquires an exclusive lock on the snapshot.
	Lock() error

	// Unlock releases the lock on the snapshot.
	Unlock() error
}

// BackendConfig selects and configures a snapshot backend.
type BackendConfig struct {
	Type   string // "local" or "s3"
	Path   string // local file path
	Config map[string]string
}

// NewBackend creates a snapshot backend from configuration.
func NewBackend(cfg *BackendConfig) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("backend configuration is nil")
	}

	switch cfg.Type {
	case "local", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("local backend requires a snapshot path")
		}
		return NewFileBackend(cfg.Path), nil
	case "s3":
		return newS3Backend(cfg.Config)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
