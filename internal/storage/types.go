package storage

import (
	"context"
	"errors"
	"time"

	"pomplan/internal/planner"
)

var (
	ErrDisabled   = errors.New("storage disabled")
	ErrNoSnapshot = errors.New("storage: no snapshot")
)

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the app and the CLI.
type Store interface {
	// LoadSnapshot returns ErrNoSnapshot before the first save.
	LoadSnapshot(ctx context.Context) (Snapshot, error)
	SaveSnapshot(ctx context.Context, s Snapshot) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to limit entries, newest first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	Close() error
}

// Snapshot is a saved planner state.
type Snapshot struct {
	SavedAt time.Time     `json:"saved_at"`
	State   planner.State `json:"state"`
}

// AuditEntry records one plan mutation. Keep it compact and schema-stable.
type AuditEntry struct {
	At          time.Time `json:"at"`
	Action      string    `json:"action"`
	TaskID      string    `json:"task,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Unsatisfied int       `json:"unsatisfied"`
}
