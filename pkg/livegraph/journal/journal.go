// Package journal records every reconcile the runtime performs, successful
// or not, for auditing and debugging.
package journal

import (
	"context"
	"errors"
	"time"
)

// Store persists apply entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Record stores an entry. The store assigns Sequence.
	// Recording an ID twice replaces the earlier entry and keeps its sequence.
	Record(ctx context.Context, entry Entry) error

	// Get retrieves an entry by apply ID.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (Entry, error)

	// List returns up to limit entries, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Summary counts the changes a diff produced.
type Summary struct {
	AddedNodes           int `json:"added_nodes"`
	RemovedNodes         int `json:"removed_nodes"`
	RecreatedNodes       int `json:"recreated_nodes"`
	ConfigUpdates        int `json:"config_updates"`
	DynamicConfigUpdates int `json:"dynamic_config_updates"`
	AddedEdges           int `json:"added_edges"`
	RemovedEdges         int `json:"removed_edges"`
}

// Entry describes one apply.
type Entry struct {
	ID       string
	Sequence int64
	// Version is the runtime version after the apply. A failed apply
	// leaves it at the previous value.
	Version   uint64
	Success   bool
	Step      string
	Code      string
	Error     string
	Summary   Summary
	StartedAt time.Time
	Duration  time.Duration
}

// Sentinel errors for journal operations.
var (
	// ErrNotFound indicates an entry doesn't exist.
	ErrNotFound = errors.New("journal entry not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
