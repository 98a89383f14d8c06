// Package tasks implements the personal Task Manager: CRUD, priority
// scoring, status transitions, dependency checks, and archival, backed by
// a pluggable Store.
package tasks

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Store persists tasks. Implementations need not be safe for concurrent
// use by themselves; Manager serializes access with its own mutex.
type Store interface {
	// Load returns every task currently persisted, in no particular order.
	Load(ctx context.Context) ([]*models.Task, error)

	// SaveAll replaces the entire persisted task set with tasks.
	SaveAll(ctx context.Context, tasks []*models.Task) error
}

// Closer is implemented by stores that hold a resource (a DB handle, an
// open file) needing explicit cleanup.
type Closer interface {
	Close() error
}
