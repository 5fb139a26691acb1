// Package persistence provides the storage abstraction for workflow state checkpoints.
package persistence

import (
	"context"

	"github.com/strandworks/strand/pkg/models"
)

// Persistence stores workflow state snapshots keyed by conversation thread ID.
// Every node transition checkpoints the full state so that interrupted or
// paused workflows can be resumed from another process.
type Persistence interface {
	SaveState(ctx context.Context, state *models.WorkflowState) error
	StateByThread(ctx context.Context, threadID string) (*models.WorkflowState, error)
	DeleteState(ctx context.Context, threadID string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
