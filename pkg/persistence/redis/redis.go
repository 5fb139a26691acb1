// Package redis provides Redis persistence for workflow state checkpoints.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/strandworks/strand/pkg/models"
	"github.com/strandworks/strand/pkg/persistence"
)

const keyPrefix = "strand:workflow_state:"

// Persistence implements the persistence layer on Redis. Each thread's
// state is a JSON value under a prefixed key. Checkpoints never expire;
// conversation threads stay resumable until they are deleted.
type Persistence struct {
	client *redis.Client
}

// NewPersistence creates a Redis persistence layer from a redis:// URL.
func NewPersistence(ctx context.Context, redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{client: client}, nil
}

// Close closes the Redis connection.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}

	return nil
}

// HealthCheck verifies the Redis connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// SaveState writes the workflow state for its thread.
func (p *Persistence) SaveState(ctx context.Context, state *models.WorkflowState) error {
	if state.ThreadID == "" {
		return persistence.NewStateError("SaveState", "", errors.New("thread id is required"))
	}

	data, err := json.Marshal(state)
	if err != nil {
		return persistence.NewStateError("SaveState", state.ThreadID, fmt.Errorf("failed to marshal state: %w", err))
	}

	err = p.client.Set(ctx, keyPrefix+state.ThreadID, data, 0).Err()
	if err != nil {
		return persistence.NewStateError("SaveState", state.ThreadID, err)
	}

	return nil
}

// StateByThread loads the workflow state for a thread. Returns
// persistence.ErrStateNotFound when the thread has no checkpoint yet.
func (p *Persistence) StateByThread(ctx context.Context, threadID string) (*models.WorkflowState, error) {
	data, err := p.client.Get(ctx, keyPrefix+threadID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.NewStateError("StateByThread", threadID, persistence.ErrStateNotFound)
	}

	if err != nil {
		return nil, persistence.NewStateError("StateByThread", threadID, err)
	}

	var state models.WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, persistence.NewStateError("StateByThread", threadID, fmt.Errorf("failed to unmarshal state: %w", err))
	}

	return &state, nil
}

// DeleteState removes the checkpoint for a thread.
func (p *Persistence) DeleteState(ctx context.Context, threadID string) error {
	err := p.client.Del(ctx, keyPrefix+threadID).Err()
	if err != nil {
		return persistence.NewStateError("DeleteState", threadID, err)
	}

	return nil
}
