// Package postgresql provides PostgreSQL persistence for workflow state checkpoints.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/strandworks/strand/pkg/models"
	"github.com/strandworks/strand/pkg/persistence"
	"github.com/strandworks/strand/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL. States are
// stored as JSONB rows keyed by thread id.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence creates a new PostgreSQL persistence layer and runs any
// pending schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger,
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// SaveState upserts the workflow state for its thread.
func (p *Persistence) SaveState(ctx context.Context, state *models.WorkflowState) error {
	if state.ThreadID == "" {
		return persistence.NewStateError("SaveState", "", errors.New("thread id is required"))
	}

	data, err := json.Marshal(state)
	if err != nil {
		return persistence.NewStateError("SaveState", state.ThreadID, fmt.Errorf("failed to marshal state: %w", err))
	}

	query := `
		INSERT INTO workflow_states (thread_id, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (thread_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`

	_, err = p.db.ExecContext(ctx, query, state.ThreadID, data)
	if err != nil {
		return persistence.NewStateError("SaveState", state.ThreadID, err)
	}

	return nil
}

// StateByThread loads the workflow state for a thread. Returns
// persistence.ErrStateNotFound when the thread has no checkpoint yet.
func (p *Persistence) StateByThread(ctx context.Context, threadID string) (*models.WorkflowState, error) {
	var data []byte

	query := "SELECT state FROM workflow_states WHERE thread_id = $1"

	err := p.db.QueryRowContext(ctx, query, threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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
	_, err := p.db.ExecContext(ctx, "DELETE FROM workflow_states WHERE thread_id = $1", threadID)
	if err != nil {
		return persistence.NewStateError("DeleteState", threadID, err)
	}

	return nil
}
