// Package file provides file-based persistence for workflow state checkpoints.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/strandworks/strand/pkg/models"
	"github.com/strandworks/strand/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Each thread's state lives in states/<thread-id>.json under the root directory.
type Persistence struct {
	root string
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// SaveState writes the workflow state for its thread, replacing any previous snapshot.
// The write goes through a temporary file so a crash never leaves a torn checkpoint.
func (fp *Persistence) SaveState(_ context.Context, state *models.WorkflowState) error {
	target, err := fp.statePath(state.ThreadID)
	if err != nil {
		return persistence.NewStateError("SaveState", state.ThreadID, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return persistence.NewStateError("SaveState", state.ThreadID, err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return persistence.NewStateError("SaveState", state.ThreadID, fmt.Errorf("failed to marshal state: %w", err))
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return persistence.NewStateError("SaveState", state.ThreadID, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		return persistence.NewStateError("SaveState", state.ThreadID, err)
	}

	return nil
}

// StateByThread loads the workflow state for a thread. Returns
// persistence.ErrStateNotFound when the thread has no checkpoint yet.
func (fp *Persistence) StateByThread(_ context.Context, threadID string) (*models.WorkflowState, error) {
	target, err := fp.statePath(threadID)
	if err != nil {
		return nil, persistence.NewStateError("StateByThread", threadID, err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewStateError("StateByThread", threadID, persistence.ErrStateNotFound)
		}

		return nil, persistence.NewStateError("StateByThread", threadID, err)
	}

	var state models.WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, persistence.NewStateError("StateByThread", threadID, fmt.Errorf("failed to unmarshal state: %w", err))
	}

	return &state, nil
}

// DeleteState removes the checkpoint for a thread. Deleting a thread that was
// never saved is not an error.
func (fp *Persistence) DeleteState(_ context.Context, threadID string) error {
	target, err := fp.statePath(threadID)
	if err != nil {
		return persistence.NewStateError("DeleteState", threadID, err)
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return persistence.NewStateError("DeleteState", threadID, err)
	}

	return nil
}

func (fp *Persistence) statePath(threadID string) (string, error) {
	if threadID == "" {
		return "", errors.New("thread id is required")
	}

	if strings.ContainsAny(threadID, "/\\") || threadID == "." || threadID == ".." {
		return "", fmt.Errorf("invalid thread id: %q", threadID)
	}

	return filepath.Join(fp.root, "states", threadID+".json"), nil
}
