package postgresql

// migrations returns the ordered schema migrations for the workflow
// state store.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_states (
				thread_id TEXT PRIMARY KEY,
				state JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);
		`,
		2: `
			CREATE INDEX IF NOT EXISTS idx_workflow_states_updated_at
				ON workflow_states (updated_at);
		`,
	}
}
