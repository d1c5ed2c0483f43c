package postgresql

// migrations returns the schema migrations keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger_type TEXT NOT NULL,
				trigger_config JSONB NOT NULL DEFAULT '{}',
				steps JSONB NOT NULL DEFAULT '[]',
				engine_workflow_id TEXT NOT NULL DEFAULT '',
				engine_webhook_id TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'draft',
				tags JSONB NOT NULL DEFAULT '[]',
				max_concurrent_executions INTEGER NOT NULL DEFAULT 1,
				execution_timeout_minutes INTEGER NOT NULL DEFAULT 30,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_owner ON workflows (owner_id);
			CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows (status);
		`,
		2: `
			CREATE TABLE IF NOT EXISTS workflow_executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflows (id) ON DELETE CASCADE,
				owner_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				trigger_data JSONB NOT NULL DEFAULT '{}',
				step_results JSONB NOT NULL DEFAULT '{}',
				output_data JSONB NOT NULL DEFAULT '{}',
				error_message TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE,
				duration_seconds DOUBLE PRECISION,
				engine_execution_id TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow_started
				ON workflow_executions (workflow_id, started_at DESC);
			CREATE INDEX IF NOT EXISTS idx_executions_status ON workflow_executions (status);
			CREATE INDEX IF NOT EXISTS idx_executions_started ON workflow_executions (started_at);
		`,
	}
}
