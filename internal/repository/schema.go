package repository

// Schema definitions for the FraudGuard audit store.
// Compatible with both SQLite and PostgreSQL.

// schemaAssessments holds one row per scored request. Input, rationale and
// metadata are stored as JSON text; the scalar columns exist for filtering.
const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    tx_type TEXT NOT NULL,
    amount REAL NOT NULL,
    probability REAL NOT NULL,
    verdict TEXT NOT NULL,
    threshold REAL NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    input TEXT NOT NULL,
    rationale TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tenant ON assessments(tenant_id);
CREATE INDEX IF NOT EXISTS idx_assessments_verdict ON assessments(tenant_id, verdict);
CREATE INDEX IF NOT EXISTS idx_assessments_timestamp ON assessments(tenant_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAssessments,
	}
}
