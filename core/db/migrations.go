package db

import (
	"context"
	"fmt"
)

// Migrate creates the pattern table and its vector index. Every statement is
// idempotent so it can run on each deploy.
func (db *DB) Migrate(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid fingerprint dimensions: %d", dimensions)
	}

	return db.WithTx(ctx, func(q Querier) error {
		for _, stmt := range migrationStatements(dimensions) {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("running migration %q: %w", firstLine(stmt), err)
			}
		}
		return nil
	})
}

func migrationStatements(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS failure_patterns (
	id               BIGINT PRIMARY KEY,
	scope            TEXT NOT NULL,
	fingerprint      vector(%d) NOT NULL,
	summary          TEXT NOT NULL,
	error_message    TEXT NOT NULL,
	stack_trace      TEXT,
	affected_files   TEXT[] NOT NULL DEFAULT '{}',
	test_name        TEXT,
	occurrence_count INTEGER NOT NULL DEFAULT 1,
	first_seen_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`, dimensions),
		`CREATE INDEX IF NOT EXISTS failure_patterns_fingerprint_idx
	ON failure_patterns USING hnsw (fingerprint vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS failure_patterns_scope_id_idx
	ON failure_patterns (scope, id)`,
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
