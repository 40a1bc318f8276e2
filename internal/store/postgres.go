package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"basegraph.app/faultline/core/db"
	"basegraph.app/faultline/internal/model"
)

const patternColumns = `id, scope, summary, error_message, stack_trace, affected_files,
	test_name, occurrence_count, first_seen_at, last_seen_at`

// similarQuery orders by distance alone so the planner can use the HNSW index;
// ties on id are broken by sortMatches.
const similarQuery = `SELECT ` + patternColumns + `, 1 - (fingerprint <=> $2::vector) AS similarity
FROM failure_patterns
WHERE scope = $1 AND 1 - (fingerprint <=> $2::vector) > $3
ORDER BY fingerprint <=> $2::vector
LIMIT $4`

const (
	minEfSearch = 100
	maxEfSearch = 1000 // pgvector upper bound
)

// searchSettings scopes the HNSW scan to the current transaction. An index scan
// returns at most ef_search candidates before the WHERE clause runs, so a
// small scope in a shared table would otherwise come back empty. Iterative
// scans (pgvector 0.8+) keep walking the graph until LIMIT rows pass the filter.
func searchSettings(topK int) []string {
	ef := topK * 20
	if ef < minEfSearch {
		ef = minEfSearch
	}
	if ef > maxEfSearch {
		ef = maxEfSearch
	}
	return []string{
		"SET LOCAL hnsw.iterative_scan = relaxed_order",
		fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", ef),
	}
}

// candidateLimit over-fetches because relaxed_order may return rows slightly
// out of distance order; sortMatches trims back to topK.
func candidateLimit(topK int) int {
	return topK * 2
}

// pgPatternStore stores fingerprints in a pgvector column and delegates nearest
// neighbour search to the HNSW cosine index created by db.Migrate.
type pgPatternStore struct {
	q       db.TxQuerier
	dims    int
	timeout time.Duration
	now     func() time.Time
}

func NewPostgresPatternStore(q db.TxQuerier, dims int, timeout time.Duration) PatternStore {
	if dims <= 0 {
		dims = model.DefaultDimensions
	}
	return &pgPatternStore{q: q, dims: dims, timeout: timeout, now: time.Now}
}

func (s *pgPatternStore) Dimensions() int {
	return s.dims
}

func (s *pgPatternStore) Insert(ctx context.Context, scope string, p *model.FailurePattern) (int64, error) {
	if err := checkDimensions(p.Fingerprint, s.dims); err != nil {
		return 0, storageErr("insert", err)
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	// postgres keeps microseconds; truncate so the caller's copy matches a re-read
	preparePattern(scope, p, s.now().UTC().Truncate(time.Microsecond))

	_, err := s.q.Exec(ctx, `INSERT INTO failure_patterns (
	id, scope, fingerprint, summary, error_message, stack_trace, affected_files,
	test_name, occurrence_count, first_seen_at, last_seen_at
) VALUES ($1, $2, $3::vector, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Scope, formatVector(p.Fingerprint), p.Summary, p.ErrorMessage, p.StackTrace,
		p.AffectedFiles, p.TestName, p.OccurrenceCount, p.FirstSeenAt, p.LastSeenAt,
	)
	if err != nil {
		return 0, storageErr("insert", err)
	}
	return p.ID, nil
}

func (s *pgPatternStore) QuerySimilar(ctx context.Context, scope string, fp model.Fingerprint, opts QueryOptions) ([]model.PatternMatch, error) {
	if err := checkDimensions(fp, s.dims); err != nil {
		return nil, storageErr("query_similar", err)
	}
	opts = opts.normalized()
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var matches []model.PatternMatch
	err := db.InTx(ctx, s.q, func(tx pgx.Tx) error {
		for _, stmt := range searchSettings(opts.TopK) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}

		rows, err := tx.Query(ctx, similarQuery, scope, formatVector(fp), opts.Threshold, candidateLimit(opts.TopK))
		if err != nil {
			return err
		}
		defer rows.Close()

		matches = make([]model.PatternMatch, 0, opts.TopK)
		for rows.Next() {
			var (
				p   model.FailurePattern
				sim float64
			)
			if err := rows.Scan(
				&p.ID, &p.Scope, &p.Summary, &p.ErrorMessage, &p.StackTrace, &p.AffectedFiles,
				&p.TestName, &p.OccurrenceCount, &p.FirstSeenAt, &p.LastSeenAt, &sim,
			); err != nil {
				return err
			}
			matches = append(matches, model.PatternMatch{
				PatternID:  p.ID,
				Similarity: clamp01(sim),
				Pattern:    p,
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storageErr("query_similar", err)
	}

	// re-sort so ties follow id on every backend and relaxed ordering is undone
	return sortMatches(matches, opts.TopK), nil
}

func (s *pgPatternStore) Get(ctx context.Context, scope string, id int64) (*model.FailurePattern, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		p   model.FailurePattern
		vec string
	)
	err := s.q.QueryRow(ctx, `SELECT `+patternColumns+`, fingerprint::text
FROM failure_patterns
WHERE scope = $1 AND id = $2`, scope, id).Scan(
		&p.ID, &p.Scope, &p.Summary, &p.ErrorMessage, &p.StackTrace, &p.AffectedFiles,
		&p.TestName, &p.OccurrenceCount, &p.FirstSeenAt, &p.LastSeenAt, &vec,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get", err)
	}

	p.Fingerprint, err = parseVector(vec)
	if err != nil {
		return nil, storageErr("get", err)
	}
	return &p, nil
}

func (s *pgPatternStore) Count(ctx context.Context, scope string) (int, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	if err := s.q.QueryRow(ctx, `SELECT count(*) FROM failure_patterns WHERE scope = $1`, scope).Scan(&n); err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}
