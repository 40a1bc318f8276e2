package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"basegraph.app/faultline/internal/fingerprint"
	"basegraph.app/faultline/internal/model"
)

// SQLitePatternStore is a single-node backend for the CLI. Fingerprints are kept in
// pgvector text form and compared with an exact scan over the scope.
type SQLitePatternStore struct {
	conn    *sql.DB
	dims    int
	timeout time.Duration
	now     func() time.Time
}

// OpenSQLitePatternStore opens or creates the database file at path.
func OpenSQLitePatternStore(path string, dims int, timeout time.Duration) (*SQLitePatternStore, error) {
	if dims <= 0 {
		dims = model.DefaultDimensions
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening pattern database: %w", err)
	}
	// one writer at a time; busy_timeout covers readers in other processes
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	s := &SQLitePatternStore{conn: conn, dims: dims, timeout: timeout, now: time.Now}
	if err := s.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initializing pattern schema: %w", err)
	}
	return s, nil
}

func (s *SQLitePatternStore) initializeSchema() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS failure_patterns (
			id               INTEGER PRIMARY KEY,
			scope            TEXT NOT NULL,
			fingerprint      TEXT NOT NULL,
			summary          TEXT NOT NULL,
			error_message    TEXT NOT NULL,
			stack_trace      TEXT,
			affected_files   TEXT NOT NULL DEFAULT '[]',
			test_name        TEXT,
			occurrence_count INTEGER NOT NULL DEFAULT 1,
			first_seen_at    TEXT NOT NULL,
			last_seen_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_failure_patterns_scope ON failure_patterns(scope, id);
	`)
	return err
}

func (s *SQLitePatternStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *SQLitePatternStore) Dimensions() int {
	return s.dims
}

func (s *SQLitePatternStore) Insert(ctx context.Context, scope string, p *model.FailurePattern) (int64, error) {
	if err := checkDimensions(p.Fingerprint, s.dims); err != nil {
		return 0, storageErr("insert", err)
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	preparePattern(scope, p, s.now().UTC())

	files, err := json.Marshal(p.AffectedFiles)
	if err != nil {
		return 0, storageErr("insert", err)
	}

	_, err = s.conn.ExecContext(ctx, `INSERT INTO failure_patterns (
		id, scope, fingerprint, summary, error_message, stack_trace, affected_files,
		test_name, occurrence_count, first_seen_at, last_seen_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Scope, formatVector(p.Fingerprint), p.Summary, p.ErrorMessage, p.StackTrace,
		string(files), p.TestName, p.OccurrenceCount,
		p.FirstSeenAt.Format(time.RFC3339Nano), p.LastSeenAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, storageErr("insert", err)
	}
	return p.ID, nil
}

func (s *SQLitePatternStore) QuerySimilar(ctx context.Context, scope string, fp model.Fingerprint, opts QueryOptions) ([]model.PatternMatch, error) {
	if err := checkDimensions(fp, s.dims); err != nil {
		return nil, storageErr("query_similar", err)
	}
	opts = opts.normalized()
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.conn.QueryContext(ctx, `SELECT `+sqlitePatternColumns+`
		FROM failure_patterns WHERE scope = ? ORDER BY id`, scope)
	if err != nil {
		return nil, storageErr("query_similar", err)
	}
	defer rows.Close()

	matches := make([]model.PatternMatch, 0)
	for rows.Next() {
		p, err := scanSQLitePattern(rows)
		if err != nil {
			return nil, storageErr("query_similar", err)
		}
		sim := fingerprint.CosineSimilarity(fp, p.Fingerprint)
		if sim <= opts.Threshold {
			continue
		}
		p.Fingerprint = nil
		matches = append(matches, model.PatternMatch{
			PatternID:  p.ID,
			Similarity: clamp01(sim),
			Pattern:    *p,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query_similar", err)
	}

	return sortMatches(matches, opts.TopK), nil
}

func (s *SQLitePatternStore) Get(ctx context.Context, scope string, id int64) (*model.FailurePattern, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	row := s.conn.QueryRowContext(ctx, `SELECT `+sqlitePatternColumns+`
		FROM failure_patterns WHERE scope = ? AND id = ?`, scope, id)
	p, err := scanSQLitePattern(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get", err)
	}
	return p, nil
}

func (s *SQLitePatternStore) Count(ctx context.Context, scope string) (int, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM failure_patterns WHERE scope = ?`, scope).Scan(&n); err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

const sqlitePatternColumns = `id, scope, fingerprint, summary, error_message, stack_trace,
	affected_files, test_name, occurrence_count, first_seen_at, last_seen_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePattern(row rowScanner) (*model.FailurePattern, error) {
	var (
		p                   model.FailurePattern
		vec, files          string
		stack, testName     sql.NullString
		firstSeen, lastSeen string
	)
	if err := row.Scan(
		&p.ID, &p.Scope, &vec, &p.Summary, &p.ErrorMessage, &stack,
		&files, &testName, &p.OccurrenceCount, &firstSeen, &lastSeen,
	); err != nil {
		return nil, err
	}

	fp, err := parseVector(vec)
	if err != nil {
		return nil, err
	}
	p.Fingerprint = fp

	if err := json.Unmarshal([]byte(files), &p.AffectedFiles); err != nil {
		return nil, fmt.Errorf("decoding affected files: %w", err)
	}
	if stack.Valid {
		p.StackTrace = &stack.String
	}
	if testName.Valid {
		p.TestName = &testName.String
	}
	if p.FirstSeenAt, err = time.Parse(time.RFC3339Nano, firstSeen); err != nil {
		return nil, fmt.Errorf("parsing first_seen_at: %w", err)
	}
	if p.LastSeenAt, err = time.Parse(time.RFC3339Nano, lastSeen); err != nil {
		return nil, fmt.Errorf("parsing last_seen_at: %w", err)
	}
	return &p, nil
}
