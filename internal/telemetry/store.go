package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/schemamatch/internal/store"
)

// maxZeroResultRows bounds the zero_result_queries table.
const maxZeroResultRows = 100

// SQLiteMetricsStore implements Store on SQLite.
type SQLiteMetricsStore struct {
	db    *sql.DB
	owned bool
}

// OpenSQLiteMetricsStore opens (or creates) a telemetry database at path.
func OpenSQLiteMetricsStore(path string) (*SQLiteMetricsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}
	db, err := store.OpenSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	if err := InitSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteMetricsStore{db: db, owned: true}, nil
}

// NewSQLiteMetricsStore wraps a shared db. The schema must already exist; Close leaves db open.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// InitSchema creates the telemetry tables if they don't exist.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS match_kind_stats (
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, kind)
	);

	CREATE TABLE IF NOT EXISTS match_keywords (
		term TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 1,
		last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_match_keywords_count ON match_keywords(count DESC);

	CREATE TABLE IF NOT EXISTS zero_result_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS match_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create telemetry schema: %w", err)
	}
	return nil
}

// upsertDaily adds counts to table's (date, column) rows.
func (s *SQLiteMetricsStore) upsertDaily(table, column, date string, counts map[string]int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT INTO %[1]s (date, %[2]s, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, %[2]s) DO UPDATE SET count = count + excluded.count
	`, table, column))
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, count := range counts {
		if _, err := stmt.Exec(date, key, count); err != nil {
			return fmt.Errorf("upsert %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sumDaily totals table's counts per column value between from and to, inclusive.
func (s *SQLiteMetricsStore) sumDaily(table, column, from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT %[2]s, SUM(count)
		FROM %[1]s
		WHERE date >= ? AND date <= ?
		GROUP BY %[2]s
	`, table, column), from, to)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// SaveKindCounts upserts daily counts per match kind.
func (s *SQLiteMetricsStore) SaveKindCounts(date string, counts map[Kind]int64) error {
	plain := make(map[string]int64, len(counts))
	for k, v := range counts {
		plain[string(k)] = v
	}
	return s.upsertDaily("match_kind_stats", "kind", date, plain)
}

// GetKindCounts retrieves kind counts for a date range.
func (s *SQLiteMetricsStore) GetKindCounts(from, to string) (map[Kind]int64, error) {
	plain, err := s.sumDaily("match_kind_stats", "kind", from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[Kind]int64, len(plain))
	for k, v := range plain {
		counts[Kind(k)] = v
	}
	return counts, nil
}

// UpsertKeywordCounts adds to keyword frequencies.
func (s *SQLiteMetricsStore) UpsertKeywordCounts(terms map[string]int64) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO match_keywords (term, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for term, count := range terms {
		if _, err := stmt.Exec(term, count); err != nil {
			return fmt.Errorf("upsert keyword count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTopKeywords returns the limit most frequent keywords, ties by term.
func (s *SQLiteMetricsStore) GetTopKeywords(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`
		SELECT term, count
		FROM match_keywords
		ORDER BY count DESC, term ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top keywords: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// AddZeroResultQuery appends query, keeping the newest 100 rows.
func (s *SQLiteMetricsStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	if _, err := s.db.Exec(`
		INSERT INTO zero_result_queries (query, timestamp)
		VALUES (?, ?)
	`, query, timestamp); err != nil {
		return fmt.Errorf("insert zero-result query: %w", err)
	}

	if _, err := s.db.Exec(`
		DELETE FROM zero_result_queries
		WHERE id NOT IN (
			SELECT id FROM zero_result_queries
			ORDER BY id DESC
			LIMIT ?
		)
	`, maxZeroResultRows); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}
	return nil
}

// GetZeroResultQueries returns recent zero-result queries, newest first.
func (s *SQLiteMetricsStore) GetZeroResultQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT query
		FROM zero_result_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// SaveLatencyCounts upserts daily latency histogram counts.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	plain := make(map[string]int64, len(counts))
	for k, v := range counts {
		plain[string(k)] = v
	}
	return s.upsertDaily("match_latency_stats", "bucket", date, plain)
}

// GetLatencyCounts retrieves the latency distribution for a date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	plain, err := s.sumDaily("match_latency_stats", "bucket", from, to)
	if err != nil {
		return nil, err
	}
	counts := make(map[LatencyBucket]int64, len(plain))
	for k, v := range plain {
		counts[LatencyBucket(k)] = v
	}
	return counts, nil
}

// Close closes the database when the store opened it.
func (s *SQLiteMetricsStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
