package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/edgecomet/articlepdf/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	url         TEXT    NOT NULL,
	device_type INTEGER NOT NULL,
	inlined     INTEGER NOT NULL,
	pdf_data    BLOB,
	pdf_size    INTEGER NOT NULL DEFAULT 0,
	stored_at   INTEGER NOT NULL,
	last_error  TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_key ON articles(url, device_type, inlined);
CREATE INDEX IF NOT EXISTS idx_articles_stored_at ON articles(stored_at);
`

// Store is the SQLite-backed artifact store plus the cache operations the
// resolver, workers and HTTP API run against it.
type Store struct {
	sqlDB  *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the article cache at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		sqlDB:  sqlDB,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetClock overrides the store's time source. Used by tests to pin stored_at.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const entryColumns = "id, url, device_type, inlined, pdf_data, pdf_size, stored_at, last_error"

// Find performs an exact-key point lookup. It returns (nil, nil) on a cache
// miss and ErrAmbiguousEntry when the uniqueness invariant is violated.
func (s *Store) Find(ctx context.Context, url string, device types.DeviceType, inlined bool) (*CacheEntry, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM articles
		 WHERE url = ? AND device_type = ? AND inlined = ?`,
		url, int(device), boolToInt(inlined))
	if err != nil {
		return nil, fmt.Errorf("find cache entry: %w", err)
	}
	defer rows.Close()

	var found *CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if found != nil {
			return nil, fmt.Errorf("%w: url=%s device=%s inlined=%v",
				ErrAmbiguousEntry, url, device, inlined)
		}
		found = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find cache entry: %w", err)
	}

	return found, nil
}

// Upsert stores a rendered payload for a cache key, creating the row if it
// does not exist and overwriting payload, size and stored_at if it does.
// last_error is deliberately left untouched: a row that failed and was later
// filled through the on-demand path stays flagged and stays out of the
// dequeue until its URL is enqueued again.
func (s *Store) Upsert(ctx context.Context, url string, device types.DeviceType, inlined bool, payload []byte) error {
	if strings.TrimSpace(url) == "" {
		return ErrEmptyURL
	}

	storedAt := s.now().UnixMilli()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO articles (url, device_type, inlined, pdf_data, pdf_size, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url, device_type, inlined) DO UPDATE SET
			pdf_data  = excluded.pdf_data,
			pdf_size  = excluded.pdf_size,
			stored_at = excluded.stored_at`,
		url, int(device), boolToInt(inlined), payload, int64(len(payload)), storedAt)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}

	return nil
}

// QueueAllVariants inserts six pending rows for the fixed device/layout
// cross product. It does not check for pre-existing rows; callers guard with
// ExistsByURL first. A racing duplicate enqueue is rejected by the unique
// key index and surfaces as a store error.
func (s *Store) QueueAllVariants(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return ErrEmptyURL
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enqueue: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	storedAt := s.now().UnixMilli()
	for _, variant := range types.AllVariants() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO articles (url, device_type, inlined, pdf_data, pdf_size, stored_at)
			 VALUES (?, ?, ?, NULL, 0, ?)`,
			url, int(variant.Device), boolToInt(variant.Inlined), storedAt); err != nil {
			return fmt.Errorf("enqueue variant %s: %w", variant, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enqueue: %w", err)
	}

	s.logger.Info("Queued article for generation",
		zap.String("url", url),
		zap.Int("variants", len(types.AllVariants())))
	return nil
}

// ExistsByURL reports whether any row (any variant, any state) has this URL.
func (s *Store) ExistsByURL(ctx context.Context, url string) (bool, error) {
	if strings.TrimSpace(url) == "" {
		return false, ErrEmptyURL
	}

	var count int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles WHERE url = ?`, url).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count by url: %w", err)
	}
	return count > 0, nil
}

// DequeuePending returns all pending, unfailed rows ordered by stored_at
// descending so freshly requested articles are generated ahead of backlog.
func (s *Store) DequeuePending(ctx context.Context) ([]*CacheEntry, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM articles
		 WHERE pdf_size = 0 AND last_error IS NULL
		 ORDER BY stored_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("dequeue pending: %w", err)
	}
	defer rows.Close()

	var entries []*CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dequeue pending: %w", err)
	}

	return entries, nil
}

// MarkURLFailed sets last_error on every row for the URL. Failure is coupled
// across all variants of a URL: one variant failing to render flags its
// siblings too, including rows already filled in the same batch.
func (s *Store) MarkURLFailed(ctx context.Context, url, message string) error {
	if strings.TrimSpace(url) == "" {
		return ErrEmptyURL
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE articles SET last_error = ? WHERE url = ?`, message, url)
	if err != nil {
		return fmt.Errorf("mark url failed: %w", err)
	}

	affected, _ := result.RowsAffected()
	s.logger.Warn("Marked article as failed",
		zap.String("url", url),
		zap.String("reason", message),
		zap.Int64("rows", affected))
	return nil
}

// PruneOlderThan deletes all rows (any state) whose stored_at is older than
// now minus age and returns the number of rows removed. Pending rows are
// pruned too; a queued-but-unrendered request is silently discarded.
func (s *Store) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	threshold := s.now().Add(-age).UnixMilli()

	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM articles WHERE stored_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("prune cache entries: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune cache entries: %w", err)
	}
	return removed, nil
}

// Stats returns store-wide row and payload byte totals.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(pdf_size), 0) FROM articles`).
		Scan(&stats.Rows, &stats.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("read cache stats: %w", err)
	}
	return stats, nil
}

// scanEntry reads one row into a CacheEntry.
func scanEntry(rows *sql.Rows) (*CacheEntry, error) {
	var entry CacheEntry
	var device int
	var inlined int
	var storedAt int64
	var lastError sql.NullString

	if err := rows.Scan(&entry.ID, &entry.URL, &device, &inlined,
		&entry.Payload, &entry.PayloadSize, &storedAt, &lastError); err != nil {
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}

	entry.Device = types.DeviceType(device)
	entry.Inlined = inlined != 0
	entry.StoredAt = time.UnixMilli(storedAt).UTC()
	if lastError.Valid {
		msg := lastError.String
		entry.LastError = &msg
	}

	return &entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
