package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"insta-archive/internal/logging"
	"insta-archive/internal/metrics"
)

// Default timeout for read-side database operations
const defaultTimeout = 5 * time.Second

// Database manages all store operations for the archive indexer.
type Database struct {
	db         *sql.DB
	dbPath     string
	mu         sync.RWMutex
	stats      ArchiveStats
	statsMu    sync.RWMutex
	txStart    time.Time
	ftsEnabled bool
}

// New opens (or creates) the SQLite store at dbPath and ensures the
// schema exists. The parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode plus busy_timeout to avoid "database is locked" errors
	// when reads overlap a reconciliation transaction.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		latest_profile_pic TEXT,
		last_indexed_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS posts (
		account_id TEXT NOT NULL,
		id TEXT NOT NULL,
		posted_at INTEGER NOT NULL,
		type TEXT NOT NULL DEFAULT 'Post',
		caption TEXT,
		has_text INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (account_id, id),
		FOREIGN KEY (account_id) REFERENCES accounts(id)
	);

	CREATE INDEX IF NOT EXISTS idx_posts_posted_at ON posts(account_id, posted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_type ON posts(type);

	CREATE TABLE IF NOT EXISTS media (
		account_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		order_index INTEGER NOT NULL,
		filename TEXT NOT NULL,
		mime_type TEXT,
		width INTEGER,
		height INTEGER,
		duration REAL,
		PRIMARY KEY (account_id, post_id, order_index)
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS post_tags (
		account_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		tag_id INTEGER NOT NULL,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,
		UNIQUE(account_id, post_id, tag_id)
	);

	CREATE INDEX IF NOT EXISTS idx_post_tags_tag ON post_tags(tag_id);

	CREATE TABLE IF NOT EXISTS post_texts (
		account_id TEXT NOT NULL,
		post_id TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (account_id, post_id)
	);

	CREATE TABLE IF NOT EXISTS profile_pics (
		account_id TEXT NOT NULL,
		taken_at INTEGER NOT NULL,
		filename TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_profile_pics_account ON profile_pics(account_id, taken_at);

	CREATE TABLE IF NOT EXISTS highlights (
		account_id TEXT NOT NULL,
		title TEXT NOT NULL,
		cover_media TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (account_id, title)
	);

	CREATE TABLE IF NOT EXISTS highlight_media (
		account_id TEXT NOT NULL,
		title TEXT NOT NULL,
		order_index INTEGER NOT NULL,
		filename TEXT NOT NULL,
		mime_type TEXT,
		PRIMARY KEY (account_id, title, order_index)
	);

	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.initializeFTS(ctx)
}

// initializeFTS creates the caption full-text index. FTS5 is only compiled
// into mattn/go-sqlite3 under the sqlite_fts5 build tag, so a binary built
// without it runs with search disabled instead of failing to start. The
// triggers are created together with the virtual table; without them the
// posts table never references posts_fts.
func (d *Database) initializeFTS(ctx context.Context) error {
	ftsSchema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS posts_fts USING fts5(
		caption,
		content='posts',
		content_rowid='rowid',
		tokenize='trigram'
	);

	CREATE TRIGGER IF NOT EXISTS posts_ai AFTER INSERT ON posts BEGIN
		INSERT INTO posts_fts(rowid, caption) VALUES (new.rowid, COALESCE(new.caption, ''));
	END;

	CREATE TRIGGER IF NOT EXISTS posts_ad AFTER DELETE ON posts BEGIN
		INSERT INTO posts_fts(posts_fts, rowid, caption) VALUES('delete', old.rowid, COALESCE(old.caption, ''));
	END;

	CREATE TRIGGER IF NOT EXISTS posts_au AFTER UPDATE ON posts BEGIN
		INSERT INTO posts_fts(posts_fts, rowid, caption) VALUES('delete', old.rowid, COALESCE(old.caption, ''));
		INSERT INTO posts_fts(rowid, caption) VALUES (new.rowid, COALESCE(new.caption, ''));
	END;
	`

	if _, err := d.db.ExecContext(ctx, ftsSchema); err != nil {
		if strings.Contains(err.Error(), "fts5") {
			logging.Warn("SQLite built without FTS5, caption search disabled (build with -tags sqlite_fts5 to enable): %v", err)
			d.ftsEnabled = false
			return nil
		}
		return err
	}

	d.ftsEnabled = true
	return nil
}

// FTSEnabled reports whether caption full-text search is available.
func (d *Database) FTSEnabled() bool {
	return d.ftsEnabled
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// BeginBatch starts the reconciliation transaction. The caller is
// responsible for calling EndBatch when done.
func (d *Database) BeginBatch() (*sql.Tx, error) {
	d.mu.Lock()
	txStart := time.Now()

	// Background context: the transaction's lifetime is managed by
	// EndBatch, not a timeout.
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	d.txStart = txStart
	return tx, nil
}

// EndBatch commits the transaction, or rolls it back when err is non-nil.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(d.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// UpdateStats replaces the cached store statistics.
func (d *Database) UpdateStats(stats ArchiveStats) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats = stats
}

// GetStats returns the cached store statistics.
func (d *Database) GetStats() ArchiveStats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return d.stats
}

// CalculateStats counts the store contents. Called outside the
// reconciliation transaction, after commit.
func (d *Database) CalculateStats(ctx context.Context) (ArchiveStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats ArchiveStats
	row := d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM posts),
			(SELECT COUNT(*) FROM media),
			(SELECT COUNT(*) FROM tags),
			(SELECT COUNT(*) FROM highlights)
	`)
	err := row.Scan(&stats.TotalAccounts, &stats.TotalPosts, &stats.TotalMedia,
		&stats.TotalTags, &stats.TotalHighlights)
	if err != nil {
		return ArchiveStats{}, fmt.Errorf("failed to calculate stats: %w", err)
	}
	return stats, nil
}

// recordQuery records read-side query metrics.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
