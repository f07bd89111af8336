package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"browserd/metrics"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned by LoadLatest when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no session snapshot stored")

// Storage persists session snapshots in SQLite. WAL mode keeps saves from
// blocking concurrent snapshot reads (diagnostics, the sessions CLI).
type Storage struct {
	db     *sql.DB
	path   string
	logger *zap.SugaredLogger
}

// NewStorage opens (creating if necessary) the snapshot database at path.
func NewStorage(path string, logger *zap.SugaredLogger) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create session database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database %s: %w", path, err)
	}
	// Single writer; WAL readers do not need more connections than this.
	db.SetMaxOpenConns(2)

	if err := configureConnection(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure session database %s: %w", path, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			saved_at   INTEGER NOT NULL,
			snapshot   BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_saved_at ON snapshots(saved_at);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	logger.Infow("Session storage ready", "path", path)
	return &Storage{db: db, path: path, logger: logger}, nil
}

func configureConnection(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Save persists a snapshot. Each save is a new row; Prune bounds history.
func (s *Storage) Save(ctx context.Context, snap Snapshot) error {
	start := time.Now()

	data, err := snap.Encode()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snapshots (saved_at, snapshot) VALUES (?, ?)",
		snap.SavedAt.UnixMilli(), data)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	metrics.SaveDuration.Observe(time.Since(start).Seconds())
	s.logger.Debugw("Snapshot saved", "tabs", len(snap.Tabs), "bytes", len(data))
	return nil
}

// LoadLatest returns the most recently saved snapshot.
func (s *Storage) LoadLatest(ctx context.Context) (Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot FROM snapshots ORDER BY saved_at DESC, id DESC LIMIT 1").Scan(&data)
	if err == sql.ErrNoRows {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// SnapshotInfo describes one stored snapshot without decoding its body.
type SnapshotInfo struct {
	ID      int64
	SavedAt time.Time
	Bytes   int
}

// List returns stored snapshots, newest first.
func (s *Storage) List(ctx context.Context, limit int) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, saved_at, length(snapshot) FROM snapshots ORDER BY saved_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var savedAt int64
		if err := rows.Scan(&info.ID, &savedAt, &info.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		info.SavedAt = time.UnixMilli(savedAt).UTC()
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Load returns the snapshot with the given ID.
func (s *Storage) Load(ctx context.Context, id int64) (Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot FROM snapshots WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load snapshot %d: %w", id, err)
	}
	return DecodeSnapshot(data)
}

// Prune deletes all but the newest keep snapshots.
func (s *Storage) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY saved_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}
