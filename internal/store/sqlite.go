package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	// mu guards locks; each project gets its own mutex so persists to the
	// same project serialize while other projects proceed.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps readers unblocked while a persist commits.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return &SQLiteStore{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// Initialize creates the database schema.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			project_id TEXT PRIMARY KEY,
			root_path TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS snapshots (
			snapshot_id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			taken_at DATETIME NOT NULL,
			total_size_bytes INTEGER NOT NULL,
			file_count INTEGER NOT NULL,
			entries TEXT NOT NULL,
			dupe_summary TEXT NOT NULL,
			bloat_summary TEXT NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(project_id)
		);

		CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (snapshot_id) REFERENCES snapshots(snapshot_id)
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_project_time ON snapshots(project_id, taken_at);
		CREATE INDEX IF NOT EXISTS idx_alerts_snapshot ON alerts(snapshot_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// projectLock returns the mutex serializing persists for one project.
func (s *SQLiteStore) projectLock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	return l
}

// EnsureProject returns the project for rootPath, creating it on first use.
func (s *SQLiteStore) EnsureProject(ctx context.Context, rootPath string) (*Project, error) {
	p, err := s.GetProject(ctx, rootPath)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p = &Project{
		ProjectID: uuid.New().String(),
		RootPath:  rootPath,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (project_id, root_path, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(root_path) DO NOTHING`,
		p.ProjectID, p.RootPath, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting project: %w", err)
	}

	// Re-read: a concurrent EnsureProject may have won the insert.
	return s.GetProject(ctx, rootPath)
}

// GetProject looks a project up by root path.
func (s *SQLiteStore) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, root_path, created_at FROM projects WHERE root_path = ?`,
		rootPath,
	).Scan(&p.ProjectID, &p.RootPath, &p.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project for %s: %w", rootPath, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}

	return &p, nil
}

// Persist writes a new immutable snapshot in a single transaction. The
// transaction commit is the durability point; a success return means the
// snapshot is on disk.
func (s *SQLiteStore) Persist(ctx context.Context, projectID string, snap NewSnapshot) (*Snapshot, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	entries, err := json.Marshal(snap.Entries)
	if err != nil {
		return nil, fmt.Errorf("encoding entries: %w", err)
	}
	dupeSummary, err := json.Marshal(snap.Dupes)
	if err != nil {
		return nil, fmt.Errorf("encoding duplicate summary: %w", err)
	}
	bloatSummary, err := json.Marshal(snap.Bloat)
	if err != nil {
		return nil, fmt.Errorf("encoding bloat summary: %w", err)
	}

	out := &Snapshot{
		SnapshotID:     uuid.New().String(),
		ProjectID:      projectID,
		TakenAt:        time.Now().UTC(),
		TotalSizeBytes: snap.TotalSizeBytes,
		FileCount:      snap.FileCount,
		Entries:        snap.Entries,
		Dupes:          snap.Dupes,
		Bloat:          snap.Bloat,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, project_id, taken_at, total_size_bytes, file_count, entries, dupe_summary, bloat_summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		out.SnapshotID, out.ProjectID, out.TakenAt, out.TotalSizeBytes, out.FileCount,
		string(entries), string(dupeSummary), string(bloatSummary),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing snapshot: %w", err)
	}

	return out, nil
}

// List returns the project's snapshots oldest first, without entries.
func (s *SQLiteStore) List(ctx context.Context, projectID string) ([]*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_id, project_id, taken_at, total_size_bytes, file_count, dupe_summary, bloat_summary
		 FROM snapshots WHERE project_id = ? ORDER BY taken_at ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshotRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return snaps, nil
}

// Get returns the full snapshot including its entry map.
func (s *SQLiteStore) Get(ctx context.Context, snapshotID string) (*Snapshot, error) {
	return s.getFull(ctx,
		`SELECT snapshot_id, project_id, taken_at, total_size_bytes, file_count, entries, dupe_summary, bloat_summary
		 FROM snapshots WHERE snapshot_id = ?`,
		snapshotID,
	)
}

// Latest returns the most recent full snapshot for the project.
func (s *SQLiteStore) Latest(ctx context.Context, projectID string) (*Snapshot, error) {
	return s.getFull(ctx,
		`SELECT snapshot_id, project_id, taken_at, total_size_bytes, file_count, entries, dupe_summary, bloat_summary
		 FROM snapshots WHERE project_id = ? ORDER BY taken_at DESC LIMIT 1`,
		projectID,
	)
}

func (s *SQLiteStore) getFull(ctx context.Context, query string, arg string) (*Snapshot, error) {
	var (
		snap         Snapshot
		entries      string
		dupeSummary  string
		bloatSummary string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&snap.SnapshotID, &snap.ProjectID, &snap.TakenAt,
		&snap.TotalSizeBytes, &snap.FileCount,
		&entries, &dupeSummary, &bloatSummary,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(entries), &snap.Entries); err != nil {
		return nil, fmt.Errorf("decoding entries: %w", err)
	}
	if err := json.Unmarshal([]byte(dupeSummary), &snap.Dupes); err != nil {
		return nil, fmt.Errorf("decoding duplicate summary: %w", err)
	}
	if err := json.Unmarshal([]byte(bloatSummary), &snap.Bloat); err != nil {
		return nil, fmt.Errorf("decoding bloat summary: %w", err)
	}

	return &snap, nil
}

// scanSnapshotRow reads a listing row (no entries column).
func scanSnapshotRow(scan func(dest ...any) error) (*Snapshot, error) {
	var (
		snap         Snapshot
		dupeSummary  string
		bloatSummary string
	)
	if err := scan(
		&snap.SnapshotID, &snap.ProjectID, &snap.TakenAt,
		&snap.TotalSizeBytes, &snap.FileCount,
		&dupeSummary, &bloatSummary,
	); err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}
	if err := json.Unmarshal([]byte(dupeSummary), &snap.Dupes); err != nil {
		return nil, fmt.Errorf("decoding duplicate summary: %w", err)
	}
	if err := json.Unmarshal([]byte(bloatSummary), &snap.Bloat); err != nil {
		return nil, fmt.Errorf("decoding bloat summary: %w", err)
	}
	return &snap, nil
}

// SaveAlerts appends alert history for a snapshot in one transaction.
func (s *SQLiteStore) SaveAlerts(ctx context.Context, snapshotID string, alerts []AlertRecord) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO alerts (snapshot_id, severity, category, message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, a := range alerts {
		created := a.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx, snapshotID, a.Severity, a.Category, a.Message, created); err != nil {
			return fmt.Errorf("inserting alert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing alerts: %w", err)
	}

	return nil
}

// ListAlerts returns the project's alert history, oldest first.
func (s *SQLiteStore) ListAlerts(ctx context.Context, projectID string) ([]AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.severity, a.category, a.message, a.created_at
		 FROM alerts a JOIN snapshots sn ON a.snapshot_id = sn.snapshot_id
		 WHERE sn.project_id = ?
		 ORDER BY a.created_at ASC, a.id ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []AlertRecord
	for rows.Next() {
		var a AlertRecord
		if err := rows.Scan(&a.Severity, &a.Category, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return alerts, nil
}

// Prune removes the oldest snapshots beyond keep, along with their alerts.
func (s *SQLiteStore) Prune(ctx context.Context, projectID string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT snapshot_id FROM snapshots WHERE project_id = ?
		 ORDER BY taken_at DESC LIMIT -1 OFFSET ?`,
		projectID, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("querying prune candidates: %w", err)
	}

	var victims []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning row: %w", err)
		}
		victims = append(victims, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()

	for _, id := range victims {
		if _, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE snapshot_id = ?`, id); err != nil {
			return 0, fmt.Errorf("deleting alerts for %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE snapshot_id = ?`, id); err != nil {
			return 0, fmt.Errorf("deleting snapshot %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}

	return len(victims), nil
}
