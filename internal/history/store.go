package history

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists batch outcomes so UIs can show past runs. It observes the
// job loop; it never participates in control flow.
type Store struct {
	db *sql.DB
}

// RunRecord is one completed batch.
type RunRecord struct {
	ID              string    `json:"id"`
	Provider        string    `json:"provider"`
	Model           string    `json:"model"`
	Device          string    `json:"device"`
	ComputeType     string    `json:"compute_type"`
	Total           int       `json:"total"`
	Processed       int       `json:"processed"`
	Failed          int       `json:"failed"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// FileRecord is one per-file outcome within a run.
type FileRecord struct {
	RunID           string  `json:"run_id"`
	FilePath        string  `json:"file_path"`
	Status          string  `json:"status"` // "done" or "failed"
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Confidence      float64 `json:"confidence"`
	OutputTxt       string  `json:"output_txt,omitempty"`
	OutputJSON      string  `json:"output_json,omitempty"`
}

func NewSQLite(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	s := &Store{db: sqlDB}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		device TEXT NOT NULL,
		compute_type TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		duration_seconds REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS run_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		duration_seconds REAL NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		output_txt TEXT,
		output_json TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_run_files_run_id ON run_files(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores the final summary of a batch. Re-running with the same
// session id replaces the previous summary row.
func (s *Store) RecordRun(run RunRecord) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO runs (id, provider, model, device, compute_type, total, processed, failed, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Provider, run.Model, run.Device, run.ComputeType,
		run.Total, run.Processed, run.Failed, run.DurationSeconds,
	)
	return err
}

// RecordFile stores one per-file outcome.
func (s *Store) RecordFile(file FileRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO run_files (run_id, file_path, status, error, duration_seconds, confidence, output_txt, output_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		file.RunID, file.FilePath, file.Status, file.Error,
		file.DurationSeconds, file.Confidence, file.OutputTxt, file.OutputJSON,
	)
	return err
}

// RecentRuns returns runs ordered by creation time (newest first).
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, provider, model, device, compute_type, total, processed, failed, duration_seconds, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.ID, &run.Provider, &run.Model, &run.Device, &run.ComputeType,
			&run.Total, &run.Processed, &run.Failed, &run.DurationSeconds, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FilesForRun returns the per-file outcomes of one run in insertion order.
func (s *Store) FilesForRun(runID string) ([]FileRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, file_path, status, COALESCE(error, ''), duration_seconds, confidence, COALESCE(output_txt, ''), COALESCE(output_json, '')
		FROM run_files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var file FileRecord
		if err := rows.Scan(&file.RunID, &file.FilePath, &file.Status, &file.Error,
			&file.DurationSeconds, &file.Confidence, &file.OutputTxt, &file.OutputJSON); err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
