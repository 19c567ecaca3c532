package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates an unopened store.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database and runs pending migrations. Use ":memory:"
// for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return s.migrate()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordBuild persists one build, assigning it an ID if it has none.
func (s *SQLiteStore) RecordBuild(b *Build) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	s.logger.Debug("recording build",
		slog.String("id", b.ID),
		slog.String("source", b.SourceFile),
		slog.String("status", string(b.Status)))

	_, err := s.db.Exec(
		`INSERT INTO builds
		   (id, source_file, source_hash, output_path, status, error,
		    binary_size, functions, data_bytes, reg_count, duration_us,
		    created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SourceFile, b.SourceHash, b.OutputPath, string(b.Status),
		b.Error, b.BinarySize, b.Functions, b.DataBytes, b.RegCount,
		b.Duration.Microseconds(), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record build: %w", err)
	}
	return nil
}

// GetBuild retrieves one build by ID.
func (s *SQLiteStore) GetBuild(id string) (*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, source_file, source_hash, output_path, status, error,
		        binary_size, functions, data_bytes, reg_count, duration_us,
		        created_at
		   FROM builds WHERE id = ?`, id)

	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return b, nil
}

// ListBuilds returns recent builds, newest first. An empty sourceFile
// matches every build.
func (s *SQLiteStore) ListBuilds(sourceFile string, limit int) ([]*Build, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, source_file, source_hash, output_path, status,
	                 error, binary_size, functions, data_bytes, reg_count,
	                 duration_us, created_at
	            FROM builds`
	args := []any{}
	if sourceFile != "" {
		query += ` WHERE source_file = ?`
		args = append(args, sourceFile)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer rows.Close()

	var out []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*Build, error) {
	b := &Build{}
	var status string
	var durationUS int64
	err := row.Scan(&b.ID, &b.SourceFile, &b.SourceHash, &b.OutputPath,
		&status, &b.Error, &b.BinarySize, &b.Functions, &b.DataBytes,
		&b.RegCount, &durationUS, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = BuildStatus(status)
	b.Duration = time.Duration(durationUS) * time.Microsecond
	return b, nil
}
