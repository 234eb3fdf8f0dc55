// Package store archives finished battles in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"battlesim/internal/game"
	"battlesim/internal/store/migrations"
	"battlesim/internal/timeline"
)

var (
	// ErrNotFound indicates a requested battle is not archived.
	ErrNotFound = errors.New("battle not found")
	// ErrChecksumMismatch indicates a stored timeline no longer matches the
	// checksum recorded with it.
	ErrChecksumMismatch = errors.New("timeline checksum mismatch")
)

const migrationTable = "schema_migrations"

// Record is one archived battle.
type Record struct {
	ID        string
	CreatedAt time.Time
	Seed      int64
	Winner    game.Winner
	EndTimeMs uint64
	Entries   int
	Checksum  string
	Timeline  timeline.Timeline
}

// Summary is a Record without its timeline.
type Summary struct {
	ID        string
	CreatedAt time.Time
	Seed      int64
	Winner    game.Winner
	EndTimeMs uint64
	Entries   int
	Checksum  string
}

// Store persists battles in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the archive at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveBattle inserts rec and returns its id. A missing id, creation time or
// checksum is filled in.
func (s *Store) SaveBattle(ctx context.Context, rec Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	blob, err := timeline.Encode(rec.Timeline)
	if err != nil {
		return "", fmt.Errorf("encode timeline: %w", err)
	}
	sum, err := timeline.Checksum(rec.Timeline)
	if err != nil {
		return "", fmt.Errorf("checksum timeline: %w", err)
	}
	if rec.Checksum == "" {
		rec.Checksum = sum
	} else if rec.Checksum != sum {
		return "", fmt.Errorf("save battle %s: %w", rec.ID, ErrChecksumMismatch)
	}
	if rec.Entries == 0 {
		rec.Entries = rec.Timeline.Len()
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO battles (
		   id, created_at, seed, winner, end_time_ms, entry_count, checksum, timeline
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.CreatedAt.UTC().UnixMilli(),
		rec.Seed,
		string(rec.Winner),
		int64(rec.EndTimeMs),
		rec.Entries,
		rec.Checksum,
		blob,
	)
	if err != nil {
		return "", fmt.Errorf("save battle %s: %w", rec.ID, err)
	}
	return rec.ID, nil
}

// LoadBattle returns the archived battle with its decoded timeline. The
// timeline is re-checksummed on the way out.
func (s *Store) LoadBattle(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if s == nil || s.sqlDB == nil {
		return Record{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, created_at, seed, winner, end_time_ms, entry_count, checksum, timeline
		   FROM battles
		  WHERE id = ?`,
		id,
	)

	var (
		sum  Summary
		blob []byte
	)
	if err := scanSummary(row, &sum, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("load battle %s: %w", id, err)
	}
	tl, err := timeline.Decode(blob)
	if err != nil {
		return Record{}, fmt.Errorf("load battle %s: %w", id, err)
	}
	check, err := timeline.Checksum(tl)
	if err != nil {
		return Record{}, fmt.Errorf("load battle %s: %w", id, err)
	}
	if check != sum.Checksum {
		return Record{}, fmt.Errorf("load battle %s: %w", id, ErrChecksumMismatch)
	}
	return Record{
		ID:        sum.ID,
		CreatedAt: sum.CreatedAt,
		Seed:      sum.Seed,
		Winner:    sum.Winner,
		EndTimeMs: sum.EndTimeMs,
		Entries:   sum.Entries,
		Checksum:  sum.Checksum,
		Timeline:  tl,
	}, nil
}

// ListBattles returns up to limit battles, newest first.
func (s *Store) ListBattles(ctx context.Context, limit int) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, created_at, seed, winner, end_time_ms, entry_count, checksum
		   FROM battles
		  ORDER BY created_at DESC, id ASC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	defer rows.Close()

	out := make([]Summary, 0, limit)
	for rows.Next() {
		var sum Summary
		if err := scanSummary(rows, &sum, nil); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate battles: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner, sum *Summary, blob *[]byte) error {
	var (
		createdAt int64
		winner    string
		endTimeMs int64
	)
	dest := []any{&sum.ID, &createdAt, &sum.Seed, &winner, &endTimeMs, &sum.Entries, &sum.Checksum}
	if blob != nil {
		dest = append(dest, blob)
	}
	if err := row.Scan(dest...); err != nil {
		return err
	}
	sum.CreatedAt = time.UnixMilli(createdAt).UTC()
	sum.Winner = game.Winner(winner)
	sum.EndTimeMs = uint64(endTimeMs)
	return nil
}

// applyMigrations runs each embedded .sql file at most once, in name order.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	slices.Sort(files)

	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var n int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM `+migrationTable+` WHERE name = ?`, file).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if n > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := sqlDB.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`, file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upSection returns the SQL between the Up and Down markers.
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	if i := strings.Index(content, up); i >= 0 {
		content = content[i+len(up):]
	}
	if i := strings.Index(content, down); i >= 0 {
		content = content[:i]
	}
	return content
}
