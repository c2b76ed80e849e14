package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"daybook/internal/category"
	"daybook/internal/errors"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Store persists whole-day archive batches. From the engine's perspective the
// store is append-only: a run replaces a complete (user, day) batch, it never
// patches individual records.
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite database at baseDir/daybook.db.
// The baseDir parameter allows tests to use t.TempDir().
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, "daybook.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for surface packages that page through
// runs without going via the engine.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS archive_records (
		  user_id            TEXT NOT NULL,
		  day                TEXT NOT NULL,
		  appointment_id     TEXT NOT NULL,
		  calendar_id        TEXT NOT NULL,
		  subject            TEXT NOT NULL,
		  location           TEXT,
		  start_at           TEXT NOT NULL,
		  end_at             TEXT NOT NULL,
		  original_start     TEXT NOT NULL,
		  original_end       TEXT NOT NULL,
		  missed_ns          INTEGER NOT NULL DEFAULT 0,
		  category_raw       TEXT,
		  customer           TEXT,
		  billing            TEXT,
		  status             TEXT NOT NULL,
		  flags_json         TEXT,
		  conflict_group_id  TEXT,
		  modifications_json TEXT,
		  archived_at        INTEGER NOT NULL,
		  PRIMARY KEY (user_id, day, appointment_id)
		);

		CREATE INDEX IF NOT EXISTS idx_records_status
		ON archive_records(user_id, status, day);

		CREATE TABLE IF NOT EXISTS runs (
		  run_id       TEXT PRIMARY KEY,
		  user_id      TEXT NOT NULL,
		  day          TEXT NOT NULL,
		  started_at   INTEGER NOT NULL,
		  finished_at  INTEGER NOT NULL,
		  summary_json TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_user_day
		ON runs(user_id, day, started_at DESC);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// ReplaceDay atomically swaps the archive for one (user, day): every existing
// record for the day is removed and the new batch inserted in one
// transaction. Partial writes are not possible.
func (s *Store) ReplaceDay(ctx context.Context, userID, day string, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewCollaboratorWrite(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM archive_records WHERE user_id = ? AND day = ?`, userID, day); err != nil {
		return errors.NewCollaboratorWrite(err)
	}

	now := time.Now().Unix()
	insert := `
		INSERT INTO archive_records (
			user_id, day, appointment_id, calendar_id, subject, location,
			start_at, end_at, original_start, original_end, missed_ns,
			category_raw, customer, billing, status, flags_json,
			conflict_group_id, modifications_json, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, r := range records {
		flagsJSON, err := marshalNullable(r.Flags)
		if err != nil {
			return errors.NewInternal(err)
		}
		modsJSON, err := marshalNullable(r.Modifications)
		if err != nil {
			return errors.NewInternal(err)
		}

		if _, err := tx.ExecContext(ctx, insert,
			r.UserID, r.Day, r.AppointmentID, r.CalendarID, r.Subject, toNullString(r.Location),
			r.Start.Format(time.RFC3339Nano), r.End.Format(time.RFC3339Nano),
			r.OriginalStart.Format(time.RFC3339Nano), r.OriginalEnd.Format(time.RFC3339Nano),
			int64(r.MissedTime),
			toNullString(r.CategoryRaw), toNullString(r.Category.Customer), toNullString(string(r.Category.Billing)),
			string(r.Status), flagsJSON, toNullString(r.ConflictGroupID), modsJSON, now,
		); err != nil {
			return errors.NewCollaboratorWrite(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewCollaboratorWrite(err)
	}
	return nil
}

// GetDay returns the archived records for one (user, day), ordered by
// effective start then appointment id.
func (s *Store) GetDay(ctx context.Context, userID, day string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, day, appointment_id, calendar_id, subject, location,
			start_at, end_at, original_start, original_end, missed_ns,
			category_raw, customer, billing, status, flags_json,
			conflict_group_id, modifications_json
		FROM archive_records
		WHERE user_id = ? AND day = ?
		ORDER BY start_at, appointment_id
	`, userID, day)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListConflicts returns conflict-pending records for a user, optionally
// narrowed to one day.
func (s *Store) ListConflicts(ctx context.Context, userID string, day *string) ([]Record, error) {
	query := `
		SELECT user_id, day, appointment_id, calendar_id, subject, location,
			start_at, end_at, original_start, original_end, missed_ns,
			category_raw, customer, billing, status, flags_json,
			conflict_group_id, modifications_json
		FROM archive_records
		WHERE user_id = ? AND status = ?
	`
	args := []any{userID, string(StatusConflictPending)}
	if day != nil {
		query += " AND day = ?"
		args = append(args, *day)
	}
	query += " ORDER BY day, start_at, appointment_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// InsertRun records the summary of a committed run.
func (s *Store) InsertRun(ctx context.Context, summary RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, user_id, day, started_at, finished_at, summary_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, summary.RunID, summary.UserID, summary.Day,
		summary.StartedAt.Unix(), summary.FinishedAt.Unix(), string(summaryJSON))
	if err != nil {
		return errors.NewCollaboratorWrite(err)
	}
	return nil
}

// ListRuns returns run summaries for a user, newest first, optionally
// narrowed to one day.
func (s *Store) ListRuns(ctx context.Context, userID string, day *string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT summary_json FROM runs WHERE user_id = ?`
	args := []any{userID}
	if day != nil {
		query += " AND day = ?"
		args = append(args, *day)
	}
	query += " ORDER BY started_at DESC, run_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.NewInternal(err)
		}
		var summary RunSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// scanRecords reads archive records from a result set.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			r                                         Record
			location, categoryRaw, customer, billing  sql.NullString
			startAt, endAt, origStart, origEnd        string
			missedNS                                  int64
			flagsJSON, conflictGroupID, modsJSON      sql.NullString
		)
		if err := rows.Scan(
			&r.UserID, &r.Day, &r.AppointmentID, &r.CalendarID, &r.Subject, &location,
			&startAt, &endAt, &origStart, &origEnd, &missedNS,
			&categoryRaw, &customer, &billing, &r.Status, &flagsJSON,
			&conflictGroupID, &modsJSON,
		); err != nil {
			return nil, errors.NewInternal(err)
		}

		r.Location = location.String
		r.CategoryRaw = categoryRaw.String
		r.Category.Customer = customer.String
		r.Category.Billing = category.BillingType(billing.String)
		r.MissedTime = time.Duration(missedNS)
		r.ConflictGroupID = conflictGroupID.String

		var err error
		if r.Start, err = time.Parse(time.RFC3339Nano, startAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		if r.End, err = time.Parse(time.RFC3339Nano, endAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		if r.OriginalStart, err = time.Parse(time.RFC3339Nano, origStart); err != nil {
			return nil, errors.NewInternal(err)
		}
		if r.OriginalEnd, err = time.Parse(time.RFC3339Nano, origEnd); err != nil {
			return nil, errors.NewInternal(err)
		}

		if flagsJSON.Valid {
			if err := json.Unmarshal([]byte(flagsJSON.String), &r.Flags); err != nil {
				return nil, errors.NewInternal(err)
			}
		}
		if modsJSON.Valid {
			if err := json.Unmarshal([]byte(modsJSON.String), &r.Modifications); err != nil {
				return nil, errors.NewInternal(err)
			}
		}

		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// marshalNullable marshals a slice to JSON, returning NULL for empty slices.
func marshalNullable[T any](v []T) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
