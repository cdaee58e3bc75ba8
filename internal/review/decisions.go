package review

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates a decisions database written by another version.
var ErrSchemaMismatch = errors.New("decisions schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Decisions persists operator marks keyed by identity key.
type Decisions struct {
	db   *sql.DB
	path string
}

// StoredDecision is a decision with its timestamp.
type StoredDecision struct {
	Decision
	MarkedAt time.Time
}

// OpenDecisions opens or creates the decisions database at path.
func OpenDecisions(ctx context.Context, path string) (*Decisions, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create decisions directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	d := &Decisions{db: db, path: path}
	if err := d.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Decisions) initSchema(ctx context.Context) error {
	var tableExists int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return d.createSchema(ctx)
	}

	var version int
	if err := d.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, d.path)
	}
	return nil
}

func (d *Decisions) createSchema(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Path returns the database location.
func (d *Decisions) Path() string { return d.path }

// Close closes the underlying database connection.
func (d *Decisions) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Put records or replaces the decision for its key.
func (d *Decisions) Put(ctx context.Context, decision Decision) error {
	if decision.Key == "" || decision.Path == "" {
		return errors.New("decision requires key and path")
	}
	return d.exec(ctx,
		`INSERT INTO decisions (key, path, marked_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET path = excluded.path, marked_at = excluded.marked_at`,
		decision.Key, decision.Path, time.Now().UTC().Format(time.RFC3339Nano),
	)
}

// Delete removes the decision for key.
func (d *Decisions) Delete(ctx context.Context, key string) (bool, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := d.db.ExecContext(ctx, "DELETE FROM decisions WHERE key = ?", key)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete decision: %w", err)
	}
	return affected > 0, nil
}

// Clear removes every decision.
func (d *Decisions) Clear(ctx context.Context) error {
	return d.exec(ctx, "DELETE FROM decisions")
}

// List returns every decision ordered by key.
func (d *Decisions) List(ctx context.Context) ([]StoredDecision, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT key, path, marked_at FROM decisions ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []StoredDecision
	for rows.Next() {
		var (
			sd       StoredDecision
			markedAt string
		)
		if err := rows.Scan(&sd.Key, &sd.Path, &markedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		sd.MarkedAt, _ = time.Parse(time.RFC3339Nano, markedAt)
		out = append(out, sd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return out, nil
}

// All returns the decisions without timestamps, ready for Model.Apply.
func (d *Decisions) All(ctx context.Context) ([]Decision, error) {
	stored, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Decision, len(stored))
	for i, sd := range stored {
		out[i] = sd.Decision
	}
	return out, nil
}

func (d *Decisions) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
