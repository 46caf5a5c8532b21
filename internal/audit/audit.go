// Package audit records dispatch outcomes in SQLite.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/keshon/commandgate/internal/command"
)

// Entry is a single audit record.
type Entry struct {
	ID         string
	Timestamp  time.Time
	GuildID    string
	UserID     string
	Command    string
	State      string
	Error      string
	DurationMs int64
}

// EntryFromResult converts a dispatch result into an audit entry.
func EntryFromResult(res command.Result) Entry {
	e := Entry{
		ID:         res.ID,
		Timestamp:  res.CompletedAt,
		GuildID:    res.GuildID,
		UserID:     res.UserID,
		Command:    res.Command,
		State:      res.State.String(),
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	return e
}

// Logger persists audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
	Close() error
}

// SQLiteLogger implements Logger on SQLite.
type SQLiteLogger struct {
	db *sql.DB
}

// NewSQLiteLogger opens (or creates) the audit database at dbPath.
func NewSQLiteLogger(dbPath string) (*SQLiteLogger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteLogger{db: db}, nil
}

func createSchema(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS dispatch_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			guild_id TEXT,
			user_id TEXT,
			command TEXT NOT NULL,
			state TEXT NOT NULL,
			error TEXT,
			duration_ms INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_dispatch_timestamp ON dispatch_log(timestamp);
		CREATE INDEX IF NOT EXISTS idx_dispatch_command ON dispatch_log(command);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Log records one entry.
func (l *SQLiteLogger) Log(ctx context.Context, e Entry) error {
	const query = `
		INSERT INTO dispatch_log (id, timestamp, guild_id, user_id, command, state, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := l.db.ExecContext(ctx, query,
		e.ID, ts.UnixMilli(), e.GuildID, e.UserID, e.Command, e.State, e.Error, e.DurationMs)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty cmd matches all commands.
func (l *SQLiteLogger) Recent(ctx context.Context, cmd string, limit int) ([]Entry, error) {
	const query = `
		SELECT id, timestamp, guild_id, user_id, command, state, error, duration_ms
		FROM dispatch_log
		WHERE ? = '' OR command = ?
		ORDER BY seq DESC
		LIMIT ?
	`
	rows, err := l.db.QueryContext(ctx, query, cmd, cmd, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ts int64
		)
		if err := rows.Scan(&e.ID, &ts, &e.GuildID, &e.UserID, &e.Command, &e.State, &e.Error, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases database resources.
func (l *SQLiteLogger) Close() error {
	return l.db.Close()
}

// NopLogger discards entries.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Entry) error { return nil }
func (NopLogger) Close() error                     { return nil }

// Observer adapts l into a dispatcher observer. Write failures are logged.
func Observer(l Logger, log zerolog.Logger) command.Observer {
	return func(ctx context.Context, res command.Result) {
		// The dispatch context may already be cancelled by the time we record it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.Log(ctx, EntryFromResult(res)); err != nil {
			log.Warn().Err(err).Str("dispatch_id", res.ID).Msg("Failed to write audit entry")
		}
	}
}
