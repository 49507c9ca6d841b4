// Package resolutionlog keeps an audit trail of play-session resolutions in
// Postgres, so that operators can see which flows visitors are taking and how often
// they fail.
package resolutionlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tiny-little/royale-web/internal/session"
)

const (
	OutcomeResolved = "resolved"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS resolution_log (
	id         bigserial PRIMARY KEY,
	mode       text NOT NULL,
	user_id    text NOT NULL DEFAULT '',
	outcome    text NOT NULL,
	error      text,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS resolution_log_created_at_idx ON resolution_log (created_at DESC);

CREATE OR REPLACE FUNCTION resolution_log_notify() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('` + NotifyChannel + `', json_build_object(
		'id', NEW.id,
		'mode', NEW.mode,
		'user_id', NEW.user_id,
		'outcome', NEW.outcome,
		'error', NEW.error,
		'created_at', NEW.created_at
	)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS resolution_log_notify ON resolution_log;
CREATE TRIGGER resolution_log_notify AFTER INSERT ON resolution_log
	FOR EACH ROW EXECUTE FUNCTION resolution_log_notify();
`

const insertEntry = `
INSERT INTO resolution_log (mode, user_id, outcome, error, created_at)
VALUES ($1, $2, $3, $4, $5)
`

const selectRecent = `
SELECT id, mode, user_id, outcome, error, created_at
FROM resolution_log
ORDER BY created_at DESC, id DESC
LIMIT $1
`

// DBTX is satisfied by *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

type Entry struct {
	ID        int64
	Mode      string
	UserID    string
	Outcome   string
	Error     sql.NullString
	CreatedAt time.Time
}

type Log struct {
	db DBTX
}

func New(db DBTX) *Log {
	return &Log{db: db}
}

// EnsureSchema creates the resolution_log table if it does not already exist
func (l *Log) EnsureSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// RecordResolution implements session.Recorder
func (l *Log) RecordResolution(ctx context.Context, attempt session.Attempt) error {
	var errText sql.NullString
	if attempt.Err != nil {
		errText = sql.NullString{Valid: true, String: attempt.Err.Error()}
	}
	_, err := l.db.ExecContext(ctx, insertEntry,
		string(attempt.Mode),
		attempt.UserID,
		outcome(attempt),
		errText,
		attempt.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record resolution: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Mode, &e.UserID, &e.Outcome, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func outcome(attempt session.Attempt) string {
	switch {
	case attempt.Err != nil:
		return OutcomeFailed
	case attempt.FellBack:
		return OutcomeFallback
	default:
		return OutcomeResolved
	}
}

// FormatConnectionString builds a lib/pq connection string from the standard PG*
// settings
func FormatConnectionString(host string, port int, dbname string, user string, password string, sslmode string) string {
	s := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s", host, port, dbname, user, quote(password))
	if sslmode != "" {
		s += " sslmode=" + sslmode
	}
	return s
}

// quote escapes a connection string value the way lib/pq expects when it contains
// characters that would otherwise end the value
func quote(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	return "'" + value + "'"
}
