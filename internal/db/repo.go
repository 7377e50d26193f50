package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wellness-chat/pkg"
)

// Repository stores chat transcripts keyed by session id.  It backs the
// remote session store and works on PostgreSQL and SQLite alike.
type Repository struct {
	DB      *sql.DB
	Dialect Dialect
	// Notifier, when set, announces ended sessions.
	Notifier *Notifier
	Now      func() time.Time
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{DB: db, Dialect: dialect, Now: time.Now}
}

// GetSession returns the messages of a session ordered by creation.  An
// unknown session yields an empty slice.
func (r *Repository) GetSession(ctx context.Context, id pkg.SessionID) ([]pkg.Message, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(
		`SELECT id, role, content, created_at
         FROM chat_messages
         WHERE session_id = ?
         ORDER BY created_at ASC, id ASC`), string(id))
	if err != nil {
		return nil, fmt.Errorf("db: get session %s: %w", id, err)
	}
	defer rows.Close()

	messages := []pkg.Message{}
	for rows.Next() {
		var (
			m    pkg.Message
			role string
			ms   int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &ms); err != nil {
			return nil, fmt.Errorf("db: scan message: %w", err)
		}
		m.Role = pkg.Role(role)
		m.Timestamp = time.UnixMilli(ms).UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: get session %s: %w", id, err)
	}
	return messages, nil
}

// SaveSession replaces the stored transcript of a session with messages.
func (r *Repository) SaveSession(ctx context.Context, id pkg.SessionID, messages []pkg.Message) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.touch(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM chat_messages WHERE session_id = ?`), string(id)); err != nil {
			return err
		}
		for _, m := range messages {
			if err := r.insertMessage(ctx, tx, id, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("db: save session %s: %w", id, err)
	}
	return nil
}

// SaveMessage appends one message, creating the session row on first use.
// Saving the same message id twice is a no-op.
func (r *Repository) SaveMessage(ctx context.Context, id pkg.SessionID, m pkg.Message) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.touch(ctx, tx, id); err != nil {
			return err
		}
		return r.insertMessage(ctx, tx, id, m)
	})
	if err != nil {
		return fmt.Errorf("db: save message %s/%s: %w", id, m.ID, err)
	}
	return nil
}

// EndSession deletes every record of a session.  Ending an unknown session
// succeeds.
func (r *Repository) EndSession(ctx context.Context, id pkg.SessionID) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM chat_messages WHERE session_id = ?`), string(id)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, r.q(`DELETE FROM chat_sessions WHERE id = ?`), string(id))
		return err
	})
	if err != nil {
		return fmt.Errorf("db: end session %s: %w", id, err)
	}
	if r.Notifier != nil {
		r.Notifier.SessionEnded(ctx, id)
	}
	return nil
}

// PurgeIdle deletes sessions not written since before and returns how many
// were removed.
func (r *Repository) PurgeIdle(ctx context.Context, before time.Time) (int64, error) {
	cutoff := before.UnixMilli()
	var purged int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.q(
			`DELETE FROM chat_messages
             WHERE session_id IN (SELECT id FROM chat_sessions WHERE updated_at < ?)`), cutoff); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, r.q(`DELETE FROM chat_sessions WHERE updated_at < ?`), cutoff)
		if err != nil {
			return err
		}
		purged, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("db: purge idle sessions: %w", err)
	}
	return purged, nil
}

func (r *Repository) touch(ctx context.Context, tx *sql.Tx, id pkg.SessionID) error {
	now := r.Now().UnixMilli()
	_, err := tx.ExecContext(ctx, r.q(
		`INSERT INTO chat_sessions (id, created_at, updated_at)
         VALUES (?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET updated_at = excluded.updated_at`),
		string(id), now, now,
	)
	return err
}

func (r *Repository) insertMessage(ctx context.Context, tx *sql.Tx, id pkg.SessionID, m pkg.Message) error {
	_, err := tx.ExecContext(ctx, r.q(
		`INSERT INTO chat_messages (session_id, id, role, content, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (session_id, id) DO NOTHING`),
		string(id), m.ID, string(m.Role), m.Content, m.Timestamp.UnixMilli(),
	)
	return err
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// q rewrites ? placeholders into the dialect's form.
func (r *Repository) q(query string) string {
	if r.Dialect != Postgres {
		return query
	}
	return rebind(query)
}

// rebind turns ? placeholders into PostgreSQL's $1, $2, ...
func rebind(query string) string {
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
