package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"wellness-chat/pkg"
)

// Notifier publishes session lifecycle events through PostgreSQL
// LISTEN/NOTIFY so other replicas can drop anything they hold for an ended
// session.  The payload is the session id.
type Notifier struct {
	DB      *sql.DB
	Channel string
	Log     *zap.Logger
}

// NewNotifier constructs a new Notifier.  The channel should match the
// database.notify_channel config value.
func NewNotifier(db *sql.DB, channel string, log *zap.Logger) *Notifier {
	return &Notifier{DB: db, Channel: channel, Log: log}
}

// Notify sends a notification to the configured channel with the session ID.
func (n *Notifier) Notify(ctx context.Context, sessionID pkg.SessionID) error {
	channel := pq.QuoteIdentifier(n.Channel)
	_, err := n.DB.ExecContext(ctx, fmt.Sprintf("NOTIFY %s, %s", channel, pq.QuoteLiteral(string(sessionID))))
	return err
}

// SessionEnded notifies listeners that a session was purged.  Delivery is
// best-effort: the purge already committed, so failures are only logged.
func (n *Notifier) SessionEnded(ctx context.Context, sessionID pkg.SessionID) {
	if err := n.Notify(ctx, sessionID); err != nil && n.Log != nil {
		n.Log.Warn("session end notification failed",
			zap.String("session_id", string(sessionID)),
			zap.String("channel", n.Channel),
			zap.Error(err))
	}
}
