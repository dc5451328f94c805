package queue

import (
	"context"
	"fmt"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
)

// SessionRecord is the open-session row. Its presence means the session
// has not been cleanly closed.
type SessionRecord struct {
	SessionID string
	StartTS   int64

	// Snapshot is the last default-annotation set recorded for the session.
	Snapshot event.Value
}

// Sessions tracks open sessions so missing session_end events can be
// synthesized after an unclean shutdown.
type Sessions struct {
	st store.Execer
}

// NewSessions creates a session tracker over st.
func NewSessions(st store.Execer) *Sessions {
	return &Sessions{st: st}
}

// Upsert creates or overwrites the row for sessionID.
func (s *Sessions) Upsert(ctx context.Context, sessionID string, startTS int64, snapshot event.Value) error {
	data, err := snapshot.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode session snapshot: %w", err)
	}
	_, err = s.st.Exec(ctx, `
		INSERT OR REPLACE INTO sessions (session_id, timestamp, snapshot)
		VALUES (?, ?, ?)
	`, sessionID, startTS, string(data))
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sessionID, err)
	}
	return nil
}

// Delete removes the row for sessionID. Returns nil if it doesn't exist.
func (s *Sessions) Delete(ctx context.Context, sessionID string) error {
	_, err := s.st.Exec(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// Stale returns every session row whose id differs from currentID.
// Rows with an unreadable snapshot are returned with a null Snapshot.
func (s *Sessions) Stale(ctx context.Context, currentID string) ([]SessionRecord, error) {
	rows, err := s.st.Query(ctx, `
		SELECT session_id, timestamp, snapshot FROM sessions
		WHERE session_id != ?
		ORDER BY timestamp ASC
	`, currentID)
	if err != nil {
		return nil, fmt.Errorf("select stale sessions: %w", err)
	}
	return toSessionRecords(rows), nil
}

// Get returns the row for sessionID.
// Returns store.ErrNotFound if it doesn't exist.
func (s *Sessions) Get(ctx context.Context, sessionID string) (SessionRecord, error) {
	rows, err := s.st.Query(ctx, `
		SELECT session_id, timestamp, snapshot FROM sessions
		WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if len(rows) == 0 {
		return SessionRecord{}, store.ErrNotFound
	}
	return toSessionRecords(rows)[0], nil
}

func toSessionRecords(rows []store.Row) []SessionRecord {
	records := make([]SessionRecord, 0, len(rows))
	for _, row := range rows {
		snapshot, err := event.Parse(row.Bytes("snapshot"))
		if err != nil {
			snapshot = event.Null()
		}
		records = append(records, SessionRecord{
			SessionID: row.String("session_id"),
			StartTS:   row.Int64("timestamp"),
			Snapshot:  snapshot,
		})
	}
	return records
}
