// Package queue implements the durable event queue and session bookkeeping
// on top of a store.Store.
//
// Rows move New -> Claimed(requestID) -> {deleted | New}. A claim reserves a
// batch under one fresh request id; Commit deletes it, Putback returns it,
// and ResetStuck returns every claimed row left over by a crash.
package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
)

// StatusNew marks rows eligible for the next claim. Claimed rows carry
// their request id as status.
const StatusNew = "new"

// DefaultBatchSize is the claim ceiling per delivery cycle.
const DefaultBatchSize = 500

// Record is one queued event.
type Record struct {
	ID        int64
	Status    string
	Category  event.Category
	SessionID string
	ClientTS  int64
	Payload   []byte
}

// Claimed reports whether the row is reserved by a request.
func (r Record) Claimed() bool {
	return r.Status != StatusNew
}

// Queue is the durable pending-event table with a claim protocol.
// It is owned by a single writer; it does no locking of its own beyond
// the store's.
type Queue struct {
	st    store.Store
	newID func() string
}

// Option configures a Queue.
type Option func(*Queue)

// WithRequestIDFunc overrides request id generation.
func WithRequestIDFunc(fn func() string) Option {
	return func(q *Queue) {
		if fn != nil {
			q.newID = fn
		}
	}
}

// New creates a queue over st.
func New(st store.Store, opts ...Option) *Queue {
	q := &Queue{
		st:    st,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add persists a new event row.
func (q *Queue) Add(ctx context.Context, category event.Category, sessionID string, clientTS int64, payload []byte) error {
	_, err := q.st.Exec(ctx, `
		INSERT INTO events (status, category, session_id, client_ts, payload)
		VALUES (?, ?, ?, ?, ?)
	`, StatusNew, category.String(), sessionID, clientTS, string(payload))
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// Claim atomically marks up to max New rows as claimed under a fresh
// request id, oldest client timestamp first. A CategoryAny filter claims
// every category. The remainder stays New for a later cycle.
//
// Returns an empty request id and no rows when nothing is New.
func (q *Queue) Claim(ctx context.Context, filter event.Category, max int) (string, []Record, error) {
	if max <= 0 {
		max = DefaultBatchSize
	}

	requestID := q.newID()
	where, args := newRowsFilter(filter)

	var records []Record
	err := q.st.InTx(ctx, func(tx store.Execer) error {
		updateArgs := append([]any{requestID}, args...)
		updateArgs = append(updateArgs, max)
		n, err := tx.Exec(ctx, `
			UPDATE events SET status = ?
			WHERE id IN (
				SELECT id FROM events
				WHERE `+where+`
				ORDER BY client_ts ASC, id ASC
				LIMIT ?
			)
		`, updateArgs...)
		if err != nil {
			return fmt.Errorf("mark claimed: %w", err)
		}
		if n == 0 {
			return nil
		}

		rows, err := tx.Query(ctx, `
			SELECT id, status, category, session_id, client_ts, payload
			FROM events
			WHERE status = ?
			ORDER BY client_ts ASC, id ASC
		`, requestID)
		if err != nil {
			return fmt.Errorf("read claimed: %w", err)
		}
		records = toRecords(rows)
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("claim: %w", err)
	}

	if len(records) == 0 {
		return "", nil, nil
	}
	return requestID, records, nil
}

// Commit deletes every row claimed under requestID. Committing an unknown
// or already committed request id is a no-op.
func (q *Queue) Commit(ctx context.Context, requestID string) (int64, error) {
	if requestID == "" || requestID == StatusNew {
		return 0, nil
	}
	n, err := q.st.Exec(ctx, `DELETE FROM events WHERE status = ?`, requestID)
	if err != nil {
		return 0, fmt.Errorf("commit %s: %w", requestID, err)
	}
	return n, nil
}

// Putback returns every row claimed under requestID to New.
func (q *Queue) Putback(ctx context.Context, requestID string) (int64, error) {
	if requestID == "" || requestID == StatusNew {
		return 0, nil
	}
	n, err := q.st.Exec(ctx, `UPDATE events SET status = ? WHERE status = ?`, StatusNew, requestID)
	if err != nil {
		return 0, fmt.Errorf("putback %s: %w", requestID, err)
	}
	return n, nil
}

// ResetStuck returns every claimed row to New regardless of request id.
func (q *Queue) ResetStuck(ctx context.Context) (int64, error) {
	n, err := q.st.Exec(ctx, `UPDATE events SET status = ? WHERE status != ?`, StatusNew, StatusNew)
	if err != nil {
		return 0, fmt.Errorf("reset stuck: %w", err)
	}
	return n, nil
}

// Count returns the number of rows, optionally restricted to a status.
// An empty status counts every row.
func (q *Queue) Count(ctx context.Context, status string) (int, error) {
	query := `SELECT COUNT(*) AS n FROM events`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	rows, err := q.st.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(rows[0].Int64("n")), nil
}

// List returns every row ordered by client timestamp. Intended for
// inspection and tests.
func (q *Queue) List(ctx context.Context) ([]Record, error) {
	rows, err := q.st.Query(ctx, `
		SELECT id, status, category, session_id, client_ts, payload
		FROM events
		ORDER BY client_ts ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return toRecords(rows), nil
}

func newRowsFilter(filter event.Category) (string, []any) {
	if filter == event.CategoryAny {
		return `status = ?`, []any{StatusNew}
	}
	return `status = ? AND category = ?`, []any{StatusNew, filter.String()}
}

func toRecords(rows []store.Row) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		category, _ := event.ParseCategory(row.String("category"))
		records = append(records, Record{
			ID:        row.Int64("id"),
			Status:    row.String("status"),
			Category:  category,
			SessionID: row.String("session_id"),
			ClientTS:  row.Int64("client_ts"),
			Payload:   row.Bytes("payload"),
		})
	}
	return records
}
