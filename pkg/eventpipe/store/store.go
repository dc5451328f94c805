// Package store provides the durable local store behind the event queue.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Execer runs synchronous queries.
type Execer interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Query runs a statement and returns every result row.
	// Returns an empty slice (not error) when nothing matches.
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// Store is a durable key-ordered relational store.
// Implementations must be safe for concurrent use.
type Store interface {
	Execer

	// InTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Execer) error) error

	// Size returns the number of bytes used by live data.
	Size(ctx context.Context) (int64, error)

	// Ready reports whether the schema is in place and the store is open.
	Ready() bool

	// Close releases any resources (connections, files).
	Close() error
}

// Row is one result row keyed by column name.
type Row map[string]any

// String returns the column as a string, or "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

// Int64 returns the column as an integer, or 0.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			return n
		}
	case []byte:
		var n int64
		if _, err := fmt.Sscan(string(v), &n); err == nil {
			return n
		}
	}
	return 0
}

// Bytes returns the column as raw bytes, or nil.
func (r Row) Bytes(col string) []byte {
	switch v := r[col].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

// Sentinel errors for store operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store closed")

	// ErrNotFound indicates a key doesn't exist.
	ErrNotFound = errors.New("not found")
)
