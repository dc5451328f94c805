package store

import (
	"context"
	"fmt"
	"strconv"
)

// Well-known state keys.
const (
	KeySessionNum     = "session_num"
	KeyTransactionNum = "transaction_num"
	KeyDefaultUserID  = "default_user_id"
)

// Counters persists small integer state: global counters in the state
// table and per-progression attempt counts.
type Counters struct {
	ex Execer
}

// NewCounters creates counters backed by ex.
func NewCounters(ex Execer) *Counters {
	return &Counters{ex: ex}
}

// GetString returns the raw value stored under key, or "" when absent.
func (c *Counters) GetString(ctx context.Context, key string) (string, error) {
	rows, err := c.ex.Query(ctx, `SELECT value FROM state WHERE key = ?`, key)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].String("value"), nil
}

// SetString stores a raw value under key.
func (c *Counters) SetString(ctx context.Context, key, value string) error {
	_, err := c.ex.Exec(ctx,
		`INSERT OR REPLACE INTO state (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or 0 when absent.
func (c *Counters) Get(ctx context.Context, key string) (int, error) {
	raw, err := c.GetString(ctx, key)
	if err != nil || raw == "" {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

// Set stores value under key.
func (c *Counters) Set(ctx context.Context, key string, value int) error {
	return c.SetString(ctx, key, strconv.Itoa(value))
}

// Increment adds one to key and returns the new value.
func (c *Counters) Increment(ctx context.Context, key string) (int, error) {
	n, err := c.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	n++
	if err := c.Set(ctx, key, n); err != nil {
		return 0, err
	}
	return n, nil
}

// ProgressionTries returns the attempt count for a progression, or 0.
func (c *Counters) ProgressionTries(ctx context.Context, progression string) (int, error) {
	rows, err := c.ex.Query(ctx,
		`SELECT tries FROM progression WHERE progression = ?`, progression)
	if err != nil {
		return 0, fmt.Errorf("get progression tries: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(rows[0].Int64("tries")), nil
}

// IncrementProgressionTries adds one attempt and returns the new count.
func (c *Counters) IncrementProgressionTries(ctx context.Context, progression string) (int, error) {
	_, err := c.ex.Exec(ctx, `
		INSERT INTO progression (progression, tries) VALUES (?, 1)
		ON CONFLICT(progression) DO UPDATE SET tries = tries + 1
	`, progression)
	if err != nil {
		return 0, fmt.Errorf("increment progression tries: %w", err)
	}
	return c.ProgressionTries(ctx, progression)
}

// ClearProgressionTries removes the attempt count for a progression.
// Returns nil if it doesn't exist.
func (c *Counters) ClearProgressionTries(ctx context.Context, progression string) error {
	_, err := c.ex.Exec(ctx, `DELETE FROM progression WHERE progression = ?`, progression)
	if err != nil {
		return fmt.Errorf("clear progression tries: %w", err)
	}
	return nil
}
