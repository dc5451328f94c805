// Package state holds the process-wide values stamped onto every event:
// session identity, adjusted client time, counters, and custom dimensions.
//
// A State is created once per pipeline and shared by reference. Reads and
// writes are guarded by a mutex; the persisted counters are only touched
// from the pipeline's writer goroutine.
package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
)

// SDKVersion is reported in every annotation set.
const SDKVersion = "go 1.0.0"

// AnnotationVersion is the collector schema version.
const AnnotationVersion = 2

// SDKErrorCategory is the category of diagnostic events.
const SDKErrorCategory = "sdk_error"

// ErrInvalidDimension is returned when a custom dimension is not one of
// the configured values or the slot is out of range.
var ErrInvalidDimension = errors.New("invalid custom dimension")

// State is the annotation provider.
type State struct {
	mu       sync.RWMutex
	counters *store.Counters
	now      func() time.Time

	userID string
	build  string

	sessionID      string
	sessionStart   int64
	sessionNum     int
	transactionNum int
	serverOffset   int64

	dimensions [3]string
	available  [3][]string

	initialized       bool
	submissionEnabled bool
	errorReporting    bool
	manualSessions    bool
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// WithUserID sets the user id. When empty a persisted default is used.
func WithUserID(id string) Option {
	return func(s *State) { s.userID = id }
}

// WithBuild sets the build string reported with every event.
func WithBuild(build string) Option {
	return func(s *State) { s.build = build }
}

// WithAvailableDimensions restricts the values accepted per custom
// dimension slot. A nil list accepts any value.
func WithAvailableDimensions(d01, d02, d03 []string) Option {
	return func(s *State) {
		s.available = [3][]string{d01, d02, d03}
	}
}

// WithErrorReporting toggles diagnostic reports.
func WithErrorReporting(enabled bool) Option {
	return func(s *State) { s.errorReporting = enabled }
}

// WithManualSessionHandling stops the pipeline from starting and ending
// sessions on its own.
func WithManualSessionHandling(manual bool) Option {
	return func(s *State) { s.manualSessions = manual }
}

// New creates a State backed by counters.
func New(counters *store.Counters, opts ...Option) *State {
	s := &State{
		counters:          counters,
		now:               time.Now,
		submissionEnabled: true,
		errorReporting:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads persisted counters and the default user id, generating and
// storing a user id on first run.
func (s *State) Load(ctx context.Context) error {
	sessionNum, err := s.counters.Get(ctx, store.KeySessionNum)
	if err != nil {
		return fmt.Errorf("load session num: %w", err)
	}
	transactionNum, err := s.counters.Get(ctx, store.KeyTransactionNum)
	if err != nil {
		return fmt.Errorf("load transaction num: %w", err)
	}

	s.mu.Lock()
	needsUserID := s.userID == ""
	s.sessionNum = sessionNum
	s.transactionNum = transactionNum
	s.mu.Unlock()

	if !needsUserID {
		return nil
	}

	id, err := s.counters.GetString(ctx, store.KeyDefaultUserID)
	if err != nil {
		return fmt.Errorf("load default user id: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
		if err := s.counters.SetString(ctx, store.KeyDefaultUserID, id); err != nil {
			return fmt.Errorf("store default user id: %w", err)
		}
	}

	s.mu.Lock()
	s.userID = id
	s.mu.Unlock()
	return nil
}

// Counters returns the persisted counters.
func (s *State) Counters() *store.Counters {
	return s.counters
}

// ClientTS returns the device time in seconds.
func (s *State) ClientTS() int64 {
	return s.now().Unix()
}

// AdjustedClientTS returns device time corrected by the server offset.
func (s *State) AdjustedClientTS() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().Unix() + s.serverOffset
}

// SetServerTime records the collector's clock. Non-positive values reset
// the offset to zero.
func (s *State) SetServerTime(serverTS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if serverTS <= 0 {
		s.serverOffset = 0
		return
	}
	s.serverOffset = serverTS - s.now().Unix()
}

// ServerOffset returns the current clock correction in seconds.
func (s *State) ServerOffset() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverOffset
}

// BeginSession assigns a fresh session id and start time.
func (s *State) BeginSession() string {
	id := uuid.NewString()
	start := s.AdjustedClientTS()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = id
	s.sessionStart = start
	return id
}

// EndSession clears the live session.
func (s *State) EndSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = ""
	s.sessionStart = 0
}

// SessionStarted reports whether a session is live.
func (s *State) SessionStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionStart != 0
}

// SessionID returns the live session id, or "".
func (s *State) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// SessionStart returns the adjusted start time of the live session.
func (s *State) SessionStart() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionStart
}

// SessionNum returns the last assigned session number.
func (s *State) SessionNum() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionNum
}

// TransactionNum returns the last assigned transaction number.
func (s *State) TransactionNum() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactionNum
}

// IncrementSessionNum persists and returns the next session number.
func (s *State) IncrementSessionNum(ctx context.Context) (int, error) {
	n, err := s.counters.Increment(ctx, store.KeySessionNum)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.sessionNum = n
	s.mu.Unlock()
	return n, nil
}

// IncrementTransactionNum persists and returns the next transaction number.
func (s *State) IncrementTransactionNum(ctx context.Context) (int, error) {
	n, err := s.counters.Increment(ctx, store.KeyTransactionNum)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.transactionNum = n
	s.mu.Unlock()
	return n, nil
}

// SetCustomDimension sets slot 1, 2 or 3. An empty value clears the slot.
func (s *State) SetCustomDimension(slot int, value string) error {
	if slot < 1 || slot > 3 {
		return fmt.Errorf("%w: slot %d", ErrInvalidDimension, slot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := s.available[slot-1]
	if value != "" && allowed != nil && !slices.Contains(allowed, value) {
		return fmt.Errorf("%w: %q not available for slot %d", ErrInvalidDimension, value, slot)
	}
	s.dimensions[slot-1] = value
	return nil
}

// Dimensions returns the current custom dimensions in slot order.
func (s *State) Dimensions() [3]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// SetInitialized marks the pipeline ready to accept events.
func (s *State) SetInitialized(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = v
}

// Initialized reports whether the pipeline accepts events.
func (s *State) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// SetSubmissionEnabled toggles event submission globally.
func (s *State) SetSubmissionEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissionEnabled = v
}

// SubmissionEnabled reports whether events are recorded and sent.
func (s *State) SubmissionEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submissionEnabled
}

// ErrorReporting reports whether diagnostic reports are sent.
func (s *State) ErrorReporting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errorReporting
}

// ManualSessionHandling reports whether sessions are caller-managed.
func (s *State) ManualSessionHandling() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manualSessions
}

// UserID returns the user id.
func (s *State) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Annotations returns the default fields merged into every event.
func (s *State) Annotations() event.Value {
	clientTS := s.AdjustedClientTS()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return event.NewBuilder().
		SetInt("v", AnnotationVersion).
		SetString("user_id", s.userID).
		SetInt("client_ts", clientTS).
		SetString("sdk_version", SDKVersion).
		SetString("session_id", s.sessionID).
		SetInt("session_num", int64(s.sessionNum)).
		SetIfNotEmpty("build", s.build).
		Build()
}

// InitAnnotations returns the body of the init request.
func (s *State) InitAnnotations() event.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return event.NewBuilder().
		SetString("user_id", s.userID).
		SetString("sdk_version", SDKVersion).
		SetInt("session_num", int64(s.sessionNum)).
		SetIfNotEmpty("build", s.build).
		Build()
}

// SDKErrorAnnotations returns the minimal fields of a diagnostic event.
func (s *State) SDKErrorAnnotations() event.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return event.NewBuilder().
		SetInt("v", AnnotationVersion).
		SetString("category", SDKErrorCategory).
		SetString("sdk_version", SDKVersion).
		SetIfNotEmpty("build", s.build).
		Build()
}
