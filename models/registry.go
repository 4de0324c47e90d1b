package models

import (
	"sync"
	"time"

	"github.com/fishy/errbatch"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Session (field registry)
//
// A Session is the per-login registry of live SyncedFields. Two widgets
// bound to the same logical field must share one instance — one debounce
// timer, one saving flag — or their independent windows each run a
// read-merge-write against the remote document and can revert each other's
// interim value. The registry is session-scoped rather than process-global:
// build one at login, close it at logout or identity change, build a fresh
// one for the next identity.
// ============================================================================

// SessionConfig carries everything a session's fields share.
type SessionConfig struct {
	// UserID is the signed-in user token, or empty/AnonymousUser for a
	// signed-out session.
	UserID string

	// Local is the always-on local store.
	Local *LocalStore

	// Remote is the document store for signed-in sync. Ignored (treated as
	// nil) when the session is anonymous.
	Remote DocumentStore

	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	// Now supplies the document date; defaults to time.Now.
	Now func() time.Time

	// Observer receives saving-state changes from every field in the
	// session, keyed by the field's storage key.
	Observer func(key string, saving bool, err error)
}

// Session owns the live fields of one identity. Safe for concurrent use.
type Session struct {
	userID   string
	local    *LocalStore
	remote   DocumentStore
	debounce time.Duration
	now      func() time.Time
	observer func(key string, saving bool, err error)

	mu     sync.Mutex
	fields map[string]*SyncedField
	closed bool
}

// NewSession creates the registry for one identity. An empty UserID makes
// an anonymous session: local-only persistence under the "anon" keyspace.
func NewSession(cfg SessionConfig) *Session {
	userID := cfg.UserID
	remote := cfg.Remote
	if userID == "" || userID == AnonymousUser {
		userID = AnonymousUser
		remote = nil
	}
	return &Session{
		userID:   userID,
		local:    cfg.Local,
		remote:   remote,
		debounce: cfg.Debounce,
		now:      cfg.Now,
		observer: cfg.Observer,
		fields:   make(map[string]*SyncedField),
	}
}

// UserID returns the session's user token ("anon" when signed out).
func (s *Session) UserID() string { return s.userID }

// Anonymous reports whether this session persists locally only.
func (s *Session) Anonymous() bool { return s.remote == nil }

// Field returns the live SyncedField for (section, field), creating and
// registering it on first request. Every later request for the same pair
// returns the same instance.
func (s *Session) Field(section, field string, initial []byte) (*SyncedField, error) {
	key, err := BuildKey(s.userID, section, field)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, serr.New("session is closed")
	}
	if existing, ok := s.fields[key]; ok {
		return existing, nil
	}

	var fieldObserver SavingObserver
	if s.observer != nil {
		obs := s.observer
		fieldObserver = func(saving bool, err error) { obs(key, saving, err) }
	}

	sf, err := newSyncedField(s.userID, section, field, initial, s.local, s.remote, s.debounce, s.now, fieldObserver)
	if err != nil {
		return nil, err
	}
	s.fields[key] = sf
	return sf, nil
}

// FlushAll persists every live field immediately. Used by "done for today"
// style actions that need durability before navigation or logout.
func (s *Session) FlushAll() error {
	s.mu.Lock()
	fields := make([]*SyncedField, 0, len(s.fields))
	for _, f := range s.fields {
		fields = append(fields, f)
	}
	s.mu.Unlock()

	batch := new(errbatch.ErrBatch)
	for _, f := range fields {
		batch.Add(f.Flush())
	}
	return batch.Compile()
}

// Close disposes every registered field and retires the session. Called on
// logout or identity change; pending debounce windows are dropped, so call
// FlushAll first when those edits must survive.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, f := range s.fields {
		f.Dispose()
	}
	s.fields = make(map[string]*SyncedField)
	s.closed = true
	logger.Debug("Session closed", "user", s.userID)
}
