package models

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Synced Field
//
// A SyncedField binds one logical planner field (say daily.tasks) to the
// local store always, and to the remote document store when the session is
// signed in. Widgets read and write it freely; the field owns the debounce
// window, the saving flag, and the merge/fallback policy between backends.
//
// Lifecycle: construction kicks off a one-shot load (remote -> local ->
// default), Set re-arms the debounce timer, the timer (or Flush) runs the
// persist sequence, Dispose retires the field. Only one persist runs at a
// time per field; a Set during an in-flight persist supersedes it in
// memory and re-arms a fresh window, and the in-flight write completes
// with the value it captured — the remote converges on the next fire.
//
// Failure asymmetry, kept deliberately: local write failures surface to
// the saving observer (the UI should show unsaved state), remote failures
// are logged and swallowed. Local storage is the durability guarantee;
// remote sync is an enhancement.
// ============================================================================

// DefaultDebounce is the delay between a Set and its persist attempt,
// coalescing rapid edits into one write.
const DefaultDebounce = 400 * time.Millisecond

// FieldState is the lifecycle state of a SyncedField.
type FieldState int

const (
	FieldUninitialized FieldState = iota
	FieldLoading
	FieldReady
	FieldDisposed
)

// SavingObserver is notified whenever the field's saving flag flips.
// err is non-nil only when a persist failed locally — the unsaved-state
// signal a status bar wants.
type SavingObserver func(saving bool, err error)

// SyncedField is the debounced, two-backend binding for one field.
// Construct through a Session so widgets sharing a field share one
// instance; independent debounce timers on the same field would race each
// other's read-merge-write against the remote document.
type SyncedField struct {
	key     string
	userID  string
	section string
	field   string
	initial json.RawMessage

	local    *LocalStore
	remote   DocumentStore // nil when the session is anonymous
	debounce time.Duration
	now      func() time.Time
	observer SavingObserver

	mu     sync.Mutex
	value  json.RawMessage
	state  FieldState
	saving bool
	dirty  bool // a Set landed before the initial load resolved
	timer  *time.Timer
	gen    uint64 // increments on every arm/cancel; stale timers check it
	valGen uint64 // increments only when the value changes

	// persistMu admits one persist sequence at a time, so Flush never
	// duplicates an in-flight debounce write — it waits for it instead.
	// persistedGen and persistErr record the outcome of the last persist
	// and are guarded by persistMu.
	persistMu    sync.Mutex
	persistedGen uint64
	persistErr   error

	ready chan struct{} // closed once the initial load resolves
}

// newSyncedField wires a field and starts its initial load. remote may be
// nil for anonymous sessions. The observer may be nil.
func newSyncedField(
	userID, section, field string,
	initial json.RawMessage,
	local *LocalStore,
	remote DocumentStore,
	debounce time.Duration,
	now func() time.Time,
	observer SavingObserver,
) (*SyncedField, error) {
	key, err := BuildKey(userID, section, field)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if now == nil {
		now = time.Now
	}

	f := &SyncedField{
		key:      key,
		userID:   userID,
		section:  section,
		field:    field,
		initial:  initial,
		local:    local,
		remote:   remote,
		debounce: debounce,
		now:      now,
		observer: observer,
		value:    initial,
		state:    FieldLoading,
		ready:    make(chan struct{}),
	}

	go f.load()
	return f, nil
}

// Key returns the field's serialized storage key.
func (f *SyncedField) Key() string { return f.key }

// State returns the current lifecycle state.
func (f *SyncedField) State() FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// IsSaving reports whether a persist is pending or running.
func (f *SyncedField) IsSaving() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saving
}

// WaitReady blocks until the initial load has resolved (or ctx ends).
func (f *SyncedField) WaitReady(ctx context.Context) error {
	select {
	case <-f.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// load resolves the field's starting value, one-shot per instance:
// the remote document when signed in, falling back to the local entry on
// miss or any remote error, falling back to the initial value on that
// miss too. Remote errors are read as absence, never surfaced.
func (f *SyncedField) load() {
	defer close(f.ready)

	value := f.initial
	resolved := false

	if f.remote != nil {
		doc, err := f.remote.LoadDocument(context.Background(), f.userID, f.today(), f.section)
		if err != nil {
			logger.LogErr(serr.Wrap(err, "remote load failed, falling back to local"), "key", f.key)
		} else if doc != nil {
			if v, ok := doc[f.field]; ok {
				value = v
				resolved = true
			}
		}
	}

	if !resolved {
		if v, ok := f.local.Read(f.key); ok {
			value = v
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FieldDisposed {
		return
	}
	// A Set that raced the load wins: the user's fresh edit must not be
	// stomped by whatever the backends held at mount time.
	if !f.dirty {
		f.value = value
	}
	f.state = FieldReady
}

// Get returns the current value synchronously. Before the load resolves it
// returns the initial value (or a value a racing Set already applied).
func (f *SyncedField) Get() json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set replaces the value and re-arms the debounce window. The new value is
// visible to Get immediately; persistence follows after the window.
func (f *SyncedField) Set(value json.RawMessage) {
	f.apply(func(json.RawMessage) json.RawMessage { return value })
}

// Update applies a pure function of the previous value, for callers that
// increment or merge rather than replace. Same persistence semantics as Set.
func (f *SyncedField) Update(fn func(prev json.RawMessage) json.RawMessage) {
	f.apply(fn)
}

func (f *SyncedField) apply(fn func(prev json.RawMessage) json.RawMessage) {
	f.mu.Lock()
	if f.state == FieldDisposed {
		f.mu.Unlock()
		return
	}

	f.value = fn(f.value)
	f.dirty = true
	f.valGen++

	// Supersede any armed window: only the latest Set's window persists.
	if f.timer != nil {
		f.timer.Stop()
	}
	f.gen++
	gen := f.gen
	f.saving = true
	f.timer = time.AfterFunc(f.debounce, func() { f.fire(gen) })

	observer := f.observer
	f.mu.Unlock()

	if observer != nil {
		observer(true, nil)
	}
}

// fire runs when a debounce window elapses. A window superseded by a later
// Set (or by Flush/Dispose) is skipped entirely — its value was never
// durable and has already been replaced in memory.
func (f *SyncedField) fire(gen uint64) {
	f.mu.Lock()
	if f.state == FieldDisposed || gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	err := f.persist()

	f.mu.Lock()
	// Only the still-current window clears the saving flag; if a new Set
	// arrived while we were persisting, its window owns the flag now.
	current := gen == f.gen && f.state != FieldDisposed
	if current {
		f.saving = false
	}
	observer := f.observer
	f.mu.Unlock()

	if current && observer != nil {
		observer(false, err)
	}
}

// persist runs the persist sequence: write the current value to the local
// store unconditionally, then best-effort upsert the remote document when
// signed in. Returns the local write error, the only one callers see.
func (f *SyncedField) persist() error {
	f.persistMu.Lock()
	defer f.persistMu.Unlock()
	return f.persistLocked()
}

// persistLocked is the persist sequence proper; callers hold persistMu.
func (f *SyncedField) persistLocked() error {
	f.mu.Lock()
	value := f.value
	valGen := f.valGen
	f.mu.Unlock()

	// Local first: it is the source of truth when offline or signed out,
	// so it is never skipped even when remote sync is available.
	localErr := f.local.Write(f.key, value)
	if localErr != nil {
		logger.LogErr(serr.Wrap(localErr, "local persist failed"), "key", f.key)
	}

	if f.remote != nil {
		if err := f.remote.UpsertField(context.Background(), f.userID, f.today(), f.section, f.field, value); err != nil {
			logRemoteErr(err, "upsert", f.key)
		}
	}

	f.persistedGen = valGen
	f.persistErr = localErr
	return localErr
}

// flushPersist persists for Flush. When a debounce-fired persist is
// mid-flight it awaits that write and reuses its outcome if it covered
// the current value, instead of queueing a duplicate upsert behind it.
func (f *SyncedField) flushPersist() error {
	f.mu.Lock()
	valGen := f.valGen
	f.mu.Unlock()

	if f.persistMu.TryLock() {
		defer f.persistMu.Unlock()
		return f.persistLocked()
	}

	f.persistMu.Lock()
	defer f.persistMu.Unlock()
	if f.persistedGen >= valGen {
		return f.persistErr
	}
	return f.persistLocked()
}

// Flush cancels any pending window and persists the current value
// immediately, returning once it is durable locally. With no window
// pending it persists anyway, so "flushed" always means "durable as of
// now"; a persist already mid-flight for the current value is awaited,
// not repeated.
func (f *SyncedField) Flush() error {
	f.mu.Lock()
	if f.state == FieldDisposed {
		f.mu.Unlock()
		return nil
	}
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.gen++
	f.saving = true
	observer := f.observer
	f.mu.Unlock()

	if observer != nil {
		observer(true, nil)
	}

	err := f.flushPersist()

	f.mu.Lock()
	if f.state != FieldDisposed {
		f.saving = false
	}
	f.mu.Unlock()

	if observer != nil {
		observer(false, err)
	}
	return err
}

// Dispose retires the field: the pending window is cancelled without
// persisting and all further calls are no-ops. A persist already past the
// point of cancellation is not rolled back.
func (f *SyncedField) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FieldDisposed {
		return
	}
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.gen++
	f.state = FieldDisposed
	f.saving = false
}

// today is the document date for remote reads and writes.
func (f *SyncedField) today() string {
	return f.now().UTC().Format("2006-01-02")
}
