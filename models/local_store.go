package models

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Local Store
//
// The local store is the durability floor of the sync layer: every persist
// writes here unconditionally, whether or not a remote sync follows, so a
// signed-out or offline session never loses data. Values are JSON text keyed
// by the flat storage keys from keys.go.
//
// The store splits into a thin JSON layer (LocalStore) over a raw
// string-keyed backend (KVStore) so tests and ephemeral sessions can run on
// an in-memory map while deployed clients persist through DuckDB.
// ============================================================================

// ErrStorageUnavailable is returned when the local backend rejects a write,
// e.g. the in-memory quota is exhausted or the database is down. Callers
// surface this to the user as unsaved state; the next Set retries naturally.
var ErrStorageUnavailable = errors.New("local storage unavailable")

// KVStore is the raw string-keyed backend under a LocalStore.
// All operations are synchronous. Scan visits current entries in key order
// and stops early when fn returns false; re-scanning is always safe.
type KVStore interface {
	Get(key string) (value string, ok bool, err error)
	Put(key, value string) error
	Delete(key string) error
	Scan(prefix string, fn func(key, value string) bool) error
}

// LocalStore wraps a KVStore with JSON encoding and the corrupt-entry
// policy: an entry that no longer parses as JSON is logged and treated as
// missing rather than poisoning every read.
type LocalStore struct {
	kv KVStore
}

// NewLocalStore creates a LocalStore over the given backend.
func NewLocalStore(kv KVStore) *LocalStore {
	return &LocalStore{kv: kv}
}

// Read returns the JSON value for a key, or ok=false when the key is
// missing or its stored value is corrupt.
func (ls *LocalStore) Read(key string) (json.RawMessage, bool) {
	raw, ok, err := ls.kv.Get(key)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "local read failed"), "key", key)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if !json.Valid([]byte(raw)) {
		// Corrupt entries are treated as missing, not fatal.
		logger.LogErr(serr.New("corrupt local entry, treating as absent"), "key", key)
		return nil, false
	}
	return json.RawMessage(raw), true
}

// Write stores a JSON value under a key. Non-JSON input is rejected before
// it can corrupt the keyspace.
func (ls *LocalStore) Write(key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return serr.New("refusing to store invalid JSON under " + key)
	}
	if err := ls.kv.Put(key, string(value)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Remove deletes a key. Removing a missing key is a no-op.
func (ls *LocalStore) Remove(key string) error {
	if err := ls.kv.Delete(key); err != nil {
		return serr.Wrap(err, "local remove failed")
	}
	return nil
}

// Enumerate visits every entry whose key starts with prefix, in key order.
// fn returns false to stop early. The raw value is passed through without
// JSON validation; consumers decide how to treat corrupt entries.
func (ls *LocalStore) Enumerate(prefix string, fn func(key string, raw json.RawMessage) bool) error {
	return ls.kv.Scan(prefix, func(key, value string) bool {
		return fn(key, json.RawMessage(value))
	})
}

// ============================================================================
// In-memory backend
// ============================================================================

// MemKV is a map-backed KVStore for tests and signed-out ephemeral
// sessions. An optional byte quota models the bounded storage of the
// platforms this layer targets: once total stored bytes would exceed the
// quota, Put fails and the caller sees ErrStorageUnavailable.
type MemKV struct {
	mu      sync.RWMutex
	entries map[string]string
	quota   int // 0 means unlimited
	used    int
}

// NewMemKV creates an unbounded in-memory backend.
func NewMemKV() *MemKV {
	return &MemKV{entries: make(map[string]string)}
}

// NewMemKVWithQuota creates an in-memory backend that rejects writes once
// total key+value bytes would exceed quota.
func NewMemKVWithQuota(quota int) *MemKV {
	return &MemKV{entries: make(map[string]string), quota: quota}
}

func (m *MemKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemKV) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := len(key) + len(value)
	if old, ok := m.entries[key]; ok {
		delta = len(value) - len(old)
	}
	if m.quota > 0 && m.used+delta > m.quota {
		return serr.New("storage quota exceeded")
	}
	m.entries[key] = value
	m.used += delta
	return nil
}

func (m *MemKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.entries[key]; ok {
		m.used -= len(key) + len(v)
		delete(m.entries, key)
	}
	return nil
}

func (m *MemKV) Scan(prefix string, fn func(key, value string) bool) error {
	// Snapshot under the read lock so fn may write back into the store.
	m.mu.RLock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = m.entries[k]
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if !fn(k, values[k]) {
			return nil
		}
	}
	return nil
}

// ============================================================================
// DuckDB backend
// ============================================================================

// DuckKV is a KVStore persisted in the local_entries table. It uses the
// package database handle, so InitDB must run first.
type DuckKV struct{}

// NewDuckKV returns the DuckDB-backed KVStore.
func NewDuckKV() *DuckKV {
	return &DuckKV{}
}

func (d *DuckKV) Get(key string) (string, bool, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM local_entries WHERE entry_key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, serr.Wrap(err, "failed to read local entry")
	}
	return value, true, nil
}

func (d *DuckKV) Put(key, value string) error {
	_, err := db.Exec(
		`INSERT INTO local_entries (entry_key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (entry_key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return serr.Wrap(err, "failed to write local entry")
	}
	return nil
}

func (d *DuckKV) Delete(key string) error {
	_, err := db.Exec(`DELETE FROM local_entries WHERE entry_key = ?`, key)
	if err != nil {
		return serr.Wrap(err, "failed to delete local entry")
	}
	return nil
}

func (d *DuckKV) Scan(prefix string, fn func(key, value string) bool) error {
	rows, err := db.Query(
		`SELECT entry_key, value FROM local_entries WHERE entry_key LIKE ? || '%' ORDER BY entry_key`,
		prefix,
	)
	if err != nil {
		return serr.Wrap(err, "failed to scan local entries")
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return serr.Wrap(err, "failed to scan local entry row")
		}
		if !fn(key, value) {
			return nil
		}
	}
	return rows.Err()
}
