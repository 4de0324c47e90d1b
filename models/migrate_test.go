package models

import (
	"context"
	"encoding/json"
	"testing"
)

// seedGuestField writes one anon-keyspace field directly into the local
// store for migration tests.
func seedGuestField(t *testing.T, local *LocalStore, section, field, value string) {
	t.Helper()
	key, err := BuildKey(AnonymousUser, section, field)
	if err != nil {
		t.Fatalf("BuildKey() error: %v", err)
	}
	if err := local.Write(key, json.RawMessage(value)); err != nil {
		t.Fatalf("Write(%q) error: %v", key, err)
	}
}

// TestMigrateGuestData verifies guest fields land in the signed-in user's
// remote documents, grouped by section.
func TestMigrateGuestData(t *testing.T) {
	local := NewLocalStore(NewMemKV())
	remote := newFakeDocStore()

	seedGuestField(t, local, "daily", "tasks", `["walk"]`)
	seedGuestField(t, local, "daily", "notes", `"guest note"`)
	seedGuestField(t, local, "weekly", "theme", `"rest"`)

	result := MigrateGuestData(context.Background(), local, remote, "u-9", testNow)
	if !result.Success() {
		t.Fatalf("migration reported errors: %v", result.Errors)
	}
	if result.Migrated != 3 {
		t.Errorf("Migrated = %d, want 3", result.Migrated)
	}

	daily, err := remote.LoadDocument(context.Background(), "u-9", testDate, "daily")
	if err != nil {
		t.Fatalf("LoadDocument() error: %v", err)
	}
	if string(daily["tasks"]) != `["walk"]` || string(daily["notes"]) != `"guest note"` {
		t.Errorf("daily document = %v", daily)
	}

	weekly, err := remote.LoadDocument(context.Background(), "u-9", testDate, "weekly")
	if err != nil {
		t.Fatalf("LoadDocument() error: %v", err)
	}
	if string(weekly["theme"]) != `"rest"` {
		t.Errorf("weekly document = %v", weekly)
	}
}

// TestMigrateRemotePrecedence verifies a field already on the server is
// never clobbered by the guest copy.
func TestMigrateRemotePrecedence(t *testing.T) {
	local := NewLocalStore(NewMemKV())
	remote := newFakeDocStore()

	remote.seed("u-9", testDate, "daily", Document{
		"tasks": json.RawMessage(`["from other device"]`),
	})
	seedGuestField(t, local, "daily", "tasks", `["stale guest"]`)
	seedGuestField(t, local, "daily", "notes", `"new from guest"`)

	result := MigrateGuestData(context.Background(), local, remote, "u-9", testNow)
	if !result.Success() {
		t.Fatalf("migration reported errors: %v", result.Errors)
	}
	if result.Migrated != 1 {
		t.Errorf("Migrated = %d, want 1 (only the guest-only field counts)", result.Migrated)
	}

	daily, err := remote.LoadDocument(context.Background(), "u-9", testDate, "daily")
	if err != nil {
		t.Fatalf("LoadDocument() error: %v", err)
	}
	if string(daily["tasks"]) != `["from other device"]` {
		t.Errorf("remote tasks = %s, existing value must win", daily["tasks"])
	}
	if string(daily["notes"]) != `"new from guest"` {
		t.Errorf("remote notes = %s, guest-only fields must migrate", daily["notes"])
	}
}

// TestMigrateIsIdempotent verifies a second run leaves the remote state
// unchanged, contributes nothing, and issues no writes.
func TestMigrateIsIdempotent(t *testing.T) {
	local := NewLocalStore(NewMemKV())
	remote := newFakeDocStore()

	seedGuestField(t, local, "monthly", "goals", `[{"id":1,"text":"save"}]`)

	first := MigrateGuestData(context.Background(), local, remote, "u-9", testNow)
	if !first.Success() {
		t.Fatalf("first migration reported errors: %v", first.Errors)
	}
	if first.Migrated != 1 {
		t.Errorf("first run Migrated = %d, want 1", first.Migrated)
	}

	second := MigrateGuestData(context.Background(), local, remote, "u-9", testNow)
	if !second.Success() {
		t.Fatalf("second migration reported errors: %v", second.Errors)
	}
	if second.Migrated != 0 {
		t.Errorf("second run Migrated = %d, want 0 (every field already remote)", second.Migrated)
	}
	if n := remote.putCount(); n != 1 {
		t.Errorf("remote saw %d document writes, the second run should issue none", n)
	}

	monthly, err := remote.LoadDocument(context.Background(), "u-9", testDate, "monthly")
	if err != nil {
		t.Fatalf("LoadDocument() error: %v", err)
	}
	if string(monthly["goals"]) != `[{"id":1,"text":"save"}]` {
		t.Errorf("monthly goals after second run = %s", monthly["goals"])
	}
}

// TestMigrateSkipsCorruptEntries verifies a corrupt guest entry is
// reported without sinking the rest of its section.
func TestMigrateSkipsCorruptEntries(t *testing.T) {
	kv := NewMemKV()
	local := NewLocalStore(kv)
	remote := newFakeDocStore()

	seedGuestField(t, local, "daily", "tasks", `["ok"]`)
	corruptKey, _ := BuildKey(AnonymousUser, "daily", "notes")
	if err := kv.Put(corruptKey, "{broken"); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	result := MigrateGuestData(context.Background(), local, remote, "u-9", testNow)
	if result.Success() {
		t.Error("migration should report the corrupt entry")
	}
	if result.Migrated != 1 {
		t.Errorf("Migrated = %d, want 1 (the healthy field)", result.Migrated)
	}

	daily, err := remote.LoadDocument(context.Background(), "u-9", testDate, "daily")
	if err != nil {
		t.Fatalf("LoadDocument() error: %v", err)
	}
	if string(daily["tasks"]) != `["ok"]` {
		t.Errorf("healthy field missing from remote: %v", daily)
	}
	if _, ok := daily["notes"]; ok {
		t.Error("corrupt field must not reach the remote")
	}
}

// TestMigrateRejectsAnonymousTarget verifies migration refuses to run
// without a signed-in identity.
func TestMigrateRejectsAnonymousTarget(t *testing.T) {
	local := NewLocalStore(NewMemKV())
	remote := newFakeDocStore()

	for _, userID := range []string{"", AnonymousUser} {
		result := MigrateGuestData(context.Background(), local, remote, userID, testNow)
		if result.Success() {
			t.Errorf("MigrateGuestData(userID=%q) should fail", userID)
		}
		if result.Migrated != 0 {
			t.Errorf("MigrateGuestData(userID=%q) migrated %d fields", userID, result.Migrated)
		}
	}
}

// TestMigrateRemoteLoadFailureIsPerSection verifies a down remote fails
// the affected sections without panicking or partial writes.
func TestMigrateRemoteLoadFailureIsPerSection(t *testing.T) {
	local := NewLocalStore(NewMemKV())
	remote := newFakeDocStore()
	remote.loadErr = ErrRemoteUnavailable

	seedGuestField(t, local, "daily", "tasks", `["x"]`)

	result := MigrateGuestData(context.Background(), local, remote, "u-9", testNow)
	if result.Success() {
		t.Error("migration against a down remote should report errors")
	}
	if result.Migrated != 0 {
		t.Errorf("Migrated = %d, want 0", result.Migrated)
	}
}
