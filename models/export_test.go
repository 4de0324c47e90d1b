package models

import (
	"encoding/json"
	"testing"
)

// TestExportUserData verifies the snapshot covers exactly the user's
// keyspace and skips corrupt entries.
func TestExportUserData(t *testing.T) {
	kv := NewMemKV()
	local := NewLocalStore(kv)

	seedField(t, local, "u-1", "daily", "tasks", `["walk"]`)
	seedField(t, local, "u-1", "weekly", "theme", `"rest"`)
	seedField(t, local, "u-2", "daily", "tasks", `["other user"]`)

	corruptKey, _ := BuildKey("u-1", "daily", "notes")
	if err := kv.Put(corruptKey, "{broken"); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	doc, err := ExportUserData(local, "u-1", testNow)
	if err != nil {
		t.Fatalf("ExportUserData() error: %v", err)
	}

	if doc.App != KeyNamespace || doc.User != "u-1" {
		t.Errorf("export header = %q/%q", doc.App, doc.User)
	}
	if doc.ExportedAt == "" {
		t.Error("ExportedAt should be set")
	}
	if len(doc.Entries) != 2 {
		t.Fatalf("Entries = %v, want the 2 healthy u-1 entries", doc.Entries)
	}
	for key := range doc.Entries {
		if user, _ := KeyUser(key); user != "u-1" {
			t.Errorf("export leaked another user's key %q", key)
		}
	}
}

// TestImportUserData verifies the export/import round trip and that
// malformed keys are skipped rather than aborting the import.
func TestImportUserData(t *testing.T) {
	source := NewLocalStore(NewMemKV())
	seedField(t, source, "u-1", "daily", "tasks", `["walk"]`)
	seedField(t, source, "u-1", "monthly", "goals", `[{"id":1,"text":"save"}]`)

	doc, err := ExportUserData(source, "u-1", testNow)
	if err != nil {
		t.Fatalf("ExportUserData() error: %v", err)
	}
	doc.Entries["not a planner key"] = json.RawMessage(`"junk"`)

	target := NewLocalStore(NewMemKV())
	imported, err := ImportUserData(target, doc)
	if err != nil {
		t.Fatalf("ImportUserData() error: %v", err)
	}
	if imported != 2 {
		t.Errorf("imported = %d, want 2 (malformed key skipped)", imported)
	}

	key, _ := BuildKey("u-1", "daily", "tasks")
	if got, ok := target.Read(key); !ok || string(got) != `["walk"]` {
		t.Errorf("imported value = %s, ok=%v", got, ok)
	}
	if _, ok := target.Read("not a planner key"); ok {
		t.Error("malformed key must not be imported")
	}
}

// TestExportMsgPackRoundTrip verifies the packed transport encoding.
func TestExportMsgPackRoundTrip(t *testing.T) {
	local := NewLocalStore(NewMemKV())
	seedField(t, local, "u-1", "daily", "tasks", `["walk"]`)

	doc, err := ExportUserData(local, "u-1", testNow)
	if err != nil {
		t.Fatalf("ExportUserData() error: %v", err)
	}

	encoded, err := EncodeExportMsgPack(doc)
	if err != nil {
		t.Fatalf("EncodeExportMsgPack() error: %v", err)
	}
	if encoded == "" {
		t.Fatal("EncodeExportMsgPack() returned empty string")
	}

	decoded, err := DecodeExportMsgPack(encoded)
	if err != nil {
		t.Fatalf("DecodeExportMsgPack() error: %v", err)
	}
	if decoded.App != doc.App || decoded.User != doc.User || decoded.ExportedAt != doc.ExportedAt {
		t.Errorf("decoded header = %+v, want %+v", decoded, doc)
	}

	key, _ := BuildKey("u-1", "daily", "tasks")
	if string(decoded.Entries[key]) != `["walk"]` {
		t.Errorf("decoded entry = %s, want [\"walk\"]", decoded.Entries[key])
	}
}

// TestDecodeExportMsgPackRejectsGarbage verifies decode failures surface
// as errors instead of zero-value documents.
func TestDecodeExportMsgPackRejectsGarbage(t *testing.T) {
	if _, err := DecodeExportMsgPack("not base64 !!!"); err == nil {
		t.Error("DecodeExportMsgPack() should reject invalid base64")
	}
	if _, err := DecodeExportMsgPack("aGVsbG8gd29ybGQ="); err == nil {
		t.Error("DecodeExportMsgPack() should reject non-msgpack payloads")
	}
}
