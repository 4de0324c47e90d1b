package models

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"github.com/vmihailenco/msgpack/v5"
)

// ============================================================================
// Data Export / Import
//
// Users can take their whole plan with them: an export document snapshots
// every local entry under a user's keyspace. The document itself is JSON;
// for transport or backup it can additionally be packed with msgpack and
// Base64 (hybrid encoding: payload compact, envelope human-readable).
// ============================================================================

// ExportDocument is a full snapshot of one user's local keyspace.
type ExportDocument struct {
	App        string                     `json:"app"`
	User       string                     `json:"user"`
	ExportedAt string                     `json:"exported_at"`
	Entries    map[string]json.RawMessage `json:"entries"` // storage key -> value
}

// ExportUserData snapshots every local entry belonging to userID.
// Corrupt entries are logged and skipped; the export is best-effort
// complete rather than all-or-nothing.
func ExportUserData(local *LocalStore, userID string, now func() time.Time) (*ExportDocument, error) {
	if local == nil || userID == "" {
		return nil, serr.New("export requires a local store and a user id")
	}
	if now == nil {
		now = time.Now
	}

	doc := &ExportDocument{
		App:        KeyNamespace,
		User:       userID,
		ExportedAt: now().UTC().Format(time.RFC3339),
		Entries:    make(map[string]json.RawMessage),
	}

	err := local.Enumerate(UserPrefix(userID), func(key string, raw json.RawMessage) bool {
		if !json.Valid(raw) {
			logger.LogErr(serr.New("skipping corrupt entry in export"), "key", key)
			return true
		}
		doc.Entries[key] = raw
		return true
	})
	if err != nil {
		return nil, serr.Wrap(err, "failed to enumerate entries for export")
	}
	return doc, nil
}

// ImportUserData writes an export document's entries back into the local
// store, overwriting current values. Returns the number of entries
// imported. Malformed keys are skipped with a log rather than aborting.
func ImportUserData(local *LocalStore, doc *ExportDocument) (int, error) {
	if local == nil || doc == nil {
		return 0, serr.New("import requires a local store and a document")
	}

	imported := 0
	for key, raw := range doc.Entries {
		if _, _, err := ParseKey(key); err != nil {
			logger.LogErr(serr.Wrap(err, "skipping malformed key in import"), "key", key)
			continue
		}
		if err := local.Write(key, raw); err != nil {
			return imported, serr.Wrap(err, "import failed writing "+key)
		}
		imported++
	}
	return imported, nil
}

// EncodeExportMsgPack packs an export document into Base64-encoded msgpack
// for compact transport. Pipeline: document -> msgpack bytes -> Base64.
func EncodeExportMsgPack(doc *ExportDocument) (string, error) {
	packed, err := msgpack.Marshal(doc)
	if err != nil {
		return "", serr.Wrap(err, "failed to msgpack encode export")
	}
	return base64.StdEncoding.EncodeToString(packed), nil
}

// DecodeExportMsgPack reverses EncodeExportMsgPack.
func DecodeExportMsgPack(encoded string) (*ExportDocument, error) {
	packed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, serr.Wrap(err, "failed to base64 decode export")
	}
	doc := &ExportDocument{}
	if err := msgpack.Unmarshal(packed, doc); err != nil {
		return nil, serr.Wrap(err, "failed to msgpack decode export")
	}
	return doc, nil
}
