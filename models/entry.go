package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fishy/rowlock"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Planner Entries (hub side)
//
// One row per (user, date, page); the data column is the JSON document the
// sync layer's clients read, merge, and write back. The hub stores whole
// documents — field-level merging is the client's job — but writes to the
// same row are serialized through a row lock so two concurrent PUTs cannot
// interleave mid-statement.
// ============================================================================

// EntryInput is the PUT request body for a planner entry.
type EntryInput struct {
	Data Document `json:"data"`
}

// EntryOutput is the wire form of a stored planner entry.
type EntryOutput struct {
	Data      Document `json:"data"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

// entryLocks serializes same-row writes on the hub.
var entryLocks = rowlock.NewRowLock(rowlock.MutexNewLocker)

// ValidEntryDate reports whether s is a YYYY-MM-DD date.
func ValidEntryDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// GetEntry loads the document for (userGUID, date, page).
// Returns nil when no row exists.
func GetEntry(userGUID, date, page string) (*EntryOutput, error) {
	var data string
	var updatedAt time.Time
	err := db.QueryRow(
		`SELECT data, updated_at FROM planner_entries
		 WHERE user_guid = ? AND entry_date = ? AND page = ?`,
		userGUID, date, page,
	).Scan(&data, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to load planner entry")
	}

	var doc Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, serr.Wrap(err, "corrupt planner entry document")
	}
	return &EntryOutput{
		Data:      doc,
		UpdatedAt: updatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// UpsertEntry replaces the document for (userGUID, date, page), creating
// the row if missing. Document-level last-write-wins; clients wanting
// field granularity read-merge-write before calling.
func UpsertEntry(userGUID, date, page string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return serr.Wrap(err, "failed to marshal planner entry document")
	}

	row := userGUID + "|" + date + "|" + page
	entryLocks.Lock(row)
	defer entryLocks.Unlock(row)

	_, err = db.Exec(
		`INSERT INTO planner_entries (user_guid, entry_date, page, data, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (user_guid, entry_date, page)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		userGUID, date, page, string(data),
	)
	if err != nil {
		return serr.Wrap(err, "failed to upsert planner entry")
	}
	return nil
}
