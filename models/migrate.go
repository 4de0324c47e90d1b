package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fishy/errbatch"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Guest Data Migration
//
// Anonymous and identified keyspaces are disjoint: signing in does not move
// data by itself. MigrateGuestData is the explicit one-shot bridge — it
// copies everything under the "anon" local namespace into the signed-in
// user's remote documents.
//
// Precedence rule: existing remote fields always win over incoming local
// fields. A user who already planned on another device must never have
// server state clobbered by a stale guest copy. Running the migration twice
// is therefore safe — the second pass finds every field already remote and
// contributes nothing.
// ============================================================================

// MigrationResult reports the outcome of a guest-data migration.
// Per-section failures land in Errors without aborting the other sections;
// partial success is expected and reported, not rolled back.
type MigrationResult struct {
	Migrated int      `json:"migrated"` // fields newly contributed to remote documents
	Errors   []string `json:"errors,omitempty"`
}

// Success reports whether every section migrated cleanly.
func (r MigrationResult) Success() bool { return len(r.Errors) == 0 }

// MigrateGuestData copies the anonymous local keyspace into userID's
// remote documents, one read-merge-write per section. now supplies the
// document date; nil means time.Now.
func MigrateGuestData(ctx context.Context, local *LocalStore, remote DocumentStore, userID string, now func() time.Time) MigrationResult {
	result := MigrationResult{}
	if local == nil || remote == nil || userID == "" || userID == AnonymousUser {
		result.Errors = append(result.Errors, "migration requires a local store, a remote store, and a signed-in user")
		return result
	}
	if now == nil {
		now = time.Now
	}
	date := now().UTC().Format("2006-01-02")

	for _, section := range DefaultSections {
		batch := new(errbatch.ErrBatch)

		// Gather this section's guest fields from the local keyspace.
		sectionData := Document{}
		err := local.Enumerate(SectionPrefix(AnonymousUser, section), func(key string, raw json.RawMessage) bool {
			_, field, perr := ParseKey(key)
			if perr != nil {
				batch.Add(serr.Wrap(perr, "failed to parse local key "+key))
				return true
			}
			if !json.Valid(raw) {
				batch.Add(serr.New("corrupt local entry " + key))
				return true
			}
			sectionData[field] = raw
			return true
		})
		if err != nil {
			batch.Add(serr.Wrap(err, "failed to enumerate section "+section))
		}

		if len(sectionData) > 0 {
			added, err := migrateSection(ctx, remote, userID, date, section, sectionData)
			if err != nil {
				batch.Add(err)
			} else {
				result.Migrated += added
			}
		}

		if err := batch.Compile(); err != nil {
			logger.LogErr(err, "section migration reported errors", "section", section)
			result.Errors = append(result.Errors, section+": "+err.Error())
		}
	}

	logger.Info("Guest data migration finished",
		"user", userID, "migrated", result.Migrated, "errors", len(result.Errors))
	return result
}

// migrateSection merges one section's guest fields into the user's remote
// document for today, returning how many fields the guest copy actually
// contributed. Existing remote fields take precedence; the merge is local
// fields first, remote fields layered over them. When every incoming field
// is already remote there is nothing to contribute and no write is issued,
// which is what makes a second migration run report zero.
func migrateSection(ctx context.Context, remote DocumentStore, userID, date, section string, incoming Document) (int, error) {
	existing, err := remote.LoadDocument(ctx, userID, date, section)
	if err != nil {
		return 0, serr.Wrap(err, "failed to load remote document for "+section)
	}

	added := 0
	for field := range incoming {
		if _, ok := existing[field]; !ok {
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}

	merged := incoming.Clone()
	for field, value := range existing {
		merged[field] = value
	}

	if err := remote.PutDocument(ctx, userID, date, section, merged); err != nil {
		return 0, serr.Wrap(err, "failed to upsert remote document for "+section)
	}
	return added, nil
}
