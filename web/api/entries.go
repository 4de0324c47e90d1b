package api

import (
	"encoding/json"
	"net/http"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"

	"planroom/models"
)

// GetEntry handles GET /api/v1/entries/:page?date=YYYY-MM-DD
// Returns the caller's planner document for that page and date, or 404
// when none exists. Sync clients treat the 404 as "fall back to local".
func GetEntry(ctx rweb.Context) error {
	userGUID := requireUser(ctx)
	if userGUID == "" {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	page := ctx.Request().Param("page")
	date := ctx.Request().QueryParam("date")
	if page == "" {
		return writeError(ctx, http.StatusBadRequest, "page is required")
	}
	if !models.ValidEntryDate(date) {
		return writeError(ctx, http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	entry, err := models.GetEntry(userGUID, date, page)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to load entry"), "user_guid", userGUID, "page", page, "date", date)
		return writeError(ctx, http.StatusInternalServerError, "failed to load entry")
	}
	if entry == nil {
		return writeError(ctx, http.StatusNotFound, "no entry for this page and date")
	}

	return writeSuccess(ctx, http.StatusOK, entry)
}

// PutEntry handles PUT /api/v1/entries/:page?date=YYYY-MM-DD
// Replaces the caller's document wholesale. Clients needing field-level
// granularity load, merge, and put — the hub does not merge for them, so
// a put is exactly what the client computed and document-level
// last-write-wins is the contract.
func PutEntry(ctx rweb.Context) error {
	userGUID := requireUser(ctx)
	if userGUID == "" {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	page := ctx.Request().Param("page")
	date := ctx.Request().QueryParam("date")
	if page == "" {
		return writeError(ctx, http.StatusBadRequest, "page is required")
	}
	if !models.ValidEntryDate(date) {
		return writeError(ctx, http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	var input models.EntryInput
	if err := json.Unmarshal(ctx.Request().Body(), &input); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}
	if input.Data == nil {
		return writeError(ctx, http.StatusBadRequest, "data object is required")
	}

	if err := models.UpsertEntry(userGUID, date, page, input.Data); err != nil {
		logger.LogErr(serr.Wrap(err, "failed to upsert entry"), "user_guid", userGUID, "page", page, "date", date)
		return writeError(ctx, http.StatusInternalServerError, "failed to save entry")
	}

	logger.Debug("Entry upserted", "user_guid", userGUID, "page", page, "date", date, "fields", len(input.Data))
	return writeSuccess(ctx, http.StatusOK, map[string]int{"fields": len(input.Data)})
}
