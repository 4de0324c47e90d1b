package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fishy/rowlock"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Remote Store
//
// The remote side of the sync layer is a per-(user, date, page) document
// store: each document is a JSON object mapping field name to field value.
// The client here talks to the planroom hub API, but SyncedField and the
// migration coordinator only ever see the DocumentStore interface, so tests
// and alternative backends plug in without touching the sync machinery.
//
// Failure policy: every network, auth, or server problem is reported as
// ErrRemoteUnavailable. Read paths treat it identically to an absent
// document; write paths log it and move on — the local copy stays
// authoritative until the next successful sync.
// ============================================================================

// ErrRemoteUnavailable wraps any network/auth/server failure of the remote
// store. Never fatal to callers.
var ErrRemoteUnavailable = errors.New("remote store unavailable")

// Document is one remote planner document: field name -> JSON value.
type Document map[string]json.RawMessage

// Clone returns a shallow copy, so merges never mutate a caller's map.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// DocumentStore is the read/write contract against the remote backend.
//
// LoadDocument returns (nil, nil) when no document exists for the triple.
// UpsertField must preserve sibling fields already present in the document
// (read-merge-write, not blind overwrite).
type DocumentStore interface {
	LoadDocument(ctx context.Context, userID, date, section string) (Document, error)
	PutDocument(ctx context.Context, userID, date, section string, doc Document) error
	UpsertField(ctx context.Context, userID, date, section, field string, value json.RawMessage) error
}

// HubClient is the DocumentStore implementation backed by the planroom hub
// HTTP API. It authenticates with username/password, caches the JWT, and
// re-authenticates once on 401 so token expiry is invisible to callers.
type HubClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	// authMu guards authToken and is held across the login round trip, so
	// every field loading at once shares one login instead of issuing N.
	authMu    sync.Mutex
	authToken string

	// locks serializes read-merge-write cycles per document so two fields
	// of the same page flushing together cannot drop each other's write.
	// Cross-device races remain last-write-wins at the document level.
	locks *rowlock.RowLock
}

// NewHubClient creates a hub-backed document store.
func NewHubClient(baseURL, username, password string) *HubClient {
	return &HubClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		locks: rowlock.NewRowLock(rowlock.MutexNewLocker),
	}
}

// SetAuthToken seeds a cached token (e.g. restored from a previous
// session) so the first request skips the login round trip.
func (hc *HubClient) SetAuthToken(token string) {
	hc.authMu.Lock()
	hc.authToken = token
	hc.authMu.Unlock()
}

// LoadDocument fetches the document for (userID, date, section).
// Returns (nil, nil) when the hub has no row for the triple.
func (hc *HubClient) LoadDocument(ctx context.Context, userID, date, section string) (Document, error) {
	u := fmt.Sprintf("%s/api/v1/entries/%s?date=%s", hc.baseURL, url.PathEscape(section), url.QueryEscape(date))
	resp, err := hc.doAuthenticatedRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: load returned status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	var apiResp struct {
		Success bool        `json:"success"`
		Data    EntryOutput `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode load response: %v", ErrRemoteUnavailable, err)
	}
	if !apiResp.Success {
		return nil, fmt.Errorf("%w: load returned success=false", ErrRemoteUnavailable)
	}
	if apiResp.Data.Data == nil {
		return Document{}, nil
	}
	return apiResp.Data.Data, nil
}

// PutDocument replaces the whole document for (userID, date, section).
// Last-write-wins at document level; callers wanting field granularity go
// through UpsertField.
func (hc *HubClient) PutDocument(ctx context.Context, userID, date, section string, doc Document) error {
	body, err := json.Marshal(EntryInput{Data: doc})
	if err != nil {
		return serr.Wrap(err, "failed to marshal document")
	}

	u := fmt.Sprintf("%s/api/v1/entries/%s?date=%s", hc.baseURL, url.PathEscape(section), url.QueryEscape(date))
	resp, err := hc.doAuthenticatedRequest(ctx, http.MethodPut, u, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: put returned status %d", ErrRemoteUnavailable, resp.StatusCode)
	}
	return nil
}

// UpsertField sets one field of a document without disturbing its siblings:
// load the current document (absent reads as empty), merge the field in,
// write the whole document back. The per-document row lock keeps two local
// fields of the same page from interleaving their read-merge-write cycles.
func (hc *HubClient) UpsertField(ctx context.Context, userID, date, section, field string, value json.RawMessage) error {
	row := userID + "|" + date + "|" + section
	hc.locks.Lock(row)
	defer hc.locks.Unlock(row)

	existing, err := hc.LoadDocument(ctx, userID, date, section)
	if err != nil {
		return err
	}

	merged := existing.Clone()
	if merged == nil {
		merged = Document{}
	}
	merged[field] = value

	return hc.PutDocument(ctx, userID, date, section, merged)
}

// ensureToken returns the cached JWT, logging in first when none is
// cached or when the cached one equals stale (a token the caller just saw
// rejected). Concurrent callers serialize here: the first one pays the
// login round trip, the rest find its token cached.
func (hc *HubClient) ensureToken(ctx context.Context, stale string) (string, error) {
	hc.authMu.Lock()
	defer hc.authMu.Unlock()

	if hc.authToken != "" && hc.authToken != stale {
		return hc.authToken, nil
	}

	token, err := hc.login(ctx)
	if err != nil {
		return "", err
	}
	hc.authToken = token
	return token, nil
}

// login posts credentials to the hub's auth endpoint and returns the JWT.
// Caching is ensureToken's job; login itself touches no shared state.
func (hc *HubClient) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": hc.username,
		"password": hc.password,
	})
	if err != nil {
		return "", serr.Wrap(err, "failed to marshal login request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", serr.Wrap(err, "failed to create login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login request failed: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: login failed with status %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	var apiResp struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode login response: %v", ErrRemoteUnavailable, err)
	}
	if !apiResp.Success || apiResp.Data.Token == "" {
		return "", fmt.Errorf("%w: login response missing token", ErrRemoteUnavailable)
	}

	return apiResp.Data.Token, nil
}

// doAuthenticatedRequest sends a request with the cached JWT, logging in
// first when no token is cached. On 401 it re-authenticates once and
// retries so token expiry never surfaces to callers.
//
// The body is passed as bytes, not a reader, because a 401 retry must
// resend it from the start.
func (hc *HubClient) doAuthenticatedRequest(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	token, err := hc.ensureToken(ctx, "")
	if err != nil {
		return nil, err
	}

	resp, err := hc.send(ctx, method, url, body, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()

		// Pass the rejected token as stale so a token another caller
		// already refreshed is reused instead of triggering a second login.
		token, err = hc.ensureToken(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("%w: re-authentication failed after 401", ErrRemoteUnavailable)
		}
		resp, err = hc.send(ctx, method, url, body, token)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

func (hc *HubClient) send(ctx context.Context, method, url string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := hc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return resp, nil
}

// IsRemoteUnavailable reports whether err is (or wraps) a remote store
// failure. Read paths use it to fall through to local data.
func IsRemoteUnavailable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

// logRemoteErr records a best-effort remote failure without propagating it.
func logRemoteErr(err error, op, key string) {
	logger.LogErr(serr.Wrap(err, "remote sync failed (best-effort, local copy retained)"),
		"op", op, "key", key)
}
