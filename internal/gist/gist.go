// Package gist implements the remote document store: a single private
// gist per user holding the serialized query map.
//
// The store reads and writes one JSON blob keyed by the user's gist id.
// It has no knowledge of query semantics beyond (de)serializing the map,
// and it never retries; retry policy belongs to the caller.
//
// Wire format:
//   - POST  /gists        creates {description, public, files: {quarium.json: {content}}}
//   - GET   /gists/{id}   returns {files: {quarium.json: {content}}}
//   - PATCH /gists/{id}   overwrites with the same body shape
package gist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quarium/quarium/internal/schema"
)

const (
	// DocumentName is the fixed name of the payload file inside the gist.
	// Every client reads and writes this one file; anything else in the
	// gist is ignored.
	DocumentName = "quarium.json"

	// documentDescription labels the gist in the user's gist list
	documentDescription = "quarium query document"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.github.com"

// Identity is the caller's resolved identity after document creation.
type Identity struct {
	Login  string
	GistID string
}

// Client is the remote document store. Safe for concurrent use.
type Client struct {
	base string
	http *http.Client
}

// New creates a document store client against the given API base URL.
// If hc is nil, a client with a 30 second timeout is used.
func New(base string, hc *http.Client) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: base, http: hc}
}

// gistBody is the request/response shape shared by create, load and save.
type gistBody struct {
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	Files       map[string]gistFile `json:"files"`
}

type gistFile struct {
	Content string `json:"content"`
}

// createResponse is the subset of the create response we consume.
type createResponse struct {
	ID    string `json:"id"`
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// Create creates a new remote document seeded with an empty query map and
// returns the caller's resolved identity and the new document id.
func (c *Client) Create(ctx context.Context, token string) (Identity, error) {
	body := gistBody{
		Description: documentDescription,
		Public:      false,
		Files:       map[string]gistFile{DocumentName: {Content: "{}"}},
	}

	data, err := c.do(ctx, http.MethodPost, c.base+"/gists", token, &body)
	if err != nil {
		return Identity{}, err
	}

	var resp createResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Identity{}, &StatusError{Code: 500, Err: fmt.Errorf("%w: %v", ErrMalformedDocument, err)}
	}
	if resp.ID == "" || resp.Owner.Login == "" {
		return Identity{}, &StatusError{Code: 500, Err: fmt.Errorf("%w: create response missing owner or id", ErrMalformedDocument)}
	}

	return Identity{Login: resp.Owner.Login, GistID: resp.ID}, nil
}

// listItem is the subset of one gist-list entry we consume. File
// contents are truncated in list responses; only the names matter here.
type listItem struct {
	ID    string `json:"id"`
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
	Files map[string]json.RawMessage `json:"files"`
}

// Lookup finds the account's existing remote document by listing its
// gists and matching the fixed payload file name. A user who logs in
// again after a logout, or from a fresh install, gets their old document
// back instead of a second empty one.
//
// Returns a StatusError wrapping ErrNotFound when no gist carries the
// payload file.
func (c *Client) Lookup(ctx context.Context, token string) (Identity, error) {
	data, err := c.do(ctx, http.MethodGet, c.base+"/gists", token, nil)
	if err != nil {
		return Identity{}, err
	}

	var items []listItem
	if err := json.Unmarshal(data, &items); err != nil {
		return Identity{}, &StatusError{Code: 500, Err: fmt.Errorf("%w: %v", ErrMalformedDocument, err)}
	}

	for _, item := range items {
		if _, ok := item.Files[DocumentName]; !ok {
			continue
		}
		if item.ID == "" || item.Owner.Login == "" {
			continue
		}
		return Identity{Login: item.Owner.Login, GistID: item.ID}, nil
	}

	return Identity{}, &StatusError{Code: 404, Err: fmt.Errorf("%w: no document gist on this account", ErrNotFound)}
}

// Load fetches the document and parses its payload file into a query map.
//
// A document that fetched successfully but lacks the payload file is
// malformed and reported as status 500, matching a transport failure from
// the caller's perspective.
func (c *Client) Load(ctx context.Context, cred schema.Credential) (schema.QueryMap, error) {
	data, err := c.do(ctx, http.MethodGet, c.base+"/gists/"+cred.GistID, cred.Token, nil)
	if err != nil {
		return nil, err
	}

	var body gistBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, &StatusError{Code: 500, Err: fmt.Errorf("%w: %v", ErrMalformedDocument, err)}
	}

	file, ok := body.Files[DocumentName]
	if !ok {
		return nil, &StatusError{Code: 500, Err: fmt.Errorf("%w: payload file %q absent", ErrMalformedDocument, DocumentName)}
	}

	m, err := schema.ParseQueryMap([]byte(file.Content))
	if err != nil {
		return nil, &StatusError{Code: 500, Err: fmt.Errorf("%w: %v", ErrMalformedDocument, err)}
	}
	return m, nil
}

// Save serializes the query map as the document payload and overwrites
// the remote document. Last writer wins; there is no merge.
func (c *Client) Save(ctx context.Context, cred schema.Credential, m schema.QueryMap) error {
	content, err := json.Marshal(m)
	if err != nil {
		return &StatusError{Code: 500, Err: fmt.Errorf("failed to serialize query map: %w", err)}
	}

	body := gistBody{
		Description: documentDescription,
		Public:      false,
		Files:       map[string]gistFile{DocumentName: {Content: string(content)}},
	}

	_, err = c.do(ctx, http.MethodPatch, c.base+"/gists/"+cred.GistID, cred.Token, &body)
	return err
}

// do issues one request and returns the response body. A transport-level
// failure maps to status 500; a non-2xx response passes its status
// through unchanged.
func (c *Client) do(ctx context.Context, method, url, token string, body *gistBody) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, transportError(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, transportError(err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	return data, nil
}
