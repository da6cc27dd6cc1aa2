// Package search builds tracker search endpoints from query definitions
// and fetches their result lists.
//
// Endpoint building is a pure function: the same query and identity always
// produce the same URL, omitted filters are omitted (never defaulted), and
// two semantically different queries never collapse to the same endpoint
// because every filter contributes a distinct named qualifier.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quarium/quarium/internal/gist"
	"github.com/quarium/quarium/internal/schema"
)

// DefaultBaseURL is the production search API host.
const DefaultBaseURL = "https://api.github.com"

// perPage bounds one result page. The badge counts against this bound;
// queries matching more than a page are already well past any reasonable
// threshold.
const perPage = 100

// Me is the placeholder users may write in author/assignee/mentions
// filters; the builder expands it to the authenticated username.
const Me = "@me"

// Client fetches task lists from the search API. Safe for concurrent use.
type Client struct {
	base string
	http *http.Client

	// now is injected for tests of the age qualifier
	now func() time.Time
}

// New creates a search client against the given API base URL.
// If hc is nil, a client with a 30 second timeout is used.
func New(base string, hc *http.Client) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: base, http: hc, now: time.Now}
}

// BuildEndpoint composes the fully-qualified search URL for a query.
//
// Qualifiers follow the tracker's search syntax, joined as conjunctions.
// All user-supplied values are URL-encoded. The username only enters the
// URL where a filter value is the literal "@me".
func (c *Client) BuildEndpoint(username string, q schema.Query) string {
	qualifiers := buildQualifiers(username, q, c.now())
	return c.base + "/search/issues?q=" + strings.Join(qualifiers, "+") +
		"&sort=updated&order=desc&per_page=" + fmt.Sprint(perPage)
}

// buildQualifiers returns the ordered qualifier list for a query.
func buildQualifiers(username string, q schema.Query, now time.Time) []string {
	expand := func(v string) string {
		if v == Me {
			return username
		}
		return v
	}

	var parts []string
	if q.Repo != "" {
		parts = append(parts, "repo:"+url.QueryEscape(q.Repo))
	}
	if q.Type != "" {
		parts = append(parts, "is:"+q.Type)
	}
	if q.Author != "" {
		parts = append(parts, "author:"+url.QueryEscape(expand(q.Author)))
	}
	if q.Assignee != "" {
		parts = append(parts, "assignee:"+url.QueryEscape(expand(q.Assignee)))
	}
	if q.Mentions != "" {
		parts = append(parts, "mentions:"+url.QueryEscape(expand(q.Mentions)))
	}
	if q.ReviewStatus != "" {
		parts = append(parts, "review:"+url.QueryEscape(q.ReviewStatus))
	}
	for _, label := range q.Labels {
		parts = append(parts, "label:"+url.QueryEscape(`"`+label+`"`))
	}
	if q.LastUpdated > 0 {
		cutoff := now.UTC().AddDate(0, 0, -q.LastUpdated).Format("2006-01-02")
		parts = append(parts, "updated:>="+cutoff)
	}
	return parts
}

// searchResponse is the subset of the search API response we consume.
type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	User   struct {
		Login string `json:"login"`
	} `json:"user"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	PullRequest *json.RawMessage `json:"pull_request,omitempty"`
}

// Fetch builds the endpoint for a query and returns its ordered task
// list. Errors share the document store taxonomy so callers classify
// both surfaces uniformly.
func (c *Client) Fetch(ctx context.Context, cred schema.Credential, q schema.Query) ([]schema.Task, error) {
	endpoint := c.BuildEndpoint(cred.Username, q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &gist.StatusError{Code: 500, Err: fmt.Errorf("%w: %v", gist.ErrTransport, err)}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+cred.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &gist.StatusError{Code: 500, Err: fmt.Errorf("%w: %v", gist.ErrTransport, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &gist.StatusError{Code: resp.StatusCode, Err: fmt.Errorf("search returned status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gist.StatusError{Code: 500, Err: fmt.Errorf("%w: %v", gist.ErrTransport, err)}
	}

	var sr searchResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, &gist.StatusError{Code: 500, Err: fmt.Errorf("%w: %v", gist.ErrMalformedDocument, err)}
	}

	tasks := make([]schema.Task, 0, len(sr.Items))
	for _, item := range sr.Items {
		taskType := schema.TypeIssue
		if item.PullRequest != nil {
			taskType = schema.TypePR
		}
		tasks = append(tasks, schema.Task{
			Num:       item.Number,
			Title:     item.Title,
			Type:      taskType,
			Author:    item.User.Login,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	return tasks, nil
}
