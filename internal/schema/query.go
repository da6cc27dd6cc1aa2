// Package schema provides the data structures persisted in the remote
// query document and the local session store.
//
// The remote document is a single JSON object mapping query id to Query.
// Field names are fixed by the document format and must not change: the
// same document is read by every client the user runs.
package schema

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Query type filters accepted by Validate.
const (
	TypeIssue = "issue"
	TypePR    = "pr"
)

// Count is an int that also unmarshals from a JSON string. Documents
// written by older clients carry reasonableCount as a string (it came
// straight from a form field), so both encodings must load.
type Count int

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", s, err)
	}
	*c = Count(n)
	return nil
}

// Query is a saved filter definition against the tracker's search API,
// plus the cached result of its most recent successful fetch.
//
// All filter fields are optional; an omitted field contributes nothing to
// the search endpoint. Tasks always reflects the last successful fetch as
// a whole; it is never partially updated.
type Query struct {
	// ID is stable and unique within a user's query set.
	// Empty ID denotes an unsaved draft.
	ID string `json:"id"`

	// Name is the user-facing label for the query
	Name string `json:"name"`

	// URL is the tracker web URL corresponding to this query, kept for
	// opening results in a browser
	URL string `json:"url,omitempty"`

	// Type restricts results to "issue" or "pr"; empty matches both
	Type string `json:"type,omitempty"`

	// Filter qualifiers; empty fields are omitted from the endpoint
	Repo         string   `json:"repo,omitempty"`
	Author       string   `json:"author,omitempty"`
	Assignee     string   `json:"assignee,omitempty"`
	Mentions     string   `json:"mentions,omitempty"`
	ReviewStatus string   `json:"reviewStatus,omitempty"`
	Labels       []string `json:"labels,omitempty"`

	// LastUpdated restricts results to tasks updated within the last
	// N days; zero means no age restriction
	LastUpdated int `json:"lastUpdated,omitempty"`

	// ReasonableCount is the user-declared threshold above which
	// results count toward the attention badge
	ReasonableCount Count `json:"reasonableCount"`

	// Tasks is the cached result of the most recent successful fetch
	Tasks []Task `json:"tasks"`
}

// Validate checks that the query definition is well formed.
func (q *Query) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("name is required")
	}
	if q.ReasonableCount < 0 {
		return fmt.Errorf("reasonableCount must not be negative (got %d)", q.ReasonableCount)
	}
	if q.LastUpdated < 0 {
		return fmt.Errorf("lastUpdated must not be negative (got %d)", q.LastUpdated)
	}
	switch q.Type {
	case "", TypeIssue, TypePR:
	default:
		return fmt.Errorf("type must be %q or %q (got %q)", TypeIssue, TypePR, q.Type)
	}
	if q.ReviewStatus != "" && q.Type != TypePR {
		return fmt.Errorf("reviewStatus requires type %q", TypePR)
	}
	return nil
}

// MintID assigns a random stable id to an unsaved draft.
// It is a no-op if the query already has an id.
func (q *Query) MintID() {
	if q.ID != "" {
		return
	}
	var b [4]byte
	_, _ = rand.Read(b[:])
	q.ID = hex.EncodeToString(b[:])
}

// Equal reports whether two queries are identical, including their
// cached task lists.
func (q Query) Equal(o Query) bool {
	if q.ID != o.ID || q.Name != o.Name || q.URL != o.URL ||
		q.Type != o.Type || q.Repo != o.Repo || q.Author != o.Author ||
		q.Assignee != o.Assignee || q.Mentions != o.Mentions ||
		q.ReviewStatus != o.ReviewStatus ||
		q.LastUpdated != o.LastUpdated ||
		q.ReasonableCount != o.ReasonableCount {
		return false
	}
	if len(q.Labels) != len(o.Labels) {
		return false
	}
	for i := range q.Labels {
		if q.Labels[i] != o.Labels[i] {
			return false
		}
	}
	return TasksEqual(q.Tasks, o.Tasks)
}

// QueryMap is the entire persisted remote document body: query id to
// Query. Iteration order is irrelevant.
type QueryMap map[string]Query

// Clone returns a deep copy of the map. Mutating the copy never touches
// the original, including task lists and label slices.
func (m QueryMap) Clone() QueryMap {
	out := make(QueryMap, len(m))
	for id, q := range m {
		if q.Labels != nil {
			q.Labels = append([]string(nil), q.Labels...)
		}
		if q.Tasks != nil {
			q.Tasks = append([]Task(nil), q.Tasks...)
		}
		out[id] = q
	}
	return out
}

// Equal reports whether two maps hold identical queries under deep
// equality.
func (m QueryMap) Equal(o QueryMap) bool {
	if len(m) != len(o) {
		return false
	}
	for id, q := range m {
		oq, ok := o[id]
		if !ok || !q.Equal(oq) {
			return false
		}
	}
	return true
}

// ParseQueryMap decodes a remote document payload.
func ParseQueryMap(data []byte) (QueryMap, error) {
	var m QueryMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse query map: %w", err)
	}
	if m == nil {
		m = QueryMap{}
	}
	return m, nil
}

// Credential is the user's bearer token plus resolved identity and
// document id. Owned by the session store; Invalid is set when a
// round-trip against the remote store fails authentication.
type Credential struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	GistID   string `json:"gistID"`
	Invalid  bool   `json:"invalid"`
}

// Complete reports whether the credential carries everything a refresh
// cycle needs. An incomplete credential makes scheduled refreshes no-ops.
func (c Credential) Complete() bool {
	return c.Token != "" && c.Username != "" && c.GistID != ""
}
