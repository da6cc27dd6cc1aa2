// Package engine provides the query synchronization engine: it re-executes
// each saved query against the search API, diffs results against the
// cached copy in the remote document, and writes the document back only
// when something changed.
package engine

import (
	"context"

	"github.com/quarium/quarium/internal/schema"
)

// DocumentStore is the remote document surface the engine depends on.
// Implemented by gist.Client; tests substitute an in-memory fake.
type DocumentStore interface {
	// Load fetches and parses the user's remote query document.
	Load(ctx context.Context, cred schema.Credential) (schema.QueryMap, error)

	// Save overwrites the remote document with the given map.
	Save(ctx context.Context, cred schema.Credential, m schema.QueryMap) error
}

// TaskFetcher executes one query against the search API and returns its
// ordered task list. Implemented by search.Client.
type TaskFetcher interface {
	Fetch(ctx context.Context, cred schema.Credential, q schema.Query) ([]schema.Task, error)
}

// Result is the outcome of one refresh cycle.
type Result struct {
	// Map is the refreshed query map. It is always a distinct copy;
	// the input map is never mutated.
	Map schema.QueryMap

	// AttentionCount sums, per query, the number of tasks exceeding the
	// user-declared reasonable threshold. Never negative per query.
	AttentionCount int

	// Saved reports whether the cycle wrote the document back.
	Saved bool

	// Failed counts queries whose fetch failed this cycle. Failed
	// queries keep their cached tasks and contribute their last-known
	// attention count.
	Failed int
}

// Engine synchronizes the remote query document with fresh search
// results.
//
// The engine is resilient: a fetch failure for a single query is skipped,
// not fatal, and the cycle still completes and still evaluates whether to
// persist. Failures loading or saving the whole document are fatal to
// that cycle and propagate to the caller.
type Engine interface {
	// Refresh re-executes every query in m, replacing a query's cached
	// tasks only when the fetched list differs by content equality over
	// the full ordered list. At most one Save is issued per cycle, and
	// only if the resulting map deep-differs from the input.
	Refresh(ctx context.Context, cred schema.Credential, m schema.QueryMap) (Result, error)

	// LoadAndRefresh loads the remote document and refreshes it.
	// Used on login and by every scheduled cycle.
	LoadAndRefresh(ctx context.Context, cred schema.Credential) (Result, error)

	// SaveQuery adds or replaces one query in the map and persists the
	// result. An empty query id is minted before saving. Returns the
	// new map; the input map is never mutated.
	SaveQuery(ctx context.Context, cred schema.Credential, m schema.QueryMap, q schema.Query) (schema.QueryMap, error)

	// RemoveQuery deletes one query from the map and persists the
	// result. Removing an unknown id is a no-op and issues no write.
	RemoveQuery(ctx context.Context, cred schema.Credential, m schema.QueryMap, id string) (schema.QueryMap, error)
}
