package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/quarium/quarium/internal/schema"
)

// engine implements the Engine interface.
type engine struct {
	store  DocumentStore
	search TaskFetcher
	logger *log.Logger

	// mu serializes read-modify-write cycles within this process so a
	// scheduled refresh and a user-initiated save cannot interleave.
	// Cross-process writers still race; last writer wins.
	mu sync.Mutex
}

// New creates a new Engine instance.
//
// If logger is nil, a default logger writing to stderr is used.
func New(store DocumentStore, search TaskFetcher, logger *log.Logger) Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	return &engine{
		store:  store,
		search: search,
		logger: logger,
	}
}

// Refresh implements Engine.Refresh.
func (e *engine) Refresh(ctx context.Context, cred schema.Credential, m schema.QueryMap) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := Result{Map: m.Clone()}
	changed := false

	// Iterate in sorted id order so logs are stable across cycles.
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		q := result.Map[id]

		tasks, err := e.search.Fetch(ctx, cred, q)
		if err != nil {
			// Skipped, not fatal: cached tasks stay untouched and
			// contribute their last-known attention count.
			e.logger.Printf("WARNING: fetch failed for query %s (%s): %v", id, q.Name, err)
			result.Failed++
			result.AttentionCount += attention(len(q.Tasks), q.ReasonableCount)
			continue
		}

		result.AttentionCount += attention(len(tasks), q.ReasonableCount)

		if !schema.TasksEqual(q.Tasks, tasks) {
			q.Tasks = tasks
			result.Map[id] = q
			changed = true
			e.logger.Printf("Query %s (%s): %d tasks (changed)", id, q.Name, len(tasks))
		}
	}

	// At most one write per cycle, and only when something changed.
	if changed && !result.Map.Equal(m) {
		if err := e.store.Save(ctx, cred, result.Map); err != nil {
			return result, fmt.Errorf("failed to save refreshed document: %w", err)
		}
		result.Saved = true
	}

	e.logger.Printf("Refresh complete: queries=%d failed=%d attention=%d saved=%v",
		len(ids), result.Failed, result.AttentionCount, result.Saved)

	return result, nil
}

// LoadAndRefresh implements Engine.LoadAndRefresh.
func (e *engine) LoadAndRefresh(ctx context.Context, cred schema.Credential) (Result, error) {
	m, err := e.store.Load(ctx, cred)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load document: %w", err)
	}
	return e.Refresh(ctx, cred, m)
}

// SaveQuery implements Engine.SaveQuery.
func (e *engine) SaveQuery(ctx context.Context, cred schema.Credential, m schema.QueryMap, q schema.Query) (schema.QueryMap, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	q.MintID()

	e.mu.Lock()
	defer e.mu.Unlock()

	next := m.Clone()
	next[q.ID] = q
	if err := e.store.Save(ctx, cred, next); err != nil {
		return nil, fmt.Errorf("failed to save query %s: %w", q.ID, err)
	}

	e.logger.Printf("Saved query %s (%s)", q.ID, q.Name)
	return next, nil
}

// RemoveQuery implements Engine.RemoveQuery.
func (e *engine) RemoveQuery(ctx context.Context, cred schema.Credential, m schema.QueryMap, id string) (schema.QueryMap, error) {
	if _, ok := m[id]; !ok {
		return m.Clone(), nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := m.Clone()
	delete(next, id)
	if err := e.store.Save(ctx, cred, next); err != nil {
		return nil, fmt.Errorf("failed to remove query %s: %w", id, err)
	}

	e.logger.Printf("Removed query %s", id)
	return next, nil
}

// attention returns how far a result count exceeds the reasonable
// threshold, floored at zero.
func attention(count int, reasonable schema.Count) int {
	if n := count - int(reasonable); n > 0 {
		return n
	}
	return 0
}
