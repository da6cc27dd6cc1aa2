package schema

import "time"

// Task is an immutable snapshot of one remote issue or pull request at
// fetch time. Tasks are never edited locally; a refresh replaces the whole
// list for a query or leaves it untouched.
type Task struct {
	// Num is the issue/PR number within its repository
	Num int `json:"num"`

	// Title is the issue/PR title as of the last fetch
	Title string `json:"title"`

	// Type is "issue" or "pr"
	Type string `json:"type"`

	// Author is the login of the user who opened the issue/PR
	Author string `json:"author"`

	// Timestamps reported by the tracker
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TasksEqual reports whether two task lists are identical, element by
// element and in order. Order matters: the search API returns results
// sorted by recency, and a reorder is a visible change.
func TasksEqual(a, b []Task) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether two tasks are identical snapshots.
func (t Task) Equal(o Task) bool {
	return t.Num == o.Num &&
		t.Title == o.Title &&
		t.Type == o.Type &&
		t.Author == o.Author &&
		t.CreatedAt.Equal(o.CreatedAt) &&
		t.UpdatedAt.Equal(o.UpdatedAt)
}
