// Package appstate implements the application state machine: which screen
// is active and how login, logout, edit and error transitions occur.
//
// Transition is a pure function (state, event) -> (state, effects). All
// I/O (loading the remote document, persisting the credential, writing
// the screen to the session store) happens in the caller, which feeds
// outcomes back in as events and executes the returned effects. This
// keeps the whole transition table testable without any UI or network.
package appstate

import "github.com/quarium/quarium/internal/schema"

// Screen identifies the active application screen.
type Screen string

// The application screens. Cold start begins on ScreenLoading.
const (
	ScreenLoading   Screen = "Loading"
	ScreenLogin     Screen = "Login"
	ScreenHome      Screen = "Home"
	ScreenQueryList Screen = "QueryList"
	ScreenEditQuery Screen = "EditQuery"
	ScreenError     Screen = "ErrorPage"
)

// Valid reports whether s names a known screen. Persisted screen values
// come from disk and may be stale or empty.
func (s Screen) Valid() bool {
	switch s {
	case ScreenLoading, ScreenLogin, ScreenHome, ScreenQueryList, ScreenEditQuery, ScreenError:
		return true
	}
	return false
}

// State is the application state. Mutated only through Transition.
type State struct {
	Screen         Screen
	Credential     schema.Credential
	Map            schema.QueryMap
	AttentionCount int

	// FocusedQueryID is set while a query's result list or edit form
	// is open
	FocusedQueryID string

	// ErrorCode is the failure status surfaced on ScreenError
	ErrorCode int
}

// Initial returns the cold-start state.
func Initial() State {
	return State{Screen: ScreenLoading, Map: schema.QueryMap{}}
}

// Event is an input to the state machine: a user action or the outcome
// of an asynchronous storage-backed operation.
type Event interface{ isEvent() }

// CredentialResolved reports a successful login or application mount:
// the credential round-tripped and the document loaded.
type CredentialResolved struct {
	Credential schema.Credential
	Map        schema.QueryMap
	Attention  int

	// Restore names a previously persisted screen to resume on mount.
	// When empty or invalid the user lands on Home.
	Restore      Screen
	RestoreFocus string
}

// CredentialMissing reports an application mount with no usable stored
// credential.
type CredentialMissing struct{}

// CredentialRejected reports a login whose credential failed validation
// against the remote store.
type CredentialRejected struct{ Code int }

// LoadFailed reports a mount-time load/refresh failure that is not a
// credential rejection.
type LoadFailed struct{ Code int }

// SelectQuery opens a query's result list from Home.
type SelectQuery struct{ ID string }

// AddQuery opens the edit form with an unsaved draft.
type AddQuery struct{}

// EditFocused opens the edit form for the focused query.
type EditFocused struct{}

// DraftSaved reports that the edit form's save or remove completed and
// the document was persisted; Map is the new map.
type DraftSaved struct{ Map schema.QueryMap }

// Back leaves the result list or discards the edit form.
type Back struct{}

// Logout clears the session from any screen.
type Logout struct{}

func (CredentialResolved) isEvent() {}
func (CredentialMissing) isEvent()  {}
func (CredentialRejected) isEvent() {}
func (LoadFailed) isEvent()         {}
func (SelectQuery) isEvent()        {}
func (AddQuery) isEvent()           {}
func (EditFocused) isEvent()        {}
func (DraftSaved) isEvent()         {}
func (Back) isEvent()               {}
func (Logout) isEvent()             {}

// Effect is a side effect the caller must execute after a transition.
type Effect interface{ isEffect() }

// PersistScreen writes the active screen and focused query to the
// session store. Emitted on every transition so a restart resumes the
// same screen.
type PersistScreen struct {
	Screen         Screen
	FocusedQueryID string
}

// PersistCredential writes the credential to the session store.
type PersistCredential struct{ Credential schema.Credential }

// MarkCredentialInvalid flags the stored credential as rejected.
type MarkCredentialInvalid struct{}

// ClearSession wipes the credential and persisted screen.
type ClearSession struct{}

func (PersistScreen) isEffect()         {}
func (PersistCredential) isEffect()     {}
func (MarkCredentialInvalid) isEffect() {}
func (ClearSession) isEffect()          {}

// Transition applies one event to the state and returns the next state
// plus the effects the caller must execute. Events that do not apply to
// the current screen leave the state unchanged and produce no effects.
func Transition(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case CredentialResolved:
		s.Credential = ev.Credential
		s.Map = ev.Map
		s.AttentionCount = ev.Attention
		s.ErrorCode = 0
		s.Screen = ScreenHome
		s.FocusedQueryID = ""
		// Resume a cached screen only if it still points at a live query
		if ev.Restore.Valid() {
			switch ev.Restore {
			case ScreenQueryList, ScreenEditQuery:
				if _, ok := s.Map[ev.RestoreFocus]; ok {
					s.Screen = ev.Restore
					s.FocusedQueryID = ev.RestoreFocus
				}
			case ScreenHome:
				// Already there
			}
		}
		return s, []Effect{
			PersistCredential{Credential: ev.Credential},
			PersistScreen{Screen: s.Screen, FocusedQueryID: s.FocusedQueryID},
		}

	case CredentialMissing:
		s.Screen = ScreenLogin
		s.FocusedQueryID = ""
		return s, []Effect{PersistScreen{Screen: s.Screen}}

	case CredentialRejected:
		s.Screen = ScreenLogin
		s.Credential.Invalid = true
		s.ErrorCode = ev.Code
		s.FocusedQueryID = ""
		return s, []Effect{
			MarkCredentialInvalid{},
			PersistScreen{Screen: s.Screen},
		}

	case LoadFailed:
		s.Screen = ScreenError
		s.ErrorCode = ev.Code
		return s, []Effect{PersistScreen{Screen: s.Screen, FocusedQueryID: s.FocusedQueryID}}

	case SelectQuery:
		if s.Screen != ScreenHome {
			return s, nil
		}
		if _, ok := s.Map[ev.ID]; !ok {
			return s, nil
		}
		s.Screen = ScreenQueryList
		s.FocusedQueryID = ev.ID
		return s, []Effect{PersistScreen{Screen: s.Screen, FocusedQueryID: ev.ID}}

	case AddQuery:
		if s.Screen != ScreenHome {
			return s, nil
		}
		s.Screen = ScreenEditQuery
		s.FocusedQueryID = ""
		return s, []Effect{PersistScreen{Screen: s.Screen}}

	case EditFocused:
		if s.Screen != ScreenQueryList {
			return s, nil
		}
		s.Screen = ScreenEditQuery
		return s, []Effect{PersistScreen{Screen: s.Screen, FocusedQueryID: s.FocusedQueryID}}

	case DraftSaved:
		if s.Screen != ScreenEditQuery {
			return s, nil
		}
		s.Map = ev.Map
		s.Screen = ScreenHome
		s.FocusedQueryID = ""
		return s, []Effect{PersistScreen{Screen: s.Screen}}

	case Back:
		switch s.Screen {
		case ScreenQueryList:
			s.Screen = ScreenHome
			s.FocusedQueryID = ""
			return s, []Effect{PersistScreen{Screen: s.Screen}}
		case ScreenEditQuery:
			// Discard the draft
			s.Screen = ScreenHome
			s.FocusedQueryID = ""
			return s, []Effect{PersistScreen{Screen: s.Screen}}
		}
		return s, nil

	case Logout:
		s = Initial()
		s.Screen = ScreenLogin
		return s, []Effect{
			ClearSession{},
			PersistScreen{Screen: ScreenLogin},
		}
	}

	return s, nil
}
