package appstate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/quarium/quarium/internal/schema"
)

func cred() schema.Credential {
	return schema.Credential{Token: "t", Username: "amy", GistID: "d"}
}

func mapWith(ids ...string) schema.QueryMap {
	m := schema.QueryMap{}
	for _, id := range ids {
		m[id] = schema.Query{ID: id, Name: id}
	}
	return m
}

func homeState() State {
	s := Initial()
	s, _ = Transition(s, CredentialResolved{Credential: cred(), Map: mapWith("q1", "q2"), Attention: 3})
	return s
}

func TestInitial(t *testing.T) {
	s := Initial()
	if s.Screen != ScreenLoading {
		t.Errorf("initial screen = %s, want %s", s.Screen, ScreenLoading)
	}
}

func TestMount_CredentialResolved(t *testing.T) {
	s, effects := Transition(Initial(), CredentialResolved{
		Credential: cred(),
		Map:        mapWith("q1"),
		Attention:  2,
	})

	if s.Screen != ScreenHome {
		t.Errorf("screen = %s, want %s", s.Screen, ScreenHome)
	}
	if s.AttentionCount != 2 {
		t.Errorf("attention = %d, want 2", s.AttentionCount)
	}

	want := []Effect{
		PersistCredential{Credential: cred()},
		PersistScreen{Screen: ScreenHome},
	}
	if diff := cmp.Diff(want, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestMount_RestoresPersistedScreen(t *testing.T) {
	s, _ := Transition(Initial(), CredentialResolved{
		Credential:   cred(),
		Map:          mapWith("q1"),
		Restore:      ScreenQueryList,
		RestoreFocus: "q1",
	})

	if s.Screen != ScreenQueryList || s.FocusedQueryID != "q1" {
		t.Errorf("got (%s, %q), want (QueryList, q1)", s.Screen, s.FocusedQueryID)
	}
}

func TestMount_StaleRestoredFocusFallsBackToHome(t *testing.T) {
	// The cached focus points at a query deleted out-of-band
	s, _ := Transition(Initial(), CredentialResolved{
		Credential:   cred(),
		Map:          mapWith("q1"),
		Restore:      ScreenQueryList,
		RestoreFocus: "gone",
	})

	if s.Screen != ScreenHome {
		t.Errorf("screen = %s, want %s", s.Screen, ScreenHome)
	}
	if s.FocusedQueryID != "" {
		t.Errorf("focus = %q, want empty", s.FocusedQueryID)
	}
}

func TestMount_CredentialMissing(t *testing.T) {
	s, effects := Transition(Initial(), CredentialMissing{})
	if s.Screen != ScreenLogin {
		t.Errorf("screen = %s, want %s", s.Screen, ScreenLogin)
	}
	if diff := cmp.Diff([]Effect{PersistScreen{Screen: ScreenLogin}}, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestMount_LoadFailed(t *testing.T) {
	s, _ := Transition(Initial(), LoadFailed{Code: 502})
	if s.Screen != ScreenError {
		t.Errorf("screen = %s, want %s", s.Screen, ScreenError)
	}
	if s.ErrorCode != 502 {
		t.Errorf("error code = %d, want 502", s.ErrorCode)
	}
}

func TestLogin_Rejected(t *testing.T) {
	// Document creation fails with 422: the user stays on Login with
	// the credential marked invalid and nothing persisted.
	s, effects := Transition(Initial(), CredentialRejected{Code: 422})

	if s.Screen != ScreenLogin {
		t.Errorf("screen = %s, want %s", s.Screen, ScreenLogin)
	}
	if !s.Credential.Invalid {
		t.Error("credential not marked invalid")
	}
	if s.ErrorCode != 422 {
		t.Errorf("error code = %d, want 422", s.ErrorCode)
	}

	for _, eff := range effects {
		if _, ok := eff.(PersistCredential); ok {
			t.Error("rejected login must not persist the credential")
		}
	}

	want := []Effect{MarkCredentialInvalid{}, PersistScreen{Screen: ScreenLogin}}
	if diff := cmp.Diff(want, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestHome_SelectQuery(t *testing.T) {
	s, effects := Transition(homeState(), SelectQuery{ID: "q1"})
	if s.Screen != ScreenQueryList || s.FocusedQueryID != "q1" {
		t.Errorf("got (%s, %q), want (QueryList, q1)", s.Screen, s.FocusedQueryID)
	}
	want := []Effect{PersistScreen{Screen: ScreenQueryList, FocusedQueryID: "q1"}}
	if diff := cmp.Diff(want, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestHome_SelectUnknownQueryIgnored(t *testing.T) {
	before := homeState()
	s, effects := Transition(before, SelectQuery{ID: "ghost"})
	if s.Screen != before.Screen || len(effects) != 0 {
		t.Errorf("unknown query selection must be ignored, got %s with %d effects", s.Screen, len(effects))
	}
}

func TestHome_AddQuery(t *testing.T) {
	s, _ := Transition(homeState(), AddQuery{})
	if s.Screen != ScreenEditQuery {
		t.Errorf("screen = %s, want %s", s.Screen, ScreenEditQuery)
	}
	if s.FocusedQueryID != "" {
		t.Errorf("draft edit must not focus a query, got %q", s.FocusedQueryID)
	}
}

func TestQueryList_EditAndBack(t *testing.T) {
	s, _ := Transition(homeState(), SelectQuery{ID: "q2"})

	edited, _ := Transition(s, EditFocused{})
	if edited.Screen != ScreenEditQuery || edited.FocusedQueryID != "q2" {
		t.Errorf("got (%s, %q), want (EditQuery, q2)", edited.Screen, edited.FocusedQueryID)
	}

	back, effects := Transition(s, Back{})
	if back.Screen != ScreenHome || back.FocusedQueryID != "" {
		t.Errorf("back: got (%s, %q), want (Home, \"\")", back.Screen, back.FocusedQueryID)
	}
	want := []Effect{PersistScreen{Screen: ScreenHome}}
	if diff := cmp.Diff(want, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestEditQuery_SaveDraft(t *testing.T) {
	s, _ := Transition(homeState(), AddQuery{})

	next := mapWith("q1", "q2", "q3")
	saved, _ := Transition(s, DraftSaved{Map: next})
	if saved.Screen != ScreenHome {
		t.Errorf("screen = %s, want %s", saved.Screen, ScreenHome)
	}
	if len(saved.Map) != 3 {
		t.Errorf("map not replaced, got %d queries", len(saved.Map))
	}
}

func TestEditQuery_DiscardKeepsMap(t *testing.T) {
	s, _ := Transition(homeState(), AddQuery{})
	discarded, _ := Transition(s, Back{})
	if discarded.Screen != ScreenHome {
		t.Errorf("screen = %s, want %s", discarded.Screen, ScreenHome)
	}
	if len(discarded.Map) != 2 {
		t.Errorf("discard changed the map: %d queries", len(discarded.Map))
	}
}

func TestLogout_FromAnyScreen(t *testing.T) {
	states := []State{
		homeState(),
		func() State { s, _ := Transition(homeState(), SelectQuery{ID: "q1"}); return s }(),
		func() State { s, _ := Transition(homeState(), AddQuery{}); return s }(),
		func() State { s, _ := Transition(Initial(), LoadFailed{Code: 500}); return s }(),
	}

	for _, st := range states {
		s, effects := Transition(st, Logout{})
		if s.Screen != ScreenLogin {
			t.Errorf("logout from %s: screen = %s, want Login", st.Screen, s.Screen)
		}
		if s.Credential != (schema.Credential{}) {
			t.Errorf("logout kept credential: %+v", s.Credential)
		}

		want := []Effect{ClearSession{}, PersistScreen{Screen: ScreenLogin}}
		if diff := cmp.Diff(want, effects); diff != "" {
			t.Errorf("effects mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestEventsOutOfPlaceIgnored(t *testing.T) {
	// Edit events have no meaning on the login screen
	login, _ := Transition(Initial(), CredentialMissing{})

	for _, ev := range []Event{SelectQuery{ID: "q1"}, AddQuery{}, EditFocused{}, DraftSaved{}, Back{}} {
		s, effects := Transition(login, ev)
		if s.Screen != ScreenLogin || len(effects) != 0 {
			t.Errorf("%T on Login: got %s with %d effects, want no-op", ev, s.Screen, len(effects))
		}
	}
}

// recorder is an in-memory SessionWriter capturing applied effects.
type recorder struct {
	creds   []schema.Credential
	invalid int
	screens []string
	focuses []string
	clears  int
}

func (r *recorder) SetCredential(c schema.Credential) error { r.creds = append(r.creds, c); return nil }
func (r *recorder) MarkInvalid() error                      { r.invalid++; return nil }
func (r *recorder) Clear() error                            { r.clears++; return nil }
func (r *recorder) SetScreen(screen, focus string) error {
	r.screens = append(r.screens, screen)
	r.focuses = append(r.focuses, focus)
	return nil
}

func TestRun_AppliesEffectsInOrder(t *testing.T) {
	_, effects := Transition(Initial(), CredentialResolved{Credential: cred(), Map: mapWith("q1")})

	rec := &recorder{}
	if err := Run(effects, rec); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if len(rec.creds) != 1 || rec.creds[0] != cred() {
		t.Errorf("credential not persisted: %+v", rec.creds)
	}
	if len(rec.screens) != 1 || rec.screens[0] != string(ScreenHome) {
		t.Errorf("screen not persisted: %+v", rec.screens)
	}
}

func TestRun_Logout(t *testing.T) {
	_, effects := Transition(homeState(), Logout{})

	rec := &recorder{}
	if err := Run(effects, rec); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if rec.clears != 1 {
		t.Errorf("clears = %d, want 1", rec.clears)
	}
	// Login screen is written after the clear so the restart resumes there
	if len(rec.screens) != 1 || rec.screens[0] != string(ScreenLogin) {
		t.Errorf("screens = %+v, want [Login]", rec.screens)
	}
}
