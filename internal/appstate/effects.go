package appstate

import (
	"fmt"

	"github.com/quarium/quarium/internal/schema"
)

// SessionWriter is the durable store the effect runner writes to.
// Implemented by session.Store; tests substitute an in-memory fake.
type SessionWriter interface {
	SetCredential(cred schema.Credential) error
	MarkInvalid() error
	SetScreen(screen, focusedQueryID string) error
	Clear() error
}

// Run executes the effects of a transition against the session store, in
// order. The first failing effect aborts the rest; the state itself has
// already advanced, so the caller decides whether a persistence failure
// is fatal.
func Run(effects []Effect, sw SessionWriter) error {
	for _, eff := range effects {
		var err error
		switch eff := eff.(type) {
		case PersistCredential:
			err = sw.SetCredential(eff.Credential)
		case MarkCredentialInvalid:
			err = sw.MarkInvalid()
		case PersistScreen:
			err = sw.SetScreen(string(eff.Screen), eff.FocusedQueryID)
		case ClearSession:
			err = sw.Clear()
		default:
			err = fmt.Errorf("unknown effect %T", eff)
		}
		if err != nil {
			return fmt.Errorf("failed to apply %T: %w", eff, err)
		}
	}
	return nil
}
