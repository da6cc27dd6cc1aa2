package session

import (
	"strconv"

	"github.com/quarium/quarium/internal/schema"
)

// Credential returns the stored credential. Unset keys read as zero
// values, so a fresh store returns an incomplete credential.
func (s *Store) Credential() (schema.Credential, error) {
	var cred schema.Credential
	var err error

	if cred.Token, err = s.get(keyToken); err != nil {
		return schema.Credential{}, err
	}
	if cred.Username, err = s.get(keyUsername); err != nil {
		return schema.Credential{}, err
	}
	if cred.GistID, err = s.get(keyGistID); err != nil {
		return schema.Credential{}, err
	}

	invalid, err := s.get(keyInvalid)
	if err != nil {
		return schema.Credential{}, err
	}
	cred.Invalid = invalid == "true"

	return cred, nil
}

// SetCredential persists the credential.
func (s *Store) SetCredential(cred schema.Credential) error {
	if err := s.set(keyToken, cred.Token); err != nil {
		return err
	}
	if err := s.set(keyUsername, cred.Username); err != nil {
		return err
	}
	if err := s.set(keyGistID, cred.GistID); err != nil {
		return err
	}
	return s.set(keyInvalid, strconv.FormatBool(cred.Invalid))
}

// MarkInvalid flags the stored credential as rejected by the remote API.
// The token is kept so the user can see what they logged in with.
func (s *Store) MarkInvalid() error {
	return s.set(keyInvalid, "true")
}

// Screen returns the persisted screen name and focused query id.
// A fresh store returns "" for both; the state machine treats that as a
// cold start.
func (s *Store) Screen() (screen, focusedQueryID string, err error) {
	if screen, err = s.get(keyScreen); err != nil {
		return "", "", err
	}
	if focusedQueryID, err = s.get(keyFocusedQuery); err != nil {
		return "", "", err
	}
	return screen, focusedQueryID, nil
}

// SetScreen persists the active screen and focused query so a restart
// resumes where the user left off.
func (s *Store) SetScreen(screen, focusedQueryID string) error {
	if err := s.set(keyScreen, screen); err != nil {
		return err
	}
	return s.set(keyFocusedQuery, focusedQueryID)
}

// Clear wipes the credential and persisted screen. Called on logout.
func (s *Store) Clear() error {
	_, err := s.conn.Exec(`DELETE FROM session`)
	if err != nil {
		return err
	}
	return nil
}
