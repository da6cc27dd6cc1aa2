package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/quarium/quarium/internal/appstate"
	"github.com/quarium/quarium/internal/engine"
	"github.com/quarium/quarium/internal/gist"
	"github.com/quarium/quarium/internal/schema"
	"github.com/quarium/quarium/internal/ui"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a personal access token",
	Long: `Validate a personal access token against the tracker and set up the
remote query document.

A returning user has their existing document loaded and refreshed: the
stored identity is reused when present, otherwise the account's gists
are searched for the document. Only an account with no document gets a
fresh private one seeded with an empty query set. A rejected token is
marked invalid and nothing is persisted.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatal("%v", err)
		}

		sessions, err := openSession(cfg)
		if err != nil {
			fatal("%v", err)
		}
		defer sessions.Close()

		token := loginToken
		if token == "" {
			token, err = promptToken()
			if err != nil {
				fatal("%v", err)
			}
		}
		if token == "" {
			fatal("a token is required")
		}

		stored, err := sessions.Credential()
		if err != nil {
			fatal("%v", err)
		}

		ev := loginEvent(context.Background(), gist.New(cfg.APIBase, nil), newEngine(cfg), stored, token)

		state, effects := appstate.Transition(appstate.Initial(), ev)
		if err := appstate.Run(effects, sessions); err != nil {
			fatal("%v", err)
		}

		switch state.Screen {
		case appstate.ScreenHome:
			fmt.Printf("%s Logged in as %s (%d queries, attention %d)\n",
				ui.RenderPass("✓"), state.Credential.Username,
				len(state.Map), state.AttentionCount)
		case appstate.ScreenLogin:
			fmt.Printf("%s Token rejected (status %d)\n", ui.RenderErr("✗"), state.ErrorCode)
			os.Exit(1)
		}
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "personal access token (prompted if omitted)")
}

// loginEvent validates the token and resolves the user's document,
// returning the outcome as a state machine event.
//
// Resolution order: the stored session identity when present, then the
// account's existing document gist, and only when neither exists a
// freshly created document. Looking up before creating means a re-login
// after logout finds the user's queries instead of orphaning them.
func loginEvent(ctx context.Context, store *gist.Client, eng engine.Engine, stored schema.Credential, token string) appstate.Event {
	cred := schema.Credential{Token: token, Username: stored.Username, GistID: stored.GistID}

	if cred.Username == "" || cred.GistID == "" {
		identity, err := store.Lookup(ctx, token)
		switch {
		case err == nil:
			cred.Username, cred.GistID = identity.Login, identity.GistID

		case gist.IsNotFound(err):
			// Genuinely new account: seed an empty document
			identity, err := store.Create(ctx, token)
			if err != nil {
				return appstate.CredentialRejected{Code: gist.StatusCode(err)}
			}
			cred.Username, cred.GistID = identity.Login, identity.GistID
			return appstate.CredentialResolved{Credential: cred, Map: schema.QueryMap{}}

		default:
			return appstate.CredentialRejected{Code: gist.StatusCode(err)}
		}
	}

	result, err := eng.LoadAndRefresh(ctx, cred)
	if err != nil {
		return appstate.CredentialRejected{Code: gist.StatusCode(err)}
	}
	return appstate.CredentialResolved{
		Credential: cred,
		Map:        result.Map,
		Attention:  result.AttentionCount,
	}
}

// promptToken reads the token without echoing it.
func promptToken() (string, error) {
	fmt.Fprint(os.Stderr, "Token: ")
	if !term.IsTerminal(int(syscall.Stdin)) {
		var token string
		if _, err := fmt.Scanln(&token); err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(token), nil
	}
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
