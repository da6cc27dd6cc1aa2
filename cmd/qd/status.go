package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarium/quarium/internal/appstate"
	"github.com/quarium/quarium/internal/gist"
	"github.com/quarium/quarium/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and document status",
	Long: `Show the stored session and what the application would resume to.

Performs the same mount sequence the extension runs on open: check the
stored credential, load and refresh the document, and restore the
persisted screen.`,
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

		cred, err := sessions.Credential()
		if err != nil {
			fatal("%v", err)
		}

		state := appstate.Initial()
		var ev appstate.Event

		if !cred.Complete() || cred.Invalid {
			ev = appstate.CredentialMissing{}
		} else {
			result, err := newEngine(cfg).LoadAndRefresh(context.Background(), cred)
			if err != nil {
				if gist.IsAuthFailure(err) {
					ev = appstate.CredentialRejected{Code: gist.StatusCode(err)}
				} else {
					ev = appstate.LoadFailed{Code: gist.StatusCode(err)}
				}
			} else {
				screen, focus, err := sessions.Screen()
				if err != nil {
					fatal("%v", err)
				}
				ev = appstate.CredentialResolved{
					Credential:   cred,
					Map:          result.Map,
					Attention:    result.AttentionCount,
					Restore:      appstate.Screen(screen),
					RestoreFocus: focus,
				}
			}
		}

		state, effects := appstate.Transition(state, ev)
		if err := appstate.Run(effects, sessions); err != nil {
			fatal("%v", err)
		}

		switch state.Screen {
		case appstate.ScreenLogin:
			fmt.Printf("%s Not logged in\n", ui.RenderWarn("⚠"))
		case appstate.ScreenError:
			fmt.Printf("%s Document unavailable (status %d)\n", ui.RenderErr("✗"), state.ErrorCode)
		default:
			fmt.Printf("%s Logged in as %s\n", ui.RenderPass("✓"), state.Credential.Username)
			fmt.Printf("   Document:  %s\n", state.Credential.GistID)
			fmt.Printf("   Queries:   %d\n", len(state.Map))
			fmt.Printf("   Attention: %d\n", state.AttentionCount)
			fmt.Printf("   Screen:    %s", state.Screen)
			if state.FocusedQueryID != "" {
				fmt.Printf(" (%s)", state.FocusedQueryID)
			}
			fmt.Println()
			fmt.Printf("   Session:   %s\n", ui.RenderDim(sessions.Path()))
		}
	},
}
