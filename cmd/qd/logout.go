package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarium/quarium/internal/appstate"
	"github.com/quarium/quarium/internal/ui"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored credential and session",
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

		_, effects := appstate.Transition(appstate.Initial(), appstate.Logout{})
		if err := appstate.Run(effects, sessions); err != nil {
			fatal("%v", err)
		}

		fmt.Printf("%s Logged out\n", ui.RenderPass("✓"))
	},
}
