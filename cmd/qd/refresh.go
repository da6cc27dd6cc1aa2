package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarium/quarium/internal/ui"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh cycle now",
	Long: `Load the remote query document, re-execute every query, and write the
document back if any result list changed.

Per-query fetch failures are skipped; the cycle completes with the
remaining queries.`,
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
		if !cred.Complete() {
			fatal("not logged in; run 'qd login' first")
		}

		start := time.Now()
		result, err := newEngine(cfg).LoadAndRefresh(context.Background(), cred)
		if err != nil {
			fatal("refresh failed: %v", err)
		}

		ids := make([]string, 0, len(result.Map))
		for id := range result.Map {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return result.Map[ids[i]].Name < result.Map[ids[j]].Name
		})

		for _, id := range ids {
			q := result.Map[id]
			marker := ui.RenderPass("✓")
			if over := len(q.Tasks) - int(q.ReasonableCount); over > 0 {
				marker = ui.RenderWarn("⚠")
			}
			fmt.Printf("%s %-24s %d tasks\n", marker, q.Name, len(q.Tasks))
		}

		fmt.Printf("\n%s Refresh complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Attention: %d\n", result.AttentionCount)
		if result.Failed > 0 {
			fmt.Printf("   %s %d queries failed to fetch\n", ui.RenderWarn("⚠"), result.Failed)
		}
		if result.Saved {
			fmt.Printf("   Document updated\n")
		}
	},
}
