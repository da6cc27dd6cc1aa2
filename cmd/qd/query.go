package main

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/quarium/quarium/internal/schema"
	"github.com/quarium/quarium/internal/ui"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Manage saved queries",
}

var queryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved queries and their cached result counts",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, sessions, cred := mustLogin()
		defer sessions.Close()

		m, err := loadDocument(cfg, cred)
		if err != nil {
			fatal("%v", err)
		}

		if len(m) == 0 {
			fmt.Println("No queries saved. Add one with 'qd query add'.")
			return
		}

		ids := make([]string, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return m[ids[i]].Name < m[ids[j]].Name })

		for _, id := range ids {
			q := m[id]
			fmt.Printf("%s  %-24s %3d tasks  %s\n",
				ui.RenderAccent(id), q.Name, len(q.Tasks), ui.RenderDim(describeQuery(q)))
		}
	},
}

var addFlags struct {
	name         string
	repo         string
	author       string
	assignee     string
	mentions     string
	queryType    string
	review       string
	labels       []string
	reasonable   int
	updatedSince string
}

var queryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a query and persist it to the remote document",
	Long: `Add a saved query.

Filter flags map to the tracker's search qualifiers; omitted flags are
omitted from the search, never defaulted. --updated-since accepts a
natural-language age like "2 weeks ago".`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, sessions, cred := mustLogin()
		defer sessions.Close()

		q := schema.Query{
			Name:            addFlags.name,
			Repo:            addFlags.repo,
			Author:          addFlags.author,
			Assignee:        addFlags.assignee,
			Mentions:        addFlags.mentions,
			Type:            addFlags.queryType,
			ReviewStatus:    addFlags.review,
			Labels:          addFlags.labels,
			ReasonableCount: schema.Count(addFlags.reasonable),
		}

		if addFlags.updatedSince != "" {
			days, err := parseAge(addFlags.updatedSince)
			if err != nil {
				fatal("%v", err)
			}
			q.LastUpdated = days
		}

		m, err := loadDocument(cfg, cred)
		if err != nil {
			fatal("%v", err)
		}

		next, err := newEngine(cfg).SaveQuery(context.Background(), cred, m, q)
		if err != nil {
			fatal("%v", err)
		}

		// Find the minted id for display
		for id, saved := range next {
			if _, existed := m[id]; !existed && saved.Name == q.Name {
				fmt.Printf("%s Added query %s (%s)\n", ui.RenderPass("✓"), saved.Name, id)
				return
			}
		}
		fmt.Printf("%s Added query %s\n", ui.RenderPass("✓"), q.Name)
	},
}

var queryRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a query from the remote document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, sessions, cred := mustLogin()
		defer sessions.Close()

		m, err := loadDocument(cfg, cred)
		if err != nil {
			fatal("%v", err)
		}

		id := args[0]
		if _, ok := m[id]; !ok {
			fatal("no query with id %s", id)
		}

		if _, err := newEngine(cfg).RemoveQuery(context.Background(), cred, m, id); err != nil {
			fatal("%v", err)
		}

		fmt.Printf("%s Removed query %s\n", ui.RenderPass("✓"), id)
	},
}

func init() {
	queryAddCmd.Flags().StringVar(&addFlags.name, "name", "", "query name (required)")
	queryAddCmd.Flags().StringVar(&addFlags.repo, "repo", "", "restrict to a repository (owner/name)")
	queryAddCmd.Flags().StringVar(&addFlags.author, "author", "", "restrict to an author (\"@me\" for yourself)")
	queryAddCmd.Flags().StringVar(&addFlags.assignee, "assignee", "", "restrict to an assignee")
	queryAddCmd.Flags().StringVar(&addFlags.mentions, "mentions", "", "restrict to mentions of a user")
	queryAddCmd.Flags().StringVar(&addFlags.queryType, "type", "", "restrict to \"issue\" or \"pr\"")
	queryAddCmd.Flags().StringVar(&addFlags.review, "review", "", "review status filter (pr queries only)")
	queryAddCmd.Flags().StringArrayVar(&addFlags.labels, "label", nil, "required label (repeatable)")
	queryAddCmd.Flags().IntVar(&addFlags.reasonable, "reasonable", 0, "result count considered reasonable")
	queryAddCmd.Flags().StringVar(&addFlags.updatedSince, "updated-since", "", "only tasks updated since, e.g. \"2 weeks ago\"")
	_ = queryAddCmd.MarkFlagRequired("name")

	queryCmd.AddCommand(queryListCmd)
	queryCmd.AddCommand(queryAddCmd)
	queryCmd.AddCommand(queryRmCmd)
}

// parseAge turns a natural-language age into whole days before now.
func parseAge(s string) (int, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	now := time.Now()
	r, err := w.Parse(s, now)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q: %w", s, err)
	}
	if r == nil {
		return 0, fmt.Errorf("could not understand %q", s)
	}
	if !r.Time.Before(now) {
		return 0, fmt.Errorf("%q is not in the past", s)
	}

	days := int(math.Ceil(now.Sub(r.Time).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days, nil
}

// describeQuery summarizes a query's filters for list output.
func describeQuery(q schema.Query) string {
	s := ""
	if q.Repo != "" {
		s += q.Repo + " "
	}
	if q.Type != "" {
		s += q.Type + " "
	}
	if q.Author != "" {
		s += "by " + q.Author + " "
	}
	if len(q.Labels) > 0 {
		s += fmt.Sprintf("(%d labels) ", len(q.Labels))
	}
	if s == "" {
		return "all"
	}
	return s[:len(s)-1]
}
