package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"socialscope-backend/services/acquisition"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <platform> <username>",
	Short: "Fetch one username's footprint on one platform.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var snapshot acquisition.Snapshot
		err := getJson(cmd, "/api/v1/fetch", map[string]string{
			"platform": args[0],
			"username": args[1],
		}, &snapshot)
		if err != nil {
			log.Fatal(err)
		}

		renderSnapshot(&snapshot)
	},
}

func renderSnapshot(snapshot *acquisition.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)

	t.AppendRow(table.Row{"Platform", snapshot.Platform})
	t.AppendRow(table.Row{"Username", snapshot.Username})
	t.AppendRow(table.Row{"Display name", snapshot.Profile.DisplayName})
	t.AppendRow(table.Row{"Followers", snapshot.Profile.FollowerCount})
	t.AppendRow(table.Row{"Following", snapshot.Profile.FollowingCount})
	t.AppendRow(table.Row{"Posts", snapshot.Profile.PostCount})
	t.AppendRow(table.Row{"Private", snapshot.Profile.Private})
	t.AppendRow(table.Row{"Posts/week", fmt.Sprintf("%.1f", snapshot.Activity.PostsPerWeek)})
	t.AppendRow(table.Row{"Exposure score", snapshot.Analysis.ExposureScore})
	t.AppendRow(table.Row{"Topics", strings.Join(snapshot.Analysis.Topics, ", ")})
	t.AppendRow(table.Row{"Completeness", snapshot.Completeness})
	t.AppendRow(table.Row{"Fetched via", snapshot.FetchedVia})
	t.AppendRow(table.Row{"Fetched at", snapshot.FetchedAt.Format(time.RFC3339)})
	t.Render()

	if len(snapshot.Analysis.PrivacyConcerns) == 0 {
		return
	}
	fmt.Println()
	concerns := table.NewWriter()
	concerns.SetOutputMirror(os.Stdout)
	concerns.AppendHeader(table.Row{"Concern", "Recommended action"})
	for i, concern := range snapshot.Analysis.PrivacyConcerns {
		action := ""
		if i < len(snapshot.Analysis.RecommendedActions) {
			action = snapshot.Analysis.RecommendedActions[i]
		}
		concerns.AppendRow(table.Row{concern, action})
	}
	concerns.Render()
}
