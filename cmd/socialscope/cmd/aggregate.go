package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"socialscope-backend/services/acquisition"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var aggregatePlatforms string

func init() {
	aggregateCmd.Flags().StringVar(
		&aggregatePlatforms, "platforms", "",
		"Comma-separated platform list, defaults to all of them.",
	)
	rootCmd.AddCommand(aggregateCmd)
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <username>",
	Short: "Audit one username across every platform at once.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := map[string]string{"username": args[0]}
		if aggregatePlatforms != "" {
			query["platforms"] = aggregatePlatforms
		}

		var result acquisition.AggregateResult
		err := getJson(cmd, "/api/v1/aggregate", query, &result)
		if err != nil {
			log.Fatal(err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Platform", "Found", "Followers", "Exposure", "Detail"})
		for _, r := range result.Results {
			if r.Snapshot == nil {
				t.AppendRow(table.Row{r.Platform, "no", "", "", r.Error})
				continue
			}
			t.AppendRow(table.Row{
				r.Platform,
				"yes",
				r.Snapshot.Profile.FollowerCount,
				r.Snapshot.Analysis.ExposureScore,
				string(r.Snapshot.Completeness),
			})
		}
		t.Render()

		fmt.Println()
		fmt.Printf("average exposure:   %d\n", result.AverageExposure)
		fmt.Printf("handle consistency: %.2f\n", result.HandleConsistency)
		if len(result.Concerns) > 0 {
			fmt.Printf("concerns:           %s\n", strings.Join(result.Concerns, "; "))
		}
	},
}
