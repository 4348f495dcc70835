package cmd

import (
	"fmt"
	"log"
	"os"

	"socialscope-backend/lib/resultcache"
	"socialscope-backend/services/acquisition"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-platform health and rate limit headroom.",
	Args:  cobra.MaximumNArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		var status struct {
			Platforms []acquisition.ApiStatus `json:"platforms"`
			Cache     resultcache.Stats       `json:"cache"`
		}
		err := getJson(cmd, "/api/v1/status", nil, &status)
		if err != nil {
			log.Fatal(err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Platform", "Configured", "Operational", "Tokens", "Queued", "Message"})
		for _, p := range status.Platforms {
			t.AppendRow(table.Row{
				p.Platform,
				p.Configured,
				p.Operational,
				fmt.Sprintf("%d/%d", p.RateLimit.Available, p.RateLimit.Capacity),
				p.RateLimit.QueueLength,
				p.Message,
			})
		}
		t.Render()

		fmt.Println()
		fmt.Printf(
			"cache: %d/%d entries (%.0f%% full)\n",
			status.Cache.Size, status.Cache.MaxSize, status.Cache.Utilization*100,
		)
	},
}
