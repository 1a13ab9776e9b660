package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

const cleanupJobsPath = portfolioAPI + "/admin/cleanup-jobs"

func newCleanupJobsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cleanup-jobs",
		Aliases: []string{"jobs"},
		Short:   "Inspect asset cleanup retries (administrators)",
	}
	cmd.AddCommand(newCleanupJobsListCmd(c), newCleanupJobsCancelCmd(c))
	return cmd
}

func newCleanupJobsListCmd(c *cli) *cobra.Command {
	var state, itemID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cleanup jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			if itemID != "" {
				q.Set("itemId", itemID)
			}
			path := cleanupJobsPath
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var list cleanupJobList
			if err := c.client().getJSON(path, &list); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), list, func(w io.Writer) {
				rows := make([][]string, len(list.Jobs))
				for i, j := range list.Jobs {
					rows[i] = []string{j.ID, j.State, j.ItemID, truncate(j.AssetRef, 40), fmt.Sprint(j.AttemptCount), truncate(j.LastError, 40)}
				}
				printTable(w, []string{"id", "state", "item", "asset", "attempts", "last error"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Filter by state: queued, running, succeeded, failed, canceled")
	cmd.Flags().StringVar(&itemID, "item", "", "Filter by item ID")
	return cmd
}

func newCleanupJobsCancelCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued cleanup job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]string
			path := cleanupJobsPath + "/" + url.PathEscape(args[0]) + ":cancel"
			if err := c.client().sendJSON(http.MethodPost, path, nil, &result); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Job %s %s\n", result["jobId"], result["status"])
			})
		},
	}
}
