package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newAuditCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit trail (administrators)",
	}
	cmd.AddCommand(newAuditEventsCmd(c))
	return cmd
}

func newAuditEventsCmd(c *cli) *cobra.Command {
	var (
		stream    string
		actor     string
		action    string
		eventType string
		outcome   string
		pageSize  int
		pageToken string
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List audit events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			for key, val := range map[string]string{
				"stream":    stream,
				"actor":     actor,
				"action":    action,
				"eventType": eventType,
				"outcome":   outcome,
				"pageToken": pageToken,
			} {
				if val != "" {
					q.Set(key, val)
				}
			}
			if pageSize > 0 {
				q.Set("pageSize", fmt.Sprint(pageSize))
			}
			path := auditAPI + "/events"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var list auditEventList
			if err := c.client().getJSON(path, &list); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), list, func(w io.Writer) {
				rows := make([][]string, len(list.Events))
				for i, e := range list.Events {
					rows[i] = []string{
						e.CreatedAt.Format(time.RFC3339), e.Actor, e.Action, e.Outcome,
						e.Stream, strings.Join(e.ResourceIDs, ","), e.Reason,
					}
				}
				printTable(w, []string{"time", "actor", "action", "outcome", "stream", "resources", "reason"}, rows)
				if list.NextPageToken != "" {
					fmt.Fprintf(w, "\nMore results: --page-token %s\n", list.NextPageToken)
				}
			})
		},
	}
	cmd.Flags().StringVar(&stream, "stream", "", "Filter by stream")
	cmd.Flags().StringVar(&actor, "actor", "", "Filter by actor")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action")
	cmd.Flags().StringVar(&eventType, "event-type", "", "Filter by event type")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Filter by outcome: success, failure, denied")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Maximum events to return")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Token from a previous page")
	return cmd
}
