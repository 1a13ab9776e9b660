package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type readiness struct {
	Status   string            `json:"status"`
	Database map[string]string `json:"database"`
	Streams  []string          `json:"streams"`
	Leader   *bool             `json:"leader,omitempty"`
}

func newHealthCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show server readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			var ready readiness
			if err := c.client().getJSON("/readyz", &ready); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), ready, func(w io.Writer) {
				fmt.Fprintf(w, "Server is %s\n", ready.Status)
				if s := ready.Database["status"]; s != "" {
					fmt.Fprintf(w, "Database: %s\n", s)
				}
				if len(ready.Streams) > 0 {
					fmt.Fprintf(w, "Streams: %s\n", strings.Join(ready.Streams, ", "))
				}
				if ready.Leader != nil {
					fmt.Fprintf(w, "Leader: %t\n", *ready.Leader)
				}
			})
		},
	}
}
