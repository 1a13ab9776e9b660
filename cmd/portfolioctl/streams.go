package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newStreamsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streams",
		Short: "Inspect configured business streams",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List streams and the paths refreshed when they change",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Streams []streamDef `json:"streams"`
			}
			if err := c.client().getJSON(portfolioAPI+"/streams", &resp); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), resp, func(w io.Writer) {
				rows := make([][]string, len(resp.Streams))
				for i, s := range resp.Streams {
					rows[i] = []string{s.Name, s.DisplayName, strings.Join(s.Paths, ",")}
				}
				printTable(w, []string{"name", "display name", "paths"}, rows)
			})
		},
	})
	return cmd
}
