package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newReviewsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reviews",
		Aliases: []string{"review"},
		Short:   "Submit and manage reviews",
	}
	cmd.AddCommand(
		newReviewsListCmd(c),
		newReviewsAddCmd(c),
		newReviewsDeleteCmd(c),
	)
	return cmd
}

func newReviewsListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every review with its item (administrators)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var list reviewList
			if err := c.client().getJSON(portfolioAPI+"/admin/reviews", &list); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), list, func(w io.Writer) {
				rows := make([][]string, len(list.Reviews))
				for i, r := range list.Reviews {
					rows[i] = []string{r.ID, truncate(r.ItemTitle, 30), r.ItemStream, r.ReviewerEmail, fmt.Sprint(r.Rating), truncate(r.Comment, 40)}
				}
				printTable(w, []string{"id", "item", "stream", "reviewer", "rating", "comment"}, rows)
			})
		},
	}
}

func newReviewsAddCmd(c *cli) *cobra.Command {
	var (
		rating  int
		comment string
	)
	cmd := &cobra.Command{
		Use:   "add <item-id>",
		Short: "Review an item as the current caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"rating": rating, "comment": comment}
			var created review
			path := portfolioAPI + "/items/" + url.PathEscape(args[0]) + "/reviews"
			if err := c.client().sendJSON(http.MethodPost, path, body, &created); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), created, func(w io.Writer) {
				fmt.Fprintf(w, "Created review %s (rating %d)\n", created.ID, created.Rating)
			})
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 0, "Rating from 1 to 5")
	cmd.Flags().StringVar(&comment, "comment", "", "Review comment")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func newReviewsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <review-id>",
		Short: "Delete a review (administrators)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]string
			if err := c.client().sendJSON(http.MethodDelete, portfolioAPI+"/admin/reviews/"+url.PathEscape(args[0]), nil, &result); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted review %s\n", result["deleted"])
			})
		},
	}
}
